package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/bakongpay/internal/logger"
	"github.com/example/bakongpay/internal/payment"
)

const telegramAPI = "https://api.telegram.org"

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiURL      string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiURL:      telegramAPI,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	log := logger.SW("component", "telegram")
	if s.botToken == "" {
		log.Debug("bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Warnw("failed to send message", "error", err)
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warnw("unexpected status", "status", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		logger.SW("component", "telegram").Debug("admin chat id not configured")
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// OrderNotification contains order data for Telegram notification.
type OrderNotification struct {
	OrderID       string
	OrderNumber   string
	Items         []OrderItemNotification
	TotalAmount   decimal.Decimal
	Currency      string
	CustomerName  string
	CustomerPhone string
	PaymentMethod string
}

// OrderItemNotification contains order item data.
type OrderItemNotification struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// FormatPrice formats an amount with thousand separators. Riel has no minor
// unit; other currencies keep two decimals.
func FormatPrice(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(currency)
	if currency == "" {
		currency = string(payment.KHR)
	}

	places := int32(2)
	if currency == string(payment.KHR) {
		places = 0
	}
	str := amount.Abs().StringFixed(places)
	intPart, frac, _ := strings.Cut(str, ".")

	var result strings.Builder
	if amount.IsNegative() {
		result.WriteString("-")
	}
	length := len(intPart)
	for i, digit := range intPart {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}
	if frac != "" {
		result.WriteString("." + frac)
	}

	return result.String() + " " + currency
}

// NotifyNewOrder sends notification about new order to admin chat.
func (s *TelegramService) NotifyNewOrder(ctx context.Context, order OrderNotification) error {
	if s.adminChatID == "" {
		return nil
	}

	var itemsList strings.Builder
	for i, item := range order.Items {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		itemsList.WriteString(fmt.Sprintf("%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.Name),
			item.Quantity,
			FormatPrice(item.UnitPrice, order.Currency),
			FormatPrice(lineTotal, order.Currency),
		))
	}

	message := fmt.Sprintf(`<b>🛒 NEW ORDER</b>
<b>📋 Order:</b> %s
<b>👤 Customer:</b> %s
<b>📞 Phone:</b> %s
<b>📦 Items:</b>
%s
<b>💰 Total:</b> %s
<b>💳 Payment:</b> %s
━━━━━━━━━━━━━━━━━━`,
		html.EscapeString(order.OrderNumber),
		html.EscapeString(orDash(order.CustomerName)),
		html.EscapeString(orDash(order.CustomerPhone)),
		itemsList.String(),
		FormatPrice(order.TotalAmount, order.Currency),
		html.EscapeString(orDash(order.PaymentMethod)),
	)

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}

// NotifyPaymentConfirmed implements payment.Notifier.
func (s *TelegramService) NotifyPaymentConfirmed(ctx context.Context, notice payment.PaidNotice) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>✅ PAYMENT RECEIVED</b>
<b>📋 Order:</b> %s
<b>💰 Amount:</b> %s
<b>💳 Method:</b> Bakong KHQR
<b>🔑 MD5:</b> <code>%s</code>
━━━━━━━━━━━━━━━━━━`,
		html.EscapeString(notice.OrderNumber),
		FormatPrice(decimal.NewFromFloat(notice.Amount), notice.Currency),
		notice.MD5,
	)

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
