package payment

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GatewayID identifies the Bakong KHQR gateway in the registry and on orders.
const GatewayID = "bakong_khqr"

// Currency is a currency the gateway can charge in.
type Currency string

const (
	KHR Currency = "KHR"
	USD Currency = "USD"
)

// SupportedCurrencies lists every currency KHQR can carry.
var SupportedCurrencies = []Currency{KHR, USD}

// ParseCurrency normalizes s and checks it against SupportedCurrencies.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, supported := range SupportedCurrencies {
		if c == supported {
			return c, nil
		}
	}
	return "", &UnsupportedCurrencyError{Currency: s}
}

// Status is an order status owned by the storefront.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOnHold    Status = "on-hold"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// StatusAwaitingPayment is the status an order sits in between QR issue and settlement.
const StatusAwaitingPayment = StatusOnHold

// Order metadata keys written by the gateway.
const (
	MetaQRCode   = "_bakong_khqr_code"
	MetaMD5      = "_bakong_khqr_md5"
	MetaCurrency = "_bakong_khqr_currency"
)

// MerchantProfile populates every outgoing QR request.
type MerchantProfile struct {
	AccountID     string `json:"account_id"`
	MerchantName  string `json:"merchant_name"`
	MerchantCity  string `json:"merchant_city"`
	MobileNumber  string `json:"mobile_number,omitempty"`
	AcquiringBank string `json:"acquiring_bank,omitempty"`
	// MerchantID switches generation to the merchant account template.
	MerchantID string `json:"merchant_id,omitempty"`
	// Currency restricts checkout to one currency. Empty accepts any supported currency.
	Currency Currency `json:"currency,omitempty"`
}

// Validate returns a *ConfigurationError naming every empty required field.
func (p MerchantProfile) Validate() error {
	var missing []string
	if strings.TrimSpace(p.AccountID) == "" {
		missing = append(missing, "account_id")
	}
	if strings.TrimSpace(p.MerchantName) == "" {
		missing = append(missing, "merchant_name")
	}
	if strings.TrimSpace(p.MerchantCity) == "" {
		missing = append(missing, "merchant_city")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	if p.Currency != "" {
		if _, err := ParseCurrency(string(p.Currency)); err != nil {
			return &ConfigurationError{Invalid: []string{"currency"}}
		}
	}
	return nil
}

// Accepts reports whether the profile allows charging in c.
func (p MerchantProfile) Accepts(c Currency) bool {
	return p.Currency == "" || p.Currency == c
}

// GatewaySettings is the admin-managed configuration of the gateway.
type GatewaySettings struct {
	Enabled     bool
	Title       string
	Description string
	APIToken    string
	Profile     MerchantProfile
}

// PaymentRequest is built fresh for each checkout attempt and never stored.
type PaymentRequest struct {
	Amount        decimal.Decimal
	Currency      Currency
	CorrelationID string
}

// QRRecord is one generated QR. A retried checkout replaces the previous record.
type QRRecord struct {
	Payload   string    `json:"qr"`
	MD5       string    `json:"md5"`
	Currency  Currency  `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// Settlement is the decoded answer of a status check.
type Settlement struct {
	Settled        bool            `json:"settled"`
	Hash           string          `json:"hash,omitempty"`
	FromAccountID  string          `json:"from_account_id,omitempty"`
	ToAccountID    string          `json:"to_account_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency,omitempty"`
	AcknowledgedAt *time.Time      `json:"acknowledged_at,omitempty"`
}

// DecodedQR is the subset of payload fields surfaced to callers.
type DecodedQR struct {
	AccountID     string          `json:"account_id"`
	MerchantName  string          `json:"merchant_name"`
	MerchantCity  string          `json:"merchant_city"`
	AcquiringBank string          `json:"acquiring_bank,omitempty"`
	MobileNumber  string          `json:"mobile_number,omitempty"`
	BillNumber    string          `json:"bill_number,omitempty"`
	Currency      Currency        `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	Dynamic       bool            `json:"dynamic"`
}

// Order is the gateway's view of a storefront order.
type Order struct {
	ID            uuid.UUID
	Number        string
	Status        Status
	PaymentMethod string
	Total         decimal.Decimal
	Currency      string
	Meta          map[string]string
}

// QRRecord returns the record stored on the order, if any.
func (o *Order) QRRecord() (QRRecord, bool) {
	if o.Meta == nil || o.Meta[MetaMD5] == "" {
		return QRRecord{}, false
	}
	return QRRecord{
		Payload:  o.Meta[MetaQRCode],
		MD5:      o.Meta[MetaMD5],
		Currency: Currency(o.Meta[MetaCurrency]),
	}, true
}
