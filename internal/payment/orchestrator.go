package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/bakongpay/internal/logger"
)

const noteAwaitingPayment = "Awaiting Bakong KHQR payment"

// InitiateResult tells the caller where to send the customer.
type InitiateResult struct {
	Redirect string   `json:"redirect"`
	Record   QRRecord `json:"-"`
}

// Receipt is what the customer sees after checkout.
type Receipt struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      Status    `json:"status"`
	Paid        bool      `json:"paid"`
	QR          string    `json:"qr"`
	MD5         string    `json:"md5"`
	Currency    Currency  `json:"currency"`
}

// Orchestrator turns a checkout into a KHQR code attached to the order.
type Orchestrator struct {
	Settings SettingsSource
	QR       QRService
	Orders   OrderStore
	// ReceiptURL builds the redirect target for an order.
	ReceiptURL func(orderID uuid.UUID) string
	Now        func() time.Time
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(settings SettingsSource, qr QRService, orders OrderStore, receiptURL func(uuid.UUID) string) *Orchestrator {
	return &Orchestrator{
		Settings:   settings,
		QR:         qr,
		Orders:     orders,
		ReceiptURL: receiptURL,
		Now:        time.Now,
	}
}

// Initiate generates a QR for the order and parks the order in on-hold.
// Nothing on the order changes unless generation succeeded.
func (o *Orchestrator) Initiate(ctx context.Context, orderID uuid.UUID) (*InitiateResult, error) {
	log := logger.SW("component", "orchestrator", "order_id", orderID.String())

	settings, err := o.Settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load gateway settings: %w", err)
	}
	if !settings.Enabled {
		return nil, ErrGatewayDisabled
	}
	if err := settings.Profile.Validate(); err != nil {
		log.Errorw("gateway misconfigured", "error", err)
		return nil, err
	}

	order, err := o.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == StatusPaid {
		return nil, ErrAlreadyPaid
	}

	req, err := buildRequest(order, settings.Profile)
	if err != nil {
		return nil, err
	}

	rec, err := o.QR.Generate(ctx, settings.Profile, req)
	if err != nil {
		log.Warnw("khqr generation failed", "error", err)
		var genErr *GenerationError
		if errors.As(err, &genErr) {
			return nil, err
		}
		return nil, &GenerationError{Reason: "qr service error", Err: err}
	}
	if rec == nil || rec.Payload == "" || rec.MD5 == "" {
		return nil, &GenerationError{Reason: "empty qr record"}
	}
	if rec.Currency == "" {
		rec.Currency = req.Currency
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = o.now()
	}

	if err := o.Orders.AttachQR(ctx, orderID, *rec, StatusAwaitingPayment, noteAwaitingPayment); err != nil {
		return nil, fmt.Errorf("attach khqr to order: %w", err)
	}

	log.Infow("khqr issued", "md5", rec.MD5, "amount", req.Amount.String(), "currency", req.Currency)

	return &InitiateResult{
		Redirect: o.receiptURL(orderID),
		Record:   *rec,
	}, nil
}

// Receipt returns the stored QR for an order.
func (o *Orchestrator) Receipt(ctx context.Context, orderID uuid.UUID) (*Receipt, error) {
	order, err := o.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	rec, ok := order.QRRecord()
	if !ok {
		return nil, ErrNoQRRecord
	}
	return &Receipt{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Status:      order.Status,
		Paid:        order.Status == StatusPaid,
		QR:          rec.Payload,
		MD5:         rec.MD5,
		Currency:    rec.Currency,
	}, nil
}

// Descriptor describes the gateway for checkout listings.
func (o *Orchestrator) Descriptor(ctx context.Context) Descriptor {
	d := Descriptor{
		ID:           GatewayID,
		Title:        "Bakong KHQR Payment",
		Description:  "Pay securely using Bakong KHQR mobile banking.",
		Capabilities: []Capability{CapabilityConfigure, CapabilityInitiatePayment, CapabilityRenderReceipt},
	}
	settings, err := o.Settings.Load(ctx)
	if err != nil {
		logger.SW("component", "orchestrator").Warnw("load gateway settings", "error", err)
		return d
	}
	d.Enabled = settings.Enabled
	if settings.Title != "" {
		d.Title = settings.Title
	}
	if settings.Description != "" {
		d.Description = settings.Description
	}
	return d
}

func buildRequest(order *Order, profile MerchantProfile) (PaymentRequest, error) {
	if !order.Total.IsPositive() {
		return PaymentRequest{}, fmt.Errorf("%w: order total %s", ErrInvalidAmount, order.Total.String())
	}
	cur, err := ParseCurrency(order.Currency)
	if err != nil {
		return PaymentRequest{}, err
	}
	if !profile.Accepts(cur) {
		return PaymentRequest{}, &UnsupportedCurrencyError{Currency: order.Currency}
	}
	if cur == KHR && !order.Total.Equal(order.Total.Truncate(0)) {
		return PaymentRequest{}, fmt.Errorf("%w: KHR total %s has a fractional part", ErrInvalidAmount, order.Total.String())
	}
	correlation := order.Number
	if correlation == "" {
		correlation = order.ID.String()
	}
	return PaymentRequest{
		Amount:        order.Total,
		Currency:      cur,
		CorrelationID: correlation,
	}, nil
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) receiptURL(id uuid.UUID) string {
	if o.ReceiptURL != nil {
		return o.ReceiptURL(id)
	}
	return "/api/orders/" + id.String() + "/receipt"
}
