package payment

import (
	"context"

	"github.com/google/uuid"
)

// QRService generates KHQR payloads and looks up their settlement.
type QRService interface {
	Generate(ctx context.Context, profile MerchantProfile, req PaymentRequest) (*QRRecord, error)
	CheckStatus(ctx context.Context, token, md5 string) (*Settlement, error)
	// CheckBulk reports for every hash whether it has settled.
	CheckBulk(ctx context.Context, token string, md5s []string) (map[string]bool, error)
	Decode(ctx context.Context, payload string) (*DecodedQR, error)
}

// Renderer turns a payload into a PNG.
type Renderer interface {
	Render(payload string, size int) ([]byte, error)
}

// OrderStore is the storefront's order persistence. AttachQR and MarkPaid
// must be atomic per order.
type OrderStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	// AttachQR writes the record's metadata, moves the order to status,
	// reduces stock once per order and appends note.
	AttachQR(ctx context.Context, id uuid.UUID, rec QRRecord, status Status, note string) error
	// ListAwaiting returns up to limit awaiting-payment orders carrying an MD5.
	ListAwaiting(ctx context.Context, limit int) ([]Order, error)
	// MarkPaid moves an awaiting order to paid, records the settlement and
	// appends note. It returns ErrAlreadyPaid when the order is no longer
	// awaiting payment.
	MarkPaid(ctx context.Context, id uuid.UUID, rec QRRecord, settlement Settlement, note string) error
	AddNote(ctx context.Context, id uuid.UUID, note string) error
}

// SettingsSource loads the current gateway settings. Callers read it on
// every operation so a rotated token takes effect on the next call.
type SettingsSource interface {
	Load(ctx context.Context) (*GatewaySettings, error)
}

// PaidNotice describes an order the sweep has just marked paid.
type PaidNotice struct {
	OrderID     string
	OrderNumber string
	Amount      float64
	Currency    string
	MD5         string
}

// Notifier is told about confirmed payments. Failures are logged, never returned to the sweep.
type Notifier interface {
	NotifyPaymentConfirmed(ctx context.Context, notice PaidNotice) error
}
