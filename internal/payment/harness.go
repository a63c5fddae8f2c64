package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HarnessRequest is an operator's test of the configured profile.
type HarnessRequest struct {
	Amount      decimal.Decimal
	Currency    string
	CheckStatus bool
	// MD5 checks an existing hash instead of the freshly generated one.
	MD5 string
	// MD5s are looked up together with one bulk request.
	MD5s      []string
	ImageSize int
}

// HarnessResult is everything the admin screen displays.
type HarnessResult struct {
	Record      QRRecord    `json:"record"`
	Decoded     *DecodedQR  `json:"decoded,omitempty"`
	Settlement  *Settlement `json:"settlement,omitempty"`
	StatusError string      `json:"status_error,omitempty"`
	// Bulk maps each hash of HarnessRequest.MD5s to whether it has settled.
	Bulk      map[string]bool `json:"bulk,omitempty"`
	BulkError string          `json:"bulk_error,omitempty"`
	Image     []byte          `json:"image,omitempty"`
}

// Harness lets an administrator exercise generation and status lookup
// against the live profile without touching any order. Callers gate it on
// admin permission.
type Harness struct {
	Settings SettingsSource
	QR       QRService
	Renderer Renderer
}

// NewHarness constructs a Harness. renderer may be nil.
func NewHarness(settings SettingsSource, qr QRService, renderer Renderer) *Harness {
	return &Harness{Settings: settings, QR: qr, Renderer: renderer}
}

// Run generates a test QR and, if asked, checks its settlement.
func (h *Harness) Run(ctx context.Context, req HarnessRequest) (*HarnessResult, error) {
	settings, err := h.Settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load gateway settings: %w", err)
	}
	if err := settings.Profile.Validate(); err != nil {
		return nil, err
	}

	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, req.Amount.String())
	}
	cur, err := ParseCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	rec, err := h.QR.Generate(ctx, settings.Profile, PaymentRequest{
		Amount:        req.Amount,
		Currency:      cur,
		CorrelationID: fmt.Sprintf("test-%d", time.Now().UnixNano()),
	})
	if err != nil {
		return nil, &GenerationError{Reason: "test generation", Err: err}
	}

	result := &HarnessResult{Record: *rec}

	if decoded, err := h.QR.Decode(ctx, rec.Payload); err == nil {
		result.Decoded = decoded
	}

	if h.Renderer != nil {
		if img, err := h.Renderer.Render(rec.Payload, req.ImageSize); err == nil {
			result.Image = img
		}
	}

	var hashes []string
	for _, h := range req.MD5s {
		if h = strings.TrimSpace(h); h != "" {
			hashes = append(hashes, h)
		}
	}
	single := req.CheckStatus || strings.TrimSpace(req.MD5) != ""
	if !single && len(hashes) == 0 {
		return result, nil
	}

	token := strings.TrimSpace(settings.APIToken)
	if token == "" {
		return nil, &ConfigurationError{Missing: []string{"api_token"}}
	}

	if single {
		md5 := strings.TrimSpace(req.MD5)
		if md5 == "" {
			md5 = rec.MD5
		}
		settlement, err := h.QR.CheckStatus(ctx, token, md5)
		if err != nil {
			result.StatusError = (&QueryError{MD5: md5, Err: err}).Error()
		} else {
			result.Settlement = settlement
		}
	}

	if len(hashes) > 0 {
		bulk, err := h.QR.CheckBulk(ctx, token, hashes)
		if err != nil {
			result.BulkError = (&QueryError{MD5: strings.Join(hashes, ","), Err: err}).Error()
		} else {
			result.Bulk = bulk
		}
	}

	return result, nil
}
