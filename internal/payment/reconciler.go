package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/bakongpay/internal/logger"
)

const (
	// DefaultBatchSize bounds how many orders one sweep looks at.
	DefaultBatchSize = 50

	notePaymentConfirmed = "Payment confirmed via Bakong KHQR"
	noteCheckFailed      = "Transaction check failed: "
)

// SweepReport counts what one sweep did.
type SweepReport struct {
	Skipped bool `json:"skipped"`
	Checked int  `json:"checked"`
	Paid    int  `json:"paid"`
	Pending int  `json:"pending"`
	Failed  int  `json:"failed"`
}

// Reconciler polls settlement for on-hold orders and marks settled ones paid.
type Reconciler struct {
	Settings  SettingsSource
	QR        QRService
	Orders    OrderStore
	Notifier  Notifier
	BatchSize int
}

// NewReconciler constructs a Reconciler. notifier may be nil.
func NewReconciler(settings SettingsSource, qr QRService, orders OrderStore, notifier Notifier, batchSize int) *Reconciler {
	return &Reconciler{
		Settings:  settings,
		QR:        qr,
		Orders:    orders,
		Notifier:  notifier,
		BatchSize: batchSize,
	}
}

// Run performs one sweep. Orders are checked one at a time; a failure on
// one order is recorded as a note on that order and the sweep moves on.
// The returned error covers only sweep-level failures.
func (r *Reconciler) Run(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	log := logger.SW("component", "reconciler")

	settings, err := r.Settings.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load gateway settings: %w", err)
	}
	token := strings.TrimSpace(settings.APIToken)
	if token == "" {
		log.Warn("bakong api token not configured, skipping sweep")
		report.Skipped = true
		return report, nil
	}

	limit := r.BatchSize
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	orders, err := r.Orders.ListAwaiting(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("list awaiting orders: %w", err)
	}

	for i := range orders {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r.reconcile(ctx, token, &orders[i], &report)
	}

	if report.Checked > 0 {
		log.Infow("sweep finished",
			"checked", report.Checked,
			"paid", report.Paid,
			"pending", report.Pending,
			"failed", report.Failed,
		)
	}
	return report, nil
}

func (r *Reconciler) reconcile(ctx context.Context, token string, order *Order, report *SweepReport) {
	log := logger.SW("component", "reconciler", "order_id", order.ID.String())

	rec, ok := order.QRRecord()
	if !ok {
		return
	}
	report.Checked++

	settlement, err := r.QR.CheckStatus(ctx, token, rec.MD5)
	if err != nil {
		report.Failed++
		qerr := &QueryError{MD5: rec.MD5, Err: err}
		log.Warnw("settlement check failed", "error", qerr)
		if noteErr := r.Orders.AddNote(ctx, order.ID, noteCheckFailed+err.Error()); noteErr != nil {
			log.Errorw("failed to record check failure note", "error", noteErr)
		}
		return
	}

	if settlement == nil || !settlement.Settled {
		report.Pending++
		return
	}

	if err := r.Orders.MarkPaid(ctx, order.ID, rec, *settlement, notePaymentConfirmed); err != nil {
		if errors.Is(err, ErrAlreadyPaid) {
			log.Infow("order already left on-hold, skipping", "md5", rec.MD5)
			return
		}
		report.Failed++
		log.Errorw("failed to mark order paid", "error", err)
		return
	}

	report.Paid++
	log.Infow("payment confirmed", "md5", rec.MD5)

	if r.Notifier != nil {
		total, _ := order.Total.Float64()
		if err := r.Notifier.NotifyPaymentConfirmed(ctx, PaidNotice{
			OrderID:     order.ID.String(),
			OrderNumber: order.Number,
			Amount:      total,
			Currency:    order.Currency,
			MD5:         rec.MD5,
		}); err != nil {
			log.Warnw("payment notification failed", "error", err)
		}
	}
}
