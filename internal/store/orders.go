// Package store persists orders and gateway settings with GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/bakongpay/internal/models"
	"github.com/example/bakongpay/internal/payment"
)

// OrderStore implements payment.OrderStore.
type OrderStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewOrderStore constructs OrderStore.
func NewOrderStore(db *gorm.DB) *OrderStore {
	return &OrderStore{db: db, now: time.Now}
}

// Get loads the gateway view of an order.
func (s *OrderStore) Get(ctx context.Context, id uuid.UUID) (*payment.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Meta").First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	view := toPaymentOrder(order)
	return &view, nil
}

// AttachQR stores the QR record on the order and moves it to status in one
// transaction. Stock is reduced the first time only. A paid order is never
// reopened; it returns payment.ErrAlreadyPaid.
func (s *OrderStore) AttachQR(ctx context.Context, id uuid.UUID, rec payment.QRRecord, status payment.Status, note string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := forUpdate(tx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return payment.ErrOrderNotFound
			}
			return err
		}
		if order.Status == string(payment.StatusPaid) {
			return payment.ErrAlreadyPaid
		}

		meta := []models.OrderMeta{
			{OrderID: id, Key: payment.MetaQRCode, Value: rec.Payload},
			{OrderID: id, Key: payment.MetaMD5, Value: rec.MD5},
			{OrderID: id, Key: payment.MetaCurrency, Value: string(rec.Currency)},
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "meta_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"meta_value", "updated_at"}),
		}).Create(&meta).Error; err != nil {
			return fmt.Errorf("write order meta: %w", err)
		}

		if !order.StockReduced {
			if err := reduceStock(tx, order.Items); err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", id).Updates(map[string]any{
			"status":             string(status),
			"payment_method":     payment.GatewayID,
			"stock_reduced":      true,
			"payment_checked_at": nil,
		}).Error; err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		if order.Status != string(status) && note != "" {
			if err := tx.Create(&models.OrderNote{OrderID: id, Note: note}).Error; err != nil {
				return fmt.Errorf("add order note: %w", err)
			}
		}
		return nil
	})
}

// forUpdate locks the selected row on databases that support it.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func reduceStock(tx *gorm.DB, items []models.OrderItem) error {
	for _, item := range items {
		if item.ProductID == nil || item.Quantity <= 0 {
			continue
		}
		if err := tx.Model(&models.Product{}).
			Where("id = ?", *item.ProductID).
			Update("inventory_quantity", gorm.Expr("inventory_quantity - ?", item.Quantity)).Error; err != nil {
			return fmt.Errorf("reduce stock: %w", err)
		}
		if err := tx.Model(&models.Product{}).
			Where("id = ? AND inventory_quantity <= 0", *item.ProductID).
			Update("in_stock", false).Error; err != nil {
			return fmt.Errorf("update stock flag: %w", err)
		}
	}
	return nil
}

// ListAwaiting returns on-hold orders that carry a KHQR hash, least recently
// checked first, and stamps them as checked. Orders never checked come first,
// newest placed first, so a backlog of abandoned checkouts cannot starve new
// ones out of the batch.
func (s *OrderStore) ListAwaiting(ctx context.Context, limit int) ([]payment.Order, error) {
	if limit <= 0 {
		limit = payment.DefaultBatchSize
	}

	var orders []models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		hasMD5 := tx.Model(&models.OrderMeta{}).
			Select("1").
			Where("order_meta.order_id = orders.id AND order_meta.meta_key = ? AND order_meta.meta_value <> ''", payment.MetaMD5)

		if err := tx.Preload("Meta").
			Where("status = ?", string(payment.StatusAwaitingPayment)).
			Where("EXISTS (?)", hasMD5).
			Order("payment_checked_at IS NOT NULL").
			Order("payment_checked_at asc").
			Order("placed_at desc").
			Limit(limit).
			Find(&orders).Error; err != nil {
			return err
		}
		if len(orders) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(orders))
		for _, o := range orders {
			ids = append(ids, o.ID)
		}
		return tx.Model(&models.Order{}).
			Where("id IN ?", ids).
			Update("payment_checked_at", s.now()).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list awaiting orders: %w", err)
	}

	out := make([]payment.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, toPaymentOrder(o))
	}
	return out, nil
}

// MarkPaid moves an on-hold order to paid and records the settlement. The
// status change is conditional so two concurrent sweeps settle an order once.
func (s *OrderStore) MarkPaid(ctx context.Context, id uuid.UUID, rec payment.QRRecord, settlement payment.Settlement, note string) error {
	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", id, string(payment.StatusAwaitingPayment)).
			Updates(map[string]any{
				"status":         string(payment.StatusPaid),
				"paid_at":        now,
				"transaction_id": settlement.Hash,
			})
		if res.Error != nil {
			return fmt.Errorf("mark order paid: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return payment.ErrOrderNotFound
			}
			return payment.ErrAlreadyPaid
		}

		txn := models.PaymentTransaction{
			OrderID:        id,
			Provider:       payment.GatewayID,
			MD5:            rec.MD5,
			Hash:           settlement.Hash,
			FromAccountID:  settlement.FromAccountID,
			ToAccountID:    settlement.ToAccountID,
			Amount:         settlement.Amount,
			Currency:       settlement.Currency,
			AcknowledgedAt: settlement.AcknowledgedAt,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return fmt.Errorf("record payment transaction: %w", err)
		}

		return tx.Create(&models.OrderNote{OrderID: id, Note: note}).Error
	})
}

// AddNote appends an audit note to the order.
func (s *OrderStore) AddNote(ctx context.Context, id uuid.UUID, note string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return payment.ErrOrderNotFound
	}
	return s.db.WithContext(ctx).Create(&models.OrderNote{OrderID: id, Note: note}).Error
}

// Notes returns an order's notes, oldest first.
func (s *OrderStore) Notes(ctx context.Context, id uuid.UUID) ([]models.OrderNote, error) {
	var notes []models.OrderNote
	err := s.db.WithContext(ctx).Where("order_id = ?", id).Order("created_at asc").Find(&notes).Error
	return notes, err
}

func toPaymentOrder(o models.Order) payment.Order {
	meta := make(map[string]string, len(o.Meta))
	for _, m := range o.Meta {
		meta[m.Key] = m.Value
	}
	return payment.Order{
		ID:            o.ID,
		Number:        o.OrderNumber,
		Status:        payment.Status(o.Status),
		PaymentMethod: o.PaymentMethod,
		Total:         o.TotalAmount,
		Currency:      o.Currency,
		Meta:          meta,
	}
}
