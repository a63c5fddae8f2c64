package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Order struct {
	BaseModel
	UserID        *uuid.UUID      `gorm:"type:uuid;index" json:"user_id"`
	OrderNumber   string          `gorm:"uniqueIndex" json:"order_number"`
	Status        string          `gorm:"index" json:"status"`
	PlacedAt      time.Time       `json:"placed_at"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(14,2)" json:"total_amount"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id"`
	PaidAt        *time.Time      `json:"paid_at"`
	// StockReduced is set the first time the order moves to on-hold so a
	// retried checkout does not reduce inventory twice.
	StockReduced bool `json:"stock_reduced"`
	// PaymentCheckedAt is when the sweep last asked Bakong about this order.
	PaymentCheckedAt *time.Time  `gorm:"index" json:"payment_checked_at,omitempty"`
	Items            []OrderItem `json:"items,omitempty"`
	Meta             []OrderMeta `json:"-"`
	Notes            []OrderNote `json:"notes,omitempty"`
}

type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	ProductID   *uuid.UUID      `gorm:"type:uuid" json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(14,2)" json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(14,2)" json:"line_total"`
}

// OrderMeta is a key/value pair attached to an order by a payment gateway.
type OrderMeta struct {
	BaseModel
	OrderID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_order_meta_key" json:"order_id"`
	Key     string    `gorm:"column:meta_key;uniqueIndex:idx_order_meta_key" json:"key"`
	Value   string    `gorm:"column:meta_value" json:"value"`
}

func (OrderMeta) TableName() string {
	return "order_meta"
}

// OrderNote is an append-only audit line on an order.
type OrderNote struct {
	BaseModel
	OrderID uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	Note    string    `json:"note"`
}
