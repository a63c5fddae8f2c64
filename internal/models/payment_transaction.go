package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentTransaction records a settlement confirmed by a payment provider.
type PaymentTransaction struct {
	BaseModel
	OrderID        uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	Provider       string          `gorm:"index" json:"provider"`
	MD5            string          `gorm:"column:md5;index" json:"md5"`
	Hash           string          `json:"hash"`
	FromAccountID  string          `json:"from_account_id"`
	ToAccountID    string          `json:"to_account_id"`
	Amount         decimal.Decimal `gorm:"type:numeric(14,2)" json:"amount"`
	Currency       string          `json:"currency"`
	AcknowledgedAt *time.Time      `json:"acknowledged_at"`
}
