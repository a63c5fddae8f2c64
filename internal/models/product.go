package models

import "github.com/shopspring/decimal"

type Product struct {
	BaseModel
	SKU               string          `gorm:"uniqueIndex" json:"sku"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `gorm:"type:numeric(14,2)" json:"price"`
	Currency          string          `json:"currency"`
	InventoryQuantity int             `json:"inventory_quantity"`
	IsActive          bool            `json:"is_active"`
	InStock           bool            `json:"in_stock"`
}
