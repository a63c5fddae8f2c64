package models

// GatewaySetting holds the admin-managed configuration of one payment gateway.
type GatewaySetting struct {
	BaseModel
	GatewayID     string `gorm:"uniqueIndex" json:"gateway_id"`
	Enabled       bool   `json:"enabled"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	APIToken      string `json:"-"`
	AccountID     string `json:"account_id"`
	MerchantName  string `json:"merchant_name"`
	MerchantCity  string `json:"merchant_city"`
	MobileNumber  string `json:"mobile_number"`
	AcquiringBank string `json:"acquiring_bank"`
	MerchantID    string `json:"merchant_id"`
	Currency      string `json:"currency"`
}
