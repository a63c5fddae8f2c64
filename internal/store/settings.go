package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/example/bakongpay/internal/models"
	"github.com/example/bakongpay/internal/payment"
)

// SettingsStore implements payment.SettingsSource over the gateway_settings
// table. Every Load hits the database, so an edited token is picked up by
// the next checkout or sweep.
type SettingsStore struct {
	db        *gorm.DB
	gatewayID string
}

// NewSettingsStore constructs a SettingsStore for the Bakong gateway.
func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db, gatewayID: payment.GatewayID}
}

// Seed inserts defaults when no row exists yet. An existing row is never
// overwritten.
func (s *SettingsStore) Seed(ctx context.Context, defaults payment.GatewaySettings) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.GatewaySetting{}).
		Where("gateway_id = ?", s.gatewayID).Count(&count).Error; err != nil {
		return fmt.Errorf("check gateway settings: %w", err)
	}
	if count > 0 {
		return nil
	}
	row := toRow(s.gatewayID, defaults)
	return s.db.WithContext(ctx).Create(&row).Error
}

// Load returns the current settings. A missing row yields disabled, empty settings.
func (s *SettingsStore) Load(ctx context.Context) (*payment.GatewaySettings, error) {
	var row models.GatewaySetting
	if err := s.db.WithContext(ctx).First(&row, "gateway_id = ?", s.gatewayID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &payment.GatewaySettings{}, nil
		}
		return nil, fmt.Errorf("load gateway settings: %w", err)
	}
	settings := fromRow(row)
	return &settings, nil
}

// Save validates and writes the settings. An empty APIToken keeps the stored one.
func (s *SettingsStore) Save(ctx context.Context, settings payment.GatewaySettings) (*payment.GatewaySettings, error) {
	if settings.Profile.Currency != "" {
		cur, err := payment.ParseCurrency(string(settings.Profile.Currency))
		if err != nil {
			return nil, &payment.ConfigurationError{Invalid: []string{"currency"}}
		}
		settings.Profile.Currency = cur
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.GatewaySetting
		err := tx.First(&existing, "gateway_id = ?", s.gatewayID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		row := toRow(s.gatewayID, settings)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&row).Error
		}
		if strings.TrimSpace(settings.APIToken) == "" {
			row.APIToken = existing.APIToken
		}
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		return tx.Save(&row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("save gateway settings: %w", err)
	}
	return s.Load(ctx)
}

func toRow(gatewayID string, s payment.GatewaySettings) models.GatewaySetting {
	return models.GatewaySetting{
		GatewayID:     gatewayID,
		Enabled:       s.Enabled,
		Title:         strings.TrimSpace(s.Title),
		Description:   strings.TrimSpace(s.Description),
		APIToken:      strings.TrimSpace(s.APIToken),
		AccountID:     strings.TrimSpace(s.Profile.AccountID),
		MerchantName:  strings.TrimSpace(s.Profile.MerchantName),
		MerchantCity:  strings.TrimSpace(s.Profile.MerchantCity),
		MobileNumber:  strings.TrimSpace(s.Profile.MobileNumber),
		AcquiringBank: strings.TrimSpace(s.Profile.AcquiringBank),
		MerchantID:    strings.TrimSpace(s.Profile.MerchantID),
		Currency:      string(s.Profile.Currency),
	}
}

func fromRow(row models.GatewaySetting) payment.GatewaySettings {
	return payment.GatewaySettings{
		Enabled:     row.Enabled,
		Title:       row.Title,
		Description: row.Description,
		APIToken:    row.APIToken,
		Profile: payment.MerchantProfile{
			AccountID:     row.AccountID,
			MerchantName:  row.MerchantName,
			MerchantCity:  row.MerchantCity,
			MobileNumber:  row.MobileNumber,
			AcquiringBank: row.AcquiringBank,
			MerchantID:    row.MerchantID,
			Currency:      payment.Currency(row.Currency),
		},
	}
}
