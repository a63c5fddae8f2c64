package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/example/bakongpay/internal/logger"
	"github.com/example/bakongpay/internal/models"
	"github.com/example/bakongpay/internal/utils"
)

// SeedAdmin creates the back-office account on first boot. Existing users
// are promoted to admin but keep their password.
func SeedAdmin(db *gorm.DB, phone, password string) error {
	if phone == "" || password == "" {
		return nil
	}

	var user models.User
	err := db.Where("phone = ?", phone).First(&user).Error
	if err == nil {
		if user.IsAdmin {
			return nil
		}
		return db.Model(&user).Update("is_admin", true).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	user = models.User{
		FirstName:    "Admin",
		Phone:        phone,
		DisplayName:  "Admin",
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}
	logger.SW("component", "database").Infow("admin user created", "phone", phone)
	return nil
}
