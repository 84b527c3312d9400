package db

import (
	"errors"
	"fmt"

	"github.com/taskvip/walletcore/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table owned by the wallet core.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.User{},
		&models.WalletTransaction{},
		&models.Manager{},
		&models.Withdrawal{},
		&models.Notification{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
