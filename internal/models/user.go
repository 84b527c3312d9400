package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VIP subscription statuses.
const (
	VipStatusNone    = "none"
	VipStatusActive  = "active"
	VipStatusExpired = "expired"
)

// User is the wallet owner. VIP subscription state lives on the same row.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:varchar(191);not null;uniqueIndex"` // Unique login name.
	Disabled bool   `gorm:"not null;default:false"`                 // Disabled users cannot sign in or submit withdrawals.

	VIP VipSubscription `gorm:"embedded;embeddedPrefix:vip_"` // Embedded VIP subscription.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// VipSubscription is stored as vip_* columns on users.
type VipSubscription struct {
	Level             string          `gorm:"type:varchar(64);not null;default:''"`     // Tier name; empty when none or expired.
	Status            string          `gorm:"type:varchar(16);not null;default:'none'"` // none, active or expired.
	SubscriptionDate  *time.Time      // Start of the current period.
	ExpiryDate        *time.Time      `gorm:"index"`                                 // End of the current period.
	MonthlyReturnRate decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0"` // Fraction of Price credited monthly.
	Price             int64           `gorm:"not null;default:0"`                    // Price paid for the tier, minor units.
}

// ActiveAt reports whether the subscription grants VIP benefits at now.
func (v VipSubscription) ActiveAt(now time.Time) bool {
	if v.Status == VipStatusExpired || v.Level == "" || v.ExpiryDate == nil {
		return false
	}
	return now.Before(*v.ExpiryDate)
}
