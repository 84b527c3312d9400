package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a persisted message for a user.
type Notification struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.
	UserID uint64 `gorm:"not null;index"`           // Recipient.

	Type        string         `gorm:"type:varchar(64);not null"`  // Event type, e.g. withdrawal_completed.
	Title       string         `gorm:"type:varchar(255);not null"` // Short title.
	Message     string         `gorm:"type:text"`                  // Body text.
	RelatedData datatypes.JSON // Event payload.

	ReadAt    *time.Time `gorm:"index"`                          // Nil while unread.
	CreatedAt time.Time  `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
