package models

import (
	"time"

	"gorm.io/datatypes"
)

// Setting stores a key/value runtime setting in the database.
type Setting struct {
	Key       string         `gorm:"type:varchar(191);primaryKey"`                      // Setting key.
	Value     datatypes.JSON // JSON-encoded value.
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Last update timestamp.
}
