package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskvip/walletcore/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownKey is returned by Save for keys outside Known.
var ErrUnknownKey = errors.New("settings: unknown key")

// RefreshDBConfigSnapshot reloads all settings from the database and updates the in-memory snapshot.
//
// Call it at start-up and after every write; readers only ever see the snapshot.
func RefreshDBConfigSnapshot(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("settings: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []models.Setting
	if errFind := db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).
		Find(&rows).Error; errFind != nil {
		return errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	maxUpdatedAt := time.Time{}
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = json.RawMessage(row.Value)
		if rowUpdatedAt := row.UpdatedAt.UTC(); rowUpdatedAt.After(maxUpdatedAt) {
			maxUpdatedAt = rowUpdatedAt
		}
	}

	StoreDBConfig(maxUpdatedAt, values)
	return nil
}

// Save upserts the given keys and refreshes the snapshot.
func Save(ctx context.Context, db *gorm.DB, values map[string]json.RawMessage) error {
	if db == nil {
		return errors.New("settings: nil db")
	}
	for key, raw := range values {
		if !IsKnown(key) {
			return fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
		if !json.Valid(raw) {
			return fmt.Errorf("settings: %s: invalid json", key)
		}
	}
	now := time.Now().UTC()
	errTx := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, raw := range values {
			row := models.Setting{Key: key, Value: datatypes.JSON(raw), UpdatedAt: now}
			if errSave := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&row).Error; errSave != nil {
				return errSave
			}
		}
		return nil
	})
	if errTx != nil {
		return errTx
	}
	return RefreshDBConfigSnapshot(ctx, db)
}
