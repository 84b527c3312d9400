package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/taskvip/walletcore/internal/apperr"
	"github.com/taskvip/walletcore/internal/models"
	"github.com/taskvip/walletcore/internal/ws"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormEmitter persists events to the notifications table.
type GormEmitter struct {
	db *gorm.DB
}

// NewGormEmitter constructs a GormEmitter.
func NewGormEmitter(db *gorm.DB) *GormEmitter {
	return &GormEmitter{db: db}
}

// Emit inserts one notification row.
func (g *GormEmitter) Emit(ctx context.Context, ev Event) error {
	row := models.Notification{
		UserID:  ev.UserID,
		Type:    ev.Type,
		Title:   ev.Title,
		Message: ev.Message,
	}
	if len(ev.RelatedData) > 0 {
		raw, errMarshal := json.Marshal(ev.RelatedData)
		if errMarshal != nil {
			return errMarshal
		}
		row.RelatedData = datatypes.JSON(raw)
	}
	if !ev.CreatedAt.IsZero() {
		row.CreatedAt = ev.CreatedAt.UTC()
	}
	return g.db.WithContext(ctx).Create(&row).Error
}

// List returns the user's notifications, newest first.
func (g *GormEmitter) List(ctx context.Context, userID uint64, unreadOnly bool, limit, offset int) ([]models.Notification, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := g.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, errCount
	}
	var rows []models.Notification
	if errFind := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&rows).Error; errFind != nil {
		return nil, 0, errFind
	}
	return rows, total, nil
}

// MarkRead sets read_at on one of the user's notifications. Marking twice is a no-op.
func (g *GormEmitter) MarkRead(ctx context.Context, userID, id uint64) error {
	var row models.Notification
	if errFind := g.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return apperr.NotFound("notification")
		}
		return errFind
	}
	if row.ReadAt != nil {
		return nil
	}
	return g.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", time.Now().UTC()).Error
}

// HubEmitter pushes events to live websocket sessions. Offline users are skipped.
type HubEmitter struct {
	hub *ws.Hub
}

// NewHubEmitter constructs a HubEmitter.
func NewHubEmitter(hub *ws.Hub) *HubEmitter {
	return &HubEmitter{hub: hub}
}

// Emit queues ev on every session of ev.UserID.
func (h *HubEmitter) Emit(_ context.Context, ev Event) error {
	if h == nil || h.hub == nil {
		return nil
	}
	_, errSend := h.hub.SendToUser(ev.UserID, ev)
	return errSend
}
