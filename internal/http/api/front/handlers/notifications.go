package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apihttp "github.com/taskvip/walletcore/internal/http"
	"github.com/taskvip/walletcore/internal/notify"
	"github.com/taskvip/walletcore/internal/ws"
)

// NotificationHandler serves stored notifications and the live stream.
type NotificationHandler struct {
	store *notify.GormEmitter
	hub   *ws.Hub
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(store *notify.GormEmitter, hub *ws.Hub) *NotificationHandler {
	return &NotificationHandler{store: store, hub: hub}
}

// List returns the caller's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	limit, offset := apihttp.Pagination(c)
	unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	rows, total, err := h.store.List(c.Request.Context(), getUserID(c), unreadOnly, limit, offset)
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":           row.ID,
			"type":         row.Type,
			"title":        row.Title,
			"message":      row.Message,
			"related_data": row.RelatedData,
			"read_at":      row.ReadAt,
			"created_at":   row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out, "total": total})
}

// MarkRead marks one notification as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := apihttp.ParseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.store.MarkRead(c.Request.Context(), getUserID(c), id); err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stream upgrades to a websocket that receives the caller's events live.
func (h *NotificationHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live notifications disabled"})
		return
	}
	ws.Serve(h.hub, c.Writer, c.Request, getUserID(c))
}
