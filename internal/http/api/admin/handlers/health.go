package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	dbpkg "github.com/taskvip/walletcore/internal/db"
	"github.com/taskvip/walletcore/internal/settings"
	"gorm.io/gorm"
)

const healthPingTimeout = 2 * time.Second

// HealthHandler reports liveness of the database behind the wallet.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Healthz pings the database and reports the dialect and settings freshness.
func (h *HealthHandler) Healthz(c *gin.Context) {
	body := gin.H{"database": dbpkg.DialectName(h.db), "settings_updated_at": settings.DBConfigUpdatedAt()}
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		log.WithError(err).Warn("healthz: database ping failed")
		body["ok"] = false
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["ok"] = true
	c.JSON(http.StatusOK, body)
}
