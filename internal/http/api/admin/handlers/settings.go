package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskvip/walletcore/internal/apperr"
	apihttp "github.com/taskvip/walletcore/internal/http"
	"github.com/taskvip/walletcore/internal/settings"
	"gorm.io/gorm"
)

// SettingsHandler reads and writes runtime settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// Get returns every known key with its stored value, or null when unset.
func (h *SettingsHandler) Get(c *gin.Context) {
	values := make(gin.H, len(settings.Known))
	for _, key := range settings.Known {
		if raw, ok := settings.DBConfigValue(key); ok && len(raw) > 0 {
			values[key] = json.RawMessage(raw)
			continue
		}
		values[key] = nil
	}
	c.JSON(http.StatusOK, gin.H{"settings": values, "updated_at": settings.DBConfigUpdatedAt()})
}

// Put upserts the given keys.
func (h *SettingsHandler) Put(c *gin.Context) {
	var body map[string]json.RawMessage
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if errSave := settings.Save(c.Request.Context(), h.db, body); errSave != nil {
		if errors.Is(errSave, settings.ErrUnknownKey) {
			apihttp.WriteError(c, apperr.Validation("key", errSave.Error()))
			return
		}
		apihttp.WriteError(c, errSave)
		return
	}
	h.Get(c)
}
