package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskvip/walletcore/internal/apperr"
	dbpkg "github.com/taskvip/walletcore/internal/db"
	apihttp "github.com/taskvip/walletcore/internal/http"
	"github.com/taskvip/walletcore/internal/models"
	"gorm.io/gorm"
)

// ProfileHandler exposes the read-only account summary.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// Get returns the caller's account and stored subscription columns.
// Use GET /vip for the expiry-aware status.
func (h *ProfileHandler) Get(c *gin.Context) {
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, getUserID(c)).Error; errFind != nil {
		if dbpkg.IsNotFound(errFind) {
			apihttp.WriteError(c, apperr.NotFound("user"))
			return
		}
		apihttp.WriteError(c, errFind)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"disabled": user.Disabled,
		"vip": gin.H{
			"level":       user.VIP.Level,
			"status":      user.VIP.Status,
			"expiry_date": user.VIP.ExpiryDate,
		},
		"created_at": user.CreatedAt,
	})
}
