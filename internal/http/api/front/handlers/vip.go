package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/taskvip/walletcore/internal/apperr"
	apihttp "github.com/taskvip/walletcore/internal/http"
	"github.com/taskvip/walletcore/internal/registry"
	"github.com/taskvip/walletcore/internal/settings"
	"github.com/taskvip/walletcore/internal/vip"
)

// VIPHandler serves subscription status and purchases.
type VIPHandler struct {
	tracker    *vip.Tracker
	registry   *registry.Registry
	autoAssign bool
}

// NewVIPHandler constructs a VIPHandler. autoAssign is the fallback for the
// AUTO_ASSIGN_VIP setting.
func NewVIPHandler(tracker *vip.Tracker, reg *registry.Registry, autoAssign bool) *VIPHandler {
	return &VIPHandler{tracker: tracker, registry: reg, autoAssign: autoAssign}
}

// Status returns the caller's subscription, applying expiry when due.
func (h *VIPHandler) Status(c *gin.Context) {
	status, err := h.tracker.CurrentStatus(c.Request.Context(), getUserID(c))
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Plans lists purchasable tiers.
func (h *VIPHandler) Plans(c *gin.Context) {
	plans := h.tracker.Plans()
	out := make([]gin.H, 0, len(plans))
	for _, p := range plans {
		out = append(out, gin.H{
			"level":               p.Level,
			"price":               p.Price,
			"duration_days":       int(p.Duration.Hours() / 24),
			"monthly_return_rate": p.MonthlyReturnRate.String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

type subscribeRequest struct {
	Level string `json:"level"`
}

// Subscribe buys a tier and, when enabled, hands the user to a manager.
// Assignment failures do not undo the purchase.
func (h *VIPHandler) Subscribe(c *gin.Context) {
	var body subscribeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	level := strings.TrimSpace(body.Level)
	if level == "" {
		apihttp.WriteError(c, apperr.Validation("level", "missing level"))
		return
	}
	userID := getUserID(c)
	ctx := c.Request.Context()
	status, err := h.tracker.Subscribe(ctx, userID, level)
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}

	resp := gin.H{"vip": status}
	if h.registry != nil && settings.Bool(settings.AutoAssignVIPKey, h.autoAssign) {
		managerID, errAssign := h.registry.AutoAssign(ctx, userID)
		switch {
		case errAssign == nil, errors.Is(errAssign, apperr.ErrAlreadyAssigned):
			resp["manager_id"] = managerID
		default:
			log.WithError(errAssign).WithField("user_id", userID).Warn("vip auto-assign failed")
		}
	}
	c.JSON(http.StatusOK, resp)
}
