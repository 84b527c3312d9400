package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskvip/walletcore/internal/apperr"
	apihttp "github.com/taskvip/walletcore/internal/http"
	"github.com/taskvip/walletcore/internal/registry"
)

// ManagerHandler manages VIP assignments and manager removal.
type ManagerHandler struct {
	registry *registry.Registry
}

// NewManagerHandler constructs a ManagerHandler.
func NewManagerHandler(reg *registry.Registry) *ManagerHandler {
	return &ManagerHandler{registry: reg}
}

// Delete removes a manager without assignments or in-flight withdrawals.
func (h *ManagerHandler) Delete(c *gin.Context) {
	id, ok := apihttp.ParseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.registry.DeleteManager(c.Request.Context(), id); err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type assignRequest struct {
	UserID uint64 `json:"user_id"`
}

// Assign adds a VIP to the manager's set.
func (h *ManagerHandler) Assign(c *gin.Context) {
	id, ok := apihttp.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var body assignRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.UserID == 0 {
		apihttp.WriteError(c, apperr.Validation("user_id", "missing user_id"))
		return
	}
	if err := h.registry.Assign(c.Request.Context(), id, body.UserID); err != nil {
		apihttp.WriteError(c, err)
		return
	}
	h.writeCapacity(c, id, http.StatusCreated)
}

// Unassign removes a VIP from the manager's set.
func (h *ManagerHandler) Unassign(c *gin.Context) {
	id, ok := apihttp.ParseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := apihttp.ParseIDParam(c, "user_id")
	if !ok {
		return
	}
	if err := h.registry.Unassign(c.Request.Context(), id, userID); err != nil {
		apihttp.WriteError(c, err)
		return
	}
	h.writeCapacity(c, id, http.StatusOK)
}

// Capacity reports the manager's workload.
func (h *ManagerHandler) Capacity(c *gin.Context) {
	id, ok := apihttp.ParseIDParam(c, "id")
	if !ok {
		return
	}
	h.writeCapacity(c, id, http.StatusOK)
}

// AutoAssign hands a VIP to the manager with the most free slots.
func (h *ManagerHandler) AutoAssign(c *gin.Context) {
	userID, ok := apihttp.ParseIDParam(c, "user_id")
	if !ok {
		return
	}
	managerID, err := h.registry.AutoAssign(c.Request.Context(), userID)
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	h.writeCapacity(c, managerID, http.StatusOK)
}

func (h *ManagerHandler) writeCapacity(c *gin.Context, managerID uint64, status int) {
	capacity, err := h.registry.Capacity(c.Request.Context(), managerID)
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.JSON(status, capacity)
}
