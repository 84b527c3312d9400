package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apihttp "github.com/taskvip/walletcore/internal/http"
	"github.com/taskvip/walletcore/internal/withdrawal"
)

// WithdrawalHandler drives withdrawal review for managers.
type WithdrawalHandler struct {
	service *withdrawal.Service
}

// NewWithdrawalHandler constructs a WithdrawalHandler.
func NewWithdrawalHandler(service *withdrawal.Service) *WithdrawalHandler {
	return &WithdrawalHandler{service: service}
}

// List returns withdrawals filtered by user_id, status, manager_id and q.
func (h *WithdrawalHandler) List(c *gin.Context) {
	limit, offset := apihttp.Pagination(c)
	userID, ok := apihttp.ParseIDQuery(c, "user_id")
	if !ok {
		return
	}
	managerID, ok := apihttp.ParseIDQuery(c, "manager_id")
	if !ok {
		return
	}
	rows, total, err := h.service.List(c.Request.Context(), withdrawal.Filter{
		UserID:    userID,
		Status:    strings.TrimSpace(c.Query("status")),
		ManagerID: managerID,
		Query:     strings.TrimSpace(c.Query("q")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": withdrawal.NewViews(rows), "total": total})
}

// Get returns one withdrawal with full payment details.
func (h *WithdrawalHandler) Get(c *gin.Context) {
	id, ok := apihttp.ParseIDParam(c, "id")
	if !ok {
		return
	}
	w, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawal.NewView(w, true))
}

// transitionRequest is a manager action on a withdrawal.
type transitionRequest struct {
	Action string `json:"action"` // review, approve, process, complete (mark_paid, paid) or reject.
	Notes  string `json:"notes"`  // Optional manager notes.
	Reason string `json:"reason"` // Required for reject unless notes are given.
}

// Transition applies an action as the authenticated manager.
func (h *WithdrawalHandler) Transition(c *gin.Context) {
	id, ok := apihttp.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var body transitionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	w, err := h.service.Transition(c.Request.Context(), withdrawal.TransitionInput{
		WithdrawalID:   id,
		ActorManagerID: getManagerID(c),
		Action:         body.Action,
		Notes:          body.Notes,
		Reason:         body.Reason,
	})
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawal.NewView(w, true))
}

// Reconcile repairs or reports a withdrawal whose status and debit disagree.
func (h *WithdrawalHandler) Reconcile(c *gin.Context) {
	id, ok := apihttp.ParseIDParam(c, "id")
	if !ok {
		return
	}
	w, err := h.service.Reconcile(c.Request.Context(), id)
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawal.NewView(w, true))
}
