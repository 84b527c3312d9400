package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskvip/walletcore/internal/apperr"
	apihttp "github.com/taskvip/walletcore/internal/http"
	"github.com/taskvip/walletcore/internal/withdrawal"
)

// WithdrawalHandler lets users submit and follow their withdrawals.
type WithdrawalHandler struct {
	service *withdrawal.Service
}

// NewWithdrawalHandler constructs a WithdrawalHandler.
func NewWithdrawalHandler(service *withdrawal.Service) *WithdrawalHandler {
	return &WithdrawalHandler{service: service}
}

// createWithdrawalRequest is the submission payload.
type createWithdrawalRequest struct {
	Amount         int64           `json:"amount"`          // Minor units.
	PaymentMethod  string          `json:"payment_method"`  // UPI or BANK_TRANSFER.
	PaymentDetails json.RawMessage `json:"payment_details"` // Method-specific object.
}

// Create submits a withdrawal.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	var body createWithdrawalRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	w, err := h.service.Submit(c.Request.Context(), withdrawal.SubmitInput{
		UserID:  getUserID(c),
		Amount:  body.Amount,
		Method:  body.PaymentMethod,
		Details: body.PaymentDetails,
	})
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, withdrawal.NewView(w, false))
}

// List returns the caller's withdrawals.
func (h *WithdrawalHandler) List(c *gin.Context) {
	limit, offset := apihttp.Pagination(c)
	rows, total, err := h.service.List(c.Request.Context(), withdrawal.Filter{
		UserID: getUserID(c),
		Status: strings.TrimSpace(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": withdrawal.NewViews(rows), "total": total})
}

// Get returns one of the caller's withdrawals.
func (h *WithdrawalHandler) Get(c *gin.Context) {
	id, ok := apihttp.ParseIDParam(c, "id")
	if !ok {
		return
	}
	w, err := h.service.Get(c.Request.Context(), id)
	if err == nil && w.UserID != getUserID(c) {
		err = apperr.NotFound("withdrawal")
	}
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawal.NewView(w, false))
}

// Cancel cancels a pending withdrawal owned by the caller.
func (h *WithdrawalHandler) Cancel(c *gin.Context) {
	id, ok := apihttp.ParseIDParam(c, "id")
	if !ok {
		return
	}
	w, err := h.service.Cancel(c.Request.Context(), id, getUserID(c))
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawal.NewView(w, false))
}
