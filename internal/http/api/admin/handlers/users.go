package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskvip/walletcore/internal/apperr"
	apihttp "github.com/taskvip/walletcore/internal/http"
	"github.com/taskvip/walletcore/internal/ledger"
	"github.com/taskvip/walletcore/internal/models"
	"github.com/taskvip/walletcore/internal/vip"
)

// UserLedgerHandler records externally triggered credits and inspects balances.
type UserLedgerHandler struct {
	ledger  *ledger.Store
	tracker *vip.Tracker
}

// NewUserLedgerHandler constructs a UserLedgerHandler.
func NewUserLedgerHandler(store *ledger.Store, tracker *vip.Tracker) *UserLedgerHandler {
	return &UserLedgerHandler{ledger: store, tracker: tracker}
}

type taskRewardRequest struct {
	Amount    int64  `json:"amount"`    // Positive, minor units.
	Reference string `json:"reference"` // Task completion id; unique per user.
}

// TaskReward credits a completed task.
func (h *UserLedgerHandler) TaskReward(c *gin.Context) {
	userID, ok := apihttp.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var body taskRewardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	row, err := h.ledger.Append(c.Request.Context(), ledger.Entry{
		UserID:    userID,
		Kind:      models.TxKindTaskReward,
		Amount:    body.Amount,
		Reference: strings.TrimSpace(body.Reference),
	})
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, formatTransaction(row))
}

type monthlyReturnRequest struct {
	Period string `json:"period"` // YYYY-MM.
}

// MonthlyReturn records the monthly return for a period.
func (h *UserLedgerHandler) MonthlyReturn(c *gin.Context) {
	userID, ok := apihttp.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var body monthlyReturnRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Period) == "" {
		apihttp.WriteError(c, apperr.Validation("period", "missing period"))
		return
	}
	row, err := h.tracker.RecordMonthlyReturn(c.Request.Context(), userID, body.Period)
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, formatTransaction(row))
}

// Balance returns a user's balance summary including a negative raw balance.
func (h *UserLedgerHandler) Balance(c *gin.Context) {
	userID, ok := apihttp.ParseIDParam(c, "id")
	if !ok {
		return
	}
	summary, err := h.ledger.Summary(c.Request.Context(), userID)
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func formatTransaction(row models.WalletTransaction) gin.H {
	return gin.H{
		"id":         row.ID,
		"user_id":    row.UserID,
		"kind":       row.Kind,
		"amount":     row.Amount,
		"reference":  row.Reference,
		"created_at": row.CreatedAt,
	}
}
