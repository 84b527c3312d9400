package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apihttp "github.com/taskvip/walletcore/internal/http"
	"github.com/taskvip/walletcore/internal/ledger"
)

// WalletHandler serves the user's balance and ledger history.
type WalletHandler struct {
	ledger   *ledger.Store
	currency string
}

// NewWalletHandler constructs a WalletHandler.
func NewWalletHandler(store *ledger.Store, currency string) *WalletHandler {
	return &WalletHandler{ledger: store, currency: currency}
}

// Balance returns the derived balance.
func (h *WalletHandler) Balance(c *gin.Context) {
	summary, err := h.ledger.Summary(c.Request.Context(), getUserID(c))
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":  summary.Available,
		"raw":      summary.Raw,
		"negative": summary.Negative,
		"currency": h.currency,
	})
}

// Transactions lists ledger entries newest first.
func (h *WalletHandler) Transactions(c *gin.Context) {
	limit, offset := apihttp.Pagination(c)
	rows, total, err := h.ledger.List(c.Request.Context(), getUserID(c), ledger.ListOptions{
		Kind:   strings.TrimSpace(c.Query("kind")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		apihttp.WriteError(c, err)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":         row.ID,
			"kind":       row.Kind,
			"amount":     row.Amount,
			"reference":  row.Reference,
			"created_at": row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out, "total": total})
}
