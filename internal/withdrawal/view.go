package withdrawal

import (
	"time"

	"github.com/taskvip/walletcore/internal/models"
)

// View is the API representation of a withdrawal.
type View struct {
	ID                uint64         `json:"id"`
	RequestNo         string         `json:"request_no"`
	UserID            uint64         `json:"user_id"`
	Amount            int64          `json:"amount"`
	PaymentMethod     string         `json:"payment_method"`
	PaymentDetails    PaymentDetails `json:"payment_details"`
	Status            string         `json:"status"`
	AssignedManagerID *uint64        `json:"assigned_manager_id,omitempty"`
	SubmittedAt       time.Time      `json:"submitted_at"`
	ReviewedAt        *time.Time     `json:"reviewed_at,omitempty"`
	ProcessedAt       *time.Time     `json:"processed_at,omitempty"`
	ManagerNotes      string         `json:"manager_notes,omitempty"`
	RejectionReason   string         `json:"rejection_reason,omitempty"`
}

// NewView renders w. Payment details are masked unless full is set; rows
// whose details cannot be decoded render without them.
func NewView(w models.Withdrawal, full bool) View {
	v := View{
		ID:                w.ID,
		RequestNo:         w.RequestNo,
		UserID:            w.UserID,
		Amount:            w.Amount,
		PaymentMethod:     w.PaymentMethod,
		Status:            w.Status,
		AssignedManagerID: w.AssignedManagerID,
		SubmittedAt:       w.SubmittedAt,
		ReviewedAt:        w.ReviewedAt,
		ProcessedAt:       w.ProcessedAt,
		ManagerNotes:      w.ManagerNotes,
		RejectionReason:   w.RejectionReason,
	}
	if details, err := StoredDetails(w); err == nil {
		if !full {
			details = details.Masked()
		}
		v.PaymentDetails = details
	}
	return v
}

// NewViews renders a page of withdrawals with masked details.
func NewViews(rows []models.Withdrawal) []View {
	out := make([]View, 0, len(rows))
	for _, w := range rows {
		out = append(out, NewView(w, false))
	}
	return out
}
