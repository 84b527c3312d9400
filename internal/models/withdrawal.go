package models

import (
	"time"

	"gorm.io/datatypes"
)

// Withdrawal statuses.
const (
	WithdrawalPending     = "pending"
	WithdrawalUnderReview = "under_review"
	WithdrawalApproved    = "approved"
	WithdrawalProcessing  = "processing"
	WithdrawalCompleted   = "completed"
	WithdrawalRejected    = "rejected"
	WithdrawalCancelled   = "cancelled"
)

// Payment methods.
const (
	PaymentMethodUPI          = "UPI"
	PaymentMethodBankTransfer = "BANK_TRANSFER"
)

// NonTerminalWithdrawalStatuses lists statuses that still hold funds.
var NonTerminalWithdrawalStatuses = []string{
	WithdrawalPending,
	WithdrawalUnderReview,
	WithdrawalApproved,
	WithdrawalProcessing,
}

// IsTerminalWithdrawalStatus reports whether status accepts no further transitions.
func IsTerminalWithdrawalStatus(status string) bool {
	switch status {
	case WithdrawalCompleted, WithdrawalRejected, WithdrawalCancelled:
		return true
	default:
		return false
	}
}

// Withdrawal is a user's request to move funds out of the wallet.
type Withdrawal struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`                // Primary key.
	RequestNo string `gorm:"type:varchar(64);not null;uniqueIndex"` // Public reference (wd-<uuid>).

	UserID uint64 `gorm:"not null;index"` // Requesting user.
	Amount int64  `gorm:"not null"`       // Requested amount, minor units.

	PaymentMethod  string         `gorm:"type:varchar(32);not null"` // UPI or BANK_TRANSFER.
	PaymentDetails datatypes.JSON `gorm:"not null"`                  // Method-specific details.

	Status            string  `gorm:"type:varchar(16);not null;index"` // Lifecycle status.
	AssignedManagerID *uint64 `gorm:"index"`                           // Reviewing manager; weak reference.

	SubmittedAt time.Time  `gorm:"not null"` // Submission time.
	ReviewedAt  *time.Time // Time the review started.
	ProcessedAt *time.Time // Set once the request is terminal.

	ManagerNotes    string `gorm:"type:text"` // Latest manager notes.
	RejectionReason string `gorm:"type:text"` // Reason supplied on reject.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// DebitReference is the ledger reference of the debit recorded on completion.
func (w Withdrawal) DebitReference() string {
	return WithdrawalDebitReference(w.ID)
}
