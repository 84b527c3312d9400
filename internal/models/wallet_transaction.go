package models

import "time"

// Wallet transaction kinds.
const (
	TxKindTaskReward           = "task_reward"
	TxKindWithdrawalDebit      = "withdrawal_debit"
	TxKindVipSubscriptionDebit = "vip_subscription_debit"
	TxKindMonthlyReturnCredit  = "monthly_return_credit"
)

// WalletTransaction is one immutable ledger entry. Rows are never updated or deleted.
type WalletTransaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID    uint64 `gorm:"not null;uniqueIndex:idx_wallet_tx_reference,priority:1;index:idx_wallet_tx_user_created,priority:1"` // Owner.
	Kind      string `gorm:"type:varchar(32);not null;uniqueIndex:idx_wallet_tx_reference,priority:2"`                            // Entry kind.
	Amount    int64  `gorm:"not null"`                                                                                              // Signed minor units.
	Reference string `gorm:"type:varchar(191);not null;uniqueIndex:idx_wallet_tx_reference,priority:3"`                           // Idempotency reference.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_wallet_tx_user_created,priority:2"` // Creation timestamp.
}

// TableName pins the table name.
func (WalletTransaction) TableName() string { return "wallet_transactions" }

// IsCreditKind reports whether entries of kind must carry a positive amount.
func IsCreditKind(kind string) bool {
	return kind == TxKindTaskReward || kind == TxKindMonthlyReturnCredit
}

// IsDebitKind reports whether entries of kind must carry a negative amount.
func IsDebitKind(kind string) bool {
	return kind == TxKindWithdrawalDebit || kind == TxKindVipSubscriptionDebit
}
