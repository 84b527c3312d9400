package models

import (
	"fmt"
	"time"
)

// WithdrawalDebitReference is the ledger reference for the debit of withdrawal id.
func WithdrawalDebitReference(id uint64) string {
	return fmt.Sprintf("withdrawal:%d", id)
}

// VipSubscriptionReference is the ledger reference for a tier purchase.
func VipSubscriptionReference(level string, at time.Time) string {
	return fmt.Sprintf("vip:%s:%d", level, at.Unix())
}

// MonthlyReturnReference is the ledger reference for a monthly return period (YYYY-MM).
func MonthlyReturnReference(period string) string {
	return "monthly_return:" + period
}
