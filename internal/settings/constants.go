package settings

// Runtime setting keys and defaults.
const (
	// MinWithdrawalAmountKey is the minimum withdrawal amount in minor units.
	MinWithdrawalAmountKey = "MIN_WITHDRAWAL_AMOUNT"
	// DefaultMinWithdrawalAmount is used when neither the DB nor config set a minimum.
	DefaultMinWithdrawalAmount int64 = 350
	// AutoAssignVIPKey toggles assigning a manager right after a VIP subscription.
	AutoAssignVIPKey = "AUTO_ASSIGN_VIP"
	// DefaultAutoAssignVIP is the fallback for AutoAssignVIPKey.
	DefaultAutoAssignVIP = false
	// NotificationRetentionDaysKey controls how long read notifications are kept.
	NotificationRetentionDaysKey = "NOTIFICATION_RETENTION_DAYS"
	// DefaultNotificationRetentionDays disables cleanup when zero.
	DefaultNotificationRetentionDays = 0
)

// Known lists every key accepted by the settings API.
var Known = []string{
	MinWithdrawalAmountKey,
	AutoAssignVIPKey,
	NotificationRetentionDaysKey,
}

// IsKnown reports whether key is a recognised setting.
func IsKnown(key string) bool {
	for _, k := range Known {
		if k == key {
			return true
		}
	}
	return false
}
