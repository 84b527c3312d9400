package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Manager reviews withdrawals and looks after a bounded set of VIP users.
type Manager struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name   string  `gorm:"type:varchar(191);not null"` // Display name.
	UserID *uint64 `gorm:"index"`                      // Manager's own wallet account, if any.

	Active       bool           `gorm:"not null;default:true"`  // Inactive managers cannot act.
	IsSuperAdmin bool           `gorm:"not null;default:false"` // Grants all permissions when true.
	Permissions  datatypes.JSON `gorm:"not null"`               // Capability tokens in JSON.

	MaxVipCapacity  int            `gorm:"not null;default:0"` // Assignment limit.
	CurrentVipCount int            `gorm:"not null;default:0"` // Always len(AssignedVips).
	AssignedVips    datatypes.JSON `gorm:"not null"`           // Assigned VIP user IDs in JSON.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// BeforeCreate fills empty JSON columns with empty arrays.
func (m *Manager) BeforeCreate(*gorm.DB) error {
	if len(m.Permissions) == 0 {
		m.Permissions = datatypes.JSON("[]")
	}
	if len(m.AssignedVips) == 0 {
		m.AssignedVips = datatypes.JSON("[]")
	}
	return nil
}

// AssignedVIPIDs decodes the embedded assignment set.
func (m Manager) AssignedVIPIDs() ([]uint64, error) {
	ids := []uint64{}
	if len(m.AssignedVips) == 0 {
		return ids, nil
	}
	if err := json.Unmarshal(m.AssignedVips, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// PermissionKeys decodes the capability token list.
func (m Manager) PermissionKeys() ([]string, error) {
	keys := []string{}
	if len(m.Permissions) == 0 {
		return keys, nil
	}
	if err := json.Unmarshal(m.Permissions, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// Capability tokens stored in Manager.Permissions.
const (
	PermManageWithdrawals        = "manage_withdrawals"
	PermOverrideWithdrawalReview = "override_withdrawal_review"
	PermManageAssignments        = "manage_assignments"
	PermManageManagers           = "manage_managers"
	PermManageLedger             = "manage_ledger"
	PermManageSettings           = "manage_settings"
)

// Can reports whether the manager holds perm. Super admins hold every token.
func (m Manager) Can(perm string) bool {
	if m.IsSuperAdmin {
		return true
	}
	keys, err := m.PermissionKeys()
	if err != nil {
		return false
	}
	for _, k := range keys {
		if k == perm {
			return true
		}
	}
	return false
}
