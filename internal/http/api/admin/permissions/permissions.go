// Package permissions lists the admin routes and the capability each one needs.
package permissions

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/taskvip/walletcore/internal/models"
	"gorm.io/datatypes"
)

// Definition describes one guarded admin route.
type Definition struct {
	Key        string // METHOD + " " + path.
	Method     string
	Path       string
	Label      string
	Module     string
	Capability string // Token a non-super manager must hold.
}

// Key builds the lookup key for a route.
func Key(method, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + strings.TrimSpace(path)
}

func def(method, path, label, module, capability string) Definition {
	return Definition{Key: Key(method, path), Method: method, Path: path, Label: label, Module: module, Capability: capability}
}

var definitions = []Definition{
	def(http.MethodGet, "/v0/admin/withdrawals", "List withdrawals", "withdrawals", models.PermManageWithdrawals),
	def(http.MethodGet, "/v0/admin/withdrawals/:id", "View withdrawal", "withdrawals", models.PermManageWithdrawals),
	def(http.MethodPost, "/v0/admin/withdrawals/:id/transition", "Transition withdrawal", "withdrawals", models.PermManageWithdrawals),
	def(http.MethodPost, "/v0/admin/withdrawals/:id/reconcile", "Reconcile withdrawal", "withdrawals", models.PermManageWithdrawals),

	def(http.MethodPost, "/v0/admin/managers/:id/assignments", "Assign VIP", "assignments", models.PermManageAssignments),
	def(http.MethodDelete, "/v0/admin/managers/:id/assignments/:user_id", "Unassign VIP", "assignments", models.PermManageAssignments),
	def(http.MethodGet, "/v0/admin/managers/:id/capacity", "View manager capacity", "assignments", models.PermManageAssignments),
	def(http.MethodPost, "/v0/admin/vips/:user_id/auto-assign", "Auto-assign VIP", "assignments", models.PermManageAssignments),

	def(http.MethodDelete, "/v0/admin/managers/:id", "Delete manager", "managers", models.PermManageManagers),

	def(http.MethodPost, "/v0/admin/users/:id/task-rewards", "Credit task reward", "ledger", models.PermManageLedger),
	def(http.MethodPost, "/v0/admin/users/:id/monthly-returns", "Credit monthly return", "ledger", models.PermManageLedger),
	def(http.MethodGet, "/v0/admin/users/:id/balance", "View user balance", "ledger", models.PermManageLedger),

	def(http.MethodGet, "/v0/admin/settings", "View settings", "settings", models.PermManageSettings),
	def(http.MethodPut, "/v0/admin/settings", "Update settings", "settings", models.PermManageSettings),
	def(http.MethodGet, "/v0/admin/permissions", "List permissions", "settings", models.PermManageSettings),
}

// Definitions returns a copy of every route definition.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// DefinitionMap indexes definitions by Key.
func DefinitionMap() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, d := range definitions {
		out[d.Key] = d
	}
	return out
}

// Capabilities lists the distinct capability tokens in declaration order.
func Capabilities() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 8)
	for _, d := range definitions {
		if _, ok := seen[d.Capability]; ok {
			continue
		}
		seen[d.Capability] = struct{}{}
		out = append(out, d.Capability)
	}
	if _, ok := seen[models.PermOverrideWithdrawalReview]; !ok {
		out = append(out, models.PermOverrideWithdrawalReview)
	}
	return out
}

// ParsePermissions decodes a stored permission list, dropping blanks.
func ParsePermissions(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, p := range list {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// HasPermission reports whether perms contains capability.
func HasPermission(perms []string, capability string) bool {
	for _, p := range perms {
		if p == capability {
			return true
		}
	}
	return false
}
