package permissions

import (
	"testing"

	"github.com/taskvip/walletcore/internal/models"
	"gorm.io/datatypes"
)

func TestDefinitionMapIncludesWithdrawalTransition(t *testing.T) {
	key := "POST /v0/admin/withdrawals/:id/transition"
	d, ok := DefinitionMap()[key]
	if !ok {
		t.Fatalf("DefinitionMap() missing permission key %q", key)
	}
	if d.Capability != models.PermManageWithdrawals {
		t.Fatalf("capability = %q", d.Capability)
	}
}

func TestDefinitionKeysAreUnique(t *testing.T) {
	if len(DefinitionMap()) != len(Definitions()) {
		t.Fatalf("duplicate definition keys")
	}
}

func TestCapabilitiesIncludeOverride(t *testing.T) {
	caps := Capabilities()
	if !HasPermission(caps, models.PermOverrideWithdrawalReview) || !HasPermission(caps, models.PermManageLedger) {
		t.Fatalf("unexpected capabilities %v", caps)
	}
}

func TestParsePermissions(t *testing.T) {
	got := ParsePermissions(datatypes.JSON(`[" manage_ledger ", "", "manage_settings"]`))
	if len(got) != 2 || got[0] != "manage_ledger" {
		t.Fatalf("unexpected %v", got)
	}
	if ParsePermissions(datatypes.JSON(`{"bad":1}`)) != nil {
		t.Fatalf("malformed list should parse to nil")
	}
}
