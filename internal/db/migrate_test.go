package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/taskvip/walletcore/internal/models"
)

func TestMigrateSQLiteCreatesWalletTables(t *testing.T) {
	conn, errOpen := Open(filepath.Join(t.TempDir(), "wallet.db"))
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, table := range []string{"users", "wallet_transactions", "managers", "withdrawals", "notifications", "settings"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
	for _, column := range []string{"vip_level", "vip_status", "vip_expiry_date", "vip_monthly_return_rate", "vip_price"} {
		if !conn.Migrator().HasColumn(&models.User{}, column) {
			t.Fatalf("users missing column %s", column)
		}
	}
	for _, column := range []string{"assigned_vips", "current_vip_count", "max_vip_capacity"} {
		if !conn.Migrator().HasColumn(&models.Manager{}, column) {
			t.Fatalf("managers missing column %s", column)
		}
	}
	if !conn.Migrator().HasIndex(&models.WalletTransaction{}, "idx_wallet_tx_reference") {
		t.Fatalf("wallet_transactions missing reference index")
	}
}

func TestWalletTransactionReferenceIsUnique(t *testing.T) {
	conn, errOpen := Open(filepath.Join(t.TempDir(), "wallet.db"))
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	first := models.WalletTransaction{UserID: 1, Kind: models.TxKindTaskReward, Amount: 10, Reference: "task:1"}
	if errCreate := conn.Create(&first).Error; errCreate != nil {
		t.Fatalf("create first: %v", errCreate)
	}
	dup := models.WalletTransaction{UserID: 1, Kind: models.TxKindTaskReward, Amount: 10, Reference: "task:1"}
	if errCreate := conn.Create(&dup).Error; !IsUniqueViolation(errCreate) {
		t.Fatalf("expected unique violation, got %v", errCreate)
	}
	otherKind := models.WalletTransaction{UserID: 1, Kind: models.TxKindMonthlyReturnCredit, Amount: 10, Reference: "task:1"}
	if errCreate := conn.Create(&otherKind).Error; errCreate != nil {
		t.Fatalf("same reference under another kind should be allowed: %v", errCreate)
	}
}

func TestDetectDialectFromDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost/wallet":        DialectPostgres,
		"host=localhost user=u dbname=wallet":    DialectPostgres,
		"mysql://u:p@tcp(localhost:3306)/wallet": DialectMySQL,
		"u:p@tcp(localhost:3306)/wallet":         DialectMySQL,
		"data/wallet.db":                         DialectSQLite,
		"sqlite:///var/lib/wallet.db":            DialectSQLite,
	}
	for dsn, want := range cases {
		got, err := detectDialectFromDSN(dsn)
		if err != nil {
			t.Fatalf("detect %q: %v", dsn, err)
		}
		if got != want {
			t.Fatalf("detect %q = %s, want %s", dsn, got, want)
		}
	}
	if _, err := detectDialectFromDSN("redis://localhost"); err == nil {
		t.Fatalf("expected unsupported dsn error")
	}
	if _, err := Open("   "); err != ErrEmptyDSN {
		t.Fatalf("expected ErrEmptyDSN, got %v", err)
	}
}

func TestEnsureSQLiteParamsKeepsExplicitPragmas(t *testing.T) {
	got := ensureSQLiteParams("file:wallet.db?_pragma=busy_timeout(100)")
	if strings.Count(got, "busy_timeout") != 1 {
		t.Fatalf("expected explicit busy_timeout kept once, got %s", got)
	}
	for _, want := range []string{"journal_mode(WAL)", "foreign_keys(1)", "synchronous(NORMAL)"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %s in %s", want, got)
		}
	}
}

func TestEnsureMySQLParams(t *testing.T) {
	got := ensureMySQLParams("u:p@tcp(localhost:3306)/wallet?parseTime=false")
	if strings.Contains(got, "parseTime=true") {
		t.Fatalf("explicit parseTime must be kept: %s", got)
	}
	if !strings.Contains(got, "loc=UTC") || !strings.Contains(got, "charset=utf8mb4") {
		t.Fatalf("missing defaults: %s", got)
	}
}
