package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskvip/walletcore/internal/config"
	dbpkg "github.com/taskvip/walletcore/internal/db"
	"github.com/taskvip/walletcore/internal/http/api"
	"github.com/taskvip/walletcore/internal/ledger"
	"github.com/taskvip/walletcore/internal/lock"
	"github.com/taskvip/walletcore/internal/models"
	"github.com/taskvip/walletcore/internal/notify"
	"github.com/taskvip/walletcore/internal/registry"
	"github.com/taskvip/walletcore/internal/security"
	"github.com/taskvip/walletcore/internal/settings"
	"github.com/taskvip/walletcore/internal/vip"
	"github.com/taskvip/walletcore/internal/withdrawal"
	"gorm.io/datatypes"
)

const testManagerSecret = "manager-secret"

type adminFixture struct {
	svc    api.Services
	router *gin.Engine
}

func newAdminFixture(t *testing.T) adminFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	settings.StoreDBConfig(time.Now(), nil)

	conn, errOpen := dbpkg.Open(filepath.Join(t.TempDir(), "admin.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	plans, errPlans := vip.PlansFromConfig([]config.VIPPlan{{Level: "silver", Price: 100, DurationDays: 30, MonthlyReturnRate: "0.05"}})
	if errPlans != nil {
		t.Fatalf("plans: %v", errPlans)
	}
	locker := lock.NewLocalLocker()
	store := ledger.NewStore(conn, locker)
	tracker := vip.NewTracker(conn, store, notify.Nop, plans)
	svc := api.Services{
		DB:          conn,
		JWT:         config.JWTConfig{UserSecret: "user-secret", ManagerSecret: testManagerSecret},
		Ledger:      store,
		VIP:         tracker,
		Registry:    registry.New(conn, locker, notify.Nop),
		Withdrawals: withdrawal.NewService(conn, store, tracker, notify.Nop, 350),
		Currency:    "INR",
	}

	router := gin.New()
	RegisterHealthRoutes(router, conn)
	RegisterAdminRoutes(router, svc)
	return adminFixture{svc: svc, router: router}
}

func (f adminFixture) manager(t *testing.T, name string, superAdmin bool, perms ...string) (models.Manager, string) {
	t.Helper()
	raw, _ := json.Marshal(append([]string{}, perms...))
	m := models.Manager{Name: name, Active: true, IsSuperAdmin: superAdmin, Permissions: datatypes.JSON(raw), MaxVipCapacity: 10}
	if errCreate := f.svc.DB.Create(&m).Error; errCreate != nil {
		t.Fatalf("create manager: %v", errCreate)
	}
	token, errToken := security.GenerateManagerToken(testManagerSecret, m.ID, time.Hour)
	if errToken != nil {
		t.Fatalf("token: %v", errToken)
	}
	return m, token
}

func (f adminFixture) vipUser(t *testing.T, name string) models.User {
	t.Helper()
	now := time.Now().UTC()
	expiry := now.Add(30 * 24 * time.Hour)
	user := models.User{Username: name}
	user.VIP = models.VipSubscription{Level: "silver", Status: models.VipStatusActive, SubscriptionDate: &now, ExpiryDate: &expiry, Price: 100}
	if errCreate := f.svc.DB.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return user
}

func (f adminFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var errMarshal error
		payload, errMarshal = json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal: %v", errMarshal)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), errDecode)
	}
	return out
}

func TestAdminWithdrawalFlowOverHTTP(t *testing.T) {
	f := newAdminFixture(t)
	_, superToken := f.manager(t, "root", true)
	_, reviewerToken := f.manager(t, "reviewer", false, models.PermManageWithdrawals)
	user := f.vipUser(t, "alice")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/v0/admin/users/%d/task-rewards", user.ID), superToken, gin.H{"amount": 1000, "reference": "task-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("task reward: %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/v0/admin/users/%d/task-rewards", user.ID), superToken, gin.H{"amount": 1000, "reference": "task-1"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate reward: %d %s", rec.Code, rec.Body.String())
	}

	w, errSubmit := f.svc.Withdrawals.Submit(context.Background(), withdrawal.SubmitInput{
		UserID:  user.ID,
		Amount:  600,
		Method:  models.PaymentMethodUPI,
		Details: json.RawMessage(`{"upi_id":"alice@okbank"}`),
	})
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}

	rec = f.do(t, http.MethodGet, "/v0/admin/withdrawals?status=pending", reviewerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	list := decodeBody(t, rec)
	if total, _ := list["total"].(float64); total != 1 {
		t.Fatalf("total = %v", list["total"])
	}
	rows, _ := list["withdrawals"].([]any)
	details, _ := rows[0].(map[string]any)["payment_details"].(map[string]any)
	if details["upi_id"] != "al***@okbank" {
		t.Fatalf("list should mask details, got %v", details)
	}

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v0/admin/withdrawals?user_id=%d", user.ID), reviewerToken, nil)
	if total, _ := decodeBody(t, rec)["total"].(float64); rec.Code != http.StatusOK || total != 1 {
		t.Fatalf("user filter: %d %s", rec.Code, rec.Body.String())
	}
	for _, query := range []string{"user_id=abc", "manager_id=-1", "user_id=0"} {
		rec = f.do(t, http.MethodGet, "/v0/admin/withdrawals?"+query, reviewerToken, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: %d %s", query, rec.Code, rec.Body.String())
		}
	}

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v0/admin/withdrawals/%d", w.ID), reviewerToken, nil)
	full, _ := decodeBody(t, rec)["payment_details"].(map[string]any)
	if full["upi_id"] != "alice@okbank" {
		t.Fatalf("detail view should be unmasked, got %v", full)
	}

	for _, action := range []string{"review", "approve", "mark_paid"} {
		rec = f.do(t, http.MethodPost, fmt.Sprintf("/v0/admin/withdrawals/%d/transition", w.ID), reviewerToken, gin.H{"action": action})
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", action, rec.Code, rec.Body.String())
		}
	}
	if status := decodeBody(t, rec)["status"]; status != models.WithdrawalCompleted {
		t.Fatalf("status = %v", status)
	}

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/v0/admin/withdrawals/%d/transition", w.ID), reviewerToken, gin.H{"action": "complete"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second completion: %d %s", rec.Code, rec.Body.String())
	}
	if code := decodeBody(t, rec)["code"]; code != "invalid_transition" {
		t.Fatalf("code = %v", code)
	}

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v0/admin/users/%d/balance", user.ID), superToken, nil)
	if raw := decodeBody(t, rec)["raw"]; raw != float64(400) {
		t.Fatalf("raw balance = %v", raw)
	}
}

func TestAdminRoutesEnforceCapabilities(t *testing.T) {
	f := newAdminFixture(t)
	_, reviewerToken := f.manager(t, "reviewer", false, models.PermManageWithdrawals)
	_, idleToken := f.manager(t, "idle", false)
	inactive, inactiveToken := f.manager(t, "gone", true)
	if errUpdate := f.svc.DB.Model(&inactive).Update("active", false).Error; errUpdate != nil {
		t.Fatalf("deactivate: %v", errUpdate)
	}

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/v0/admin/withdrawals", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/v0/admin/withdrawals", "nope", http.StatusUnauthorized},
		{"inactive manager", http.MethodGet, "/v0/admin/withdrawals", inactiveToken, http.StatusForbidden},
		{"missing capability", http.MethodGet, "/v0/admin/withdrawals", idleToken, http.StatusForbidden},
		{"other capability", http.MethodGet, "/v0/admin/settings", reviewerToken, http.StatusForbidden},
		{"granted", http.MethodGet, "/v0/admin/withdrawals", reviewerToken, http.StatusOK},
		{"health is public", http.MethodGet, "/healthz", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.path, tc.token, nil)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAdminManagerAssignmentsOverHTTP(t *testing.T) {
	f := newAdminFixture(t)
	_, superToken := f.manager(t, "root", true)
	user := f.vipUser(t, "bob")

	ops, _ := f.manager(t, "ops", false, models.PermManageWithdrawals)
	if errUpdate := f.svc.DB.Model(&ops).Update("max_vip_capacity", 1).Error; errUpdate != nil {
		t.Fatalf("set capacity: %v", errUpdate)
	}
	managerID := ops.ID

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/v0/admin/managers/%d/assignments", managerID), superToken, gin.H{"user_id": 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing user_id: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/v0/admin/managers/%d/assignments", managerID), superToken, gin.H{"user_id": user.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("assign: %d %s", rec.Code, rec.Body.String())
	}
	capacity := decodeBody(t, rec)
	if capacity["current"] != float64(1) || capacity["free"] != float64(0) {
		t.Fatalf("capacity = %v", capacity)
	}

	other := f.vipUser(t, "carol")
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/v0/admin/managers/%d/assignments", managerID), superToken, gin.H{"user_id": other.ID})
	if rec.Code != http.StatusConflict {
		t.Fatalf("over capacity: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/v0/admin/managers/%d", managerID), superToken, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete with assignments: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/v0/admin/managers/%d/assignments/%d", managerID, user.ID), superToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unassign: %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/v0/admin/managers/%d", managerID), superToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAdminSettingsRoundTrip(t *testing.T) {
	f := newAdminFixture(t)
	_, superToken := f.manager(t, "root", true)

	rec := f.do(t, http.MethodPut, "/v0/admin/settings", superToken, gin.H{settings.MinWithdrawalAmountKey: 600})
	if rec.Code != http.StatusOK {
		t.Fatalf("put: %d %s", rec.Code, rec.Body.String())
	}
	values, _ := decodeBody(t, rec)["settings"].(map[string]any)
	if values[settings.MinWithdrawalAmountKey] != float64(600) {
		t.Fatalf("settings = %v", values)
	}
	if got := f.svc.Withdrawals.MinAmount(); got != 600 {
		t.Fatalf("min amount = %d", got)
	}

	rec = f.do(t, http.MethodPut, "/v0/admin/settings", superToken, gin.H{"NOPE": 1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown key: %d %s", rec.Code, rec.Body.String())
	}
}
