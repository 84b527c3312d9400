package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/taskvip/walletcore/internal/apperr"
	dbpkg "github.com/taskvip/walletcore/internal/db"
	"github.com/taskvip/walletcore/internal/lock"
	"github.com/taskvip/walletcore/internal/models"
	"github.com/taskvip/walletcore/internal/notify"
	"gorm.io/gorm"
)

func openRegistryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := dbpkg.Open(filepath.Join(t.TempDir(), "registry.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func createManager(t *testing.T, conn *gorm.DB, name string, capacity int, active bool) models.Manager {
	t.Helper()
	m := models.Manager{Name: name, Active: true, MaxVipCapacity: capacity}
	if errCreate := conn.Create(&m).Error; errCreate != nil {
		t.Fatalf("create manager: %v", errCreate)
	}
	if !active {
		if errUpdate := conn.Model(&m).Update("active", false).Error; errUpdate != nil {
			t.Fatalf("deactivate: %v", errUpdate)
		}
	}
	return m
}

func createUsers(t *testing.T, conn *gorm.DB, n int) []models.User {
	t.Helper()
	users := make([]models.User, n)
	for i := range users {
		users[i] = models.User{Username: fmt.Sprintf("vip-%d-%d", time.Now().UnixNano(), i)}
	}
	if errCreate := conn.Create(&users).Error; errCreate != nil {
		t.Fatalf("create users: %v", errCreate)
	}
	return users
}

func assertCountMatchesSet(t *testing.T, conn *gorm.DB, managerID uint64) models.Manager {
	t.Helper()
	var m models.Manager
	if errFind := conn.First(&m, managerID).Error; errFind != nil {
		t.Fatalf("reload manager: %v", errFind)
	}
	ids, errIDs := m.AssignedVIPIDs()
	if errIDs != nil {
		t.Fatalf("decode: %v", errIDs)
	}
	if m.CurrentVipCount != len(ids) {
		t.Fatalf("current_vip_count %d != len(assigned_vips) %d", m.CurrentVipCount, len(ids))
	}
	if m.CurrentVipCount > m.MaxVipCapacity {
		t.Fatalf("current %d exceeds max %d", m.CurrentVipCount, m.MaxVipCapacity)
	}
	return m
}

func TestAssignRejectsAtCapacity(t *testing.T) {
	conn := openRegistryTestDB(t)
	reg := New(conn, lock.NewLocalLocker(), nil)
	manager := createManager(t, conn, "full", 50, true)
	users := createUsers(t, conn, 51)
	ctx := context.Background()

	for _, u := range users[:50] {
		if errAssign := reg.Assign(ctx, manager.ID, u.ID); errAssign != nil {
			t.Fatalf("assign %d: %v", u.ID, errAssign)
		}
	}
	errAssign := reg.Assign(ctx, manager.ID, users[50].ID)
	if !errors.Is(errAssign, apperr.ErrCapacityExceeded) {
		t.Fatalf("expected capacity exceeded, got %v", errAssign)
	}
	m := assertCountMatchesSet(t, conn, manager.ID)
	if m.CurrentVipCount != 50 {
		t.Fatalf("count = %d, want 50", m.CurrentVipCount)
	}

	if errUnassign := reg.Unassign(ctx, manager.ID, users[0].ID); errUnassign != nil {
		t.Fatalf("unassign: %v", errUnassign)
	}
	capacity, errCap := reg.Capacity(ctx, manager.ID)
	if errCap != nil || capacity.Current != 49 || capacity.Max != 50 {
		t.Fatalf("capacity after unassign = %+v (%v)", capacity, errCap)
	}
	if errAssign := reg.Assign(ctx, manager.ID, users[50].ID); errAssign != nil {
		t.Fatalf("assign after unassign: %v", errAssign)
	}
	assertCountMatchesSet(t, conn, manager.ID)
}

func TestAssignRejections(t *testing.T) {
	conn := openRegistryTestDB(t)
	reg := New(conn, nil, nil)
	a := createManager(t, conn, "a", 5, true)
	b := createManager(t, conn, "b", 5, true)
	idle := createManager(t, conn, "idle", 5, false)
	users := createUsers(t, conn, 1)
	ctx := context.Background()

	if errAssign := reg.Assign(ctx, a.ID, users[0].ID); errAssign != nil {
		t.Fatalf("assign: %v", errAssign)
	}
	cases := []struct {
		name    string
		manager uint64
		user    uint64
		want    error
	}{
		{"same manager", a.ID, users[0].ID, apperr.ErrAlreadyAssigned},
		{"other manager", b.ID, users[0].ID, apperr.ErrAlreadyAssigned},
		{"inactive manager", idle.ID, users[0].ID, apperr.ErrManagerInactive},
		{"unknown manager", 9999, users[0].ID, apperr.ErrNotFound},
		{"unknown user", b.ID, 9999, apperr.ErrUnknownUser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if errAssign := reg.Assign(ctx, tc.manager, tc.user); !errors.Is(errAssign, tc.want) {
				t.Fatalf("got %v, want %v", errAssign, tc.want)
			}
		})
	}
	assertCountMatchesSet(t, conn, b.ID)
}

func TestUnassign(t *testing.T) {
	conn := openRegistryTestDB(t)
	reg := New(conn, nil, nil)
	m := createManager(t, conn, "m", 3, true)
	users := createUsers(t, conn, 2)
	ctx := context.Background()

	for _, u := range users {
		if errAssign := reg.Assign(ctx, m.ID, u.ID); errAssign != nil {
			t.Fatalf("assign: %v", errAssign)
		}
	}
	if errUnassign := reg.Unassign(ctx, m.ID, users[0].ID); errUnassign != nil {
		t.Fatalf("unassign: %v", errUnassign)
	}
	if errUnassign := reg.Unassign(ctx, m.ID, users[0].ID); !errors.Is(errUnassign, apperr.ErrNotAssigned) {
		t.Fatalf("expected not assigned, got %v", errUnassign)
	}
	capacity, errCap := reg.Capacity(ctx, m.ID)
	if errCap != nil {
		t.Fatalf("capacity: %v", errCap)
	}
	if capacity.Current != 1 || capacity.Free != 2 || len(capacity.AssignedVIPs) != 1 || capacity.AssignedVIPs[0] != users[1].ID {
		t.Fatalf("unexpected capacity %+v", capacity)
	}
}

func TestDeleteManagerGuards(t *testing.T) {
	conn := openRegistryTestDB(t)
	reg := New(conn, nil, nil)
	m := createManager(t, conn, "busy", 5, true)
	users := createUsers(t, conn, 1)
	ctx := context.Background()

	if errAssign := reg.Assign(ctx, m.ID, users[0].ID); errAssign != nil {
		t.Fatalf("assign: %v", errAssign)
	}
	if errDelete := reg.DeleteManager(ctx, m.ID); !errors.Is(errDelete, apperr.ErrHasActiveAssignments) {
		t.Fatalf("expected has active assignments, got %v", errDelete)
	}
	if errUnassign := reg.Unassign(ctx, m.ID, users[0].ID); errUnassign != nil {
		t.Fatalf("unassign: %v", errUnassign)
	}

	managerID := m.ID
	w := models.Withdrawal{
		RequestNo:         "wd-guard",
		UserID:            users[0].ID,
		Amount:            500,
		PaymentMethod:     models.PaymentMethodUPI,
		PaymentDetails:    []byte(`{"upi_id":"a@b"}`),
		Status:            models.WithdrawalUnderReview,
		AssignedManagerID: &managerID,
		SubmittedAt:       time.Now().UTC(),
	}
	if errCreate := conn.Create(&w).Error; errCreate != nil {
		t.Fatalf("seed withdrawal: %v", errCreate)
	}
	if errDelete := reg.DeleteManager(ctx, m.ID); !errors.Is(errDelete, apperr.ErrHasActiveAssignments) {
		t.Fatalf("in-flight withdrawal must block delete, got %v", errDelete)
	}

	if errUpdate := conn.Model(&w).Update("status", models.WithdrawalCompleted).Error; errUpdate != nil {
		t.Fatalf("complete withdrawal: %v", errUpdate)
	}
	if errDelete := reg.DeleteManager(ctx, m.ID); errDelete != nil {
		t.Fatalf("delete: %v", errDelete)
	}
	if errDelete := reg.DeleteManager(ctx, m.ID); !errors.Is(errDelete, apperr.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", errDelete)
	}
}

func TestAutoAssignPrefersMostFreeSlots(t *testing.T) {
	conn := openRegistryTestDB(t)
	events := &notify.Recorder{}
	reg := New(conn, nil, events)
	small := createManager(t, conn, "small", 2, true)
	large := createManager(t, conn, "large", 10, true)
	createManager(t, conn, "inactive", 100, false)
	users := createUsers(t, conn, 3)
	ctx := context.Background()

	got, errAuto := reg.AutoAssign(ctx, users[0].ID)
	if errAuto != nil {
		t.Fatalf("auto assign: %v", errAuto)
	}
	if got != large.ID {
		t.Fatalf("assigned to %d, want %d", got, large.ID)
	}
	owner, owned, _ := reg.ManagerOf(ctx, users[0].ID)
	if !owned || owner != large.ID {
		t.Fatalf("ManagerOf = %d %v", owner, owned)
	}
	if _, errAuto := reg.AutoAssign(ctx, users[0].ID); !errors.Is(errAuto, apperr.ErrAlreadyAssigned) {
		t.Fatalf("expected already assigned, got %v", errAuto)
	}
	if events.Count(notify.TypeVIPAssigned) != 1 {
		t.Fatalf("expected one vip_assigned event")
	}
	assertCountMatchesSet(t, conn, small.ID)
	assertCountMatchesSet(t, conn, large.ID)
}

func TestAutoAssignWithoutRoom(t *testing.T) {
	conn := openRegistryTestDB(t)
	reg := New(conn, nil, nil)
	createManager(t, conn, "zero", 0, true)
	users := createUsers(t, conn, 1)

	if _, errAuto := reg.AutoAssign(context.Background(), users[0].ID); !errors.Is(errAuto, apperr.ErrCapacityExceeded) {
		t.Fatalf("expected capacity exceeded, got %v", errAuto)
	}
}

func TestConcurrentAssignNeverExceedsCapacity(t *testing.T) {
	conn := openRegistryTestDB(t)
	reg := New(conn, lock.NewLocalLocker(), nil)
	m := createManager(t, conn, "contended", 5, true)
	users := createUsers(t, conn, 20)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for _, u := range users {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			errAssign := reg.Assign(ctx, m.ID, userID)
			switch {
			case errAssign == nil:
				mu.Lock()
				ok++
				mu.Unlock()
			case errors.Is(errAssign, apperr.ErrCapacityExceeded):
			default:
				t.Errorf("assign: %v", errAssign)
			}
		}(u.ID)
	}
	wg.Wait()

	if ok != 5 {
		t.Fatalf("accepted %d assignments, want 5", ok)
	}
	assertCountMatchesSet(t, conn, m.ID)
}
