package vip

import (
	"context"
	"testing"
	"time"

	"github.com/taskvip/walletcore/internal/models"
	"github.com/taskvip/walletcore/internal/notify"
)

func TestExpiryPollerExpiresOnlyLapsedUsers(t *testing.T) {
	f := newVIPFixture(t)
	lapsed := f.user(t, "lapsed", 0)
	current := f.user(t, "current", 0)
	f.setVIP(t, lapsed.ID, "silver", time.Now().UTC().Add(-time.Hour))
	f.setVIP(t, current.ID, "gold", time.Now().UTC().Add(24*time.Hour))

	poller := NewExpiryPoller(f.tracker)
	if visited := poller.PollOnce(context.Background()); visited != 1 {
		t.Fatalf("visited %d users, want 1", visited)
	}
	if visited := poller.PollOnce(context.Background()); visited != 0 {
		t.Fatalf("second pass visited %d users, want 0", visited)
	}
	if n := f.events.Count(notify.TypeVIPExpired); n != 1 {
		t.Fatalf("vip_expired emitted %d times, want 1", n)
	}

	var stored models.User
	if errFind := f.db.First(&stored, current.ID).Error; errFind != nil {
		t.Fatalf("reload: %v", errFind)
	}
	if stored.VIP.Status != models.VipStatusActive {
		t.Fatalf("current user touched: %+v", stored.VIP)
	}
}
