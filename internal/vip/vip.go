// Package vip tracks VIP subscriptions: purchase, lazy expiry and monthly returns.
package vip

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/taskvip/walletcore/internal/apperr"
	"github.com/taskvip/walletcore/internal/config"
	dbpkg "github.com/taskvip/walletcore/internal/db"
	"github.com/taskvip/walletcore/internal/ledger"
	"github.com/taskvip/walletcore/internal/lock"
	"github.com/taskvip/walletcore/internal/models"
	"github.com/taskvip/walletcore/internal/notify"
	"gorm.io/gorm"
)

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Plan is a purchasable tier.
type Plan struct {
	Level             string          `json:"level"`
	Price             int64           `json:"price"`
	Duration          time.Duration   `json:"duration"`
	MonthlyReturnRate decimal.Decimal `json:"monthly_return_rate"`
}

// PlansFromConfig converts configured plans.
func PlansFromConfig(in []config.VIPPlan) ([]Plan, error) {
	out := make([]Plan, 0, len(in))
	for _, p := range in {
		rate, errRate := p.Rate()
		if errRate != nil {
			return nil, fmt.Errorf("vip: plan %s: %w", p.Level, errRate)
		}
		out = append(out, Plan{
			Level:             strings.TrimSpace(p.Level),
			Price:             p.Price,
			Duration:          time.Duration(p.DurationDays) * 24 * time.Hour,
			MonthlyReturnRate: rate,
		})
	}
	return out, nil
}

// Status is the derived subscription view returned to callers.
type Status struct {
	UserID            uint64          `json:"user_id"`
	Level             string          `json:"level"`
	Status            string          `json:"status"`
	Active            bool            `json:"active"`
	SubscriptionDate  *time.Time      `json:"subscription_date,omitempty"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	MonthlyReturnRate decimal.Decimal `json:"monthly_return_rate"`
	Price             int64           `json:"price"`
}

// Tracker owns the VIP columns of users.
type Tracker struct {
	db      *gorm.DB
	ledger  *ledger.Store
	locker  lock.Locker
	emitter notify.Emitter
	plans   map[string]Plan
	now     func() time.Time
}

// NewTracker constructs a Tracker. It shares the ledger's locker.
func NewTracker(db *gorm.DB, ledgerStore *ledger.Store, emitter notify.Emitter, plans []Plan) *Tracker {
	if emitter == nil {
		emitter = notify.Nop
	}
	byLevel := make(map[string]Plan, len(plans))
	for _, p := range plans {
		byLevel[p.Level] = p
	}
	return &Tracker{
		db:      db,
		ledger:  ledgerStore,
		locker:  ledgerStore.Locker(),
		emitter: emitter,
		plans:   byLevel,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Plans lists the configured tiers ordered by price.
func (t *Tracker) Plans() []Plan {
	out := make([]Plan, 0, len(t.plans))
	for _, p := range t.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].Level < out[j].Level
	})
	return out
}

// CurrentStatus returns the user's subscription, persisting expiry when it is due.
// The expiry write only matches a row whose period is still over, so a renewal
// committed after the read survives. Only the caller whose update changed the
// row emits vip_expired.
func (t *Tracker) CurrentStatus(ctx context.Context, userID uint64) (Status, error) {
	user, errLoad := t.loadUser(ctx, t.db, userID, false)
	if errLoad != nil {
		return Status{}, errLoad
	}
	now := t.now()

	v := user.VIP
	if v.ExpiryDate != nil && now.After(*v.ExpiryDate) && v.Status != models.VipStatusExpired {
		res := t.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ? AND vip_status <> ? AND vip_expiry_date IS NOT NULL AND vip_expiry_date < ?", userID, models.VipStatusExpired, now).
			Updates(map[string]any{
				"vip_status":              models.VipStatusExpired,
				"vip_level":               "",
				"vip_monthly_return_rate": decimal.Zero,
			})
		if res.Error != nil {
			return Status{}, fmt.Errorf("vip: expire: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Expired by another caller or renewed since the read.
			reloaded, errReload := t.loadUser(ctx, t.db, userID, false)
			if errReload != nil {
				return Status{}, errReload
			}
			return statusOf(reloaded, now), nil
		}
		expiredLevel := v.Level
		user.VIP.Status = models.VipStatusExpired
		user.VIP.Level = ""
		user.VIP.MonthlyReturnRate = decimal.Zero
		_ = t.emitter.Emit(ctx, notify.Event{
			UserID:  userID,
			Type:    notify.TypeVIPExpired,
			Title:   "VIP subscription expired",
			Message: fmt.Sprintf("Your %s subscription has expired.", expiredLevel),
			RelatedData: map[string]any{
				"level":       expiredLevel,
				"expiry_date": v.ExpiryDate.UTC().Format(time.RFC3339),
			},
		})
	}
	return statusOf(user, now), nil
}

// Subscribe charges the plan price and activates the tier for its duration.
// Subscribing while active replaces the tier and restarts the period.
func (t *Tracker) Subscribe(ctx context.Context, userID uint64, level string) (Status, error) {
	plan, ok := t.plans[strings.TrimSpace(level)]
	if !ok {
		return Status{}, apperr.NotFound("vip_plan").WithField("level")
	}
	unlock, errLock := t.locker.Lock(ctx, lock.UserKey(userID))
	if errLock != nil {
		return Status{}, errLock
	}
	defer unlock()
	if errCtx := ctx.Err(); errCtx != nil {
		return Status{}, errCtx
	}

	now := t.now()
	expiry := now.Add(plan.Duration)
	var user models.User
	errTx := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, errAppend := t.ledger.AppendTx(ctx, tx, ledger.Entry{
			UserID:    userID,
			Kind:      models.TxKindVipSubscriptionDebit,
			Amount:    -plan.Price,
			Reference: models.VipSubscriptionReference(plan.Level, now),
		}); errAppend != nil {
			return errAppend
		}
		if errUpdate := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
			"vip_level":               plan.Level,
			"vip_status":              models.VipStatusActive,
			"vip_subscription_date":   now,
			"vip_expiry_date":         expiry,
			"vip_monthly_return_rate": plan.MonthlyReturnRate,
			"vip_price":               plan.Price,
		}).Error; errUpdate != nil {
			return fmt.Errorf("vip: activate: %w", errUpdate)
		}
		loaded, errLoad := t.loadUser(ctx, tx, userID, false)
		if errLoad != nil {
			return errLoad
		}
		user = loaded
		return nil
	})
	if errTx != nil {
		return Status{}, errTx
	}

	_ = t.emitter.Emit(ctx, notify.Event{
		UserID:  userID,
		Type:    notify.TypeVIPActivated,
		Title:   "VIP subscription activated",
		Message: fmt.Sprintf("Your %s subscription is active until %s.", plan.Level, expiry.Format("2006-01-02")),
		RelatedData: map[string]any{
			"level":       plan.Level,
			"price":       plan.Price,
			"expiry_date": expiry.Format(time.RFC3339),
		},
	})
	return statusOf(user, now), nil
}

// MonthlyReturnAmount is price × rate rounded half-up to minor units.
func MonthlyReturnAmount(price int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(price).Mul(rate).Round(0).IntPart()
}

// RecordMonthlyReturn credits the monthly return for period (YYYY-MM). It is
// recorded at most once per period and only while the subscription is active.
func (t *Tracker) RecordMonthlyReturn(ctx context.Context, userID uint64, period string) (models.WalletTransaction, error) {
	period = strings.TrimSpace(period)
	if !periodPattern.MatchString(period) {
		return models.WalletTransaction{}, apperr.Validation("period", "period must be YYYY-MM")
	}
	unlock, errLock := t.locker.Lock(ctx, lock.UserKey(userID))
	if errLock != nil {
		return models.WalletTransaction{}, errLock
	}
	defer unlock()

	status, errStatus := t.CurrentStatus(ctx, userID)
	if errStatus != nil {
		return models.WalletTransaction{}, errStatus
	}
	if !status.Active {
		return models.WalletTransaction{}, apperr.Validation("vip_status", "vip subscription is not active")
	}
	if errCtx := ctx.Err(); errCtx != nil {
		return models.WalletTransaction{}, errCtx
	}

	var row models.WalletTransaction
	errTx := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, errLoad := t.loadUser(ctx, tx, userID, true)
		if errLoad != nil {
			return errLoad
		}
		if !user.VIP.ActiveAt(t.now()) {
			return apperr.Validation("vip_status", "vip subscription is not active")
		}
		amount := MonthlyReturnAmount(user.VIP.Price, user.VIP.MonthlyReturnRate)
		if amount <= 0 {
			return apperr.ErrInvalidAmount.WithReason("monthly return for %s rounds to %d", user.VIP.Level, amount)
		}
		appended, errAppend := t.ledger.AppendTx(ctx, tx, ledger.Entry{
			UserID:    userID,
			Kind:      models.TxKindMonthlyReturnCredit,
			Amount:    amount,
			Reference: models.MonthlyReturnReference(period),
		})
		if errAppend != nil {
			return errAppend
		}
		row = appended
		return nil
	})
	if errTx != nil {
		return models.WalletTransaction{}, errTx
	}

	_ = t.emitter.Emit(ctx, notify.Event{
		UserID:  userID,
		Type:    notify.TypeMonthlyReturnCredited,
		Title:   "Monthly return credited",
		Message: fmt.Sprintf("%d credited for %s.", row.Amount, period),
		RelatedData: map[string]any{
			"period":         period,
			"amount":         row.Amount,
			"transaction_id": row.ID,
		},
	})
	return row, nil
}

func (t *Tracker) loadUser(ctx context.Context, tx *gorm.DB, userID uint64, forUpdate bool) (models.User, error) {
	q := tx.WithContext(ctx)
	if forUpdate {
		q = dbpkg.ForUpdate(q)
	}
	var user models.User
	if errFind := q.First(&user, userID).Error; errFind != nil {
		if dbpkg.IsNotFound(errFind) {
			return models.User{}, apperr.ErrUnknownUser.WithReason("user %d does not exist", userID)
		}
		return models.User{}, fmt.Errorf("vip: load user: %w", errFind)
	}
	return user, nil
}

func statusOf(user models.User, now time.Time) Status {
	status := user.VIP.Status
	if status == "" {
		status = models.VipStatusNone
	}
	return Status{
		UserID:            user.ID,
		Level:             user.VIP.Level,
		Status:            status,
		Active:            user.VIP.ActiveAt(now),
		SubscriptionDate:  user.VIP.SubscriptionDate,
		ExpiryDate:        user.VIP.ExpiryDate,
		MonthlyReturnRate: user.VIP.MonthlyReturnRate,
		Price:             user.VIP.Price,
	}
}
