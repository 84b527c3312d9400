// Package registry keeps each manager's VIP assignment set and its capacity limit.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/taskvip/walletcore/internal/apperr"
	dbpkg "github.com/taskvip/walletcore/internal/db"
	"github.com/taskvip/walletcore/internal/lock"
	"github.com/taskvip/walletcore/internal/models"
	"github.com/taskvip/walletcore/internal/notify"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Capacity is a manager's workload snapshot.
type Capacity struct {
	ManagerID    uint64   `json:"manager_id"`
	Current      int      `json:"current"`
	Max          int      `json:"max"`
	Free         int      `json:"free"`
	AssignedVIPs []uint64 `json:"assigned_vips"`
}

// Registry mutates manager assignment sets.
type Registry struct {
	db      *gorm.DB
	locker  lock.Locker
	emitter notify.Emitter
}

// New constructs a Registry.
func New(db *gorm.DB, locker lock.Locker, emitter notify.Emitter) *Registry {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if emitter == nil {
		emitter = notify.Nop
	}
	return &Registry{db: db, locker: locker, emitter: emitter}
}

// Assign adds vipUserID to the manager's set when the manager is active, the
// VIP is not owned by anyone and the manager has a free slot.
func (r *Registry) Assign(ctx context.Context, managerID, vipUserID uint64) error {
	release, errLock := lock.Acquire(ctx, r.locker, lock.UserKey(vipUserID), lock.ManagerKey(managerID))
	if errLock != nil {
		return errLock
	}
	defer release()
	if errCtx := ctx.Err(); errCtx != nil {
		return errCtx
	}

	var manager models.Manager
	errTx := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, errLoad := loadManager(ctx, tx, managerID)
		if errLoad != nil {
			return errLoad
		}
		if !loaded.Active {
			return apperr.ErrManagerInactive.WithReason("manager %d is inactive", managerID)
		}
		if errUser := requireUser(ctx, tx, vipUserID); errUser != nil {
			return errUser
		}
		ids, errIDs := loaded.AssignedVIPIDs()
		if errIDs != nil {
			return fmt.Errorf("registry: decode assigned_vips: %w", errIDs)
		}
		if slices.Contains(ids, vipUserID) {
			return apperr.ErrAlreadyAssigned.WithReason("vip %d already assigned to manager %d", vipUserID, managerID)
		}
		owner, owned, errOwner := ownerOf(ctx, tx, vipUserID)
		if errOwner != nil {
			return errOwner
		}
		if owned {
			return apperr.ErrAlreadyAssigned.WithReason("vip %d already assigned to manager %d", vipUserID, owner)
		}
		if len(ids) >= loaded.MaxVipCapacity {
			return apperr.ErrCapacityExceeded.WithReason("manager %d is at capacity %d", managerID, loaded.MaxVipCapacity)
		}
		if errWrite := writeAssignments(ctx, tx, managerID, append(ids, vipUserID)); errWrite != nil {
			return errWrite
		}
		manager = loaded
		return nil
	})
	if errTx != nil {
		return errTx
	}

	_ = r.emitter.Emit(ctx, notify.Event{
		UserID:  vipUserID,
		Type:    notify.TypeVIPAssigned,
		Title:   "Account manager assigned",
		Message: fmt.Sprintf("%s is now your account manager.", manager.Name),
		RelatedData: map[string]any{
			"manager_id":   managerID,
			"manager_name": manager.Name,
		},
	})
	return nil
}

// Unassign removes vipUserID from the manager's set.
func (r *Registry) Unassign(ctx context.Context, managerID, vipUserID uint64) error {
	release, errLock := lock.Acquire(ctx, r.locker, lock.UserKey(vipUserID), lock.ManagerKey(managerID))
	if errLock != nil {
		return errLock
	}
	defer release()
	if errCtx := ctx.Err(); errCtx != nil {
		return errCtx
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		manager, errLoad := loadManager(ctx, tx, managerID)
		if errLoad != nil {
			return errLoad
		}
		ids, errIDs := manager.AssignedVIPIDs()
		if errIDs != nil {
			return fmt.Errorf("registry: decode assigned_vips: %w", errIDs)
		}
		idx := slices.Index(ids, vipUserID)
		if idx < 0 {
			return apperr.ErrNotAssigned.WithReason("vip %d is not assigned to manager %d", vipUserID, managerID)
		}
		return writeAssignments(ctx, tx, managerID, slices.Delete(ids, idx, idx+1))
	})
}

// DeleteManager removes a manager that owns no VIPs and no in-flight withdrawals.
// Terminal withdrawals keep their assigned_manager_id as a dangling weak reference.
func (r *Registry) DeleteManager(ctx context.Context, managerID uint64) error {
	unlock, errLock := r.locker.Lock(ctx, lock.ManagerKey(managerID))
	if errLock != nil {
		return errLock
	}
	defer unlock()
	if errCtx := ctx.Err(); errCtx != nil {
		return errCtx
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		manager, errLoad := loadManager(ctx, tx, managerID)
		if errLoad != nil {
			return errLoad
		}
		ids, errIDs := manager.AssignedVIPIDs()
		if errIDs != nil {
			return fmt.Errorf("registry: decode assigned_vips: %w", errIDs)
		}
		if len(ids) > 0 {
			return apperr.ErrHasActiveAssignments.WithReason("manager %d still has %d vip users", managerID, len(ids))
		}
		var inFlight int64
		if errCount := tx.Model(&models.Withdrawal{}).
			Where("assigned_manager_id = ? AND status IN ?", managerID, models.NonTerminalWithdrawalStatuses).
			Count(&inFlight).Error; errCount != nil {
			return fmt.Errorf("registry: count withdrawals: %w", errCount)
		}
		if inFlight > 0 {
			return apperr.ErrHasActiveAssignments.WithReason("manager %d still reviews %d withdrawals", managerID, inFlight)
		}
		if errDelete := tx.Delete(&models.Manager{}, managerID).Error; errDelete != nil {
			return fmt.Errorf("registry: delete manager: %w", errDelete)
		}
		return nil
	})
}

// Capacity reports the manager's current workload.
func (r *Registry) Capacity(ctx context.Context, managerID uint64) (Capacity, error) {
	manager, errLoad := loadManager(ctx, r.db, managerID)
	if errLoad != nil {
		return Capacity{}, errLoad
	}
	ids, errIDs := manager.AssignedVIPIDs()
	if errIDs != nil {
		return Capacity{}, fmt.Errorf("registry: decode assigned_vips: %w", errIDs)
	}
	free := manager.MaxVipCapacity - len(ids)
	if free < 0 {
		free = 0
	}
	return Capacity{
		ManagerID:    manager.ID,
		Current:      manager.CurrentVipCount,
		Max:          manager.MaxVipCapacity,
		Free:         free,
		AssignedVIPs: ids,
	}, nil
}

// ManagerOf returns the manager owning vipUserID, if any.
func (r *Registry) ManagerOf(ctx context.Context, vipUserID uint64) (uint64, bool, error) {
	return ownerOf(ctx, r.db, vipUserID)
}

// AutoAssign hands vipUserID to the active manager with the most free slots
// (lowest id on ties). It fails with CapacityExceeded when nobody has room.
func (r *Registry) AutoAssign(ctx context.Context, vipUserID uint64) (uint64, error) {
	if owner, owned, errOwner := ownerOf(ctx, r.db, vipUserID); errOwner != nil {
		return 0, errOwner
	} else if owned {
		return owner, apperr.ErrAlreadyAssigned.WithReason("vip %d already assigned to manager %d", vipUserID, owner)
	}

	var candidates []models.Manager
	if errFind := r.db.WithContext(ctx).
		Where("active = ? AND current_vip_count < max_vip_capacity", true).
		Order("max_vip_capacity - current_vip_count DESC").
		Order("id ASC").
		Find(&candidates).Error; errFind != nil {
		return 0, fmt.Errorf("registry: find candidates: %w", errFind)
	}
	for _, candidate := range candidates {
		errAssign := r.Assign(ctx, candidate.ID, vipUserID)
		switch {
		case errAssign == nil:
			return candidate.ID, nil
		case apperr.KindOf(errAssign) == apperr.KindCapacityExceeded,
			apperr.KindOf(errAssign) == apperr.KindAuthorization:
			// Slot taken concurrently or manager deactivated.
			continue
		default:
			return 0, errAssign
		}
	}
	return 0, apperr.ErrCapacityExceeded.WithReason("no active manager has free capacity")
}

func loadManager(ctx context.Context, tx *gorm.DB, managerID uint64) (models.Manager, error) {
	var manager models.Manager
	if errFind := dbpkg.ForUpdate(tx.WithContext(ctx)).First(&manager, managerID).Error; errFind != nil {
		if dbpkg.IsNotFound(errFind) {
			return models.Manager{}, apperr.NotFound("manager")
		}
		return models.Manager{}, fmt.Errorf("registry: load manager: %w", errFind)
	}
	return manager, nil
}

func requireUser(ctx context.Context, tx *gorm.DB, userID uint64) error {
	var n int64
	if errCount := tx.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; errCount != nil {
		return fmt.Errorf("registry: load user: %w", errCount)
	}
	if n == 0 {
		return apperr.ErrUnknownUser.WithReason("user %d does not exist", userID)
	}
	return nil
}

// ownerOf scans assignment sets for vipUserID. Callers mutating sets hold the
// VIP's user lock, so the answer cannot change underneath them.
func ownerOf(ctx context.Context, tx *gorm.DB, vipUserID uint64) (uint64, bool, error) {
	var managers []models.Manager
	if errFind := tx.WithContext(ctx).
		Select("id", "assigned_vips").
		Where("current_vip_count > 0").
		Find(&managers).Error; errFind != nil {
		return 0, false, fmt.Errorf("registry: scan assignments: %w", errFind)
	}
	for _, m := range managers {
		ids, errIDs := m.AssignedVIPIDs()
		if errIDs != nil {
			return 0, false, fmt.Errorf("registry: decode assigned_vips for manager %d: %w", m.ID, errIDs)
		}
		if slices.Contains(ids, vipUserID) {
			return m.ID, true, nil
		}
	}
	return 0, false, nil
}

// writeAssignments stores the set and its count in one statement.
func writeAssignments(ctx context.Context, tx *gorm.DB, managerID uint64, ids []uint64) error {
	if ids == nil {
		ids = []uint64{}
	}
	raw, errMarshal := json.Marshal(ids)
	if errMarshal != nil {
		return errMarshal
	}
	res := tx.WithContext(ctx).Model(&models.Manager{}).Where("id = ?", managerID).Updates(map[string]any{
		"assigned_vips":     datatypes.JSON(raw),
		"current_vip_count": len(ids),
	})
	if res.Error != nil {
		return fmt.Errorf("registry: write assignments: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("manager")
	}
	return nil
}
