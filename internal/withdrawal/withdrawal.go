// Package withdrawal implements the withdrawal request lifecycle: submission,
// manager review and the single ledger debit written on completion.
package withdrawal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskvip/walletcore/internal/apperr"
	dbpkg "github.com/taskvip/walletcore/internal/db"
	"github.com/taskvip/walletcore/internal/ledger"
	"github.com/taskvip/walletcore/internal/lock"
	"github.com/taskvip/walletcore/internal/models"
	"github.com/taskvip/walletcore/internal/notify"
	"github.com/taskvip/walletcore/internal/settings"
	"github.com/taskvip/walletcore/internal/vip"
	"gorm.io/gorm"
)

// Manager actions.
const (
	ActionReview   = "review"
	ActionApprove  = "approve"
	ActionProcess  = "process"
	ActionComplete = "complete"
	ActionReject   = "reject"
)

// SubmitInput is a user's withdrawal request.
type SubmitInput struct {
	UserID  uint64
	Amount  int64
	Method  string
	Details json.RawMessage
}

// TransitionInput is a manager action on a withdrawal.
type TransitionInput struct {
	WithdrawalID   uint64
	ActorManagerID uint64
	Action         string
	Notes          string
	Reason         string // Rejection reason; Notes is used when empty.
}

// Filter narrows List.
type Filter struct {
	UserID    uint64
	Status    string
	ManagerID uint64
	Query     string
	Limit     int
	Offset    int
}

// Service runs the withdrawal state machine.
type Service struct {
	db         *gorm.DB
	ledger     *ledger.Store
	tracker    *vip.Tracker
	locker     lock.Locker
	emitter    notify.Emitter
	defaultMin int64
	now        func() time.Time
}

// NewService constructs a Service. defaultMin applies while the
// MIN_WITHDRAWAL_AMOUNT setting is unset.
func NewService(db *gorm.DB, ledgerStore *ledger.Store, tracker *vip.Tracker, emitter notify.Emitter, defaultMin int64) *Service {
	if emitter == nil {
		emitter = notify.Nop
	}
	if defaultMin <= 0 {
		defaultMin = settings.DefaultMinWithdrawalAmount
	}
	return &Service{
		db:         db,
		ledger:     ledgerStore,
		tracker:    tracker,
		locker:     ledgerStore.Locker(),
		emitter:    emitter,
		defaultMin: defaultMin,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// MinAmount returns the current minimum withdrawal amount.
func (s *Service) MinAmount() int64 {
	return settings.Int64(settings.MinWithdrawalAmountKey, s.defaultMin)
}

// NormalizeAction lower-cases action and resolves aliases.
func NormalizeAction(action string) string {
	action = strings.ToLower(strings.TrimSpace(action))
	switch action {
	case "mark_paid", "paid":
		return ActionComplete
	}
	return action
}

// Submit creates a pending withdrawal. The amount must be covered by the
// balance minus every withdrawal of the user that is still in flight.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (models.Withdrawal, error) {
	if in.Amount <= 0 {
		return models.Withdrawal{}, apperr.ErrInvalidAmount.WithReason("amount must be positive")
	}
	if minAmount := s.MinAmount(); in.Amount < minAmount {
		return models.Withdrawal{}, apperr.ErrInvalidAmount.WithReason("minimum withdrawal amount is %d", minAmount)
	}
	details, errDetails := DecodeDetails(in.Method, in.Details)
	if errDetails != nil {
		return models.Withdrawal{}, errDetails
	}
	detailsJSON, errMarshal := json.Marshal(details)
	if errMarshal != nil {
		return models.Withdrawal{}, fmt.Errorf("withdrawal: encode details: %w", errMarshal)
	}

	unlock, errLock := s.locker.Lock(ctx, lock.UserKey(in.UserID))
	if errLock != nil {
		return models.Withdrawal{}, errLock
	}
	defer unlock()

	status, errStatus := s.tracker.CurrentStatus(ctx, in.UserID)
	if errStatus != nil {
		return models.Withdrawal{}, errStatus
	}
	if !status.Active {
		return models.Withdrawal{}, apperr.Validation("vip_status", "an active vip subscription is required to withdraw")
	}
	if errCtx := ctx.Err(); errCtx != nil {
		return models.Withdrawal{}, errCtx
	}

	row := models.Withdrawal{
		RequestNo:      "wd-" + uuid.NewString(),
		UserID:         in.UserID,
		Amount:         in.Amount,
		PaymentMethod:  details.Method(),
		PaymentDetails: detailsJSON,
		Status:         models.WithdrawalPending,
		SubmittedAt:    s.now(),
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.User
		if errOwner := tx.Select("id", "disabled").First(&owner, in.UserID).Error; errOwner != nil {
			if dbpkg.IsNotFound(errOwner) {
				return apperr.ErrUnknownUser.WithReason("user %d does not exist", in.UserID)
			}
			return fmt.Errorf("withdrawal: load user: %w", errOwner)
		}
		if owner.Disabled {
			return apperr.ErrUserDisabled.WithReason("user %d is disabled", in.UserID)
		}
		balance, errBalance := s.ledger.BalanceTx(ctx, tx, in.UserID)
		if errBalance != nil {
			return errBalance
		}
		outstanding, errOutstanding := outstandingTx(ctx, tx, in.UserID)
		if errOutstanding != nil {
			return errOutstanding
		}
		if balance-outstanding < in.Amount {
			return apperr.ErrInsufficientBalance.WithReason("available %d (balance %d, pending %d) cannot cover %d", balance-outstanding, balance, outstanding, in.Amount)
		}
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("withdrawal: create: %w", errCreate)
		}
		return nil
	})
	if errTx != nil {
		return models.Withdrawal{}, errTx
	}

	s.emitStatus(ctx, row)
	return row, nil
}

// Transition applies a manager action. Completion writes the ledger debit and
// the status change in one transaction.
func (s *Service) Transition(ctx context.Context, in TransitionInput) (models.Withdrawal, error) {
	action := NormalizeAction(in.Action)
	switch action {
	case ActionReview, ActionApprove, ActionProcess, ActionComplete, ActionReject:
	default:
		return models.Withdrawal{}, apperr.ErrInvalidAction.WithReason("unknown action %q", in.Action)
	}
	if in.ActorManagerID == 0 {
		return models.Withdrawal{}, apperr.ErrPermissionDenied.WithReason("a manager is required")
	}

	current, errGet := s.Get(ctx, in.WithdrawalID)
	if errGet != nil {
		return models.Withdrawal{}, errGet
	}
	release, errLock := lock.Acquire(ctx, s.locker,
		lock.WithdrawalKey(current.ID),
		lock.UserKey(current.UserID),
		lock.ManagerKey(in.ActorManagerID),
	)
	if errLock != nil {
		return models.Withdrawal{}, errLock
	}
	defer release()
	if errCtx := ctx.Err(); errCtx != nil {
		return models.Withdrawal{}, errCtx
	}

	var out models.Withdrawal
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, errLoad := loadWithdrawal(ctx, tx, in.WithdrawalID, true)
		if errLoad != nil {
			return errLoad
		}
		actor, errActor := loadActor(ctx, tx, in.ActorManagerID)
		if errActor != nil {
			return errActor
		}
		if actor.UserID != nil && *actor.UserID == w.UserID {
			return apperr.ErrSelfAction.WithReason("manager %d cannot act on their own withdrawal", actor.ID)
		}
		if models.IsTerminalWithdrawalStatus(w.Status) {
			return apperr.ErrInvalidTransition.WithReason("withdrawal %d is %s", w.ID, w.Status)
		}

		now := s.now()
		updates := map[string]any{}
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			updates["manager_notes"] = notes
		}
		switch action {
		case ActionReview:
			if w.Status != models.WithdrawalPending {
				return invalidEdge(w, action)
			}
			updates["status"] = models.WithdrawalUnderReview
			updates["assigned_manager_id"] = actor.ID
			updates["reviewed_at"] = now
		case ActionApprove:
			if w.Status != models.WithdrawalUnderReview {
				return invalidEdge(w, action)
			}
			assigned := w.AssignedManagerID != nil && *w.AssignedManagerID == actor.ID
			if !assigned && !actor.Can(models.PermOverrideWithdrawalReview) {
				return apperr.ErrPermissionDenied.WithReason("only the reviewing manager can approve withdrawal %d", w.ID)
			}
			updates["status"] = models.WithdrawalApproved
		case ActionProcess:
			if w.Status != models.WithdrawalApproved {
				return invalidEdge(w, action)
			}
			updates["status"] = models.WithdrawalProcessing
		case ActionComplete:
			if w.Status != models.WithdrawalApproved && w.Status != models.WithdrawalProcessing {
				return invalidEdge(w, action)
			}
			if _, errAppend := s.ledger.AppendTx(ctx, tx, ledger.Entry{
				UserID:    w.UserID,
				Kind:      models.TxKindWithdrawalDebit,
				Amount:    -w.Amount,
				Reference: w.DebitReference(),
			}); errAppend != nil {
				if apperr.KindOf(errAppend) == apperr.KindConflict {
					return apperr.Consistency("withdrawal %d is %s but its debit is already recorded", w.ID, w.Status).Wrap(errAppend)
				}
				return errAppend
			}
			updates["status"] = models.WithdrawalCompleted
			updates["processed_at"] = now
		case ActionReject:
			reason := strings.TrimSpace(in.Reason)
			if reason == "" {
				reason = strings.TrimSpace(in.Notes)
			}
			if reason == "" {
				return apperr.Validation("reason", "a rejection reason is required")
			}
			updates["status"] = models.WithdrawalRejected
			updates["rejection_reason"] = reason
			updates["processed_at"] = now
		}

		if errUpdate := setStatus(ctx, tx, w, updates); errUpdate != nil {
			return errUpdate
		}
		reloaded, errReload := loadWithdrawal(ctx, tx, w.ID, false)
		if errReload != nil {
			return errReload
		}
		out = reloaded
		return nil
	})
	if errTx != nil {
		return models.Withdrawal{}, errTx
	}

	s.emitStatus(ctx, out)
	return out, nil
}

// Cancel lets the owner withdraw a request that no manager has picked up.
func (s *Service) Cancel(ctx context.Context, withdrawalID, userID uint64) (models.Withdrawal, error) {
	release, errLock := lock.Acquire(ctx, s.locker, lock.WithdrawalKey(withdrawalID), lock.UserKey(userID))
	if errLock != nil {
		return models.Withdrawal{}, errLock
	}
	defer release()
	if errCtx := ctx.Err(); errCtx != nil {
		return models.Withdrawal{}, errCtx
	}

	var out models.Withdrawal
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, errLoad := loadWithdrawal(ctx, tx, withdrawalID, true)
		if errLoad != nil {
			return errLoad
		}
		if w.UserID != userID {
			return apperr.ErrNotOwner
		}
		if w.Status != models.WithdrawalPending {
			return apperr.ErrInvalidTransition.WithReason("only pending withdrawals can be cancelled, %d is %s", w.ID, w.Status)
		}
		if errUpdate := setStatus(ctx, tx, w, map[string]any{
			"status":       models.WithdrawalCancelled,
			"processed_at": s.now(),
		}); errUpdate != nil {
			return errUpdate
		}
		reloaded, errReload := loadWithdrawal(ctx, tx, w.ID, false)
		if errReload != nil {
			return errReload
		}
		out = reloaded
		return nil
	})
	if errTx != nil {
		return models.Withdrawal{}, errTx
	}

	s.emitStatus(ctx, out)
	return out, nil
}

// Reconcile compares the withdrawal status with the existence of its debit.
// A debit recorded for an approved or processing request finishes the status
// update; any other disagreement is reported as a consistency error.
func (s *Service) Reconcile(ctx context.Context, withdrawalID uint64) (models.Withdrawal, error) {
	current, errGet := s.Get(ctx, withdrawalID)
	if errGet != nil {
		return models.Withdrawal{}, errGet
	}
	release, errLock := lock.Acquire(ctx, s.locker, lock.WithdrawalKey(current.ID), lock.UserKey(current.UserID))
	if errLock != nil {
		return models.Withdrawal{}, errLock
	}
	defer release()
	if errCtx := ctx.Err(); errCtx != nil {
		return models.Withdrawal{}, errCtx
	}

	var (
		out     models.Withdrawal
		changed bool
	)
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, errLoad := loadWithdrawal(ctx, tx, withdrawalID, true)
		if errLoad != nil {
			return errLoad
		}
		debit, errDebit := s.ledger.FindByReferenceTx(ctx, tx, w.UserID, models.TxKindWithdrawalDebit, w.DebitReference())
		hasDebit := errDebit == nil
		if errDebit != nil && apperr.KindOf(errDebit) != apperr.KindNotFound {
			return errDebit
		}
		out = w

		switch {
		case hasDebit && debit.Amount != -w.Amount:
			return apperr.Consistency("withdrawal %d debit is %d, expected %d", w.ID, debit.Amount, -w.Amount)
		case hasDebit && (w.Status == models.WithdrawalApproved || w.Status == models.WithdrawalProcessing):
			if errUpdate := setStatus(ctx, tx, w, map[string]any{
				"status":       models.WithdrawalCompleted,
				"processed_at": s.now(),
			}); errUpdate != nil {
				return errUpdate
			}
			reloaded, errReload := loadWithdrawal(ctx, tx, w.ID, false)
			if errReload != nil {
				return errReload
			}
			out = reloaded
			changed = true
		case hasDebit && w.Status != models.WithdrawalCompleted:
			return apperr.Consistency("withdrawal %d is %s but its debit is recorded", w.ID, w.Status)
		case !hasDebit && w.Status == models.WithdrawalCompleted:
			return apperr.Consistency("withdrawal %d is completed without a debit", w.ID)
		}
		return nil
	})
	if errTx != nil {
		return models.Withdrawal{}, errTx
	}

	if changed {
		s.emitStatus(ctx, out)
	}
	return out, nil
}

// Get loads a withdrawal by id.
func (s *Service) Get(ctx context.Context, withdrawalID uint64) (models.Withdrawal, error) {
	return loadWithdrawal(ctx, s.db, withdrawalID, false)
}

// List returns withdrawals newest first plus the total count.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Withdrawal, int64, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	q := s.db.WithContext(ctx).Model(&models.Withdrawal{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if status := strings.ToLower(strings.TrimSpace(f.Status)); status != "" {
		if !isKnownStatus(status) {
			return nil, 0, apperr.Validation("status", "unknown withdrawal status")
		}
		q = q.Where("status = ?", status)
	}
	if f.ManagerID != 0 {
		q = q.Where("assigned_manager_id = ?", f.ManagerID)
	}
	if query := strings.TrimSpace(f.Query); query != "" {
		pattern := dbpkg.NormalizeLikePattern(s.db, "%"+query+"%")
		q = q.Where(
			s.db.Where(dbpkg.CaseInsensitiveLikeExpr(s.db, "request_no"), pattern).
				Or(dbpkg.CaseInsensitiveLikeExpr(s.db, dbpkg.JSONExtractTextExpr(s.db, "payment_details", "upi_id")), pattern).
				Or(dbpkg.CaseInsensitiveLikeExpr(s.db, dbpkg.JSONExtractTextExpr(s.db, "payment_details", "holder_name")), pattern),
		)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("withdrawal: count: %w", errCount)
	}
	var rows []models.Withdrawal
	if errFind := q.Order("submitted_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&rows).Error; errFind != nil {
		return nil, 0, fmt.Errorf("withdrawal: list: %w", errFind)
	}
	return rows, total, nil
}

func (s *Service) emitStatus(ctx context.Context, w models.Withdrawal) {
	title := "Withdrawal " + strings.ReplaceAll(w.Status, "_", " ")
	message := fmt.Sprintf("Your withdrawal %s of %d is now %s.", w.RequestNo, w.Amount, strings.ReplaceAll(w.Status, "_", " "))
	typ := notify.WithdrawalType(w.Status)
	if w.Status == models.WithdrawalPending {
		typ = notify.TypeWithdrawalSubmitted
		title = "Withdrawal submitted"
		message = fmt.Sprintf("Your withdrawal %s of %d was received.", w.RequestNo, w.Amount)
	}
	if w.Status == models.WithdrawalRejected && w.RejectionReason != "" {
		message += " Reason: " + w.RejectionReason
	}
	_ = s.emitter.Emit(ctx, notify.Event{
		UserID:  w.UserID,
		Type:    typ,
		Title:   title,
		Message: message,
		RelatedData: map[string]any{
			"withdrawal_id": w.ID,
			"request_no":    w.RequestNo,
			"amount":        w.Amount,
			"status":        w.Status,
		},
	})
}

func outstandingTx(ctx context.Context, tx *gorm.DB, userID uint64) (int64, error) {
	var sum int64
	if errSum := tx.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("user_id = ? AND status IN ?", userID, models.NonTerminalWithdrawalStatuses).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error; errSum != nil {
		return 0, fmt.Errorf("withdrawal: sum outstanding: %w", errSum)
	}
	return sum, nil
}

func loadWithdrawal(ctx context.Context, tx *gorm.DB, id uint64, forUpdate bool) (models.Withdrawal, error) {
	q := tx.WithContext(ctx)
	if forUpdate {
		q = dbpkg.ForUpdate(q)
	}
	var w models.Withdrawal
	if errFind := q.First(&w, id).Error; errFind != nil {
		if dbpkg.IsNotFound(errFind) {
			return models.Withdrawal{}, apperr.NotFound("withdrawal")
		}
		return models.Withdrawal{}, fmt.Errorf("withdrawal: load: %w", errFind)
	}
	return w, nil
}

func loadActor(ctx context.Context, tx *gorm.DB, managerID uint64) (models.Manager, error) {
	var m models.Manager
	if errFind := tx.WithContext(ctx).First(&m, managerID).Error; errFind != nil {
		if dbpkg.IsNotFound(errFind) {
			return models.Manager{}, apperr.NotFound("manager")
		}
		return models.Manager{}, fmt.Errorf("withdrawal: load manager: %w", errFind)
	}
	if !m.Active {
		return models.Manager{}, apperr.ErrManagerInactive.WithReason("manager %d is inactive", m.ID)
	}
	if !m.Can(models.PermManageWithdrawals) {
		return models.Manager{}, apperr.ErrPermissionDenied.WithReason("manager %d lacks %s", m.ID, models.PermManageWithdrawals)
	}
	return m, nil
}

// setStatus writes updates only if the row still holds the status it was read with.
func setStatus(ctx context.Context, tx *gorm.DB, w models.Withdrawal, updates map[string]any) error {
	res := tx.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", w.ID, w.Status).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("withdrawal: update: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return apperr.ErrInvalidTransition.WithReason("withdrawal %d changed concurrently", w.ID)
	}
	return nil
}

func invalidEdge(w models.Withdrawal, action string) error {
	return apperr.ErrInvalidTransition.WithReason("cannot %s withdrawal %d in status %s", action, w.ID, w.Status)
}

func isKnownStatus(status string) bool {
	if models.IsTerminalWithdrawalStatus(status) {
		return true
	}
	for _, s := range models.NonTerminalWithdrawalStatuses {
		if s == status {
			return true
		}
	}
	return false
}
