// Package ledger is the append-only wallet history. A user's balance is always
// the sum of their entries; nothing else stores it.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskvip/walletcore/internal/apperr"
	dbpkg "github.com/taskvip/walletcore/internal/db"
	"github.com/taskvip/walletcore/internal/lock"
	"github.com/taskvip/walletcore/internal/models"
	"gorm.io/gorm"
)

// Entry is a ledger write request.
type Entry struct {
	UserID    uint64
	Kind      string
	Amount    int64
	Reference string
}

// Summary is the read model of a balance. Raw is authoritative.
type Summary struct {
	UserID    uint64 `json:"user_id"`
	Raw       int64  `json:"raw"`
	Available int64  `json:"available"`
	Negative  bool   `json:"negative"`
}

// ListOptions filters List.
type ListOptions struct {
	Kind   string
	Limit  int
	Offset int
}

// Store reads and appends wallet transactions.
type Store struct {
	db     *gorm.DB
	locker lock.Locker
}

// NewStore constructs a Store. locker serializes appends per user.
func NewStore(db *gorm.DB, locker lock.Locker) *Store {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Store{db: db, locker: locker}
}

// Locker exposes the locker so callers composing larger units share it.
func (s *Store) Locker() lock.Locker { return s.locker }

// Append takes the user lock and records e in its own transaction.
func (s *Store) Append(ctx context.Context, e Entry) (models.WalletTransaction, error) {
	if errValidate := validate(e); errValidate != nil {
		return models.WalletTransaction{}, errValidate
	}
	unlock, errLock := s.locker.Lock(ctx, lock.UserKey(e.UserID))
	if errLock != nil {
		return models.WalletTransaction{}, errLock
	}
	defer unlock()
	if errCtx := ctx.Err(); errCtx != nil {
		return models.WalletTransaction{}, errCtx
	}

	var out models.WalletTransaction
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, errAppend := s.AppendTx(ctx, tx, e)
		if errAppend != nil {
			return errAppend
		}
		out = row
		return nil
	})
	if errTx != nil {
		return models.WalletTransaction{}, errTx
	}
	return out, nil
}

// AppendTx records e inside tx. The caller must hold the user lock.
func (s *Store) AppendTx(ctx context.Context, tx *gorm.DB, e Entry) (models.WalletTransaction, error) {
	if errValidate := validate(e); errValidate != nil {
		return models.WalletTransaction{}, errValidate
	}
	tx = tx.WithContext(ctx)

	var user models.User
	if errFind := dbpkg.ForUpdate(tx).Select("id").First(&user, e.UserID).Error; errFind != nil {
		if dbpkg.IsNotFound(errFind) {
			return models.WalletTransaction{}, apperr.ErrUnknownUser.WithReason("user %d does not exist", e.UserID)
		}
		return models.WalletTransaction{}, fmt.Errorf("ledger: load user: %w", errFind)
	}

	var dup int64
	if errCount := tx.Model(&models.WalletTransaction{}).
		Where("user_id = ? AND kind = ? AND reference = ?", e.UserID, e.Kind, e.Reference).
		Count(&dup).Error; errCount != nil {
		return models.WalletTransaction{}, fmt.Errorf("ledger: check reference: %w", errCount)
	}
	if dup > 0 {
		return models.WalletTransaction{}, apperr.ErrDuplicateReference.WithReason("%s %s already recorded", e.Kind, e.Reference)
	}

	if e.Amount < 0 {
		balance, errBalance := s.BalanceTx(ctx, tx, e.UserID)
		if errBalance != nil {
			return models.WalletTransaction{}, errBalance
		}
		if balance+e.Amount < 0 {
			return models.WalletTransaction{}, apperr.ErrInsufficientBalance.WithReason("balance %d cannot cover %d", balance, -e.Amount)
		}
	}

	row := models.WalletTransaction{
		UserID:    e.UserID,
		Kind:      e.Kind,
		Amount:    e.Amount,
		Reference: e.Reference,
	}
	if errCreate := tx.Create(&row).Error; errCreate != nil {
		if dbpkg.IsUniqueViolation(errCreate) {
			return models.WalletTransaction{}, apperr.ErrDuplicateReference.WithReason("%s %s already recorded", e.Kind, e.Reference)
		}
		return models.WalletTransaction{}, fmt.Errorf("ledger: insert: %w", errCreate)
	}
	return row, nil
}

// Balance returns the raw signed sum for an existing user.
func (s *Store) Balance(ctx context.Context, userID uint64) (int64, error) {
	if errExists := s.requireUser(ctx, userID); errExists != nil {
		return 0, errExists
	}
	return s.BalanceTx(ctx, s.db, userID)
}

// BalanceTx sums the user's entries using tx. It does not check the user exists.
func (s *Store) BalanceTx(ctx context.Context, tx *gorm.DB, userID uint64) (int64, error) {
	var sum int64
	if errSum := tx.WithContext(ctx).Model(&models.WalletTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error; errSum != nil {
		return 0, fmt.Errorf("ledger: sum: %w", errSum)
	}
	return sum, nil
}

// Summary returns the display view of the balance.
func (s *Store) Summary(ctx context.Context, userID uint64) (Summary, error) {
	raw, errBalance := s.Balance(ctx, userID)
	if errBalance != nil {
		return Summary{}, errBalance
	}
	out := Summary{UserID: userID, Raw: raw, Available: raw, Negative: raw < 0}
	if out.Available < 0 {
		out.Available = 0
	}
	return out, nil
}

// Verify reports a consistency error when the user's raw balance is negative.
func (s *Store) Verify(ctx context.Context, userID uint64) error {
	raw, errBalance := s.Balance(ctx, userID)
	if errBalance != nil {
		return errBalance
	}
	if raw < 0 {
		return apperr.Consistency("user %d has negative balance %d", userID, raw)
	}
	return nil
}

// List returns the user's entries newest first plus the total count.
func (s *Store) List(ctx context.Context, userID uint64, opts ListOptions) ([]models.WalletTransaction, int64, error) {
	if errExists := s.requireUser(ctx, userID); errExists != nil {
		return nil, 0, errExists
	}
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	q := s.db.WithContext(ctx).Model(&models.WalletTransaction{}).Where("user_id = ?", userID)
	if kind := strings.TrimSpace(opts.Kind); kind != "" {
		if !isKnownKind(kind) {
			return nil, 0, apperr.Validation("kind", "unknown transaction kind")
		}
		q = q.Where("kind = ?", kind)
	}
	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("ledger: count: %w", errCount)
	}
	var rows []models.WalletTransaction
	if errFind := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&rows).Error; errFind != nil {
		return nil, 0, fmt.Errorf("ledger: list: %w", errFind)
	}
	return rows, total, nil
}

// FindByReference returns the entry recorded under (userID, kind, reference).
func (s *Store) FindByReference(ctx context.Context, userID uint64, kind, reference string) (models.WalletTransaction, error) {
	return s.FindByReferenceTx(ctx, s.db, userID, kind, reference)
}

// FindByReferenceTx is FindByReference inside tx.
func (s *Store) FindByReferenceTx(ctx context.Context, tx *gorm.DB, userID uint64, kind, reference string) (models.WalletTransaction, error) {
	var row models.WalletTransaction
	errFind := tx.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND reference = ?", userID, kind, reference).
		First(&row).Error
	if errFind != nil {
		if dbpkg.IsNotFound(errFind) {
			return models.WalletTransaction{}, apperr.NotFound("wallet_transaction")
		}
		return models.WalletTransaction{}, fmt.Errorf("ledger: find reference: %w", errFind)
	}
	return row, nil
}

func (s *Store) requireUser(ctx context.Context, userID uint64) error {
	var n int64
	if errCount := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; errCount != nil {
		return fmt.Errorf("ledger: load user: %w", errCount)
	}
	if n == 0 {
		return apperr.ErrUnknownUser.WithReason("user %d does not exist", userID)
	}
	return nil
}

func validate(e Entry) error {
	if e.UserID == 0 {
		return apperr.ErrUnknownUser
	}
	if !isKnownKind(e.Kind) {
		return apperr.Validation("kind", "unknown transaction kind "+e.Kind)
	}
	if strings.TrimSpace(e.Reference) == "" {
		return apperr.Validation("reference", "reference is required")
	}
	switch {
	case e.Amount == 0:
		return apperr.ErrInvalidAmount.WithReason("amount must be non-zero")
	case models.IsCreditKind(e.Kind) && e.Amount < 0:
		return apperr.ErrInvalidAmount.WithReason("%s must be positive", e.Kind)
	case models.IsDebitKind(e.Kind) && e.Amount > 0:
		return apperr.ErrInvalidAmount.WithReason("%s must be negative", e.Kind)
	}
	return nil
}

func isKnownKind(kind string) bool {
	return models.IsCreditKind(kind) || models.IsDebitKind(kind)
}
