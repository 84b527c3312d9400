package notify

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/taskvip/walletcore/internal/models"
	"github.com/taskvip/walletcore/internal/settings"
	"gorm.io/gorm"
)

const (
	defaultRetentionInterval = 6 * time.Hour
	defaultDeleteBatchSize   = 1000
	maxDeleteBatchesPerRun   = 500
)

// RetentionCleaner periodically deletes read notifications older than
// NOTIFICATION_RETENTION_DAYS. Unread notifications are never removed.
type RetentionCleaner struct {
	db          *gorm.DB
	interval    time.Duration
	batchSize   int
	defaultDays int
	now         func() time.Time
}

// NewRetentionCleaner builds a cleaner; defaultDays applies when the setting is absent.
func NewRetentionCleaner(db *gorm.DB, defaultDays int) *RetentionCleaner {
	if db == nil {
		return nil
	}
	return &RetentionCleaner{
		db:          db,
		interval:    defaultRetentionInterval,
		batchSize:   defaultDeleteBatchSize,
		defaultDays: defaultDays,
		now:         time.Now,
	}
}

// Start launches the cleanup loop in a background goroutine.
func (c *RetentionCleaner) Start(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go c.run(ctx)
	log.Infof("notification retention cleaner started (interval=%s)", c.interval)
}

func (c *RetentionCleaner) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.CleanupOnce(ctx)
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// CleanupOnce runs a single pass and returns the number of deleted rows.
func (c *RetentionCleaner) CleanupOnce(ctx context.Context) int64 {
	if c == nil || c.db == nil {
		return 0
	}
	retentionDays := settings.Int(settings.NotificationRetentionDaysKey, c.defaultDays)
	if retentionDays <= 0 {
		return 0
	}
	cutoff := c.now().UTC().AddDate(0, 0, -retentionDays)

	deletedTotal := int64(0)
	for i := 0; i < maxDeleteBatchesPerRun; i++ {
		if ctx.Err() != nil {
			break
		}
		n, err := c.deleteBatch(ctx, cutoff)
		if err != nil {
			log.WithError(err).Warn("notification retention cleaner: delete batch failed")
			break
		}
		if n <= 0 {
			break
		}
		deletedTotal += n
	}
	if deletedTotal > 0 {
		log.Infof("notification retention cleaner: deleted %d rows (cutoff=%s retention_days=%d)", deletedTotal, cutoff.Format(time.RFC3339), retentionDays)
	}
	return deletedTotal
}

// deleteBatch selects ids first; MySQL rejects LIMIT inside an IN subquery.
func (c *RetentionCleaner) deleteBatch(ctx context.Context, cutoff time.Time) (int64, error) {
	var ids []uint64
	if errFind := c.db.WithContext(ctx).Model(&models.Notification{}).
		Where("read_at IS NOT NULL AND created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(c.batchSize).
		Pluck("id", &ids).Error; errFind != nil {
		return 0, errFind
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := c.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
