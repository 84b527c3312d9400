package vip

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/taskvip/walletcore/internal/models"
)

const (
	defaultExpiryPollInterval = 5 * time.Minute
	defaultExpiryBatchSize    = 200
	maxConcurrentExpiries     = 5
)

// ExpiryPoller expires lapsed subscriptions in the background so users get
// vip_expired without first touching their status.
type ExpiryPoller struct {
	tracker   *Tracker
	interval  time.Duration
	batchSize int
}

// NewExpiryPoller constructs a poller over tracker.
func NewExpiryPoller(tracker *Tracker) *ExpiryPoller {
	if tracker == nil || tracker.db == nil {
		return nil
	}
	return &ExpiryPoller{
		tracker:   tracker,
		interval:  defaultExpiryPollInterval,
		batchSize: defaultExpiryBatchSize,
	}
}

// Start launches the polling loop in a background goroutine.
func (p *ExpiryPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go p.run(ctx)
	log.Infof("vip expiry poller started (interval=%s)", p.interval)
}

func (p *ExpiryPoller) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.PollOnce(ctx)
		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// PollOnce expires one batch of lapsed subscriptions and returns how many it visited.
func (p *ExpiryPoller) PollOnce(ctx context.Context) int {
	if p == nil {
		return 0
	}
	var ids []uint64
	errFind := p.tracker.db.WithContext(ctx).Model(&models.User{}).
		Where("vip_expiry_date IS NOT NULL AND vip_expiry_date < ? AND vip_status <> ?", p.tracker.now(), models.VipStatusExpired).
		Order("id ASC").
		Limit(p.batchSize).
		Pluck("id", &ids).Error
	if errFind != nil {
		log.WithError(errFind).Warn("vip expiry poller: load lapsed users failed")
		return 0
	}

	sem := make(chan struct{}, maxConcurrentExpiries)
	var wg sync.WaitGroup
	visited := 0
	for _, id := range ids {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return visited
		}
		visited++
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, errStatus := p.tracker.CurrentStatus(ctx, userID); errStatus != nil {
				log.WithError(errStatus).Warnf("vip expiry poller: expire user %d failed", userID)
			}
		}(id)
	}
	wg.Wait()
	return visited
}
