package campaign

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Umareee/messenger-crm/internal/store"
)

// DefaultSchedulerInterval is how often the scheduler scans for due
// campaigns. Scheduled send times are minute-granular, so a coarse tick
// is plenty.
const DefaultSchedulerInterval = 15 * time.Second

// Scheduler dispatches scheduled campaigns once their send time
// arrives. A campaign whose dispatch fails stays scheduled (via the
// reconciler's compensating transition) and is retried on a later pass.
type Scheduler struct {
	db         *store.DB
	reconciler *Reconciler
	logger     *zap.Logger
	userID     string
	interval   time.Duration
	cancel     context.CancelFunc
}

// NewScheduler creates a scheduler. interval <= 0 uses
// DefaultSchedulerInterval.
func NewScheduler(db *store.DB, reconciler *Reconciler, logger *zap.Logger, userID string, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	return &Scheduler{
		db:         db,
		reconciler: reconciler,
		logger:     logger,
		userID:     userID,
		interval:   interval,
	}
}

// Start begins the scan loop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.dispatchDue(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the scan loop.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context) {
	due, err := s.db.DueScheduledCampaigns(s.userID, time.Now())
	if err != nil {
		s.logger.Error("failed to scan for due campaigns", zap.Error(err))
		return
	}
	for _, c := range due {
		if err := s.reconciler.Start(ctx, c.ID); err != nil {
			s.logger.Warn("due campaign dispatch failed, will retry",
				zap.String("campaign_id", c.ID), zap.Error(err))
		}
	}
}
