package bridge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is how often progress is pulled while a campaign
// is active. Push delivery cannot be guaranteed in every execution
// context, so the poll path runs alongside it.
const DefaultPollInterval = 2 * time.Second

// Tracker merges progress snapshots for one campaign, regardless of
// whether push or poll delivered them. The reducer replaces the whole
// previous snapshot with the newer one and never increments anything, so
// the same logical update arriving on both paths cannot double-count.
//
// Completion is a true active→inactive transition: an inactive snapshot
// seen before any active one is the companion's idle state, not a
// just-finished campaign, and does not fire the completion callback.
type Tracker struct {
	mu         sync.Mutex
	campaignID string
	last       Snapshot
	hasLast    bool
	everActive bool
	done       bool
	onUpdate   func(Snapshot)
	onComplete func(Snapshot)
}

// NewTracker creates a tracker for one campaign. onUpdate fires for
// every accepted snapshot; onComplete fires exactly once, on the
// active→inactive transition. Either callback may be nil.
func NewTracker(campaignID string, onUpdate, onComplete func(Snapshot)) *Tracker {
	return &Tracker{
		campaignID: campaignID,
		onUpdate:   onUpdate,
		onComplete: onComplete,
	}
}

// CampaignID returns the campaign this tracker observes.
func (t *Tracker) CampaignID() string {
	return t.campaignID
}

// Offer feeds one snapshot into the reducer.
func (t *Tracker) Offer(s Snapshot) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	// A poll result can race a fresher push; drop snapshots that would
	// move the index backwards mid-run.
	if t.hasLast && s.Active && t.last.Active && s.CurrentIndex < t.last.CurrentIndex {
		t.mu.Unlock()
		return
	}

	completed := t.everActive && !s.Active
	t.last = s
	t.hasLast = true
	if s.Active {
		t.everActive = true
	}
	if completed {
		t.done = true
	}
	onUpdate, onComplete := t.onUpdate, t.onComplete
	t.mu.Unlock()

	if onUpdate != nil {
		onUpdate(s)
	}
	if completed && onComplete != nil {
		onComplete(s)
	}
}

// Done reports whether the completion transition has been observed.
func (t *Tracker) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Last returns the most recent accepted snapshot, if any.
func (t *Tracker) Last() (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.hasLast
}

// ProgressFetcher pulls the companion's current progress snapshot.
type ProgressFetcher interface {
	FetchProgress(ctx context.Context) (*Snapshot, error)
}

// Poller pulls progress on a fixed interval and feeds the tracker. It
// stops itself once the tracker observes completion.
type Poller struct {
	fetcher  ProgressFetcher
	tracker  *Tracker
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewPoller creates a poller. interval <= 0 uses DefaultPollInterval.
func NewPoller(fetcher ProgressFetcher, tracker *Tracker, logger *zap.Logger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		fetcher:  fetcher,
		tracker:  tracker,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the poll loop.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if p.tracker.Done() {
					return
				}
				snap, err := p.fetcher.FetchProgress(ctx)
				if err != nil {
					// Poll failures are transient noise; the push path
					// and the next tick both remain.
					p.logger.Warn("progress poll failed",
						zap.String("campaign_id", p.tracker.CampaignID()), zap.Error(err))
					continue
				}
				p.tracker.Offer(*snap)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the poll loop.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}
