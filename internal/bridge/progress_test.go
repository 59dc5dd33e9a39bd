package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func snap(active bool, index, success, failure int) Snapshot {
	return Snapshot{
		Active:       active,
		CurrentIndex: index,
		TotalCount:   5,
		SuccessCount: success,
		FailureCount: failure,
	}
}

func TestTrackerFiresCompletionExactlyOnce(t *testing.T) {
	var updates, completions int
	tr := NewTracker("cmp1",
		func(Snapshot) { updates++ },
		func(Snapshot) { completions++ })

	tr.Offer(snap(true, 1, 1, 0))
	tr.Offer(snap(true, 2, 2, 0))
	tr.Offer(snap(false, 2, 2, 0))

	if completions != 1 {
		t.Errorf("completions = %d, want exactly 1", completions)
	}
	if updates != 3 {
		t.Errorf("updates = %d, want 3", updates)
	}
	if !tr.Done() {
		t.Error("tracker should be done")
	}

	// Subsequent snapshots on a finished tracker are ignored entirely.
	tr.Offer(snap(false, 0, 0, 0))
	tr.Offer(snap(true, 3, 3, 0))
	if completions != 1 || updates != 3 {
		t.Errorf("after-done offers changed state: completions=%d updates=%d", completions, updates)
	}
}

func TestTrackerIdleSnapshotNeverCompletes(t *testing.T) {
	var completions int
	tr := NewTracker("cmp1", nil, func(Snapshot) { completions++ })

	// Inactive before any active snapshot is the companion's idle state.
	tr.Offer(snap(false, 0, 0, 0))
	tr.Offer(snap(false, 0, 0, 0))

	if completions != 0 {
		t.Errorf("completions = %d, want 0", completions)
	}
	if tr.Done() {
		t.Error("tracker should not be done")
	}
}

func TestTrackerDropsRegressiveSnapshots(t *testing.T) {
	var last Snapshot
	tr := NewTracker("cmp1", func(s Snapshot) { last = s }, nil)

	tr.Offer(snap(true, 3, 2, 1))
	tr.Offer(snap(true, 1, 1, 0)) // stale poll result racing a push
	if last.CurrentIndex != 3 {
		t.Errorf("stale snapshot applied: index = %d, want 3", last.CurrentIndex)
	}

	got, ok := tr.Last()
	if !ok || got.CurrentIndex != 3 {
		t.Errorf("Last() = %+v, want index 3", got)
	}
}

func TestTrackerReplacesRatherThanAccumulates(t *testing.T) {
	var last Snapshot
	tr := NewTracker("cmp1", func(s Snapshot) { last = s }, nil)

	// The same snapshot delivered twice (push and poll paths) must not
	// double anything.
	tr.Offer(snap(true, 2, 2, 0))
	tr.Offer(snap(true, 2, 2, 0))
	if last.SuccessCount != 2 {
		t.Errorf("success = %d, want 2", last.SuccessCount)
	}
}

type scriptedFetcher struct {
	mu    sync.Mutex
	snaps []Snapshot
	calls atomic.Int64
}

func (f *scriptedFetcher) FetchProgress(ctx context.Context) (*Snapshot, error) {
	n := int(f.calls.Add(1)) - 1
	f.mu.Lock()
	defer f.mu.Unlock()
	if n >= len(f.snaps) {
		return nil, errors.New("no more snapshots")
	}
	return &f.snaps[n], nil
}

func TestPollerDrivesTrackerToCompletion(t *testing.T) {
	fetcher := &scriptedFetcher{snaps: []Snapshot{
		snap(true, 1, 1, 0),
		snap(true, 2, 2, 0),
		snap(false, 2, 2, 0),
	}}
	done := make(chan struct{})
	tr := NewTracker("cmp1", nil, func(Snapshot) { close(done) })
	p := NewPoller(fetcher, tr, zap.NewNop(), 10*time.Millisecond)

	p.Start(context.Background())
	defer p.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never drove the tracker to completion")
	}

	// The loop notices Done and exits; call volume must settle.
	time.Sleep(50 * time.Millisecond)
	settled := fetcher.calls.Load()
	time.Sleep(100 * time.Millisecond)
	if fetcher.calls.Load() > settled+1 {
		t.Error("poller kept fetching after completion")
	}
}

func TestPollerToleratesFetchErrors(t *testing.T) {
	fetcher := &scriptedFetcher{} // every fetch errors
	tr := NewTracker("cmp1", nil, nil)
	p := NewPoller(fetcher, tr, zap.NewNop(), 10*time.Millisecond)

	p.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	p.Stop()

	if fetcher.calls.Load() < 2 {
		t.Error("poller should keep ticking through fetch errors")
	}
	if tr.Done() {
		t.Error("errors must not complete the tracker")
	}
}
