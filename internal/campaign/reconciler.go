package campaign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Umareee/messenger-crm/internal/bridge"
	"github.com/Umareee/messenger-crm/internal/bus"
	"github.com/Umareee/messenger-crm/internal/store"
)

// Dispatcher issues bulk-send commands to the companion.
type Dispatcher interface {
	StartBulkSend(ctx context.Context, payload bridge.BulkSendPayload) (*bridge.BulkSendResult, error)
	CancelBulkSend(ctx context.Context) (bool, error)
	FetchProgress(ctx context.Context) (*bridge.Snapshot, error)
}

// Reconciler keeps the campaign store and the companion's execution
// state in agreement. Starting a campaign is a dual write: the store row
// moves to in-progress first, then the companion gets the BULK_SEND
// command, and a dispatch failure compensates by moving the row back to
// its previous status. Progress flows the other way, written through
// from companion snapshots.
type Reconciler struct {
	db           *store.DB
	dispatcher   Dispatcher
	bus          *bus.Bus
	logger       *zap.Logger
	userID       string
	pollInterval time.Duration

	mu   sync.Mutex
	runs map[string]*run
}

// run is the in-memory tracking state for one in-flight campaign.
type run struct {
	tracker *bridge.Tracker
	poller  *bridge.Poller
}

// NewReconciler creates a reconciler for userID's campaigns.
// pollInterval <= 0 uses the bridge default.
func NewReconciler(db *store.DB, dispatcher Dispatcher, b *bus.Bus, logger *zap.Logger, userID string, pollInterval time.Duration) *Reconciler {
	return &Reconciler{
		db:           db,
		dispatcher:   dispatcher,
		bus:          b,
		logger:       logger,
		userID:       userID,
		pollInterval: pollInterval,
		runs:         make(map[string]*run),
	}
}

// Start dispatches a campaign to the companion. The campaign must be in
// a status with a legal edge to in-progress and must resolve to at least
// one sendable recipient.
func (r *Reconciler) Start(ctx context.Context, id string) error {
	c, err := r.db.GetCampaign(r.userID, id)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("campaign %s not found", id)
	}
	from, err := ParseStatus(c.Status)
	if err != nil {
		return err
	}
	if err := CheckTransition(from, InProgress); err != nil {
		return err
	}

	recipients, err := r.resolveRecipients(c)
	if err != nil {
		return err
	}

	claimed, err := r.db.MarkCampaignStarted(id)
	if err != nil {
		return err
	}
	if !claimed {
		// Another starter (the scheduler tick, or a second API call)
		// claimed the row between our status read and the write.
		return fmt.Errorf("campaign %s is no longer startable", id)
	}

	payload := bridge.BulkSendPayload{
		CampaignID:   c.ID,
		Recipients:   recipients,
		Message:      c.Message,
		DelaySeconds: c.DelaySeconds,
	}
	result, err := r.dispatcher.StartBulkSend(ctx, payload)
	if err != nil {
		// Compensate: the store row already says in-progress but the
		// companion never accepted the command. Scheduled campaigns go
		// back to scheduled so the next scheduler pass retries them.
		if revertErr := r.db.SetCampaignStatus(id, string(from)); revertErr != nil {
			r.logger.Error("failed to revert campaign after dispatch failure",
				zap.String("campaign_id", id), zap.Error(revertErr))
		}
		return fmt.Errorf("dispatch campaign %s: %w", id, err)
	}

	r.beginRun(id)
	r.logger.Info("campaign dispatched",
		zap.String("campaign_id", id),
		zap.Int("recipients", len(recipients)),
		zap.String("companion_status", result.Status))
	r.bus.Publish(bus.Event{Kind: bus.KindCampaignStarted, Payload: id})
	return nil
}

// resolveRecipients expands a campaign's recipient ids into sendable
// targets, dropping contacts without a platform user id.
func (r *Reconciler) resolveRecipients(c *store.Campaign) ([]bridge.Recipient, error) {
	contacts, err := r.db.ListContactsByIDs(r.userID, c.RecipientIDs)
	if err != nil {
		return nil, err
	}
	recipients := make([]bridge.Recipient, 0, len(contacts))
	for _, contact := range contacts {
		if contact.PlatformUserID == "" {
			r.logger.Warn("skipping recipient without platform user id",
				zap.String("campaign_id", c.ID), zap.String("contact_id", contact.ID))
			continue
		}
		recipients = append(recipients, bridge.Recipient{
			ContactID:      contact.ID,
			PlatformUserID: contact.PlatformUserID,
			Name:           contact.Name,
		})
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("campaign %s has no sendable recipients", c.ID)
	}
	return recipients, nil
}

// Pause moves an in-progress campaign to paused. The status edge is
// store-level; the companion keeps its own pause state and reports it
// through progress snapshots.
func (r *Reconciler) Pause(id string) error {
	return r.transition(id, Paused)
}

// Resume moves a paused campaign back to in-progress.
func (r *Reconciler) Resume(id string) error {
	return r.transition(id, InProgress)
}

func (r *Reconciler) transition(id string, to Status) error {
	c, err := r.db.GetCampaign(r.userID, id)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("campaign %s not found", id)
	}
	from, err := ParseStatus(c.Status)
	if err != nil {
		return err
	}
	if err := CheckTransition(from, to); err != nil {
		return err
	}
	return r.db.SetCampaignStatus(id, string(to))
}

// Cancel stops a campaign. An in-progress campaign is cancelled on the
// companion first; a campaign that never reached the companion is only
// a store transition. Cancellation proceeds even when the companion is
// unreachable, since there is nothing running to stop.
func (r *Reconciler) Cancel(ctx context.Context, id string) error {
	c, err := r.db.GetCampaign(r.userID, id)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("campaign %s not found", id)
	}
	from, err := ParseStatus(c.Status)
	if err != nil {
		return err
	}
	if err := CheckTransition(from, Cancelled); err != nil {
		return err
	}

	if from != InProgress && from != Paused {
		return r.db.SetCampaignStatus(id, string(Cancelled))
	}

	if _, err := r.dispatcher.CancelBulkSend(ctx); err != nil {
		if !errors.Is(err, bridge.ErrNotConnected) && !errors.Is(err, bridge.ErrNotInstalled) {
			return fmt.Errorf("cancel campaign %s: %w", id, err)
		}
		r.logger.Warn("companion unreachable during cancel, finalizing locally",
			zap.String("campaign_id", id), zap.Error(err))
	}

	snap, _ := r.lastSnapshot(id)
	r.finalize(id, Cancelled, snap)
	return nil
}

// HandleProgress consumes a progress push from the companion. It
// implements bridge.ProgressSink.
func (r *Reconciler) HandleProgress(ctx context.Context, kind bridge.MsgType, push bridge.ProgressPush) error {
	if push.Error != nil {
		entry := &store.CampaignError{
			CampaignID:  push.CampaignID,
			ContactID:   push.Error.ContactID,
			ContactName: push.Error.ContactName,
			Message:     push.Error.Message,
			OccurredAt:  push.Error.OccurredAt,
		}
		if err := r.db.AppendCampaignError(entry); err != nil {
			return fmt.Errorf("append campaign error: %w", err)
		}
	}

	// A COMPLETE push is an explicit completion signal. The tracker's
	// active→inactive detection covers the normal path, but after a
	// daemon restart the final push may be the only snapshot we ever
	// see for this campaign.
	if kind == bridge.MsgBulkSendComplete {
		r.finalize(push.CampaignID, finalStatus(push.Progress), push.Progress)
		return nil
	}

	r.ensureRun(push.CampaignID).tracker.Offer(push.Progress)
	return nil
}

// finalStatus chooses the terminal status for a finished run. A run
// where nothing was delivered is a failure, not a completion.
func finalStatus(snap bridge.Snapshot) Status {
	if snap.SuccessCount == 0 && snap.FailureCount > 0 {
		return Failed
	}
	return Completed
}

// beginRun registers tracking state for a freshly dispatched campaign
// and starts its poll loop.
func (r *Reconciler) beginRun(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[id]; ok {
		return
	}
	tracker := r.newTracker(id)
	poller := bridge.NewPoller(r.dispatcher, tracker, r.logger, r.pollInterval)
	r.runs[id] = &run{tracker: tracker, poller: poller}
	poller.Start(context.Background())
}

// ensureRun returns the run for id, creating push-only tracking state
// when none exists. That happens when the daemon restarts while the
// companion is still mid-campaign.
func (r *Reconciler) ensureRun(id string) *run {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.runs[id]; ok {
		return existing
	}
	created := &run{tracker: r.newTracker(id)}
	r.runs[id] = created
	return created
}

func (r *Reconciler) newTracker(id string) *bridge.Tracker {
	onUpdate := func(snap bridge.Snapshot) {
		r.applyProgress(id, snap)
	}
	onComplete := func(snap bridge.Snapshot) {
		r.finalize(id, finalStatus(snap), snap)
	}
	return bridge.NewTracker(id, onUpdate, onComplete)
}

func (r *Reconciler) lastSnapshot(id string) (bridge.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.runs[id]; ok {
		return existing.tracker.Last()
	}
	return bridge.Snapshot{}, false
}

// applyProgress writes one snapshot through to the store. The store
// clamps counters to be monotonic and ignores writes against rows that
// are no longer in-progress, so late or duplicate snapshots are safe.
func (r *Reconciler) applyProgress(id string, snap bridge.Snapshot) {
	if err := r.db.ApplyCampaignProgress(id, snap.CurrentIndex, snap.SuccessCount, snap.FailureCount); err != nil {
		r.logger.Error("failed to apply campaign progress",
			zap.String("campaign_id", id), zap.Error(err))
		return
	}
	r.bus.Publish(bus.Event{Kind: bus.KindCampaignProgress, Payload: id})
}

// finalize writes a terminal status and tears down the run. Only an
// in-progress or paused row is finalized; anything else already reached
// a terminal state through another path.
func (r *Reconciler) finalize(id string, status Status, snap bridge.Snapshot) {
	r.mu.Lock()
	existing, ok := r.runs[id]
	if ok {
		delete(r.runs, id)
	}
	r.mu.Unlock()
	if ok && existing.poller != nil {
		existing.poller.Stop()
	}

	c, err := r.db.GetCampaign(r.userID, id)
	if err != nil || c == nil {
		r.logger.Error("failed to load campaign for finalize",
			zap.String("campaign_id", id), zap.Error(err))
		return
	}
	from, err := ParseStatus(c.Status)
	if err != nil || !CanTransition(from, status) {
		r.logger.Warn("ignoring finalize for campaign not in a finalizable status",
			zap.String("campaign_id", id), zap.String("status", c.Status))
		return
	}

	if err := r.db.MarkCampaignFinalized(id, string(status), snap.SuccessCount, snap.FailureCount, snap.CurrentIndex); err != nil {
		r.logger.Error("failed to finalize campaign",
			zap.String("campaign_id", id), zap.Error(err))
		return
	}
	r.logger.Info("campaign finalized",
		zap.String("campaign_id", id),
		zap.String("status", string(status)),
		zap.Int("success", snap.SuccessCount),
		zap.Int("failure", snap.FailureCount))
	r.bus.Publish(bus.Event{Kind: bus.KindCampaignFinalized, Payload: id})
}

// StopAll stops every active poll loop. Used at daemon shutdown.
func (r *Reconciler) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, active := range r.runs {
		if active.poller != nil {
			active.poller.Stop()
		}
	}
	r.runs = make(map[string]*run)
}
