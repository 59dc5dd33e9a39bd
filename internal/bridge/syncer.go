package bridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/Umareee/messenger-crm/internal/bus"
	"github.com/Umareee/messenger-crm/internal/store"
)

// Syncer pushes full replacement snapshots of the contact, tag and
// template collections to the companion whenever they change locally.
// Delivery is best-effort, at-most-once: a push is skipped silently while
// the prober reports the companion unreachable, and a lost push is not
// recovered until the next change (or reconnect) triggers another one.
type Syncer struct {
	db     *store.DB
	client *Client
	prober *Prober
	bus    *bus.Bus
	logger *zap.Logger
	userID string
	cancel context.CancelFunc
}

// NewSyncer creates a sync channel for one account.
func NewSyncer(db *store.DB, client *Client, prober *Prober, b *bus.Bus, logger *zap.Logger, userID string) *Syncer {
	return &Syncer{
		db:     db,
		client: client,
		prober: prober,
		bus:    b,
		logger: logger,
		userID: userID,
	}
}

// Start subscribes to local store changes and bridge reconnects.
func (s *Syncer) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	storeCh, unsubStore := s.bus.Subscribe("store.changed.", 64)
	bridgeCh, unsubBridge := s.bus.Subscribe("bridge.", 16)

	go func() {
		defer unsubStore()
		defer unsubBridge()
		for {
			select {
			case evt := <-storeCh:
				s.handleStoreChange(ctx, evt)
			case evt := <-bridgeCh:
				// On reconnect the companion's cache may be arbitrarily
				// stale; push everything.
				if status, ok := evt.Payload.(Status); ok && status.Connected {
					s.PushAll(ctx)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the syncer.
func (s *Syncer) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Syncer) handleStoreChange(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.KindStoreChangedContacts:
		s.PushCollection(ctx, store.CollectionContacts)
	case bus.KindStoreChangedTags:
		s.PushCollection(ctx, store.CollectionTags)
	case bus.KindStoreChangedTemplates:
		s.PushCollection(ctx, store.CollectionTemplates)
	}
}

// PushAll pushes all three collections.
func (s *Syncer) PushAll(ctx context.Context) {
	s.PushCollection(ctx, store.CollectionTags)
	s.PushCollection(ctx, store.CollectionContacts)
	s.PushCollection(ctx, store.CollectionTemplates)
}

// PushCollection pushes one collection's current snapshot. An empty
// collection is still pushed so the companion clears stale state; only a
// disconnected companion causes a (silent) skip.
func (s *Syncer) PushCollection(ctx context.Context, kind string) {
	if !s.prober.Last().Connected {
		return
	}

	env, err := s.snapshotEnvelope(kind)
	if err != nil {
		s.logger.Error("snapshot collection for push", zap.String("collection", kind), zap.Error(err))
		return
	}

	if _, err := s.client.Request(ctx, env, RequestTimeout); err != nil {
		// Best-effort: log and move on, the next change re-pushes.
		s.logger.Warn("collection push failed", zap.String("collection", kind), zap.Error(err))
		return
	}
	s.logger.Info("collection pushed", zap.String("collection", kind))
}

func (s *Syncer) snapshotEnvelope(kind string) (Envelope, error) {
	switch kind {
	case store.CollectionContacts:
		contacts, err := s.db.ListContacts(s.userID)
		if err != nil {
			return Envelope{}, err
		}
		return NewEnvelope(MsgSyncContactsToExtension, ContactsPayload{Contacts: contacts})
	case store.CollectionTags:
		tags, err := s.db.ListTags(s.userID)
		if err != nil {
			return Envelope{}, err
		}
		return NewEnvelope(MsgSyncTagsToExtension, TagsPayload{Tags: tags})
	default:
		templates, err := s.db.ListTemplates(s.userID)
		if err != nil {
			return Envelope{}, err
		}
		return NewEnvelope(MsgSyncTemplatesToExtension, TemplatesPayload{Templates: templates})
	}
}
