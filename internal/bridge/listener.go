package bridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Umareee/messenger-crm/internal/store"
)

// ProgressSink consumes campaign progress observations delivered by the
// companion. The push kind tells the sink whether the snapshot is a
// start, a mid-run update or the final one.
type ProgressSink interface {
	HandleProgress(ctx context.Context, kind MsgType, push ProgressPush) error
}

// Listener handles envelopes the companion pushes into the daemon:
// authoritative store snapshots, friend-request updates and campaign
// progress. Extension-originated snapshot writes deliberately do not
// emit store.changed events, which would echo the same data straight
// back to the companion.
type Listener struct {
	db     *store.DB
	sink   ProgressSink
	logger *zap.Logger
	userID string
}

// NewListener creates a listener writing on behalf of userID.
func NewListener(db *store.DB, sink ProgressSink, logger *zap.Logger, userID string) *Listener {
	return &Listener{
		db:     db,
		sink:   sink,
		logger: logger,
		userID: userID,
	}
}

// Handle dispatches one inbound envelope. Unknown or malformed pushes
// are errors; the companion gets them back as an ERROR reply.
func (l *Listener) Handle(ctx context.Context, env Envelope) error {
	payload, err := DecodePayload(env)
	if err != nil {
		return err
	}

	switch env.Type {
	case MsgSyncContactsFromExt:
		p := payload.(*ContactsPayload)
		if err := l.db.ReplaceContacts(l.userID, p.Contacts); err != nil {
			return fmt.Errorf("apply contact snapshot: %w", err)
		}
		l.logger.Info("applied contact snapshot from companion", zap.Int("count", len(p.Contacts)))
		return nil

	case MsgSyncTagsFromExt:
		p := payload.(*TagsPayload)
		if err := l.db.ReplaceTags(l.userID, p.Tags); err != nil {
			return fmt.Errorf("apply tag snapshot: %w", err)
		}
		l.logger.Info("applied tag snapshot from companion", zap.Int("count", len(p.Tags)))
		return nil

	case MsgSyncTemplatesFromExt:
		p := payload.(*TemplatesPayload)
		if err := l.db.ReplaceTemplates(l.userID, p.Templates); err != nil {
			return fmt.Errorf("apply template snapshot: %w", err)
		}
		l.logger.Info("applied template snapshot from companion", zap.Int("count", len(p.Templates)))
		return nil

	case MsgFriendRequestUpdate:
		p := payload.(*FriendRequestPayload)
		fr := &store.FriendRequest{
			ID:        p.ID,
			UserID:    l.userID,
			ContactID: p.ContactID,
			Name:      p.Name,
			Status:    p.Status,
			SentAt:    p.SentAt,
		}
		if err := l.db.UpsertFriendRequest(fr); err != nil {
			return fmt.Errorf("record friend request: %w", err)
		}
		return nil

	case MsgBulkSendStarted, MsgBulkSendProgress, MsgBulkSendComplete:
		p := payload.(*ProgressPush)
		if p.CampaignID == "" {
			return fmt.Errorf("%s: missing campaignId", env.Type)
		}
		return l.sink.HandleProgress(ctx, env.Type, *p)

	default:
		return fmt.Errorf("unexpected inbound message type %q", env.Type)
	}
}
