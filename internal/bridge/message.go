package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/Umareee/messenger-crm/internal/store"
)

// MsgType discriminates bridge envelopes. Request/response types are
// initiated by the daemon; push types arrive from the companion.
type MsgType string

const (
	// Daemon → companion requests.
	MsgPing                     MsgType = "PING"
	MsgSyncContactsToExtension  MsgType = "SYNC_CONTACTS_TO_EXTENSION"
	MsgSyncTagsToExtension      MsgType = "SYNC_TAGS_TO_EXTENSION"
	MsgSyncTemplatesToExtension MsgType = "SYNC_TEMPLATES_TO_EXTENSION"
	MsgBulkSend                 MsgType = "BULK_SEND"
	MsgGetBulkProgress          MsgType = "GET_BULK_PROGRESS"
	MsgCancelBulkSend           MsgType = "CANCEL_BULK_SEND"

	// Companion → daemon responses.
	MsgPong  MsgType = "PONG"
	MsgAck   MsgType = "ACK"
	MsgError MsgType = "ERROR"

	// Companion → daemon pushes (best-effort, not request/response).
	MsgBulkSendStarted      MsgType = "BULK_SEND_STARTED"
	MsgBulkSendProgress     MsgType = "BULK_SEND_PROGRESS_UPDATE"
	MsgBulkSendComplete     MsgType = "BULK_SEND_COMPLETE"
	MsgSyncContactsFromExt  MsgType = "SYNC_CONTACTS_FROM_EXTENSION"
	MsgSyncTagsFromExt      MsgType = "SYNC_TAGS_FROM_EXTENSION"
	MsgSyncTemplatesFromExt MsgType = "SYNC_TEMPLATES_FROM_EXTENSION"
	MsgFriendRequestUpdate  MsgType = "FRIEND_REQUEST_UPDATE"
)

// Envelope is the wire frame for every bridge message. Payload schemas
// are fixed per Type; DecodePayload enforces the pairing.
type Envelope struct {
	Type    MsgType         `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope wraps a typed payload into an envelope.
func NewEnvelope(t MsgType, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: t}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Envelope{Type: t, Payload: raw}, nil
}

// PongPayload answers a PING.
type PongPayload struct {
	Success bool   `json:"success"`
	Version string `json:"version,omitempty"`
	Runtime string `json:"runtime,omitempty"`
}

// AckPayload is a generic success reply.
type AckPayload struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// ErrorPayload is a companion-reported application error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ContactsPayload carries a full replacement contact snapshot.
type ContactsPayload struct {
	Contacts []store.Contact `json:"contacts"`
}

// TagsPayload carries a full replacement tag snapshot.
type TagsPayload struct {
	Tags []store.Tag `json:"tags"`
}

// TemplatesPayload carries a full replacement template snapshot.
type TemplatesPayload struct {
	Templates []store.Template `json:"templates"`
}

// Recipient is one bulk-send target.
type Recipient struct {
	ContactID      string `json:"contactId"`
	PlatformUserID string `json:"platformUserId"`
	Name           string `json:"name"`
}

// BulkSendPayload asks the companion to start a campaign.
type BulkSendPayload struct {
	CampaignID   string      `json:"campaignId"`
	Recipients   []Recipient `json:"recipients"`
	Message      string      `json:"template"`
	DelaySeconds int         `json:"delaySec"`
}

// BulkSendResult is the companion's reply to BULK_SEND.
type BulkSendResult struct {
	Status  string `json:"status"` // "started" or "error"
	Message string `json:"message,omitempty"`
}

// CancelResult is the companion's reply to CANCEL_BULK_SEND.
type CancelResult struct {
	Cancelled bool `json:"cancelled"`
}

// Snapshot is one full progress observation for an in-flight campaign.
// Consumers always replace their previous snapshot with a newer one;
// nothing is ever incremented from a snapshot.
type Snapshot struct {
	Active         bool   `json:"isActive"`
	CurrentIndex   int    `json:"currentIndex"`
	TotalCount     int    `json:"totalCount"`
	SuccessCount   int    `json:"successCount"`
	FailureCount   int    `json:"failureCount"`
	CurrentContact string `json:"currentContact,omitempty"`
	StartTime      int64  `json:"startTime,omitempty"`
}

// ProgressReply is the companion's reply to GET_BULK_PROGRESS.
type ProgressReply struct {
	Progress Snapshot `json:"progress"`
}

// SendError describes one failed delivery inside a progress push.
type SendError struct {
	ContactID   string `json:"contactId"`
	ContactName string `json:"contactName"`
	Message     string `json:"message"`
	OccurredAt  int64  `json:"occurredAt"`
}

// ProgressPush is the payload of BULK_SEND_STARTED,
// BULK_SEND_PROGRESS_UPDATE and BULK_SEND_COMPLETE pushes.
type ProgressPush struct {
	CampaignID string     `json:"campaignId"`
	Progress   Snapshot   `json:"progress"`
	Error      *SendError `json:"error,omitempty"`
}

// FriendRequestPayload is the payload of FRIEND_REQUEST_UPDATE pushes.
type FriendRequestPayload struct {
	ID        string `json:"id"`
	ContactID string `json:"contactId"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	SentAt    int64  `json:"sentAt"`
}

// DecodePayload decodes an envelope's payload into the schema fixed for
// its type. Unknown types and payload/type mismatches are errors; the
// bridge never passes untyped payloads through.
func DecodePayload(env Envelope) (any, error) {
	decode := func(v any) (any, error) {
		if len(env.Payload) == 0 {
			return nil, fmt.Errorf("%s: missing payload", env.Type)
		}
		if err := json.Unmarshal(env.Payload, v); err != nil {
			return nil, fmt.Errorf("%s: decode payload: %w", env.Type, err)
		}
		return v, nil
	}

	switch env.Type {
	case MsgPing, MsgGetBulkProgress, MsgCancelBulkSend:
		return nil, nil
	case MsgPong:
		return decode(&PongPayload{})
	case MsgAck:
		return decode(&AckPayload{})
	case MsgError:
		return decode(&ErrorPayload{})
	case MsgSyncContactsToExtension, MsgSyncContactsFromExt:
		return decode(&ContactsPayload{})
	case MsgSyncTagsToExtension, MsgSyncTagsFromExt:
		return decode(&TagsPayload{})
	case MsgSyncTemplatesToExtension, MsgSyncTemplatesFromExt:
		return decode(&TemplatesPayload{})
	case MsgBulkSend:
		return decode(&BulkSendPayload{})
	case MsgBulkSendStarted, MsgBulkSendProgress, MsgBulkSendComplete:
		return decode(&ProgressPush{})
	case MsgFriendRequestUpdate:
		return decode(&FriendRequestPayload{})
	default:
		return nil, fmt.Errorf("unknown bridge message type %q", env.Type)
	}
}
