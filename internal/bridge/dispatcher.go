package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Dispatcher sends campaign commands to the companion. It does not track
// job completion; that is the progress tracker's responsibility.
type Dispatcher struct {
	client *Client
	prober *Prober
	logger *zap.Logger
}

// NewDispatcher creates a command dispatcher.
func NewDispatcher(client *Client, prober *Prober, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{client: client, prober: prober, logger: logger}
}

// StartBulkSend asks the companion to begin a campaign. It fails
// immediately with ErrNotConnected when the last probe was negative,
// without waiting out the command timeout.
func (d *Dispatcher) StartBulkSend(ctx context.Context, payload BulkSendPayload) (*BulkSendResult, error) {
	if !d.prober.Last().Connected {
		return nil, ErrNotConnected
	}

	env, err := NewEnvelope(MsgBulkSend, payload)
	if err != nil {
		return nil, err
	}
	reply, err := d.client.Request(ctx, env, CommandTimeout)
	if err != nil {
		return nil, err
	}

	var result BulkSendResult
	if err := json.Unmarshal(reply.Payload, &result); err != nil {
		return nil, fmt.Errorf("decode BULK_SEND reply: %w", err)
	}
	if result.Status != "started" {
		return nil, &CompanionError{Message: result.Message}
	}
	d.logger.Info("bulk send accepted",
		zap.String("campaign_id", payload.CampaignID),
		zap.Int("recipients", len(payload.Recipients)))
	return &result, nil
}

// CancelBulkSend asks the companion to halt further progression. The
// message currently in flight on the platform may still be delivered.
func (d *Dispatcher) CancelBulkSend(ctx context.Context) (bool, error) {
	if !d.prober.Last().Connected {
		return false, ErrNotConnected
	}

	reply, err := d.client.Request(ctx, Envelope{Type: MsgCancelBulkSend}, CommandTimeout)
	if err != nil {
		return false, err
	}
	var result CancelResult
	if err := json.Unmarshal(reply.Payload, &result); err != nil {
		return false, fmt.Errorf("decode CANCEL_BULK_SEND reply: %w", err)
	}
	return result.Cancelled, nil
}

// FetchProgress pulls the current progress snapshot.
func (d *Dispatcher) FetchProgress(ctx context.Context) (*Snapshot, error) {
	reply, err := d.client.Request(ctx, Envelope{Type: MsgGetBulkProgress}, RequestTimeout)
	if err != nil {
		return nil, err
	}
	var pr ProgressReply
	if err := json.Unmarshal(reply.Payload, &pr); err != nil {
		return nil, fmt.Errorf("decode GET_BULK_PROGRESS reply: %w", err)
	}
	return &pr.Progress, nil
}
