package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Umareee/messenger-crm/internal/bus"
)

// DefaultProbeInterval is how often the companion is re-probed for the
// lifetime of the daemon, so status reflects install/uninstall without a
// restart.
const DefaultProbeInterval = 5 * time.Second

// Status is the point-in-time result of a probe. Not persisted.
type Status struct {
	Installed bool      `json:"installed"`
	Connected bool      `json:"connected"`
	Version   string    `json:"version,omitempty"`
	Runtime   string    `json:"runtime,omitempty"`
	LastError string    `json:"lastError,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Prober performs bounded-timeout liveness checks against the companion.
// Probe never returns an error: every failure degrades to a disconnected
// Status carrying the failure category for diagnostics.
type Prober struct {
	client   *Client
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration

	mu     sync.RWMutex
	last   Status
	cancel context.CancelFunc
}

// NewProber creates a prober. interval <= 0 uses DefaultProbeInterval.
func NewProber(client *Client, b *bus.Bus, logger *zap.Logger, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Prober{
		client:   client,
		bus:      b,
		logger:   logger,
		interval: interval,
	}
}

// Probe sends a PING and classifies the outcome. It updates the cached
// status and publishes a bus event when connectivity flips.
func (p *Prober) Probe(ctx context.Context) Status {
	status := Status{CheckedAt: time.Now()}

	reply, err := p.client.Request(ctx, Envelope{Type: MsgPing}, ProbeTimeout)
	var companionErr *CompanionError
	switch {
	case err == nil:
		status.Installed = true
		if reply.Type == MsgPong {
			var pong PongPayload
			_ = json.Unmarshal(reply.Payload, &pong)
			status.Connected = pong.Success
			status.Version = pong.Version
			status.Runtime = pong.Runtime
		}
		if !status.Connected {
			status.LastError = "PING not acknowledged"
		}
	case errors.Is(err, ErrTimeout):
		// Present but unresponsive: a different user-facing category
		// than "not installed".
		status.Installed = true
		status.LastError = err.Error()
	case errors.As(err, &companionErr):
		// The companion answered with an error of its own, so it is
		// installed and reachable, just not healthy.
		status.Installed = true
		status.LastError = err.Error()
	default:
		status.LastError = err.Error()
	}

	p.store(status)
	return status
}

func (p *Prober) store(status Status) {
	p.mu.Lock()
	prev := p.last
	p.last = status
	p.mu.Unlock()

	if prev.Connected != status.Connected || prev.Installed != status.Installed {
		p.logger.Info("bridge status changed",
			zap.Bool("installed", status.Installed),
			zap.Bool("connected", status.Connected),
			zap.String("last_error", status.LastError))
		p.bus.Publish(bus.Event{
			Kind:    bus.KindBridgeStatusChanged,
			Payload: status,
		})
	}
}

// Last returns the most recent probe result without probing.
func (p *Prober) Last() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Start begins the fixed-interval probe loop.
func (p *Prober) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go func() {
		p.Probe(ctx)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Probe(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the probe loop.
func (p *Prober) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}
