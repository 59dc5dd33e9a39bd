package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"
)

// Timeout bounds per request class. A timeout is treated identically to
// an explicit failure response and is never retried by the client.
const (
	ProbeTimeout   = 2 * time.Second
	RequestTimeout = 5 * time.Second
	CommandTimeout = 10 * time.Second
)

// Client speaks the bridge message protocol to the companion extension
// host over a unix domain socket under the profile directory. One JSON
// envelope per request, one envelope back.
type Client struct {
	socketPath string
	httpc      *http.Client
}

// NewClient creates a bridge client for the given socket path. No
// connection is attempted until the first request.
func NewClient(socketPath string) *Client {
	dialer := &net.Dialer{}
	return &Client{
		socketPath: socketPath,
		httpc: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return dialer.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

// SocketPath returns the socket this client dials.
func (c *Client) SocketPath() string {
	return c.socketPath
}

// Request sends one envelope and awaits the reply within timeout.
// Failures map onto the bridge error taxonomy: ErrNotInstalled when the
// socket is absent or nothing listens on it, ErrTimeout when the bound
// elapses, CompanionError when the companion replies with an ERROR
// envelope.
func (c *Client) Request(ctx context.Context, env Envelope, timeout time.Duration) (*Envelope, error) {
	// A missing socket file means the companion host was never started
	// in this profile; distinguish that from an unresponsive one.
	if _, err := os.Stat(c.socketPath); err != nil {
		return nil, fmt.Errorf("%w: no socket at %s", ErrNotInstalled, c.socketPath)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://companion/v1/message", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// The companion did reply, just not usefully. That is its
		// error, not an unresponsive extension.
		return nil, &CompanionError{Message: fmt.Sprintf("companion replied HTTP %d", resp.StatusCode)}
	}

	var reply Envelope
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}

	if reply.Type == MsgError {
		var ep ErrorPayload
		_ = json.Unmarshal(reply.Payload, &ep)
		return nil, &CompanionError{Message: ep.Message}
	}
	return &reply, nil
}

func classifyTransportError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, os.ErrNotExist):
		// Stale socket with no listener behind it.
		return fmt.Errorf("%w: %v", ErrNotInstalled, err)
	default:
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
}
