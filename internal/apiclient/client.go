// Package apiclient is the CLI-side client for the daemon's REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Umareee/messenger-crm/internal/bridge"
	"github.com/Umareee/messenger-crm/internal/store"
)

// Client talks to a running crmd over its loopback listen address,
// authenticating with the profile's bridge token.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// New creates a client for the daemon at addr (host:port).
func New(addr, token string) *Client {
	return &Client{
		baseURL: "http://" + addr + "/api/v1",
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Details any    `json:"details"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Bridge-Token", c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode daemon reply: %w", err)
	}
	if !env.Success {
		code := "UNKNOWN"
		if env.Error != nil {
			code = env.Error.Code
		}
		return fmt.Errorf("%s: %s", code, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode daemon reply data: %w", err)
		}
	}
	return nil
}

// Health checks the daemon is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// ExtensionStatus returns the daemon's latest companion probe result.
func (c *Client) ExtensionStatus(ctx context.Context) (*bridge.Status, error) {
	var status bridge.Status
	if err := c.do(ctx, http.MethodGet, "/extension/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SyncNow forces a full snapshot push to the companion.
func (c *Client) SyncNow(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/extension/sync", nil, nil)
}

// ListTags returns all tags with derived contact counts.
func (c *Client) ListTags(ctx context.Context) ([]store.Tag, error) {
	var tags []store.Tag
	if err := c.do(ctx, http.MethodGet, "/tags", nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// ListContacts returns all contacts.
func (c *Client) ListContacts(ctx context.Context) ([]store.Contact, error) {
	var contacts []store.Contact
	if err := c.do(ctx, http.MethodGet, "/contacts", nil, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// ListTemplates returns all message templates.
func (c *Client) ListTemplates(ctx context.Context) ([]store.Template, error) {
	var templates []store.Template
	if err := c.do(ctx, http.MethodGet, "/templates", nil, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

// ListCampaigns returns all campaigns, newest first.
func (c *Client) ListCampaigns(ctx context.Context) ([]store.Campaign, error) {
	var campaigns []store.Campaign
	if err := c.do(ctx, http.MethodGet, "/campaigns", nil, &campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

// GetCampaign returns one campaign.
func (c *Client) GetCampaign(ctx context.Context, id string) (*store.Campaign, error) {
	var cmp store.Campaign
	if err := c.do(ctx, http.MethodGet, "/campaigns/"+id, nil, &cmp); err != nil {
		return nil, err
	}
	return &cmp, nil
}

// ListCampaignErrors returns a campaign's error log.
func (c *Client) ListCampaignErrors(ctx context.Context, id string) ([]store.CampaignError, error) {
	var errs []store.CampaignError
	if err := c.do(ctx, http.MethodGet, "/campaigns/"+id+"/errors", nil, &errs); err != nil {
		return nil, err
	}
	return errs, nil
}

func (c *Client) campaignAction(ctx context.Context, id, action string) (*store.Campaign, error) {
	var cmp store.Campaign
	if err := c.do(ctx, http.MethodPost, "/campaigns/"+id+"/"+action, nil, &cmp); err != nil {
		return nil, err
	}
	return &cmp, nil
}

// StartCampaign dispatches a campaign now.
func (c *Client) StartCampaign(ctx context.Context, id string) (*store.Campaign, error) {
	return c.campaignAction(ctx, id, "start")
}

// PauseCampaign pauses an in-progress campaign.
func (c *Client) PauseCampaign(ctx context.Context, id string) (*store.Campaign, error) {
	return c.campaignAction(ctx, id, "pause")
}

// ResumeCampaign resumes a paused campaign.
func (c *Client) ResumeCampaign(ctx context.Context, id string) (*store.Campaign, error) {
	return c.campaignAction(ctx, id, "resume")
}

// CancelCampaign cancels a campaign.
func (c *Client) CancelCampaign(ctx context.Context, id string) (*store.Campaign, error) {
	return c.campaignAction(ctx, id, "cancel")
}

// ListFriendRequests returns the friend-request log.
func (c *Client) ListFriendRequests(ctx context.Context) ([]store.FriendRequest, error) {
	var reqs []store.FriendRequest
	if err := c.do(ctx, http.MethodGet, "/friend-requests", nil, &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}
