package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/Umareee/messenger-crm/internal/bridge"
	"github.com/Umareee/messenger-crm/internal/bus"
	"github.com/Umareee/messenger-crm/internal/campaign"
	"github.com/Umareee/messenger-crm/internal/store"
)

const (
	testUser   = "acct-1"
	testToken  = "bridge-token-1"
	testSecret = "jwt-secret-1"
)

type stubDispatcher struct {
	started int
}

func (d *stubDispatcher) StartBulkSend(ctx context.Context, payload bridge.BulkSendPayload) (*bridge.BulkSendResult, error) {
	d.started++
	return &bridge.BulkSendResult{Status: "started"}, nil
}

func (d *stubDispatcher) CancelBulkSend(ctx context.Context) (bool, error) {
	return true, nil
}

func (d *stubDispatcher) FetchProgress(ctx context.Context) (*bridge.Snapshot, error) {
	return nil, bridge.ErrTimeout
}

func testServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := zap.NewNop()
	b := bus.New()
	client := bridge.NewClient(filepath.Join(t.TempDir(), "extension.sock"))
	prober := bridge.NewProber(client, b, logger, time.Hour)
	syncer := bridge.NewSyncer(db, client, prober, b, logger, testUser)
	reconciler := campaign.NewReconciler(db, &stubDispatcher{}, b, logger, testUser, time.Hour)
	t.Cleanup(reconciler.StopAll)
	listener := bridge.NewListener(db, reconciler, logger, testUser)

	auth := AuthConfig{BridgeToken: testToken, JWTSecret: testSecret, AccountID: testUser}
	return NewServer(db, b, logger, reconciler, prober, syncer, listener, auth, testUser), db
}

func doJSON(t *testing.T, s *Server, method, path string, body any, headers map[string]string) (*http.Response, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if headers == nil {
		req.Header.Set("X-Bridge-Token", testToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var parsed Response
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &parsed)
	}
	return resp, parsed
}

func TestHealthNeedsNoAuth(t *testing.T) {
	s, _ := testServer(t)
	resp, body := doJSON(t, s, http.MethodGet, "/api/v1/health", nil, map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !body.Success {
		t.Error("health should report success")
	}
}

func TestAuthRejectsMissingAndBadCredentials(t *testing.T) {
	s, _ := testServer(t)

	resp, _ := doJSON(t, s, http.MethodGet, "/api/v1/tags", nil, map[string]string{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no credentials: status = %d, want 401", resp.StatusCode)
	}

	resp, _ = doJSON(t, s, http.MethodGet, "/api/v1/tags", nil, map[string]string{"X-Bridge-Token": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong bridge token: status = %d, want 401", resp.StatusCode)
	}
}

func signToken(t *testing.T, sub, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestAuthAcceptsMatchingJWT(t *testing.T) {
	s, _ := testServer(t)

	resp, _ := doJSON(t, s, http.MethodGet, "/api/v1/tags", nil,
		map[string]string{"Authorization": "Bearer " + signToken(t, testUser, testSecret)})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid JWT: status = %d, want 200", resp.StatusCode)
	}

	resp, _ = doJSON(t, s, http.MethodGet, "/api/v1/tags", nil,
		map[string]string{"Authorization": "Bearer " + signToken(t, "someone-else", testSecret)})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong subject: status = %d, want 401", resp.StatusCode)
	}

	resp, _ = doJSON(t, s, http.MethodGet, "/api/v1/tags", nil,
		map[string]string{"Authorization": "Bearer " + signToken(t, testUser, "other-secret")})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d, want 401", resp.StatusCode)
	}
}

func TestTagLifecycle(t *testing.T) {
	s, db := testServer(t)

	resp, body := doJSON(t, s, http.MethodPost, "/api/v1/tags", TagRequest{Name: "Leads", Color: "#ff0000"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201", resp.StatusCode)
	}

	tags, err := db.ListTags(testUser)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 || tags[0].Name != "Leads" {
		t.Fatalf("tags = %+v", tags)
	}

	resp, body = doJSON(t, s, http.MethodPut, "/api/v1/tags/"+tags[0].ID, TagRequest{Name: "Hot", Color: "#00ff00"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status = %d, want 200: %+v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, s, http.MethodDelete, "/api/v1/tags/"+tags[0].ID, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status = %d, want 200", resp.StatusCode)
	}
	tags, _ = db.ListTags(testUser)
	if len(tags) != 0 {
		t.Errorf("tags remain after delete: %+v", tags)
	}
}

func TestTagValidation(t *testing.T) {
	s, _ := testServer(t)

	resp, body := doJSON(t, s, http.MethodPost, "/api/v1/tags", TagRequest{Name: "Leads", Color: "red"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body.Error == nil || body.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v, want VALIDATION_ERROR", body.Error)
	}
}

func TestContactBulkTagging(t *testing.T) {
	s, db := testServer(t)
	for _, id := range []string{"c1", "c2"} {
		if err := db.UpsertContact(&store.Contact{ID: id, UserID: testUser, Name: id, Source: store.SourceManual}); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.UpsertTag(&store.Tag{ID: "t1", UserID: testUser, Name: "Leads", Color: "#f00"}); err != nil {
		t.Fatal(err)
	}

	req := BulkTagRequest{ContactIDs: []string{"c1", "c2"}, TagIDs: []string{"t1"}}
	resp, _ := doJSON(t, s, http.MethodPost, "/api/v1/contacts/bulk-tag", req, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bulk-tag: status = %d, want 200", resp.StatusCode)
	}
	tags, err := db.ListTags(testUser)
	if err != nil {
		t.Fatal(err)
	}
	if tags[0].ContactCount != 2 {
		t.Errorf("contact count = %d, want 2", tags[0].ContactCount)
	}

	resp, _ = doJSON(t, s, http.MethodPost, "/api/v1/contacts/bulk-untag", req, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bulk-untag: status = %d, want 200", resp.StatusCode)
	}
	tags, _ = db.ListTags(testUser)
	if tags[0].ContactCount != 0 {
		t.Errorf("contact count = %d, want 0", tags[0].ContactCount)
	}
}

func TestCreateCampaignStatusFollowsSchedule(t *testing.T) {
	s, db := testServer(t)
	if err := db.UpsertContact(&store.Contact{ID: "c1", UserID: testUser, Name: "Ada", PlatformUserID: "fb-1", Source: store.SourcePlatform}); err != nil {
		t.Fatal(err)
	}

	immediate := CampaignRequest{Name: "now", Message: "hi", RecipientIDs: []string{"c1"}}
	resp, _ := doJSON(t, s, http.MethodPost, "/api/v1/campaigns", immediate, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201", resp.StatusCode)
	}

	scheduled := CampaignRequest{
		Name: "later", Message: "hi", RecipientIDs: []string{"c1"},
		ScheduledAt: time.Now().Add(time.Hour).UnixMilli(),
	}
	resp, _ = doJSON(t, s, http.MethodPost, "/api/v1/campaigns", scheduled, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create scheduled: status = %d, want 201", resp.StatusCode)
	}

	campaigns, err := db.ListCampaigns(testUser)
	if err != nil {
		t.Fatal(err)
	}
	byName := map[string]string{}
	for _, cmp := range campaigns {
		byName[cmp.Name] = cmp.Status
	}
	if byName["now"] != "pending" || byName["later"] != "scheduled" {
		t.Errorf("statuses = %v", byName)
	}
}

func TestStartCampaignEndpoint(t *testing.T) {
	s, db := testServer(t)
	if err := db.UpsertContact(&store.Contact{ID: "c1", UserID: testUser, Name: "Ada", PlatformUserID: "fb-1", Source: store.SourcePlatform}); err != nil {
		t.Fatal(err)
	}
	cmp := &store.Campaign{ID: "cmp1", UserID: testUser, Name: "go", Message: "hi", RecipientIDs: []string{"c1"}, Status: "pending"}
	if err := db.CreateCampaign(cmp); err != nil {
		t.Fatal(err)
	}

	resp, body := doJSON(t, s, http.MethodPost, "/api/v1/campaigns/cmp1/start", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: status = %d, want 200: %+v", resp.StatusCode, body)
	}
	got, _ := db.GetCampaign(testUser, "cmp1")
	if got.Status != "in-progress" {
		t.Errorf("status = %s, want in-progress", got.Status)
	}

	// Starting again is an illegal transition, not a retry.
	resp, _ = doJSON(t, s, http.MethodPost, "/api/v1/campaigns/cmp1/start", nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double start: status = %d, want 409", resp.StatusCode)
	}
}

func TestDeleteRunningCampaignRefused(t *testing.T) {
	s, db := testServer(t)
	cmp := &store.Campaign{ID: "cmp1", UserID: testUser, Name: "go", Message: "hi", RecipientIDs: []string{"c1"}, Status: "pending"}
	if err := db.CreateCampaign(cmp); err != nil {
		t.Fatal(err)
	}
	if _, err := db.MarkCampaignStarted("cmp1"); err != nil {
		t.Fatal(err)
	}

	resp, body := doJSON(t, s, http.MethodDelete, "/api/v1/campaigns/cmp1", nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409: %+v", resp.StatusCode, body)
	}
}

func TestExtensionEventsWebhook(t *testing.T) {
	s, db := testServer(t)

	env, err := bridge.NewEnvelope(bridge.MsgFriendRequestUpdate, bridge.FriendRequestPayload{
		ID: "fr1", ContactID: "c1", Name: "Ada", Status: "accepted", SentAt: 1700000000000,
	})
	if err != nil {
		t.Fatal(err)
	}
	resp, _ := doJSON(t, s, http.MethodPost, "/api/v1/extension/events", env, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	reqs, err := db.ListFriendRequests(testUser)
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 1 || reqs[0].Status != "accepted" {
		t.Errorf("friend requests = %+v", reqs)
	}
}

func TestExtensionSyncRequiresConnection(t *testing.T) {
	s, _ := testServer(t)

	// No probe has succeeded, so the daemon treats the companion as
	// disconnected and refuses the forced push.
	resp, body := doJSON(t, s, http.MethodPost, "/api/v1/extension/sync", nil, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503: %+v", resp.StatusCode, body)
	}
}
