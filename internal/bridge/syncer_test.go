package bridge

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Umareee/messenger-crm/internal/bus"
	"github.com/Umareee/messenger-crm/internal/store"
)

const testUser = "acct-1"

func testStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testSyncer(t *testing.T, db *store.DB) (*fakeCompanion, *Syncer) {
	t.Helper()
	fc, socketPath := startCompanion(t)
	fc.replyWith(t, MsgPing, MsgPong, PongPayload{Success: true})
	client := NewClient(socketPath)
	b := bus.New()
	prober := NewProber(client, b, zap.NewNop(), time.Hour)
	if status := prober.Probe(context.Background()); !status.Connected {
		t.Fatal("fake companion should probe as connected")
	}
	return fc, NewSyncer(db, client, prober, b, zap.NewNop(), testUser)
}

func (fc *fakeCompanion) lastOfType(mt MsgType) (Envelope, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for i := len(fc.received) - 1; i >= 0; i-- {
		if fc.received[i].Type == mt {
			return fc.received[i], true
		}
	}
	return Envelope{}, false
}

func TestPushCollectionSendsSnapshot(t *testing.T) {
	db := testStore(t)
	if err := db.UpsertTag(&store.Tag{ID: "t1", UserID: testUser, Name: "Leads", Color: "#f00"}); err != nil {
		t.Fatal(err)
	}
	fc, s := testSyncer(t, db)

	s.PushCollection(context.Background(), store.CollectionTags)

	env, ok := fc.lastOfType(MsgSyncTagsToExtension)
	if !ok {
		t.Fatal("companion never received SYNC_TAGS_TO_EXTENSION")
	}
	var payload TagsPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Tags) != 1 || payload.Tags[0].Name != "Leads" {
		t.Errorf("unexpected snapshot: %+v", payload.Tags)
	}
}

func TestPushCollectionEmptySnapshotStillSent(t *testing.T) {
	// An emptied collection must reach the companion as [] so it clears
	// its cache, not be skipped as "nothing to send".
	db := testStore(t)
	fc, s := testSyncer(t, db)

	s.PushCollection(context.Background(), store.CollectionContacts)

	env, ok := fc.lastOfType(MsgSyncContactsToExtension)
	if !ok {
		t.Fatal("empty collection was not pushed")
	}
	var payload ContactsPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Contacts == nil || len(payload.Contacts) != 0 {
		t.Errorf("payload = %+v, want explicit empty list", payload.Contacts)
	}
}

func TestPushCollectionSkippedWhenDisconnected(t *testing.T) {
	db := testStore(t)
	fc, socketPath := startCompanion(t)
	client := NewClient(socketPath)
	b := bus.New()
	// Prober never ran, so its cache reports disconnected.
	prober := NewProber(client, b, zap.NewNop(), time.Hour)
	s := NewSyncer(db, client, prober, b, zap.NewNop(), testUser)

	s.PushCollection(context.Background(), store.CollectionTags)

	if _, ok := fc.lastOfType(MsgSyncTagsToExtension); ok {
		t.Error("push should be skipped while disconnected")
	}
}

func TestPushAllCoversEveryCollection(t *testing.T) {
	db := testStore(t)
	fc, s := testSyncer(t, db)

	s.PushAll(context.Background())

	for _, mt := range []MsgType{MsgSyncTagsToExtension, MsgSyncContactsToExtension, MsgSyncTemplatesToExtension} {
		if _, ok := fc.lastOfType(mt); !ok {
			t.Errorf("PushAll never sent %s", mt)
		}
	}
}

func TestSyncerPushesOnStoreChangeEvents(t *testing.T) {
	db := testStore(t)
	if err := db.UpsertTemplate(&store.Template{ID: "tpl1", UserID: testUser, Name: "greet", Body: "hello"}); err != nil {
		t.Fatal(err)
	}
	fc, s := testSyncer(t, db)

	s.Start(context.Background())
	defer s.Stop()
	s.bus.Publish(bus.Event{Kind: bus.KindStoreChangedTemplates, Payload: store.CollectionTemplates})

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := fc.lastOfType(MsgSyncTemplatesToExtension); ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("store change event never produced a push")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
