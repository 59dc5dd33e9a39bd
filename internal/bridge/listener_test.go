package bridge

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/Umareee/messenger-crm/internal/store"
)

type recordingSink struct {
	kinds  []MsgType
	pushes []ProgressPush
}

func (s *recordingSink) HandleProgress(ctx context.Context, kind MsgType, push ProgressPush) error {
	s.kinds = append(s.kinds, kind)
	s.pushes = append(s.pushes, push)
	return nil
}

func testListener(t *testing.T) (*Listener, *store.DB, *recordingSink) {
	t.Helper()
	db := testStore(t)
	sink := &recordingSink{}
	return NewListener(db, sink, zap.NewNop(), testUser), db, sink
}

func TestListenerAppliesContactSnapshot(t *testing.T) {
	l, db, _ := testListener(t)
	if err := db.UpsertContact(&store.Contact{ID: "stale", UserID: testUser, Name: "Old", Source: store.SourceManual}); err != nil {
		t.Fatal(err)
	}

	env, err := NewEnvelope(MsgSyncContactsFromExt, ContactsPayload{Contacts: []store.Contact{
		{ID: "c1", Name: "Ada", PlatformUserID: "fb-1", Source: store.SourcePlatform},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Handle(context.Background(), env); err != nil {
		t.Fatal(err)
	}

	contacts, err := db.ListContacts(testUser)
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 1 || contacts[0].ID != "c1" {
		t.Errorf("snapshot not authoritative: %+v", contacts)
	}
}

func TestListenerAppliesTagAndTemplateSnapshots(t *testing.T) {
	l, db, _ := testListener(t)

	tagEnv, err := NewEnvelope(MsgSyncTagsFromExt, TagsPayload{Tags: []store.Tag{
		{ID: "t1", Name: "Leads", Color: "#0f0"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Handle(context.Background(), tagEnv); err != nil {
		t.Fatal(err)
	}
	tplEnv, err := NewEnvelope(MsgSyncTemplatesFromExt, TemplatesPayload{Templates: []store.Template{
		{ID: "tpl1", Name: "greet", Body: "hi"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Handle(context.Background(), tplEnv); err != nil {
		t.Fatal(err)
	}

	tags, err := db.ListTags(testUser)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 1 || tags[0].Name != "Leads" {
		t.Errorf("tags = %+v", tags)
	}
	templates, err := db.ListTemplates(testUser)
	if err != nil {
		t.Fatal(err)
	}
	if len(templates) != 1 || templates[0].Body != "hi" {
		t.Errorf("templates = %+v", templates)
	}
}

func TestListenerRecordsFriendRequests(t *testing.T) {
	l, db, _ := testListener(t)

	env, err := NewEnvelope(MsgFriendRequestUpdate, FriendRequestPayload{
		ID: "fr1", ContactID: "c1", Name: "Ada", Status: "sent", SentAt: 1700000000000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Handle(context.Background(), env); err != nil {
		t.Fatal(err)
	}

	reqs, err := db.ListFriendRequests(testUser)
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 1 || reqs[0].Status != "sent" {
		t.Errorf("friend requests = %+v", reqs)
	}
}

func TestListenerRoutesProgressPushes(t *testing.T) {
	l, _, sink := testListener(t)

	env, err := NewEnvelope(MsgBulkSendProgress, ProgressPush{
		CampaignID: "cmp1",
		Progress:   Snapshot{Active: true, CurrentIndex: 1, TotalCount: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Handle(context.Background(), env); err != nil {
		t.Fatal(err)
	}

	if len(sink.pushes) != 1 {
		t.Fatalf("sink received %d pushes, want 1", len(sink.pushes))
	}
	if sink.kinds[0] != MsgBulkSendProgress || sink.pushes[0].CampaignID != "cmp1" {
		t.Errorf("sink got kind=%s push=%+v", sink.kinds[0], sink.pushes[0])
	}
}

func TestListenerRejectsProgressWithoutCampaignID(t *testing.T) {
	l, _, sink := testListener(t)

	env, err := NewEnvelope(MsgBulkSendComplete, ProgressPush{Progress: Snapshot{}})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Handle(context.Background(), env); err == nil {
		t.Error("push without campaignId should be rejected")
	}
	if len(sink.pushes) != 0 {
		t.Error("rejected push must not reach the sink")
	}
}

func TestListenerRejectsOutboundTypes(t *testing.T) {
	l, _, _ := testListener(t)

	// BULK_SEND travels daemon→companion; arriving inbound it is a
	// protocol violation, not something to process.
	env, err := NewEnvelope(MsgBulkSend, BulkSendPayload{CampaignID: "cmp1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Handle(context.Background(), env); err == nil {
		t.Error("outbound-only type should be rejected inbound")
	}
}
