package store

// Contact source values. The companion creates platform/group contacts;
// the dashboard creates manual/imported ones.
const (
	SourcePlatform = "platform"
	SourceGroup    = "group"
	SourceManual   = "manual"
	SourceImported = "imported"
)

// Collection names used in change events and sync pushes.
const (
	CollectionContacts  = "contacts"
	CollectionTags      = "tags"
	CollectionTemplates = "templates"
)

// Tag is a named, colored label. ContactCount is derived from the
// contact_tags table at query time, never stored.
type Tag struct {
	ID           string `json:"id"`
	UserID       string `json:"-"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	ContactCount int    `json:"contactCount"`
}

// Contact mirrors a messaging-platform user. PlatformUserID is required
// for actually sending a message; contacts without one are skipped when
// campaign recipients are resolved.
type Contact struct {
	ID             string   `json:"id"`
	UserID         string   `json:"-"`
	Name           string   `json:"name"`
	AvatarURL      string   `json:"avatarUrl"`
	PlatformUserID string   `json:"platformUserId"`
	Source         string   `json:"source"`
	SourceGroupID  string   `json:"sourceGroupId,omitempty"`
	TagIDs         []string `json:"tagIds"`
}

// Template is reusable message text with placeholder tokens.
type Template struct {
	ID     string `json:"id"`
	UserID string `json:"-"`
	Name   string `json:"name"`
	Body   string `json:"body"`
}

// Campaign is a bulk-send job definition plus mutable execution state.
// TagIDs records the selection that generated RecipientIDs; it is kept
// for display only and never re-evaluated.
type Campaign struct {
	ID              string   `json:"id"`
	UserID          string   `json:"-"`
	Name            string   `json:"name"`
	Message         string   `json:"message"`
	DelaySeconds    int      `json:"delaySeconds"`
	TagIDs          []string `json:"tagIds"`
	RecipientIDs    []string `json:"recipientIds"`
	Status          string   `json:"status"`
	TotalRecipients int      `json:"totalRecipients"`
	SuccessCount    int      `json:"successCount"`
	FailureCount    int      `json:"failureCount"`
	CurrentIndex    int      `json:"currentIndex"`
	ScheduledAt     int64    `json:"scheduledAt,omitempty"`
	StartedAt       int64    `json:"startedAt,omitempty"`
	CompletedAt     int64    `json:"completedAt,omitempty"`
	CreatedAt       int64    `json:"createdAt"`
}

// CampaignError is one append-only error log entry for a campaign.
type CampaignError struct {
	ID          int64  `json:"id"`
	CampaignID  string `json:"campaignId"`
	ContactID   string `json:"contactId"`
	ContactName string `json:"contactName"`
	Message     string `json:"message"`
	OccurredAt  int64  `json:"occurredAt"`
}

// FriendRequest tracks an outbound platform friend request reported by
// the companion.
type FriendRequest struct {
	ID        string `json:"id"`
	UserID    string `json:"-"`
	ContactID string `json:"contactId"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	SentAt    int64  `json:"sentAt"`
	UpdatedAt int64  `json:"updatedAt"`
}
