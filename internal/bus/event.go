package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by daemon components. Subscribers typically filter
// on a namespace prefix such as "store.changed." or "campaign.".
const (
	// Store mutations, published after a successful local write. Payload
	// is the collection name (see CollectionContacts et al.).
	KindStoreChangedContacts  = "store.changed.contacts"
	KindStoreChangedTags      = "store.changed.tags"
	KindStoreChangedTemplates = "store.changed.templates"

	// Bridge connection status flips. Payload is a bridge.Status value.
	KindBridgeStatusChanged = "bridge.status_changed"

	// Campaign lifecycle. Payload carries the campaign id.
	KindCampaignStarted   = "campaign.started"
	KindCampaignProgress  = "campaign.progress"
	KindCampaignFinalized = "campaign.finalized"
)
