// Package api exposes the daemon's dashboard-facing HTTP interface.
package api

// Response is the envelope every endpoint replies with.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail carries a machine-readable code next to the human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// TagRequest creates or updates a tag.
type TagRequest struct {
	Name  string `json:"name" validate:"required,max=64"`
	Color string `json:"color" validate:"required,hexcolor"`
}

// ContactRequest creates or updates a contact from the dashboard.
// Dashboard-created contacts have no platform identity until the
// companion resolves one, so platformUserId is optional.
type ContactRequest struct {
	Name           string   `json:"name" validate:"required,max=256"`
	AvatarURL      string   `json:"avatarUrl" validate:"omitempty,url"`
	PlatformUserID string   `json:"platformUserId" validate:"omitempty,max=64"`
	Source         string   `json:"source" validate:"omitempty,oneof=platform group manual imported"`
	SourceGroupID  string   `json:"sourceGroupId" validate:"omitempty,max=64"`
	TagIDs         []string `json:"tagIds" validate:"omitempty,dive,required"`
}

// BulkIDsRequest addresses a set of records by id.
type BulkIDsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// BulkTagRequest attaches or detaches tags on a set of contacts.
type BulkTagRequest struct {
	ContactIDs []string `json:"contactIds" validate:"required,min=1,dive,required"`
	TagIDs     []string `json:"tagIds" validate:"required,min=1,dive,required"`
}

// TemplateRequest creates or updates a message template.
type TemplateRequest struct {
	Name string `json:"name" validate:"required,max=128"`
	Body string `json:"body" validate:"required,max=4096"`
}

// CampaignRequest creates a campaign. RecipientIDs is the expanded,
// frozen recipient set; tagIds only records which tags produced it.
type CampaignRequest struct {
	Name         string   `json:"name" validate:"required,max=128"`
	Message      string   `json:"message" validate:"required,max=4096"`
	DelaySeconds int      `json:"delaySeconds" validate:"min=0,max=3600"`
	TagIDs       []string `json:"tagIds" validate:"omitempty,dive,required"`
	RecipientIDs []string `json:"recipientIds" validate:"required,min=1,dive,required"`
	ScheduledAt  int64    `json:"scheduledAt" validate:"omitempty,min=0"`
}
