package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign statuses. Progression is forward-only except paused, which a
// sending campaign can drop into and out of.
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusSending   = "sending"
	CampaignStatusSent      = "sent"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
)

// Send types. Fixed at creation; decides which planner runs on start.
const (
	SendTypeImmediate = "immediate"
	SendTypeScheduled = "scheduled"
	SendTypeSequence  = "sequence"
)

// Campaign represents a bulk or sequenced send targeting a recipient set.
type Campaign struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name       string `gorm:"not null" json:"name"`
	Subject    string `gorm:"not null" json:"subject"`
	TemplateID uint   `gorm:"not null;index" json:"template_id"`

	Status   string `gorm:"default:'draft'" json:"status"`
	SendType string `gorm:"default:'immediate'" json:"send_type"`

	ScheduledAt *time.Time `json:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at"`

	// Sequence plan and per-campaign settings stored as JSON
	Sequence SequenceSpec     `gorm:"type:jsonb;serializer:json" json:"sequence"`
	Settings CampaignSettings `gorm:"type:jsonb;serializer:json" json:"settings"`

	// Statistics (denormalized for performance). Advisory counters only:
	// scheduling decisions never read these.
	TotalRecipients  int `gorm:"default:0" json:"total_recipients"`
	SentCount        int `gorm:"default:0" json:"sent_count"`
	OpenCount        int `gorm:"default:0" json:"open_count"`
	ClickCount       int `gorm:"default:0" json:"click_count"`
	ReplyCount       int `gorm:"default:0" json:"reply_count"`
	BounceCount      int `gorm:"default:0" json:"bounce_count"`
	UnsubscribeCount int `gorm:"default:0" json:"unsubscribe_count"`

	// Relations
	Template         Template              `json:"-"`
	CampaignContacts []CampaignContact     `gorm:"foreignKey:CampaignID" json:"contacts,omitempty"`
	ContactLists     []CampaignContactList `gorm:"foreignKey:CampaignID" json:"contact_lists,omitempty"`
}

// SequenceSpec describes a sequence-type campaign's plan: an initial send
// plus follow-ups, either uniform (FollowupDelays + the campaign template)
// or explicit per-step (Steps overrides the uniform fields).
type SequenceSpec struct {
	InitialDelayHours float64            `json:"initial_delay_hours"`
	FollowupDelays    []float64          `json:"followup_delays,omitempty"` // hours, cumulative
	MaxFollowups      int                `json:"max_followups"`
	Conditions        FollowupConditions `json:"conditions"`
	Steps             []SequenceStep     `json:"steps,omitempty"`
}

// SequenceStep is one explicit follow-up step with its own template,
// delay and condition set.
type SequenceStep struct {
	DelayHours float64            `json:"delay_hours"`
	TemplateID uint               `json:"template_id"`
	Conditions FollowupConditions `json:"conditions"`
}

// FollowupConditions gate whether a planned follow-up fires. All enabled
// conditions must hold against the original email's tracking record.
type FollowupConditions struct {
	RequireOpen    bool `json:"require_open"`
	RequireClick   bool `json:"require_click"`
	RequireNoReply bool `json:"require_no_reply"`
}

// DefaultFollowupConditions matches the legacy auto-follow-up behavior:
// only recipients who opened but did not reply get the next touch.
func DefaultFollowupConditions() FollowupConditions {
	return FollowupConditions{RequireOpen: true, RequireClick: false, RequireNoReply: true}
}

// CampaignSettings holds tracking toggles and the legacy auto-follow-up
// knobs used when a campaign has no explicit sequence steps.
type CampaignSettings struct {
	TrackOpens        bool `json:"track_opens"`
	TrackClicks       bool `json:"track_clicks"`
	EnableFollowups   bool `json:"enable_followups"`
	FollowupDelayDays int  `json:"followup_delay_days"`
	MaxFollowups      int  `json:"max_followups"`
}

// CampaignContact joins campaigns to directly targeted contacts.
type CampaignContact struct {
	gorm.Model
	CampaignID uint `gorm:"not null;index" json:"campaign_id"`
	ContactID  uint `gorm:"not null;index" json:"contact_id"`
	// Position preserves attach order; recipient resolution is
	// order-sensitive (direct contacts first, in order).
	Position int `gorm:"default:0" json:"position"`
}

// CampaignContactList joins campaigns to contact lists.
type CampaignContactList struct {
	gorm.Model
	CampaignID    uint `gorm:"not null;index" json:"campaign_id"`
	ContactListID uint `gorm:"not null;index" json:"contact_list_id"`
	Position      int  `gorm:"default:0" json:"position"`
}
