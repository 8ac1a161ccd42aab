package models

import (
	"time"

	"gorm.io/gorm"
)

// Email statuses.
const (
	EmailStatusQueued    = "queued"
	EmailStatusSending   = "sending"
	EmailStatusSent      = "sent"
	EmailStatusDelivered = "delivered"
	EmailStatusBounced   = "bounced"
	EmailStatusFailed    = "failed"
)

// Followup statuses.
const (
	FollowupStatusScheduled = "scheduled"
	FollowupStatusSent      = "sent"
	FollowupStatusCancelled = "cancelled"
	FollowupStatusFailed    = "failed"
)

// Email is a concrete queued-or-sent message instance. Once status reaches
// sent, SentAt and MessageID are set and never touched again.
type Email struct {
	gorm.Model
	UserID     uint `gorm:"not null;index" json:"user_id"`
	CampaignID uint `gorm:"not null;index" json:"campaign_id"`
	ContactID  uint `gorm:"not null;index" json:"contact_id"`
	TemplateID uint `gorm:"not null;index" json:"template_id"`

	Subject string `json:"subject"`
	Status  string `gorm:"default:'queued';index" json:"status"`

	// ScheduledAt is set while the row waits for the due-emails sweep.
	ScheduledAt *time.Time `gorm:"index" json:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at"`
	MessageID   string     `gorm:"index" json:"message_id"`

	// Follow-up lineage
	IsFollowup     bool  `gorm:"default:false" json:"is_followup"`
	FollowupNumber int   `gorm:"default:0" json:"followup_number"`
	ParentEmailID  *uint `gorm:"index" json:"parent_email_id,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`

	// Relations
	Campaign Campaign `json:"-"`
	Contact  Contact  `json:"-"`
	Template Template `json:"-"`
}

// Followup is a planned conditional send derived from an original Email.
// Its conditions are evaluated against the ORIGINAL email's tracking
// record when the due-followups sweep picks it up.
type Followup struct {
	gorm.Model
	UserID          uint `gorm:"not null;index" json:"user_id"`
	CampaignID      uint `gorm:"not null;index" json:"campaign_id"`
	ContactID       uint `gorm:"not null;index" json:"contact_id"`
	TemplateID      uint `gorm:"not null;index" json:"template_id"`
	OriginalEmailID uint `gorm:"not null;index" json:"original_email_id"`

	Sequence    int                `gorm:"not null" json:"sequence"`
	ScheduledAt time.Time          `gorm:"not null;index" json:"scheduled_at"`
	Conditions  FollowupConditions `gorm:"type:jsonb;serializer:json" json:"conditions"`

	Status string     `gorm:"default:'scheduled';index" json:"status"`
	SentAt *time.Time `json:"sent_at"`

	ErrorMessage string `json:"error_message,omitempty"`

	// Relations
	Campaign Campaign `json:"-"`
	Contact  Contact  `json:"-"`
	Template Template `json:"-"`
}
