package models

import (
	"time"

	"gorm.io/gorm"
)

// Tracking event types.
const (
	TrackingEventOpened       = "opened"
	TrackingEventClicked      = "clicked"
	TrackingEventReplied      = "replied"
	TrackingEventBounced      = "bounced"
	TrackingEventUnsubscribed = "unsubscribed"
)

// TrackingEvent is one engagement event on a sent email.
type TrackingEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url,omitempty"` // clicked events only
}

// EmailTracking is the per-sent-email engagement record: one row per sent
// Email, carrying the pixel id embedded in the message and an append-only
// event log updated by inbound tracking hits.
type EmailTracking struct {
	gorm.Model
	UserID     uint `gorm:"not null;index" json:"user_id"`
	CampaignID uint `gorm:"not null;index" json:"campaign_id"`
	EmailID    uint `gorm:"not null;index" json:"email_id"`

	TrackingPixelID string `gorm:"uniqueIndex;not null" json:"tracking_pixel_id"`

	Events []TrackingEvent `gorm:"type:jsonb;serializer:json" json:"events"`

	// Relations
	Email Email `json:"-"`
}

// HasEvent reports whether the log contains at least one event of the
// given type.
func (t *EmailTracking) HasEvent(eventType string) bool {
	for _, ev := range t.Events {
		if ev.Type == eventType {
			return true
		}
	}
	return false
}

// AppendEvent adds an event to the log and persists the row.
func (t *EmailTracking) AppendEvent(db *gorm.DB, eventType, url string) error {
	t.Events = append(t.Events, TrackingEvent{
		Type:      eventType,
		Timestamp: time.Now(),
		URL:       url,
	})
	return db.Model(t).Update("events", t.Events).Error
}
