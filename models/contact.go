package models

import (
	"strings"

	"gorm.io/gorm"
)

// Contact statuses.
const (
	ContactStatusActive       = "active"
	ContactStatusUnsubscribed = "unsubscribed"
	ContactStatusBounced      = "bounced"
	ContactStatusComplained   = "complained"
)

// Contact represents a single recipient.
type Contact struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Email     string `gorm:"not null;index" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Position  string `json:"position"`
	Phone     string `json:"phone"`

	Status string `gorm:"default:'active'" json:"status"`

	Source string `json:"source"` // manual, csv, api, etc.

	// Relations
	Memberships []ContactListMembership `gorm:"foreignKey:ContactID" json:"lists,omitempty"`
}

// DisplayName resolves the name used in rendered templates: first name,
// else full name, else the email local-part.
func (c *Contact) DisplayName() string {
	if c.FirstName != "" {
		return c.FirstName
	}
	full := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if full != "" {
		return full
	}
	if at := strings.Index(c.Email, "@"); at > 0 {
		return c.Email[:at]
	}
	return c.Email
}

// ContactList represents a named collection of contacts.
type ContactList struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	// TotalContacts caches the membership count; refreshed whenever
	// membership changes.
	TotalContacts int `gorm:"default:0" json:"total_contacts"`

	// Relations
	Memberships []ContactListMembership `gorm:"foreignKey:ContactListID" json:"memberships,omitempty"`
}

// ContactListMembership joins contacts to lists. Position preserves insert
// order so list expansion during recipient resolution is deterministic.
type ContactListMembership struct {
	gorm.Model
	ContactID     uint `gorm:"not null;index" json:"contact_id"`
	ContactListID uint `gorm:"not null;index" json:"contact_list_id"`
	Position      int  `gorm:"default:0" json:"position"`
}
