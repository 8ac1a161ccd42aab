package models

import "gorm.io/gorm"

// User is the tenant owning campaigns, contacts and templates. Per-tenant
// SMTP credentials live here; when absent, dispatch falls back to the
// process-wide SMTP configuration.
type User struct {
	gorm.Model
	Email   string `gorm:"uniqueIndex;not null" json:"email"`
	Name    string `json:"name"`
	Company string `json:"company"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	// Per-tenant SMTP configuration (optional)
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `gorm:"default:0" json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"-"`
	FromName     string `json:"from_name"`
	FromEmail    string `json:"from_email"`

	// Relations
	Campaigns []Campaign `gorm:"foreignKey:UserID" json:"campaigns,omitempty"`
}

// HasSMTPConfig reports whether the tenant brings their own SMTP account.
func (u *User) HasSMTPConfig() bool {
	return u.SMTPHost != "" && u.SMTPUsername != ""
}
