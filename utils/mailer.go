package utils

import (
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"dripcrm/config"
	"dripcrm/models"
)

// OutgoingMail is a fully rendered message handed to the dispatch adapter.
type OutgoingMail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// MailConfig is the resolved per-tenant SMTP configuration. It is resolved
// once per campaign-level operation and shared read-only across all
// concurrent recipient sends in that operation.
type MailConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
}

// MailService is the dispatch seam. Implementations return a provider
// message id on success.
type MailService interface {
	Send(mail OutgoingMail, cfg MailConfig) (string, error)
}

// GomailService sends over SMTP via gomail. Constructed once per process
// and passed by reference into the engine and workers.
type GomailService struct{}

func NewGomailService() *GomailService {
	return &GomailService{}
}

func (s *GomailService) Send(mail OutgoingMail, cfg MailConfig) (string, error) {
	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail))
	m.SetHeader("To", mail.To)
	m.SetHeader("Subject", mail.Subject)

	messageID := uuid.New().String()
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", messageID, cfg.Host))

	if mail.HTML != "" {
		m.SetBody("text/html", mail.HTML)
		if mail.Text != "" {
			m.AddAlternative("text/plain", mail.Text)
		}
	} else {
		m.SetBody("text/plain", mail.Text)
	}

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return "", &DispatchError{Recipient: mail.To, Err: err}
	}

	return messageID, nil
}

// ResolveMailConfig returns the tenant's own SMTP credentials when
// configured, otherwise the process-wide fallback. ErrConfig when neither
// is usable.
func ResolveMailConfig(db *gorm.DB, userID uint) (MailConfig, error) {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		return MailConfig{}, fmt.Errorf("resolving mail config: %w", ErrNotFound)
	}

	if user.HasSMTPConfig() {
		cfg := MailConfig{
			Host:      user.SMTPHost,
			Port:      user.SMTPPort,
			Username:  user.SMTPUsername,
			Password:  user.SMTPPassword,
			FromName:  user.FromName,
			FromEmail: user.FromEmail,
		}
		if cfg.Port == 0 {
			cfg.Port = 587
		}
		if cfg.FromEmail == "" {
			cfg.FromEmail = user.SMTPUsername
		}
		if cfg.FromName == "" {
			cfg.FromName = user.Name
		}
		return cfg, nil
	}

	fallback := config.AppConfig.SMTP
	if fallback.Host == "" || fallback.Username == "" {
		return MailConfig{}, ErrConfig
	}
	cfg := MailConfig{
		Host:      fallback.Host,
		Port:      fallback.Port,
		Username:  fallback.Username,
		Password:  fallback.Password,
		FromName:  fallback.FromName,
		FromEmail: fallback.FromEmail,
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = fallback.Username
	}
	return cfg, nil
}
