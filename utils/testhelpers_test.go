package utils

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"dripcrm/config"
	"dripcrm/models"
)

// newTestDB opens a fresh in-memory database. Single connection so every
// goroutine sees the same memory store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db))
	return db
}

// fakeMailer records sends in memory and can be told to fail for
// specific recipients.
type fakeMailer struct {
	mu      sync.Mutex
	sent    []OutgoingMail
	failFor map[string]error
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{failFor: make(map[string]error)}
}

func (m *fakeMailer) Send(mail OutgoingMail, cfg MailConfig) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failFor[mail.To]; ok {
		return "", &DispatchError{Recipient: mail.To, Err: err}
	}
	m.sent = append(m.sent, mail)
	return fmt.Sprintf("msg-%d", len(m.sent)), nil
}

func (m *fakeMailer) sentTo() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	to := make([]string, len(m.sent))
	for i, mail := range m.sent {
		to[i] = mail.To
	}
	return to
}

func (m *fakeMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func newTestEngine(t *testing.T) (*CampaignEngine, *fakeMailer) {
	t.Helper()

	config.AppConfig.ClientURL = "https://app.example.com"

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	mailer := newFakeMailer()
	return NewCampaignEngine(newTestDB(t), logger, mailer), mailer
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := models.User{
		Email:        "owner@acme.io",
		Name:         "Acme Owner",
		SMTPHost:     "smtp.acme.io",
		SMTPPort:     587,
		SMTPUsername: "owner@acme.io",
		SMTPPassword: "secret",
		FromName:     "Acme",
		FromEmail:    "sales@acme.io",
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func seedTemplate(t *testing.T, db *gorm.DB, userID uint, tplType string) *models.Template {
	t.Helper()
	tpl := models.Template{
		UserID:      userID,
		Name:        "Test " + tplType,
		Type:        tplType,
		Subject:     "Hello {{name}}",
		HTMLContent: "<p>Hi {{name}} from {{senderName}}</p>",
		TextContent: "Hi {{name}}",
	}
	require.NoError(t, db.Create(&tpl).Error)
	return &tpl
}

func seedContact(t *testing.T, db *gorm.DB, userID uint, email string) *models.Contact {
	t.Helper()
	contact := models.Contact{
		UserID:    userID,
		Email:     email,
		FirstName: "Pat",
		Status:    models.ContactStatusActive,
	}
	require.NoError(t, db.Create(&contact).Error)
	return &contact
}

// seedCampaign creates a draft campaign with direct contacts attached in
// the given order.
func seedCampaign(t *testing.T, db *gorm.DB, user *models.User, tpl *models.Template, contacts ...*models.Contact) *models.Campaign {
	t.Helper()
	campaign := models.Campaign{
		UserID:     user.ID,
		Name:       "Test Campaign",
		Subject:    "Hello {{name}}",
		TemplateID: tpl.ID,
		Status:     models.CampaignStatusDraft,
		SendType:   models.SendTypeImmediate,
	}
	require.NoError(t, db.Create(&campaign).Error)

	for i, c := range contacts {
		require.NoError(t, db.Create(&models.CampaignContact{
			CampaignID: campaign.ID,
			ContactID:  c.ID,
			Position:   i,
		}).Error)
	}
	return &campaign
}
