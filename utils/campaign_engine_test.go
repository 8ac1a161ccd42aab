package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dripcrm/models"
)

func TestStartCampaignSendsToEveryRecipient(t *testing.T) {
	engine, mailer := newTestEngine(t)
	db := engine.DB
	user := seedUser(t, db)
	tpl := seedTemplate(t, db, user.ID, models.TemplateTypeInitial)
	a := seedContact(t, db, user.ID, "a@example.com")
	b := seedContact(t, db, user.ID, "b@example.com")
	campaign := seedCampaign(t, db, user, tpl, a, b)

	got, err := engine.StartCampaign(campaign.ID, user.ID)
	require.NoError(t, err)

	assert.Equal(t, models.CampaignStatusSent, got.Status)
	assert.NotNil(t, got.SentAt)
	assert.Equal(t, 2, got.TotalRecipients)
	assert.Equal(t, 2, got.SentCount)
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, mailer.sentTo())

	var emails []models.Email
	require.NoError(t, db.Where("campaign_id = ?", campaign.ID).Find(&emails).Error)
	require.Len(t, emails, 2)
	for _, email := range emails {
		assert.Equal(t, models.EmailStatusSent, email.Status)
		assert.NotNil(t, email.SentAt)
		assert.NotEmpty(t, email.MessageID)
	}

	var trackingCount int64
	db.Model(&models.EmailTracking{}).Where("campaign_id = ?", campaign.ID).Count(&trackingCount)
	assert.EqualValues(t, 2, trackingCount)
}

func TestStartCampaignIdempotent(t *testing.T) {
	engine, mailer := newTestEngine(t)
	db := engine.DB
	user := seedUser(t, db)
	tpl := seedTemplate(t, db, user.ID, models.TemplateTypeInitial)
	contact := seedContact(t, db, user.ID, "a@example.com")
	campaign := seedCampaign(t, db, user, tpl, contact)

	_, err := engine.StartCampaign(campaign.ID, user.ID)
	require.NoError(t, err)
	require.Equal(t, 1, mailer.sentCount())

	// Second start is a no-op, nothing new is sent
	got, err := engine.StartCampaign(campaign.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusSent, got.Status)
	assert.Equal(t, 1, mailer.sentCount())

	var emailCount int64
	db.Model(&models.Email{}).Where("campaign_id = ?", campaign.ID).Count(&emailCount)
	assert.EqualValues(t, 1, emailCount)
}

func TestStartCampaignPartialFailureIsolated(t *testing.T) {
	engine, mailer := newTestEngine(t)
	db := engine.DB
	user := seedUser(t, db)
	tpl := seedTemplate(t, db, user.ID, models.TemplateTypeInitial)
	a := seedContact(t, db, user.ID, "a@example.com")
	b := seedContact(t, db, user.ID, "b@example.com")
	c := seedContact(t, db, user.ID, "c@example.com")
	campaign := seedCampaign(t, db, user, tpl, a, b, c)

	mailer.failFor["b@example.com"] = errors.New("mailbox unavailable")

	got, err := engine.StartCampaign(campaign.ID, user.ID)
	require.NoError(t, err)

	// The wave completes and the campaign still finishes
	assert.Equal(t, models.CampaignStatusSent, got.Status)
	assert.Equal(t, 2, got.SentCount)
	assert.ElementsMatch(t, []string{"a@example.com", "c@example.com"}, mailer.sentTo())

	var failed models.Email
	require.NoError(t, db.Where("campaign_id = ? AND contact_id = ?", campaign.ID, b.ID).First(&failed).Error)
	assert.Equal(t, models.EmailStatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "mailbox unavailable")
}

func TestStartCampaignNoRecipientsStaysDraft(t *testing.T) {
	engine, mailer := newTestEngine(t)
	db := engine.DB
	user := seedUser(t, db)
	tpl := seedTemplate(t, db, user.ID, models.TemplateTypeInitial)
	campaign := seedCampaign(t, db, user, tpl)

	_, err := engine.StartCampaign(campaign.ID, user.ID)
	require.ErrorIs(t, err, ErrNoRecipients)
	assert.Zero(t, mailer.sentCount())

	var reloaded models.Campaign
	require.NoError(t, db.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusDraft, reloaded.Status)
}

func TestStartCampaignMissingTemplate(t *testing.T) {
	engine, _ := newTestEngine(t)
	db := engine.DB
	user := seedUser(t, db)
	contact := seedContact(t, db, user.ID, "a@example.com")
	tpl := seedTemplate(t, db, user.ID, models.TemplateTypeInitial)
	campaign := seedCampaign(t, db, user, tpl, contact)
	require.NoError(t, db.Model(campaign).Update("template_id", 9999).Error)

	_, err := engine.StartCampaign(campaign.ID, user.ID)
	require.ErrorIs(t, err, ErrMissingTemplate)

	var reloaded models.Campaign
	require.NoError(t, db.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusDraft, reloaded.Status)
}

func TestStartCampaignScopedToOwner(t *testing.T) {
	engine, _ := newTestEngine(t)
	db := engine.DB
	user := seedUser(t, db)
	tpl := seedTemplate(t, db, user.ID, models.TemplateTypeInitial)
	contact := seedContact(t, db, user.ID, "a@example.com")
	campaign := seedCampaign(t, db, user, tpl, contact)

	_, err := engine.StartCampaign(campaign.ID, user.ID+1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateCampaignSequenceBecomesScheduled(t *testing.T) {
	engine, mailer := newTestEngine(t)
	db := engine.DB
	user := seedUser(t, db)
	tpl := seedTemplate(t, db, user.ID, models.TemplateTypeInitial)
	contact := seedContact(t, db, user.ID, "a@example.com")

	got, err := engine.CreateCampaign(user.ID, CreateCampaignInput{
		Name:       "Drip",
		Subject:    "Hello",
		TemplateID: tpl.ID,
		SendType:   models.SendTypeSequence,
		ContactIDs: []uint{contact.ID},
		Sequence: models.SequenceSpec{
			InitialDelayHours: 1,
			FollowupDelays:    []float64{24},
			MaxFollowups:      1,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.CampaignStatusScheduled, got.Status)
	// Nothing goes out at creation time; the sweep dispatches later
	assert.Zero(t, mailer.sentCount())

	var queued int64
	db.Model(&models.Email{}).Where("campaign_id = ? AND status = ?", got.ID, models.EmailStatusQueued).Count(&queued)
	assert.EqualValues(t, 2, queued)
}

func TestCreateCampaignScheduledRequiresTime(t *testing.T) {
	engine, _ := newTestEngine(t)
	user := seedUser(t, engine.DB)
	tpl := seedTemplate(t, engine.DB, user.ID, models.TemplateTypeInitial)

	_, err := engine.CreateCampaign(user.ID, CreateCampaignInput{
		Name:       "Later",
		Subject:    "Hello",
		TemplateID: tpl.ID,
		SendType:   models.SendTypeScheduled,
	})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestUpdateCampaignStatusTransitions(t *testing.T) {
	engine, _ := newTestEngine(t)
	db := engine.DB
	user := seedUser(t, db)
	tpl := seedTemplate(t, db, user.ID, models.TemplateTypeInitial)
	contact := seedContact(t, db, user.ID, "a@example.com")
	campaign := seedCampaign(t, db, user, tpl, contact)

	// Backwards move rejected
	require.NoError(t, db.Model(campaign).Update("status", models.CampaignStatusSent).Error)
	_, err := engine.UpdateCampaignStatus(campaign.ID, user.ID, models.CampaignStatusDraft)
	assert.ErrorIs(t, err, ErrInvalidState)

	// Pause is reversible from sending
	require.NoError(t, db.Model(campaign).Update("status", models.CampaignStatusSending).Error)
	got, err := engine.UpdateCampaignStatus(campaign.ID, user.ID, models.CampaignStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusPaused, got.Status)

	got, err = engine.UpdateCampaignStatus(campaign.ID, user.ID, models.CampaignStatusSending)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusSending, got.Status)

	// Sent campaigns cannot pause
	require.NoError(t, db.Model(campaign).Update("status", models.CampaignStatusSent).Error)
	_, err = engine.UpdateCampaignStatus(campaign.ID, user.ID, models.CampaignStatusPaused)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDeleteCampaignCascades(t *testing.T) {
	engine, _ := newTestEngine(t)
	db := engine.DB
	user := seedUser(t, db)
	tpl := seedTemplate(t, db, user.ID, models.TemplateTypeInitial)
	contact := seedContact(t, db, user.ID, "a@example.com")
	campaign := seedCampaign(t, db, user, tpl, contact)

	_, err := engine.StartCampaign(campaign.ID, user.ID)
	require.NoError(t, err)

	require.NoError(t, engine.DeleteCampaign(campaign.ID, user.ID))

	for _, model := range []interface{}{&models.Email{}, &models.EmailTracking{}, &models.CampaignContact{}} {
		var count int64
		db.Model(model).Where("campaign_id = ?", campaign.ID).Count(&count)
		assert.Zero(t, count)
	}
	var campaignCount int64
	db.Model(&models.Campaign{}).Where("id = ?", campaign.ID).Count(&campaignCount)
	assert.Zero(t, campaignCount)
}

func TestGetCampaignStats(t *testing.T) {
	engine, _ := newTestEngine(t)
	db := engine.DB
	user := seedUser(t, db)
	tpl := seedTemplate(t, db, user.ID, models.TemplateTypeInitial)
	a := seedContact(t, db, user.ID, "a@example.com")
	b := seedContact(t, db, user.ID, "b@example.com")
	campaign := seedCampaign(t, db, user, tpl, a, b)

	_, err := engine.StartCampaign(campaign.ID, user.ID)
	require.NoError(t, err)

	var tracking models.EmailTracking
	require.NoError(t, db.Where("campaign_id = ?", campaign.ID).First(&tracking).Error)
	require.NoError(t, tracking.AppendEvent(db, models.TrackingEventOpened, ""))
	require.NoError(t, tracking.AppendEvent(db, models.TrackingEventOpened, ""))
	require.NoError(t, tracking.AppendEvent(db, models.TrackingEventClicked, "https://x.test"))

	stats, err := engine.GetCampaignStats(campaign.ID, user.ID)
	require.NoError(t, err)

	assert.EqualValues(t, 2, stats.TotalEmails)
	assert.EqualValues(t, 2, stats.SentEmails)
	assert.EqualValues(t, 0, stats.FailedEmails)
	// Unique-email counts, not event counts
	assert.EqualValues(t, 1, stats.OpenedEmails)
	assert.EqualValues(t, 1, stats.ClickedEmails)
}
