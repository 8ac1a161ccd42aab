package utils

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"dripcrm/config"
	"dripcrm/models"
)

// CampaignEngine owns the campaign lifecycle: starting campaigns, planning
// sequences, creating follow-ups and running the periodic sweeps. One
// instance per process, shared by the HTTP layer and the sweep worker.
type CampaignEngine struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Mailer MailService
}

func NewCampaignEngine(db *gorm.DB, logger *logrus.Logger, mailer MailService) *CampaignEngine {
	return &CampaignEngine{
		DB:     db,
		Logger: logger,
		Mailer: mailer,
	}
}

// CreateCampaignInput is the payload for CreateCampaign.
type CreateCampaignInput struct {
	Name           string                  `json:"name" validate:"required,min=1,max=200"`
	Subject        string                  `json:"subject" validate:"required,min=1,max=500"`
	TemplateID     uint                    `json:"template_id" validate:"required"`
	SendType       string                  `json:"send_type" validate:"omitempty,oneof=immediate scheduled sequence"`
	ScheduledAt    *time.Time              `json:"scheduled_at"`
	ContactIDs     []uint                  `json:"contact_ids"`
	ContactListIDs []uint                  `json:"contact_list_ids"`
	Sequence       models.SequenceSpec     `json:"sequence"`
	Settings       models.CampaignSettings `json:"settings"`
}

// CreateCampaign persists a campaign and auto-dispatches it into the path
// its send type demands: immediate campaigns start right away, scheduled
// ones are marked scheduled, sequence ones get their plan laid out.
func (e *CampaignEngine) CreateCampaign(userID uint, input CreateCampaignInput) (*models.Campaign, error) {
	if err := ValidateStruct(input); err != nil {
		return nil, err
	}

	sendType := input.SendType
	if sendType == "" {
		sendType = models.SendTypeImmediate
	}
	if sendType == models.SendTypeScheduled && input.ScheduledAt == nil {
		return nil, fmt.Errorf("scheduled campaign needs scheduled_at: %w", ErrInvalidState)
	}

	campaign := models.Campaign{
		UserID:      userID,
		Name:        input.Name,
		Subject:     input.Subject,
		TemplateID:  input.TemplateID,
		Status:      models.CampaignStatusDraft,
		SendType:    sendType,
		ScheduledAt: input.ScheduledAt,
		Sequence:    input.Sequence,
		Settings:    input.Settings,
	}

	err := e.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&campaign).Error; err != nil {
			return err
		}
		for i, contactID := range input.ContactIDs {
			if err := tx.Create(&models.CampaignContact{
				CampaignID: campaign.ID,
				ContactID:  contactID,
				Position:   i,
			}).Error; err != nil {
				return err
			}
		}
		for i, listID := range input.ContactListIDs {
			if err := tx.Create(&models.CampaignContactList{
				CampaignID:    campaign.ID,
				ContactListID: listID,
				Position:      i,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return e.dispatchBySendType(&campaign)
}

// ManualStartCampaign starts a draft campaign according to its send type.
// Any non-draft campaign is returned unchanged.
func (e *CampaignEngine) ManualStartCampaign(campaignID, userID uint) (*models.Campaign, error) {
	campaign, err := e.loadCampaign(campaignID, userID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusDraft {
		return campaign, nil
	}
	return e.dispatchBySendType(campaign)
}

func (e *CampaignEngine) dispatchBySendType(campaign *models.Campaign) (*models.Campaign, error) {
	switch campaign.SendType {
	case models.SendTypeImmediate:
		return e.StartCampaign(campaign.ID, campaign.UserID)
	case models.SendTypeScheduled:
		if campaign.ScheduledAt == nil {
			return nil, fmt.Errorf("scheduled campaign needs scheduled_at: %w", ErrInvalidState)
		}
		if err := e.DB.Model(campaign).Update("status", models.CampaignStatusScheduled).Error; err != nil {
			return nil, err
		}
		campaign.Status = models.CampaignStatusScheduled
		return campaign, nil
	case models.SendTypeSequence:
		return e.SetupSequenceFollowups(campaign.ID, campaign.UserID)
	default:
		return nil, fmt.Errorf("unknown send type %q: %w", campaign.SendType, ErrInvalidState)
	}
}

// StartCampaign runs the immediate send path. Starting a non-draft
// campaign is a no-op returning the campaign unchanged, so repeated start
// requests send at most once. Setup failures (missing template, empty
// recipient set, unusable mail config) abort before any status change so
// the campaign stays draft and a retry is safe; per-recipient dispatch
// failures are isolated and never abort the wave.
func (e *CampaignEngine) StartCampaign(campaignID, userID uint) (*models.Campaign, error) {
	campaign, err := e.loadCampaign(campaignID, userID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusDraft {
		return campaign, nil
	}

	tpl, err := e.loadTemplate(campaign.TemplateID, userID)
	if err != nil {
		return nil, err
	}

	recipients, err := e.ResolveRecipients(campaign)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("campaign %d: %w", campaign.ID, ErrNoRecipients)
	}

	// Resolved once and shared read-only by every recipient send in this run
	mailCfg, err := ResolveMailConfig(e.DB, userID)
	if err != nil {
		return nil, err
	}

	// Eager progress indicator, not tied to actual send outcomes
	if err := e.DB.Model(campaign).Updates(map[string]interface{}{
		"status":           models.CampaignStatusSending,
		"total_recipients": len(recipients),
	}).Error; err != nil {
		return nil, err
	}

	e.runSendWave(campaign, tpl, recipients, mailCfg)

	now := time.Now()
	if err := e.DB.Model(campaign).Updates(map[string]interface{}{
		"status":  models.CampaignStatusSent,
		"sent_at": now,
	}).Error; err != nil {
		return nil, err
	}

	return e.loadCampaign(campaignID, userID)
}

// runSendWave dispatches to every recipient concurrently. Individual
// failures are recorded on the Email row and logged; the wave always
// completes.
func (e *CampaignEngine) runSendWave(campaign *models.Campaign, tpl *models.Template, recipients []models.Contact, mailCfg MailConfig) {
	var wg sync.WaitGroup
	for i := range recipients {
		wg.Add(1)
		go func(contact models.Contact) {
			defer wg.Done()

			email, err := e.sendToRecipient(campaign, tpl, &contact, mailCfg)
			if err != nil {
				e.Logger.WithFields(logrus.Fields{
					"campaign_id": campaign.ID,
					"contact_id":  contact.ID,
				}).WithError(err).Warn("recipient send failed")
				return
			}

			if campaign.Settings.EnableFollowups && campaign.SendType != models.SendTypeSequence {
				if err := e.CreateFollowupSequence(campaign, email); err != nil {
					e.Logger.WithError(err).WithField("email_id", email.ID).
						Error("failed to create follow-up sequence")
				}
			}
		}(recipients[i])
	}
	wg.Wait()
}

// sendToRecipient renders, queues, dispatches and tracks one message.
func (e *CampaignEngine) sendToRecipient(campaign *models.Campaign, tpl *models.Template, contact *models.Contact, mailCfg MailConfig) (*models.Email, error) {
	rendered := e.renderForContact(tpl, contact, mailCfg, "")

	email := models.Email{
		UserID:     campaign.UserID,
		CampaignID: campaign.ID,
		ContactID:  contact.ID,
		TemplateID: tpl.ID,
		Subject:    rendered.Subject,
		Status:     models.EmailStatusQueued,
	}
	if err := e.DB.Create(&email).Error; err != nil {
		return nil, err
	}

	return e.dispatchEmail(&email, campaign, contact, rendered, mailCfg)
}

// dispatchEmail sends an already-queued Email and records the outcome:
// sent rows get SentAt, MessageID and a fresh tracking record; failed rows
// keep the error message.
func (e *CampaignEngine) dispatchEmail(email *models.Email, campaign *models.Campaign, contact *models.Contact, rendered RenderedMail, mailCfg MailConfig) (*models.Email, error) {
	pixelID := NewTrackingPixelID()

	html := rendered.HTML
	if html != "" && (campaign.Settings.TrackOpens || campaign.Settings.TrackClicks) {
		html = InjectTracking(html, config.AppConfig.ClientURL, pixelID,
			campaign.Settings.TrackOpens, campaign.Settings.TrackClicks)
	}

	messageID, err := e.Mailer.Send(OutgoingMail{
		To:      contact.Email,
		Subject: rendered.Subject,
		Text:    rendered.Text,
		HTML:    html,
	}, mailCfg)
	if err != nil {
		e.DB.Model(email).Updates(map[string]interface{}{
			"status":        models.EmailStatusFailed,
			"error_message": err.Error(),
		})
		email.Status = models.EmailStatusFailed
		return nil, err
	}

	now := time.Now()
	if err := e.DB.Model(email).Updates(map[string]interface{}{
		"status":     models.EmailStatusSent,
		"sent_at":    now,
		"message_id": messageID,
	}).Error; err != nil {
		return nil, err
	}
	email.Status = models.EmailStatusSent
	email.SentAt = &now
	email.MessageID = messageID

	tracking := models.EmailTracking{
		UserID:          campaign.UserID,
		CampaignID:      campaign.ID,
		EmailID:         email.ID,
		TrackingPixelID: pixelID,
	}
	if err := e.DB.Create(&tracking).Error; err != nil {
		e.Logger.WithError(err).WithField("email_id", email.ID).
			Error("failed to create tracking record")
	}

	e.DB.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
		Update("sent_count", gorm.Expr("sent_count + ?", 1))

	return email, nil
}

// renderForContact renders the template for one recipient. A non-empty
// subjectOverride replaces the template subject before substitution, so
// planner-written subjects (follow-up prefixes) survive send-time
// re-rendering.
func (e *CampaignEngine) renderForContact(tpl *models.Template, contact *models.Contact, mailCfg MailConfig, subjectOverride string) RenderedMail {
	t := *tpl
	if subjectOverride != "" {
		t.Subject = subjectOverride
	}
	items := e.findCatalogItemsByIDs(tpl.SelectedCatalogItemIDs)
	return RenderTemplate(&t, contact, mailCfg.FromEmail, items)
}

// findCatalogItemsByIDs returns the items in selection order.
func (e *CampaignEngine) findCatalogItemsByIDs(ids []uint) []models.CatalogItem {
	if len(ids) == 0 {
		return nil
	}
	var items []models.CatalogItem
	if err := e.DB.Where("id IN ?", ids).Find(&items).Error; err != nil {
		e.Logger.WithError(err).Warn("catalog item lookup failed")
		return nil
	}
	byID := make(map[uint]models.CatalogItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	ordered := make([]models.CatalogItem, 0, len(items))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			ordered = append(ordered, item)
		}
	}
	return ordered
}

// UpdateCampaignStatus applies a caller-requested status change. Forward
// transitions only, except paused which a sending campaign can toggle.
func (e *CampaignEngine) UpdateCampaignStatus(campaignID, userID uint, status string) (*models.Campaign, error) {
	campaign, err := e.loadCampaign(campaignID, userID)
	if err != nil {
		return nil, err
	}
	if !validStatusTransition(campaign.Status, status) {
		return nil, fmt.Errorf("%s -> %s: %w", campaign.Status, status, ErrInvalidState)
	}
	if err := e.DB.Model(campaign).Update("status", status).Error; err != nil {
		return nil, err
	}
	campaign.Status = status
	return campaign, nil
}

var statusRank = map[string]int{
	models.CampaignStatusDraft:     0,
	models.CampaignStatusScheduled: 1,
	models.CampaignStatusSending:   2,
	models.CampaignStatusSent:      3,
	models.CampaignStatusCompleted: 4,
}

func validStatusTransition(from, to string) bool {
	if from == to {
		return false
	}
	// paused is the only reversible state
	if to == models.CampaignStatusPaused {
		return from == models.CampaignStatusSending || from == models.CampaignStatusScheduled
	}
	if from == models.CampaignStatusPaused {
		return to == models.CampaignStatusSending || to == models.CampaignStatusScheduled
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// CampaignStats is recomputed from Email rows and tracking logs; the
// denormalized campaign counters are advisory only.
type CampaignStats struct {
	TotalEmails   int64 `json:"totalEmails"`
	SentEmails    int64 `json:"sentEmails"`
	FailedEmails  int64 `json:"failedEmails"`
	OpenedEmails  int64 `json:"openedEmails"`
	ClickedEmails int64 `json:"clickedEmails"`
	RepliedEmails int64 `json:"repliedEmails"`
	BouncedEmails int64 `json:"bouncedEmails"`
	Unsubscribed  int64 `json:"unsubscribed"`
}

func (e *CampaignEngine) GetCampaignStats(campaignID, userID uint) (*CampaignStats, error) {
	campaign, err := e.loadCampaign(campaignID, userID)
	if err != nil {
		return nil, err
	}

	var stats CampaignStats
	base := e.DB.Model(&models.Email{}).Where("campaign_id = ?", campaign.ID)
	base.Session(&gorm.Session{}).Count(&stats.TotalEmails)
	base.Session(&gorm.Session{}).Where("status = ?", models.EmailStatusSent).Count(&stats.SentEmails)
	base.Session(&gorm.Session{}).Where("status = ?", models.EmailStatusFailed).Count(&stats.FailedEmails)

	var trackings []models.EmailTracking
	if err := e.DB.Where("campaign_id = ?", campaign.ID).Find(&trackings).Error; err != nil {
		return nil, err
	}
	for i := range trackings {
		t := &trackings[i]
		if t.HasEvent(models.TrackingEventOpened) {
			stats.OpenedEmails++
		}
		if t.HasEvent(models.TrackingEventClicked) {
			stats.ClickedEmails++
		}
		if t.HasEvent(models.TrackingEventReplied) {
			stats.RepliedEmails++
		}
		if t.HasEvent(models.TrackingEventBounced) {
			stats.BouncedEmails++
		}
		if t.HasEvent(models.TrackingEventUnsubscribed) {
			stats.Unsubscribed++
		}
	}
	return &stats, nil
}

// DeleteCampaign removes a campaign and cascades its Emails, Followups
// and tracking records.
func (e *CampaignEngine) DeleteCampaign(campaignID, userID uint) error {
	campaign, err := e.loadCampaign(campaignID, userID)
	if err != nil {
		return err
	}
	return e.DB.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.EmailTracking{},
			&models.Email{},
			&models.Followup{},
		} {
			if err := tx.Where("campaign_id = ?", campaign.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("campaign_id = ?", campaign.ID).Delete(&models.CampaignContact{}).Error; err != nil {
			return err
		}
		if err := tx.Where("campaign_id = ?", campaign.ID).Delete(&models.CampaignContactList{}).Error; err != nil {
			return err
		}
		return tx.Delete(campaign).Error
	})
}

func (e *CampaignEngine) loadCampaign(campaignID, userID uint) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := e.DB.Where("id = ? AND user_id = ?", campaignID, userID).First(&campaign).Error; err != nil {
		return nil, fmt.Errorf("campaign %d: %w", campaignID, ErrNotFound)
	}
	return &campaign, nil
}

func (e *CampaignEngine) loadTemplate(templateID, userID uint) (*models.Template, error) {
	var tpl models.Template
	if err := e.DB.Where("id = ? AND user_id = ?", templateID, userID).First(&tpl).Error; err != nil {
		return nil, fmt.Errorf("template %d: %w", templateID, ErrMissingTemplate)
	}
	return &tpl, nil
}
