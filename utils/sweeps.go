package utils

import (
	"time"

	"github.com/sirupsen/logrus"

	"dripcrm/models"
)

// The three sweep operations below are idempotent and safe to invoke on
// overlapping timers: each row is claimed with a conditional write keyed
// on its current "due" status before any dispatch happens, so a row
// already picked up by a previous pass is skipped. Two passes reading the
// same row before either writes can still double-send; that window is a
// documented limitation of the single-process scheduler.

// ProcessDueEmails dispatches queued Email rows whose scheduled time has
// passed. Bodies are re-rendered from the template at send time so
// last-minute template edits are honored. Per-row failures are logged and
// recorded on the row; the sweep always finishes its pass.
func (e *CampaignEngine) ProcessDueEmails() {
	var due []models.Email
	if err := e.DB.Where("status = ? AND scheduled_at <= ?", models.EmailStatusQueued, time.Now()).
		Find(&due).Error; err != nil {
		e.Logger.WithError(err).Error("due-emails sweep query failed")
		return
	}

	cfgCache := make(map[uint]MailConfig)
	for i := range due {
		e.processDueEmail(&due[i], cfgCache)
	}
}

func (e *CampaignEngine) processDueEmail(email *models.Email, cfgCache map[uint]MailConfig) {
	// Claim the row; loses the race if another pass got here first
	claim := e.DB.Model(&models.Email{}).
		Where("id = ? AND status = ?", email.ID, models.EmailStatusQueued).
		Update("status", models.EmailStatusSending)
	if claim.Error != nil || claim.RowsAffected == 0 {
		return
	}

	fail := func(err error) {
		e.Logger.WithError(err).WithField("email_id", email.ID).Warn("due email failed")
		e.DB.Model(email).Updates(map[string]interface{}{
			"status":        models.EmailStatusFailed,
			"error_message": err.Error(),
		})
	}

	var campaign models.Campaign
	if err := e.DB.First(&campaign, email.CampaignID).Error; err != nil {
		fail(err)
		return
	}
	var contact models.Contact
	if err := e.DB.First(&contact, email.ContactID).Error; err != nil {
		fail(err)
		return
	}
	tpl, err := e.loadTemplate(email.TemplateID, email.UserID)
	if err != nil {
		fail(err)
		return
	}

	mailCfg, ok := cfgCache[email.UserID]
	if !ok {
		mailCfg, err = ResolveMailConfig(e.DB, email.UserID)
		if err != nil {
			fail(err)
			return
		}
		cfgCache[email.UserID] = mailCfg
	}

	rendered := e.renderForContact(tpl, &contact, mailCfg, email.Subject)
	if _, err := e.dispatchEmail(email, &campaign, &contact, rendered, mailCfg); err != nil {
		// dispatchEmail already recorded the failure on the row
		e.Logger.WithError(err).WithField("email_id", email.ID).Warn("due email dispatch failed")
	}
}

// ProcessScheduledCampaigns starts scheduled campaigns whose time has
// passed, running the same send path as an immediate start.
func (e *CampaignEngine) ProcessScheduledCampaigns() {
	var due []models.Campaign
	if err := e.DB.Where("status = ? AND scheduled_at <= ?", models.CampaignStatusScheduled, time.Now()).
		Find(&due).Error; err != nil {
		e.Logger.WithError(err).Error("scheduled-campaigns sweep query failed")
		return
	}

	for i := range due {
		e.processScheduledCampaign(&due[i])
	}
}

func (e *CampaignEngine) processScheduledCampaign(campaign *models.Campaign) {
	claim := e.DB.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaign.ID, models.CampaignStatusScheduled).
		Update("status", models.CampaignStatusSending)
	if claim.Error != nil || claim.RowsAffected == 0 {
		return
	}

	// Setup failure after the claim: put the campaign back so the next
	// pass retries once the underlying problem is fixed.
	revert := func(err error) {
		e.Logger.WithError(err).WithField("campaign_id", campaign.ID).
			Error("scheduled campaign setup failed")
		e.DB.Model(campaign).Update("status", models.CampaignStatusScheduled)
	}

	tpl, err := e.loadTemplate(campaign.TemplateID, campaign.UserID)
	if err != nil {
		revert(err)
		return
	}
	recipients, err := e.ResolveRecipients(campaign)
	if err != nil {
		revert(err)
		return
	}
	if len(recipients) == 0 {
		revert(ErrNoRecipients)
		return
	}
	mailCfg, err := ResolveMailConfig(e.DB, campaign.UserID)
	if err != nil {
		revert(err)
		return
	}

	if err := e.DB.Model(campaign).Update("total_recipients", len(recipients)).Error; err != nil {
		e.Logger.WithError(err).Warn("failed to record recipient count")
	}

	e.runSendWave(campaign, tpl, recipients, mailCfg)

	e.DB.Model(campaign).Updates(map[string]interface{}{
		"status":  models.CampaignStatusSent,
		"sent_at": time.Now(),
	})

	e.Logger.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"recipients":  len(recipients),
	}).Info("scheduled campaign sent")
}

// ProcessScheduledFollowups evaluates due follow-ups: unmet conditions
// cancel the follow-up, met conditions dispatch a new Email tied to the
// original via ParentEmailID.
func (e *CampaignEngine) ProcessScheduledFollowups() {
	var due []models.Followup
	if err := e.DB.Where("status = ? AND scheduled_at <= ?", models.FollowupStatusScheduled, time.Now()).
		Find(&due).Error; err != nil {
		e.Logger.WithError(err).Error("due-followups sweep query failed")
		return
	}

	cfgCache := make(map[uint]MailConfig)
	for i := range due {
		e.processDueFollowup(&due[i], cfgCache)
	}
}

func (e *CampaignEngine) processDueFollowup(followup *models.Followup, cfgCache map[uint]MailConfig) {
	// Re-check the status right before acting
	var fresh models.Followup
	if err := e.DB.First(&fresh, followup.ID).Error; err != nil {
		return
	}
	if fresh.Status != models.FollowupStatusScheduled {
		return
	}

	if !e.EvaluateFollowupConditions(&fresh) {
		e.DB.Model(&models.Followup{}).
			Where("id = ? AND status = ?", fresh.ID, models.FollowupStatusScheduled).
			Update("status", models.FollowupStatusCancelled)
		e.Logger.WithField("followup_id", fresh.ID).Info("follow-up cancelled, conditions not met")
		return
	}

	fail := func(err error) {
		e.Logger.WithError(err).WithField("followup_id", fresh.ID).Warn("follow-up failed")
		e.DB.Model(&fresh).Updates(map[string]interface{}{
			"status":        models.FollowupStatusFailed,
			"error_message": err.Error(),
		})
	}

	var campaign models.Campaign
	if err := e.DB.First(&campaign, fresh.CampaignID).Error; err != nil {
		fail(err)
		return
	}
	var contact models.Contact
	if err := e.DB.First(&contact, fresh.ContactID).Error; err != nil {
		fail(err)
		return
	}
	tpl, err := e.loadTemplate(fresh.TemplateID, fresh.UserID)
	if err != nil {
		fail(err)
		return
	}

	mailCfg, ok := cfgCache[fresh.UserID]
	if !ok {
		mailCfg, err = ResolveMailConfig(e.DB, fresh.UserID)
		if err != nil {
			fail(err)
			return
		}
		cfgCache[fresh.UserID] = mailCfg
	}

	rendered := e.renderForContact(tpl, &contact, mailCfg, "")

	email := models.Email{
		UserID:         fresh.UserID,
		CampaignID:     fresh.CampaignID,
		ContactID:      fresh.ContactID,
		TemplateID:     tpl.ID,
		Subject:        rendered.Subject,
		Status:         models.EmailStatusQueued,
		IsFollowup:     true,
		FollowupNumber: fresh.Sequence,
		ParentEmailID:  Pointer(fresh.OriginalEmailID),
	}
	if err := e.DB.Create(&email).Error; err != nil {
		fail(err)
		return
	}

	if _, err := e.dispatchEmail(&email, &campaign, &contact, rendered, mailCfg); err != nil {
		fail(err)
		return
	}

	e.DB.Model(&fresh).Updates(map[string]interface{}{
		"status":  models.FollowupStatusSent,
		"sent_at": time.Now(),
	})
}
