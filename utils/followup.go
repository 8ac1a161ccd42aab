package utils

import (
	"time"

	"gorm.io/gorm"

	"dripcrm/models"
)

// CreateFollowupSequence schedules the conditional follow-ups for one
// successfully sent Email (the legacy post-send path, distinct from
// sequence-type planning). With explicit steps on the campaign, each step
// becomes a Followup offset from the original send time; without steps,
// the tenant's followup1..3 templates are scheduled at day granularity
// from now.
func (e *CampaignEngine) CreateFollowupSequence(campaign *models.Campaign, original *models.Email) error {
	if len(campaign.Sequence.Steps) > 0 {
		return e.createStepFollowups(campaign, original)
	}
	return e.createLegacyFollowups(campaign, original)
}

func (e *CampaignEngine) createStepFollowups(campaign *models.Campaign, original *models.Email) error {
	sentAt := time.Now()
	if original.SentAt != nil {
		sentAt = *original.SentAt
	}

	for i, step := range campaign.Sequence.Steps {
		conditions := step.Conditions
		if conditions == (models.FollowupConditions{}) {
			conditions = models.DefaultFollowupConditions()
		}

		followup := models.Followup{
			UserID:          campaign.UserID,
			CampaignID:      campaign.ID,
			ContactID:       original.ContactID,
			TemplateID:      step.TemplateID,
			OriginalEmailID: original.ID,
			Sequence:        i + 1,
			ScheduledAt:     sentAt.Add(hoursToDuration(step.DelayHours)),
			Conditions:      conditions,
			Status:          models.FollowupStatusScheduled,
		}
		if err := e.DB.Create(&followup).Error; err != nil {
			return err
		}
	}
	return nil
}

var legacyFollowupTypes = []string{
	models.TemplateTypeFollowup1,
	models.TemplateTypeFollowup2,
	models.TemplateTypeFollowup3,
}

func (e *CampaignEngine) createLegacyFollowups(campaign *models.Campaign, original *models.Email) error {
	maxFollowups := campaign.Settings.MaxFollowups
	if maxFollowups <= 0 || maxFollowups > len(legacyFollowupTypes) {
		maxFollowups = len(legacyFollowupTypes)
	}
	delayDays := campaign.Settings.FollowupDelayDays
	if delayDays <= 0 {
		delayDays = 3
	}

	now := time.Now()
	for i := 0; i < maxFollowups; i++ {
		var tpl models.Template
		err := e.DB.Where("user_id = ? AND type = ?", campaign.UserID, legacyFollowupTypes[i]).
			First(&tpl).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return err
		}

		followup := models.Followup{
			UserID:          campaign.UserID,
			CampaignID:      campaign.ID,
			ContactID:       original.ContactID,
			TemplateID:      tpl.ID,
			OriginalEmailID: original.ID,
			Sequence:        i + 1,
			ScheduledAt:     now.AddDate(0, 0, delayDays*(i+1)),
			Conditions:      models.DefaultFollowupConditions(),
			Status:          models.FollowupStatusScheduled,
		}
		if err := e.DB.Create(&followup).Error; err != nil {
			return err
		}
	}
	return nil
}

// EvaluateFollowupConditions decides send/cancel for a due follow-up by
// reading the ORIGINAL email's tracking record. No tracking record means
// the follow-up does not fire. Every enabled condition must hold.
func (e *CampaignEngine) EvaluateFollowupConditions(followup *models.Followup) bool {
	var tracking models.EmailTracking
	if err := e.DB.Where("email_id = ?", followup.OriginalEmailID).First(&tracking).Error; err != nil {
		return false
	}

	c := followup.Conditions
	if c.RequireOpen && !tracking.HasEvent(models.TrackingEventOpened) {
		return false
	}
	if c.RequireClick && !tracking.HasEvent(models.TrackingEventClicked) {
		return false
	}
	if c.RequireNoReply && tracking.HasEvent(models.TrackingEventReplied) {
		return false
	}
	return true
}
