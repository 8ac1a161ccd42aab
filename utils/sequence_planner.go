package utils

import (
	"fmt"
	"time"

	"dripcrm/models"
)

// hoursToDuration converts fractional hours to a duration without losing
// sub-hour precision.
func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

// plannedSend is one slot in a sequence campaign's absolute schedule,
// shared by every recipient.
type plannedSend struct {
	at             time.Time
	templateID     uint
	subject        string // empty means use the template subject at send time
	followupNumber int
}

// SetupSequenceFollowups lays out the absolute send schedule for a
// sequence-type campaign: one initial Email per recipient at
// now+initialDelay, then follow-up Emails at cumulative step offsets. It
// only plans; the due-emails sweep dispatches the queued rows when their
// time comes. The campaign ends up scheduled.
func (e *CampaignEngine) SetupSequenceFollowups(campaignID, userID uint) (*models.Campaign, error) {
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

	plan := e.buildSequencePlan(campaign, tpl, time.Now())

	for _, contact := range recipients {
		for _, send := range plan {
			email := models.Email{
				UserID:         campaign.UserID,
				CampaignID:     campaign.ID,
				ContactID:      contact.ID,
				TemplateID:     send.templateID,
				Subject:        send.subject,
				Status:         models.EmailStatusQueued,
				ScheduledAt:    Pointer(send.at),
				IsFollowup:     send.followupNumber > 0,
				FollowupNumber: send.followupNumber,
			}
			if err := e.DB.Create(&email).Error; err != nil {
				return nil, err
			}
		}
	}

	if err := e.DB.Model(campaign).Updates(map[string]interface{}{
		"status":           models.CampaignStatusScheduled,
		"total_recipients": len(recipients),
	}).Error; err != nil {
		return nil, err
	}
	campaign.Status = models.CampaignStatusScheduled

	e.Logger.WithFields(map[string]interface{}{
		"campaign_id": campaign.ID,
		"recipients":  len(recipients),
		"sends":       len(plan),
	}).Info("sequence campaign planned")

	return campaign, nil
}

// buildSequencePlan computes the schedule once; it is identical for every
// recipient. Delays accumulate: each step's offset is relative to the
// previous send, not to t0. A missing step template skips that step's
// send but still advances the clock.
func (e *CampaignEngine) buildSequencePlan(campaign *models.Campaign, tpl *models.Template, now time.Time) []plannedSend {
	seq := campaign.Sequence
	t := now.Add(hoursToDuration(seq.InitialDelayHours))

	plan := []plannedSend{{at: t, templateID: tpl.ID}}

	if len(seq.Steps) > 0 {
		limit := seq.MaxFollowups
		if limit > len(seq.Steps) {
			limit = len(seq.Steps)
		}
		for i := 0; i < limit; i++ {
			step := seq.Steps[i]
			t = t.Add(hoursToDuration(step.DelayHours))

			var stepTpl models.Template
			if err := e.DB.Where("id = ? AND user_id = ?", step.TemplateID, campaign.UserID).
				First(&stepTpl).Error; err != nil {
				e.Logger.WithFields(map[string]interface{}{
					"campaign_id": campaign.ID,
					"step":        i + 1,
					"template_id": step.TemplateID,
				}).Warn("step template not found, skipping step")
				continue
			}

			plan = append(plan, plannedSend{
				at:             t,
				templateID:     stepTpl.ID,
				followupNumber: i + 1,
			})
		}
		return plan
	}

	limit := seq.MaxFollowups
	if limit > len(seq.FollowupDelays) {
		limit = len(seq.FollowupDelays)
	}
	for i := 0; i < limit; i++ {
		t = t.Add(hoursToDuration(seq.FollowupDelays[i]))
		plan = append(plan, plannedSend{
			at:             t,
			templateID:     tpl.ID,
			subject:        fmt.Sprintf("Follow-up %d: %s", i+1, tpl.Subject),
			followupNumber: i + 1,
		})
	}
	return plan
}
