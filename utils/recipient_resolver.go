package utils

import (
	"dripcrm/models"
)

// ResolveRecipients expands a campaign's direct contacts and contact
// lists into a deduplicated recipient slice. Order is deterministic:
// direct contacts first in attach order, then each list's members in list
// order, with later duplicates dropped (first occurrence wins).
//
// Contact status is NOT filtered here: unsubscribed or bounced contacts
// still resolve, and bounce handling happens downstream off the tracking
// events.
func (e *CampaignEngine) ResolveRecipients(campaign *models.Campaign) ([]models.Contact, error) {
	var orderedIDs []uint

	var directs []models.CampaignContact
	if err := e.DB.Where("campaign_id = ?", campaign.ID).
		Order("position ASC, id ASC").Find(&directs).Error; err != nil {
		return nil, err
	}
	for _, d := range directs {
		orderedIDs = append(orderedIDs, d.ContactID)
	}

	var listJoins []models.CampaignContactList
	if err := e.DB.Where("campaign_id = ?", campaign.ID).
		Order("position ASC, id ASC").Find(&listJoins).Error; err != nil {
		return nil, err
	}
	for _, lj := range listJoins {
		var memberships []models.ContactListMembership
		if err := e.DB.Where("contact_list_id = ?", lj.ContactListID).
			Order("position ASC, id ASC").Find(&memberships).Error; err != nil {
			return nil, err
		}
		for _, m := range memberships {
			orderedIDs = append(orderedIDs, m.ContactID)
		}
	}

	seen := make(map[uint]bool, len(orderedIDs))
	var dedupedIDs []uint
	for _, id := range orderedIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		dedupedIDs = append(dedupedIDs, id)
	}
	if len(dedupedIDs) == 0 {
		return nil, nil
	}

	var contacts []models.Contact
	if err := e.DB.Where("id IN ?", dedupedIDs).Find(&contacts).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}

	resolved := make([]models.Contact, 0, len(dedupedIDs))
	for _, id := range dedupedIDs {
		if c, ok := byID[id]; ok {
			resolved = append(resolved, c)
		}
	}
	return resolved, nil
}
