package models

import "gorm.io/gorm"

// Migrate runs the schema migration for every model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Contact{},
		&ContactList{},
		&ContactListMembership{},
		&Template{},
		&CatalogItem{},
		&Campaign{},
		&CampaignContact{},
		&CampaignContactList{},
		&Email{},
		&Followup{},
		&EmailTracking{},
	)
}
