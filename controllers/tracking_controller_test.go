package controller

import (
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"dripcrm/models"
	"dripcrm/utils"
)

func newTrackingTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.Migrate(db))

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	tc := NewTrackingController(db, logger)

	app := fiber.New()
	app.Get("/track/open/:pixelID/:token", tc.TrackOpen)
	app.Get("/track/click/:pixelID/:token", tc.TrackClick)
	app.Get("/track/unsubscribe/:pixelID/:token", tc.Unsubscribe)

	return app, db
}

func seedTracking(t *testing.T, db *gorm.DB) (*models.EmailTracking, string) {
	t.Helper()

	contact := models.Contact{UserID: 1, Email: "pat@example.com", Status: models.ContactStatusActive}
	require.NoError(t, db.Create(&contact).Error)
	campaign := models.Campaign{UserID: 1, Name: "C", Subject: "S", TemplateID: 1}
	require.NoError(t, db.Create(&campaign).Error)
	email := models.Email{UserID: 1, CampaignID: campaign.ID, ContactID: contact.ID, TemplateID: 1, Status: models.EmailStatusSent}
	require.NoError(t, db.Create(&email).Error)

	pixelID := utils.NewTrackingPixelID()
	tracking := models.EmailTracking{
		UserID:          1,
		CampaignID:      campaign.ID,
		EmailID:         email.ID,
		TrackingPixelID: pixelID,
	}
	require.NoError(t, db.Create(&tracking).Error)

	// Pull the signed token out of a generated pixel URL
	pixelURL := utils.GenerateTrackingPixelURL("http://x", pixelID)
	parts := strings.Split(pixelURL, "/")
	token := parts[len(parts)-1]

	return &tracking, token
}

func TestTrackOpenRecordsEventAndServesPixel(t *testing.T) {
	app, db := newTrackingTestApp(t)
	tracking, token := seedTracking(t, db)

	resp, err := app.Test(httptest.NewRequest("GET", "/track/open/"+tracking.TrackingPixelID+"/"+token, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/gif", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, body)

	var reloaded models.EmailTracking
	require.NoError(t, db.First(&reloaded, tracking.ID).Error)
	assert.True(t, reloaded.HasEvent(models.TrackingEventOpened))

	var campaign models.Campaign
	require.NoError(t, db.First(&campaign, tracking.CampaignID).Error)
	assert.Equal(t, 1, campaign.OpenCount)

	// Repeat opens don't bump the unique counter again
	_, err = app.Test(httptest.NewRequest("GET", "/track/open/"+tracking.TrackingPixelID+"/"+token, nil))
	require.NoError(t, err)
	require.NoError(t, db.First(&campaign, tracking.CampaignID).Error)
	assert.Equal(t, 1, campaign.OpenCount)
}

func TestTrackOpenForgedTokenRecordsNothing(t *testing.T) {
	app, db := newTrackingTestApp(t)
	tracking, _ := seedTracking(t, db)

	resp, err := app.Test(httptest.NewRequest("GET", "/track/open/"+tracking.TrackingPixelID+"/forged", nil))
	require.NoError(t, err)
	// Still serves the pixel, just silently
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var reloaded models.EmailTracking
	require.NoError(t, db.First(&reloaded, tracking.ID).Error)
	assert.Empty(t, reloaded.Events)
}

func TestTrackClickRedirectsAndRecords(t *testing.T) {
	app, db := newTrackingTestApp(t)
	tracking, token := seedTracking(t, db)

	target := "https://shop.test/item?a=1"
	path := "/track/click/" + tracking.TrackingPixelID + "/" + token + "?url=" + url.QueryEscape(target)
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, target, resp.Header.Get("Location"))

	var reloaded models.EmailTracking
	require.NoError(t, db.First(&reloaded, tracking.ID).Error)
	require.True(t, reloaded.HasEvent(models.TrackingEventClicked))
	assert.Equal(t, target, reloaded.Events[0].URL)
}

func TestTrackClickMissingURL(t *testing.T) {
	app, db := newTrackingTestApp(t)
	tracking, token := seedTracking(t, db)

	resp, err := app.Test(httptest.NewRequest("GET", "/track/click/"+tracking.TrackingPixelID+"/"+token, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUnsubscribeFlipsContactStatus(t *testing.T) {
	app, db := newTrackingTestApp(t)
	tracking, token := seedTracking(t, db)

	resp, err := app.Test(httptest.NewRequest("GET", "/track/unsubscribe/"+tracking.TrackingPixelID+"/"+token, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var email models.Email
	require.NoError(t, db.First(&email, tracking.EmailID).Error)
	var contact models.Contact
	require.NoError(t, db.First(&contact, email.ContactID).Error)
	assert.Equal(t, models.ContactStatusUnsubscribed, contact.Status)

	var campaign models.Campaign
	require.NoError(t, db.First(&campaign, tracking.CampaignID).Error)
	assert.Equal(t, 1, campaign.UnsubscribeCount)
}
