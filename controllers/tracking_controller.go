package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"dripcrm/models"
	"dripcrm/utils"
)

// transparentGIF is a 1x1 transparent pixel served on open-tracking hits.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

type TrackingController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewTrackingController(db *gorm.DB, logger *logrus.Logger) *TrackingController {
	return &TrackingController{DB: db, Logger: logger}
}

// TrackOpen records an open event for the pixel id and serves the pixel.
// Always responds with the GIF so broken links don't surface in clients.
func (tc *TrackingController) TrackOpen(c *fiber.Ctx) error {
	pixelID := c.Params("pixelID")
	token := c.Params("token")

	if utils.ValidTrackingToken(pixelID, token) {
		tc.recordEvent(pixelID, models.TrackingEventOpened, "")
	}

	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	return c.Send(transparentGIF)
}

// TrackClick records a click event and redirects to the original URL.
func (tc *TrackingController) TrackClick(c *fiber.Ctx) error {
	pixelID := c.Params("pixelID")
	token := c.Params("token")
	targetURL := c.Query("url")

	if targetURL == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing url")
	}

	if utils.ValidTrackingToken(pixelID, token) {
		tc.recordEvent(pixelID, models.TrackingEventClicked, targetURL)
	}

	return c.Redirect(targetURL, fiber.StatusFound)
}

// TrackReply is the inbound-mail webhook hook point: the mail provider
// posts here when a reply to a tracked message is detected.
func (tc *TrackingController) TrackReply(c *fiber.Ctx) error {
	var input struct {
		PixelID string `json:"pixel_id" validate:"required"`
		Token   string `json:"token" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Missing tracking fields", err)
	}
	if !utils.ValidTrackingToken(input.PixelID, input.Token) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Invalid tracking token", nil)
	}

	if err := tc.recordEvent(input.PixelID, models.TrackingEventReplied, ""); err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Tracking record not found", nil)
	}

	return c.JSON(fiber.Map{"message": "Reply recorded"})
}

// Unsubscribe flips the contact's status and records the event against
// the email that carried the link.
func (tc *TrackingController) Unsubscribe(c *fiber.Ctx) error {
	pixelID := c.Params("pixelID")
	token := c.Params("token")

	if !utils.ValidTrackingToken(pixelID, token) {
		return c.Status(fiber.StatusForbidden).SendString("Invalid link")
	}

	var tracking models.EmailTracking
	if err := tc.DB.Preload("Email").Where("tracking_pixel_id = ?", pixelID).First(&tracking).Error; err != nil {
		return c.Status(fiber.StatusNotFound).SendString("Link no longer valid")
	}

	err := tc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Contact{}).
			Where("id = ?", tracking.Email.ContactID).
			Update("status", models.ContactStatusUnsubscribed).Error; err != nil {
			return err
		}
		return tx.Model(&models.Campaign{}).
			Where("id = ?", tracking.CampaignID).
			Update("unsubscribe_count", gorm.Expr("unsubscribe_count + 1")).Error
	})
	if err != nil {
		tc.Logger.WithError(err).WithField("pixel_id", pixelID).Error("unsubscribe failed")
		return c.Status(fiber.StatusInternalServerError).SendString("Something went wrong")
	}

	if err := tracking.AppendEvent(tc.DB, models.TrackingEventUnsubscribed, ""); err != nil {
		tc.Logger.WithError(err).Warn("failed to append unsubscribe event")
	}

	return c.SendString("You have been unsubscribed.")
}

// recordEvent appends an event to the tracking log and bumps the
// campaign's counter on the first occurrence of that event type.
func (tc *TrackingController) recordEvent(pixelID, eventType, url string) error {
	var tracking models.EmailTracking
	if err := tc.DB.Where("tracking_pixel_id = ?", pixelID).First(&tracking).Error; err != nil {
		tc.Logger.WithField("pixel_id", pixelID).Debug("tracking hit for unknown pixel")
		return err
	}

	firstOfType := !tracking.HasEvent(eventType)

	if err := tracking.AppendEvent(tc.DB, eventType, url); err != nil {
		tc.Logger.WithError(err).WithField("pixel_id", pixelID).Error("failed to append tracking event")
		return err
	}

	// Campaign counters are unique-recipient counts, so repeat events on
	// the same email don't bump them.
	if firstOfType {
		if column := counterColumn(eventType); column != "" {
			if err := tc.DB.Model(&models.Campaign{}).
				Where("id = ?", tracking.CampaignID).
				Update(column, gorm.Expr(column+" + 1")).Error; err != nil {
				tc.Logger.WithError(err).Warn("failed to bump campaign counter")
			}
		}
	}

	return nil
}

func counterColumn(eventType string) string {
	switch eventType {
	case models.TrackingEventOpened:
		return "open_count"
	case models.TrackingEventClicked:
		return "click_count"
	case models.TrackingEventReplied:
		return "reply_count"
	case models.TrackingEventBounced:
		return "bounce_count"
	default:
		return ""
	}
}
