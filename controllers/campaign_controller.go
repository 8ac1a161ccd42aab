package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"dripcrm/models"
	"dripcrm/utils"
)

type CampaignController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Engine *utils.CampaignEngine
}

func NewCampaignController(db *gorm.DB, logger *logrus.Logger, engine *utils.CampaignEngine) *CampaignController {
	return &CampaignController{
		DB:     db,
		Logger: logger,
		Engine: engine,
	}
}

// engineErrorStatus maps the engine's error taxonomy onto HTTP statuses.
func engineErrorStatus(err error) int {
	switch {
	case errors.Is(err, utils.ErrNotFound), errors.Is(err, utils.ErrMissingTemplate):
		return fiber.StatusNotFound
	case errors.Is(err, utils.ErrInvalidState), errors.Is(err, utils.ErrNoRecipients):
		return fiber.StatusBadRequest
	case errors.Is(err, utils.ErrConfig):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// CreateCampaign persists a campaign and auto-starts/schedules it based
// on the send type.
func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input utils.CreateCampaignInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	campaign, err := cc.Engine.CreateCampaign(user.ID, input)
	if err != nil {
		cc.Logger.WithError(err).Warn("campaign create failed")
		return utils.ErrorResponse(c, engineErrorStatus(err), "Failed to create campaign", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(campaign))
}

// StartCampaign triggers a manual start. Non-draft campaigns are a no-op
// and come back unchanged.
func (cc *CampaignController) StartCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	campaign, err := cc.Engine.ManualStartCampaign(campaignID, user.ID)
	if err != nil {
		cc.Logger.WithError(err).WithField("campaign_id", campaignID).Warn("campaign start failed")
		return utils.ErrorResponse(c, engineErrorStatus(err), "Failed to start campaign", err)
	}

	return c.JSON(utils.SuccessResponse(campaign))
}

// UpdateCampaignStatus applies a status change (pause/resume/complete).
func (cc *CampaignController) UpdateCampaignStatus(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	var input struct {
		Status string `json:"status" validate:"required,oneof=draft scheduled sending sent paused completed"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid status", err)
	}

	campaign, err := cc.Engine.UpdateCampaignStatus(campaignID, user.ID, input.Status)
	if err != nil {
		return utils.ErrorResponse(c, engineErrorStatus(err), "Failed to update campaign status", err)
	}

	return c.JSON(utils.SuccessResponse(campaign))
}

// GetCampaigns lists the tenant's campaigns.
func (cc *CampaignController) GetCampaigns(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaigns []models.Campaign
	if err := cc.DB.Where("user_id = ?", user.ID).Order("created_at DESC").Find(&campaigns).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaigns", err)
	}

	return c.JSON(utils.SuccessResponse(campaigns))
}

// GetCampaign returns one campaign with its join rows.
func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	var campaign models.Campaign
	if err := cc.DB.Preload("CampaignContacts").Preload("ContactLists").
		Where("id = ? AND user_id = ?", campaignID, user.ID).First(&campaign).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}

	return c.JSON(utils.SuccessResponse(campaign))
}

// GetCampaignStats returns the recomputed engagement stats.
func (cc *CampaignController) GetCampaignStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	stats, err := cc.Engine.GetCampaignStats(campaignID, user.ID)
	if err != nil {
		return utils.ErrorResponse(c, engineErrorStatus(err), "Failed to fetch campaign stats", err)
	}

	return c.JSON(utils.SuccessResponse(stats))
}

// DeleteCampaign removes a campaign and all dependent rows.
func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	campaignID := utils.ParseUint(c.Params("id"))

	if err := cc.Engine.DeleteCampaign(campaignID, user.ID); err != nil {
		return utils.ErrorResponse(c, engineErrorStatus(err), "Failed to delete campaign", err)
	}

	return c.JSON(fiber.Map{"message": "Campaign deleted successfully"})
}
