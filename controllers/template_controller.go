package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"dripcrm/models"
	"dripcrm/utils"
)

type TemplateController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewTemplateController(db *gorm.DB, logger *logrus.Logger) *TemplateController {
	return &TemplateController{DB: db, Logger: logger}
}

type createTemplateInput struct {
	Name                   string   `json:"name" validate:"required"`
	Type                   string   `json:"type" validate:"required,oneof=initial followup1 followup2 followup3"`
	Subject                string   `json:"subject" validate:"required"`
	HTMLContent            string   `json:"html_content"`
	TextContent            string   `json:"text_content"`
	TextOnly               bool     `json:"text_only"`
	Variables              []string `json:"variables"`
	SelectedCatalogItemIDs []uint   `json:"selected_catalog_item_ids"`
	CatalogLayout          string   `json:"catalog_layout"`
	ShowPrices             bool     `json:"show_prices"`
}

// CreateTemplate stores a reusable message template.
func (tc *TemplateController) CreateTemplate(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input createTemplateInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	tpl := models.Template{
		UserID:                 user.ID,
		Name:                   input.Name,
		Type:                   input.Type,
		Subject:                input.Subject,
		HTMLContent:            input.HTMLContent,
		TextContent:            input.TextContent,
		TextOnly:               input.TextOnly,
		Variables:              input.Variables,
		SelectedCatalogItemIDs: input.SelectedCatalogItemIDs,
		CatalogLayout:          input.CatalogLayout,
		ShowPrices:             input.ShowPrices,
	}
	if err := tc.DB.Create(&tpl).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create template", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(tpl))
}

// GetTemplates lists the tenant's templates.
func (tc *TemplateController) GetTemplates(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var templates []models.Template
	if err := tc.DB.Where("user_id = ?", user.ID).Order("created_at DESC").Find(&templates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch templates", err)
	}

	return c.JSON(utils.SuccessResponse(templates))
}
