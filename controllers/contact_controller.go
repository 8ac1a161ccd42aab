package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"dripcrm/models"
	"dripcrm/utils"
)

type ContactController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewContactController(db *gorm.DB, logger *logrus.Logger) *ContactController {
	return &ContactController{DB: db, Logger: logger}
}

type createContactInput struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Position  string `json:"position"`
	Phone     string `json:"phone"`
	Source    string `json:"source"`
}

// CreateContact adds a contact for the tenant.
func (cc *ContactController) CreateContact(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input createContactInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if err := utils.ValidateEmailFormat(input.Email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email address", err)
	}

	contact := models.Contact{
		UserID:    user.ID,
		Email:     input.Email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Company:   input.Company,
		Position:  input.Position,
		Phone:     input.Phone,
		Status:    models.ContactStatusActive,
		Source:    input.Source,
	}
	if err := cc.DB.Create(&contact).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create contact", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(contact))
}

// GetContacts lists the tenant's contacts.
func (cc *ContactController) GetContacts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var contacts []models.Contact
	if err := cc.DB.Where("user_id = ?", user.ID).Order("created_at DESC").Find(&contacts).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contacts", err)
	}

	return c.JSON(utils.SuccessResponse(contacts))
}

// CreateContactList creates an empty named list.
func (cc *ContactController) CreateContactList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Name        string `json:"name" validate:"required"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	list := models.ContactList{
		UserID:      user.ID,
		Name:        input.Name,
		Description: input.Description,
	}
	if err := cc.DB.Create(&list).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create list", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(list))
}

// AddContactsToList appends contacts to a list, preserving request order,
// and refreshes the list's cached count.
func (cc *ContactController) AddContactsToList(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	listID := utils.ParseUint(c.Params("id"))

	var input struct {
		ContactIDs []uint `json:"contact_ids" validate:"required,min=1"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var list models.ContactList
	if err := cc.DB.Where("id = ? AND user_id = ?", listID, user.ID).First(&list).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "List not found", nil)
	}

	err := cc.DB.Transaction(func(tx *gorm.DB) error {
		var maxPos int
		tx.Model(&models.ContactListMembership{}).
			Where("contact_list_id = ?", list.ID).
			Select("COALESCE(MAX(position), 0)").Scan(&maxPos)

		for i, contactID := range input.ContactIDs {
			var existing int64
			tx.Model(&models.ContactListMembership{}).
				Where("contact_list_id = ? AND contact_id = ?", list.ID, contactID).
				Count(&existing)
			if existing > 0 {
				continue
			}
			membership := models.ContactListMembership{
				ContactID:     contactID,
				ContactListID: list.ID,
				Position:      maxPos + i + 1,
			}
			if err := tx.Create(&membership).Error; err != nil {
				return err
			}
		}

		var total int64
		if err := tx.Model(&models.ContactListMembership{}).
			Where("contact_list_id = ?", list.ID).Count(&total).Error; err != nil {
			return err
		}
		return tx.Model(&list).Update("total_contacts", total).Error
	})
	if err != nil {
		cc.Logger.WithError(err).WithField("list_id", listID).Error("failed to add contacts to list")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to add contacts", err)
	}

	return c.JSON(utils.SuccessResponse(list))
}

// GetContactLists lists the tenant's contact lists.
func (cc *ContactController) GetContactLists(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var lists []models.ContactList
	if err := cc.DB.Where("user_id = ?", user.ID).Order("created_at DESC").Find(&lists).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch lists", err)
	}

	return c.JSON(utils.SuccessResponse(lists))
}
