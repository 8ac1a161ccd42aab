package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	controller "dripcrm/controllers"
	"dripcrm/middleware"
	"dripcrm/utils"
)

// SetupRoutes wires the HTTP surface: the protected API group plus the
// public tracking endpoints hit from recipients' mail clients.
func SetupRoutes(app *fiber.App, db *gorm.DB, log *logrus.Logger, engine *utils.CampaignEngine) {
	campaignController := controller.NewCampaignController(db, log, engine)
	contactController := controller.NewContactController(db, log)
	templateController := controller.NewTemplateController(db, log)
	trackingController := controller.NewTrackingController(db, log)

	// Public tracking endpoints. No auth: the pixel id + token pair is the
	// credential.
	track := app.Group("/track")
	track.Get("/open/:pixelID/:token", trackingController.TrackOpen)
	track.Get("/click/:pixelID/:token", trackingController.TrackClick)
	track.Post("/reply", trackingController.TrackReply)
	track.Get("/unsubscribe/:pixelID/:token", trackingController.Unsubscribe)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Campaign routes
	campaigns := api.Group("/campaigns")
	campaigns.Post("/", campaignController.CreateCampaign)
	campaigns.Get("/", campaignController.GetCampaigns)
	campaigns.Get("/:id", campaignController.GetCampaign)
	campaigns.Post("/:id/start", middleware.CampaignStartRateLimiter(), campaignController.StartCampaign)
	campaigns.Patch("/:id/status", campaignController.UpdateCampaignStatus)
	campaigns.Get("/:id/stats", campaignController.GetCampaignStats)
	campaigns.Delete("/:id", campaignController.DeleteCampaign)

	// Contact routes
	contacts := api.Group("/contacts")
	contacts.Post("/", contactController.CreateContact)
	contacts.Get("/", contactController.GetContacts)

	// Contact list routes
	lists := api.Group("/contact-lists")
	lists.Post("/", contactController.CreateContactList)
	lists.Get("/", contactController.GetContactLists)
	lists.Post("/:id/contacts", contactController.AddContactsToList)

	// Template routes
	templates := api.Group("/templates")
	templates.Post("/", templateController.CreateTemplate)
	templates.Get("/", templateController.GetTemplates)
}
