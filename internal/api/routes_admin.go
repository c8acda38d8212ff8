package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/domaingate/internal/handlers"
	"github.com/charlesng35/domaingate/internal/ingest"
	"github.com/charlesng35/domaingate/internal/services"
)

func registerAdminRoutes(
	admin *gin.RouterGroup,
	allowList *services.AllowListService,
	ingester *ingest.Ingester,
	logs *services.VerificationLogService,
	settings *services.SettingsService,
) error {
	domainHandler, err := handlers.NewDomainHandler(allowList, ingester)
	if err != nil {
		return err
	}
	domains := admin.Group("/domains")
	{
		domains.GET("", domainHandler.List)
		domains.POST("", domainHandler.Add)
		domains.POST("/upload", domainHandler.Upload)
		domains.POST("/bulk-delete", domainHandler.BulkDelete)
		domains.DELETE("/:domain", domainHandler.Delete)
		domains.DELETE("", domainHandler.DeleteAll)
	}

	logHandler, err := handlers.NewLogHandler(logs)
	if err != nil {
		return err
	}
	logRoutes := admin.Group("/logs")
	{
		logRoutes.GET("", logHandler.List)
		logRoutes.POST("/bulk-delete", logHandler.BulkDelete)
		logRoutes.DELETE("/:id", logHandler.Delete)
		logRoutes.DELETE("", logHandler.DeleteAll)
	}

	settingsHandler, err := handlers.NewSettingsHandler(settings)
	if err != nil {
		return err
	}
	settingsRoutes := admin.Group("/settings")
	{
		settingsRoutes.GET("", settingsHandler.Overview)
		settingsRoutes.GET("/templates", settingsHandler.GetTemplates)
		settingsRoutes.PUT("/templates", settingsHandler.UpdateTemplates)
		settingsRoutes.POST("/templates/reset", settingsHandler.ResetTemplates)
		settingsRoutes.GET("/os-redirect", settingsHandler.GetOSConfig)
		settingsRoutes.PUT("/os-redirect", settingsHandler.UpdateOSConfig)
		settingsRoutes.PUT("/os-redirect/mobile-block", settingsHandler.SetBlockMobile)
		settingsRoutes.PUT("/os-redirect/enabled", settingsHandler.SetOSEnabled)
	}

	return nil
}
