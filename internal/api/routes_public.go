package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/domaingate/internal/captcha"
	"github.com/charlesng35/domaingate/internal/handlers"
	"github.com/charlesng35/domaingate/internal/redirect"
	"github.com/charlesng35/domaingate/internal/services"
	"github.com/charlesng35/domaingate/pkg/mail"
)

type publicDeps struct {
	resolver  *redirect.Resolver
	settings  *services.SettingsService
	locator   handlers.Locator
	captcha   *captcha.Verifier
	mailer    mail.Mailer
	recipient string
	limiter   gin.HandlerFunc
}

func registerPublicRoutes(api *gin.RouterGroup, deps publicDeps) error {
	verifyHandler, err := handlers.NewVerifyHandler(deps.resolver, deps.settings)
	if err != nil {
		return err
	}

	api.POST("/verify", deps.limiter, verifyHandler.Verify)
	api.POST("/validate-email", deps.limiter, verifyHandler.ValidateEmail)
	api.GET("/mobile-settings", verifyHandler.MobileSettings)

	verifier := deps.captcha
	if verifier == nil {
		verifier = captcha.NewVerifier(captcha.Config{}, nil)
	}
	captchaHandler, err := handlers.NewCaptchaHandler(verifier)
	if err != nil {
		return err
	}
	api.POST("/captcha/verify", deps.limiter, captchaHandler.Verify)

	visitorHandler := handlers.NewVisitorHandler(deps.locator)
	api.GET("/visitor-info", visitorHandler.Info)

	abuseHandler := handlers.NewAbuseHandler(deps.mailer, deps.recipient)
	api.POST("/report-abuse", deps.limiter, abuseHandler.Report)

	return nil
}
