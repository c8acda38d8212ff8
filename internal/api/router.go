package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/domaingate/internal/app"
	"github.com/charlesng35/domaingate/internal/cache"
	"github.com/charlesng35/domaingate/internal/captcha"
	"github.com/charlesng35/domaingate/internal/handlers"
	"github.com/charlesng35/domaingate/internal/ingest"
	"github.com/charlesng35/domaingate/internal/middleware"
	"github.com/charlesng35/domaingate/internal/monitoring"
	"github.com/charlesng35/domaingate/internal/redirect"
	"github.com/charlesng35/domaingate/internal/services"
	"github.com/charlesng35/domaingate/pkg/mail"
)

// Dependencies carries the shared clients the router wires into handlers.
// Cache, Locator, Captcha and Mailer are optional.
type Dependencies struct {
	DB      *gorm.DB
	Config  *app.Config
	Cache   cache.Store
	Locator handlers.Locator
	Captcha *captcha.Verifier
	Mailer  mail.Mailer
	// Health defaults to a manager probing only the database.
	Health *monitoring.HealthManager
	// Rand overrides template selection, primarily for tests.
	Rand func(n int) int
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, errors.New("database handle must be provided")
	}
	if deps.Config == nil {
		return nil, errors.New("config must be provided")
	}
	cfg := deps.Config

	allowList, err := services.NewAllowListService(deps.DB)
	if err != nil {
		return nil, err
	}
	settings, err := services.NewSettingsService(deps.DB, cfg.Redirect.DefaultTemplate)
	if err != nil {
		return nil, err
	}
	logs, err := services.NewVerificationLogService(deps.DB)
	if err != nil {
		return nil, err
	}

	var locator redirect.Locator
	if deps.Locator != nil {
		locator = deps.Locator
	}
	resolver, err := redirect.NewResolver(allowList, settings, logs, locator)
	if err != nil {
		return nil, err
	}
	resolver.WithRand(deps.Rand)

	ingester, err := ingest.NewIngester(allowList)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Metrics())

	var rateStore middleware.RateStore = middleware.NewMemoryRateStore()
	if deps.Cache != nil {
		rateStore = middleware.NewCacheRateStore(deps.Cache)
	}

	health := deps.Health
	if health == nil {
		health = monitoring.NewHealthManager(monitoring.DatabaseCheck(deps.DB, 0))
	}
	registerHealthRoutes(r, health)

	api := r.Group("/api")
	api.Use(middleware.CORS(cfg.Server.AllowedOrigins...))

	if err := registerPublicRoutes(api, publicDeps{
		resolver:  resolver,
		settings:  settings,
		locator:   deps.Locator,
		captcha:   deps.Captcha,
		mailer:    deps.Mailer,
		recipient: cfg.Abuse.Recipient,
		limiter:   middleware.RateLimit(rateStore, cfg.RateLimit.VerifyPerMinute, time.Minute),
	}); err != nil {
		return nil, err
	}

	admin := api.Group("/admin")
	admin.Use(middleware.RateLimit(rateStore, cfg.RateLimit.AdminPerMinute, time.Minute))
	admin.Use(middleware.AdminToken(cfg.Admin.Tokens))
	if err := registerAdminRoutes(admin, allowList, ingester, logs, settings); err != nil {
		return nil, err
	}

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
