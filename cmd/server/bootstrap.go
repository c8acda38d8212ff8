package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/domaingate/internal/api"
	"github.com/charlesng35/domaingate/internal/app"
	"github.com/charlesng35/domaingate/internal/app/maintenance"
	"github.com/charlesng35/domaingate/internal/cache"
	"github.com/charlesng35/domaingate/internal/captcha"
	"github.com/charlesng35/domaingate/internal/database"
	"github.com/charlesng35/domaingate/internal/geo"
	"github.com/charlesng35/domaingate/internal/monitoring"
	"github.com/charlesng35/domaingate/internal/services"
	"github.com/charlesng35/domaingate/pkg/logger"
	"github.com/charlesng35/domaingate/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Redis   *cache.RedisStore
	Cache   cache.Store
	Locator *geo.Locator
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, caches, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if err := seedDefaults(ctx, stack.DB, cfg); err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	stack.Cache = dbStore

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
			stack.Redis = nil
		} else {
			stack.Cache = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	httpClient := &http.Client{}

	providers, err := geo.BuildProviders(cfg.Geo.LocatorConfig(), httpClient)
	if err != nil {
		return nil, fmt.Errorf("initialise geo providers: %w", err)
	}
	stack.Locator = geo.NewLocator(cfg.Geo.LocatorConfig(), stack.Cache, providers...)

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}

	logs, err := services.NewVerificationLogService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise verification log service: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(logs, dbStore,
		maintenance.WithLogRetentionDays(cfg.Maintenance.LogRetentionDays),
		maintenance.WithLogSchedule(cfg.Maintenance.LogSchedule),
		maintenance.WithCacheSchedule(cfg.Maintenance.CacheSchedule),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	health := monitoring.NewHealthManager(monitoring.DatabaseCheck(stack.DB, 0))
	if cfg.Cache.Redis.Enabled {
		var pinger monitoring.Pinger
		if stack.Redis != nil {
			pinger = stack.Redis
		}
		health.RegisterReadiness(monitoring.RedisCheck(pinger, cfg.Cache.Redis.Timeout))
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:      stack.DB,
		Config:  cfg,
		Cache:   stack.Cache,
		Locator: stack.Locator,
		Captcha: captcha.NewVerifier(cfg.Captcha.VerifierConfig(), httpClient),
		Mailer:  mailer,
		Health:  health,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
		s.Cleaner = nil
	}

	if s.Locator != nil {
		if err := s.Locator.Close(); err != nil {
			log.Warn("geo shutdown", zap.Error(err))
		}
		s.Locator = nil
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
		s.Redis = nil
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
		s.DB = nil
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

// seedDefaults writes the default template and OS configuration rows when absent.
func seedDefaults(ctx context.Context, db *gorm.DB, cfg *app.Config) error {
	settings, err := services.NewSettingsService(db, cfg.Redirect.DefaultTemplate)
	if err != nil {
		return fmt.Errorf("initialise settings service: %w", err)
	}
	if err := settings.EnsureDefaults(ctx); err != nil {
		return fmt.Errorf("seed default settings: %w", err)
	}
	return nil
}
