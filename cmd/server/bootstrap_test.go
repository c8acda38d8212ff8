package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/domaingate/internal/app"
	"github.com/charlesng35/domaingate/internal/database"
	"github.com/charlesng35/domaingate/internal/services"
)

func testAppConfig(t *testing.T) *app.Config {
	t.Helper()
	return &app.Config{
		Database: app.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "domaingate.sqlite"),
		},
		Admin:    app.AdminConfig{Tokens: []string{"bootstrap-token"}},
		Redirect: app.RedirectConfig{DefaultTemplate: "https://{domain}.example.net/"},
		Maintenance: app.MaintenanceConfig{
			LogRetentionDays: 30,
			LogSchedule:      "@daily",
			CacheSchedule:    "@hourly",
		},
	}
}

func TestBootstrapRuntime(t *testing.T) {
	cfg := testAppConfig(t)

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.NotNil(t, stack.DB)
	require.NotNil(t, stack.Router)
	require.NotNil(t, stack.Cache)
	require.Nil(t, stack.Redis)

	settings, err := services.NewSettingsService(stack.DB, "")
	require.NoError(t, err)
	templates, err := settings.Templates(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"https://{domain}.example.net/"}, templates)

	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBootstrapRuntimeRedisFallback(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Cache.Redis.Enabled = true
	cfg.Cache.Redis.Address = "127.0.0.1:1"

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.Nil(t, stack.Redis)
	require.NotNil(t, stack.Cache)
}

func TestBootstrapRuntimeRejectsUnknownGeoProvider(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Geo.Providers = []string{"carrier-pigeon"}

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "geo")
}

func TestSeedDefaultsPreservesExistingTemplates(t *testing.T) {
	cfg := testAppConfig(t)
	db, err := database.Open(cfg.Database.DatabaseSettings())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, database.AutoMigrate(db))

	ctx := context.Background()
	settings, err := services.NewSettingsService(db, "")
	require.NoError(t, err)
	_, err = settings.UpdateTemplates(ctx, []string{"https://custom.example/{email}"}, "admin")
	require.NoError(t, err)

	require.NoError(t, seedDefaults(ctx, db, cfg))

	templates, err := settings.Templates(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"https://custom.example/{email}"}, templates)
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestLoadDotEnv(t *testing.T) {
	require.False(t, loadDotEnv(""))
	require.False(t, loadDotEnv(filepath.Join(t.TempDir(), "absent.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOMAINGATE_BOOTSTRAP_PROBE=loaded\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("DOMAINGATE_BOOTSTRAP_PROBE") })

	require.True(t, loadDotEnv(path))
	require.Equal(t, "loaded", os.Getenv("DOMAINGATE_BOOTSTRAP_PROBE"))
}
