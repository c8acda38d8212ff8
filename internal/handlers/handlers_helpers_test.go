package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/domaingate/internal/handlers/testutil"
	"github.com/charlesng35/domaingate/internal/ingest"
	"github.com/charlesng35/domaingate/internal/redirect"
	"github.com/charlesng35/domaingate/internal/services"
)

const testTemplate = "https://{domain}.portal.example/?u={email}"

// serviceSet wires the persistence services behind the handlers under test.
type serviceSet struct {
	allow    *services.AllowListService
	settings *services.SettingsService
	logs     *services.VerificationLogService
	resolver *redirect.Resolver
	ingester *ingest.Ingester
}

func newServiceSet(t *testing.T, env *testutil.Env) serviceSet {
	t.Helper()

	allow, err := services.NewAllowListService(env.DB)
	require.NoError(t, err)
	settings, err := services.NewSettingsService(env.DB, testTemplate)
	require.NoError(t, err)
	logs, err := services.NewVerificationLogService(env.DB)
	require.NoError(t, err)
	resolver, err := redirect.NewResolver(allow, settings, logs, nil)
	require.NoError(t, err)
	resolver.WithRand(func(int) int { return 0 })
	ingester, err := ingest.NewIngester(allow)
	require.NoError(t, err)

	return serviceSet{
		allow:    allow,
		settings: settings,
		logs:     logs,
		resolver: resolver,
		ingester: ingester,
	}
}
