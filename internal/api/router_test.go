package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/domaingate/internal/app"
	"github.com/charlesng35/domaingate/internal/cache"
	"github.com/charlesng35/domaingate/internal/database/testutil"
)

const adminToken = "router-admin-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Page       int   `json:"page"`
		PerPage    int   `json:"per_page"`
		Total      int64 `json:"total"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

func testConfig() *app.Config {
	return &app.Config{
		Admin:    app.AdminConfig{Tokens: []string{adminToken}},
		Redirect: app.RedirectConfig{DefaultTemplate: "https://{domain}.portal.example/login?u={email}"},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
		},
	}
}

func newTestRouter(t *testing.T, cfg *app.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	router, err := NewRouter(Dependencies{
		DB:     db,
		Config: cfg,
		Cache:  cache.NewDatabaseStore(db),
		Rand:   func(int) int { return 0 },
	})
	require.NoError(t, err)
	return router
}

func doRequest(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Token": adminToken}
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(Dependencies{Config: testConfig()})
	require.Error(t, err)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	_, err = NewRouter(Dependencies{DB: db})
	require.Error(t, err)
}

func TestRouter_HealthEndpoints(t *testing.T) {
	router := newTestRouter(t, testConfig())

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rec := doRequest(router, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	router := newTestRouter(t, testConfig())

	rec := doRequest(router, http.MethodGet, "/api/admin/domains", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/admin/domains", "", map[string]string{"X-Admin-Token": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/admin/domains?token="+adminToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_DomainLifecycleAndVerify(t *testing.T) {
	router := newTestRouter(t, testConfig())

	rec := doRequest(router, http.MethodPost, "/api/admin/domains", `{"input":"alice@acme.com, beta.io"}`, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(router, http.MethodGet, "/api/admin/domains?page=1&per_page=10", "", adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	var list envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.True(t, list.Success)
	require.NotNil(t, list.Meta)
	require.EqualValues(t, 2, list.Meta.Total)

	rec = doRequest(router, http.MethodPost, "/api/verify", `{"email":"bob@acme.com"}`, map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var verified struct {
		Success     bool   `json:"success"`
		RedirectURL string `json:"redirectUrl"`
		DetectedOS  string `json:"detectedOs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verified))
	require.True(t, verified.Success)
	require.Equal(t, "https://acme.portal.example/login?u=bob@acme.com", verified.RedirectURL)
	require.Equal(t, "windows", verified.DetectedOS)

	rec = doRequest(router, http.MethodPost, "/api/verify", `{"email":"eve@other.org"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "isn't associated with this secure link")

	rec = doRequest(router, http.MethodGet, "/api/admin/logs", "", adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	var logs envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.EqualValues(t, 2, logs.Meta.Total)

	rec = doRequest(router, http.MethodDelete, "/api/admin/domains/acme.com", "", adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/validate-email", `{"email":"bob@acme.com"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_SettingsRoundTrip(t *testing.T) {
	router := newTestRouter(t, testConfig())

	rec := doRequest(router, http.MethodPut, "/api/admin/settings/templates",
		`{"templates":["https://a.example/{domain}","https://b.example/?e={email}"]}`, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(router, http.MethodGet, "/api/admin/settings/templates", "", adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "https://b.example/?e={email}")

	rec = doRequest(router, http.MethodPut, "/api/admin/settings/os-redirect/mobile-block", `{"blockMobile":true}`, adminHeaders())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(router, http.MethodGet, "/api/mobile-settings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"blockMobile":true}`, rec.Body.String())
}

func TestRouter_PublicRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.VerifyPerMinute = 2
	router := newTestRouter(t, cfg)

	for i := 0; i < 2; i++ {
		rec := doRequest(router, http.MethodPost, "/api/validate-email", `{"email":"x@unknown.io"}`, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := doRequest(router, http.MethodPost, "/api/validate-email", `{"email":"x@unknown.io"}`, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, testConfig())

	rec := doRequest(router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "domaingate_api_latency_seconds")
}

func TestRouter_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Monitoring.Prometheus.Enabled = false
	router := newTestRouter(t, cfg)

	rec := doRequest(router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(t, testConfig())

	rec := doRequest(router, http.MethodGet, "/api/unknown", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "NOT_FOUND")
}
