package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/domaingate/internal/handlers/testutil"
	"github.com/charlesng35/domaingate/internal/models"
	"github.com/charlesng35/domaingate/internal/redirect"
)

const (
	windowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148"
)

type failingPolicy struct{}

func (failingPolicy) StoredOSConfig(context.Context) (redirect.OSConfig, error) {
	return redirect.OSConfig{}, errors.New("settings offline")
}

func newVerifyEnv(t *testing.T) (*testutil.Env, serviceSet) {
	t.Helper()
	env := testutil.NewEnv(t)
	svc := newServiceSet(t, env)

	handler, err := NewVerifyHandler(svc.resolver, svc.settings)
	require.NoError(t, err)
	env.Router.POST("/api/verify", handler.Verify)
	env.Router.POST("/api/validate-email", handler.ValidateEmail)
	env.Router.GET("/api/mobile-settings", handler.MobileSettings)
	return env, svc
}

func countLogs(t *testing.T, env *testutil.Env) int64 {
	t.Helper()
	var count int64
	require.NoError(t, env.DB.Model(&models.VerificationLog{}).Count(&count).Error)
	return count
}

func TestNewVerifyHandlerRequiresDependencies(t *testing.T) {
	_, err := NewVerifyHandler(nil, failingPolicy{})
	require.Error(t, err)
}

func TestVerifyAllowedDomain(t *testing.T) {
	env, svc := newVerifyEnv(t)
	_, err := svc.allow.AddIfAbsent(context.Background(), "acme.com", "test")
	require.NoError(t, err)

	w := env.Request(http.MethodPost, "/api/verify", map[string]string{"email": "Bob@Acme.com"}, "User-Agent", windowsUA)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp verifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, msgVerified, resp.Message)
	require.Equal(t, "https://acme.portal.example/?u=Bob@Acme.com", resp.RedirectURL)
	require.Equal(t, "windows", resp.DetectedOS)
	require.False(t, resp.Timestamp.IsZero())

	require.EqualValues(t, 1, countLogs(t, env))
}

func TestVerifyDeniedDomainWritesAudit(t *testing.T) {
	env, _ := newVerifyEnv(t)

	w := env.Request(http.MethodPost, "/api/verify", map[string]string{"email": "eve@evil.test"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, redirect.DenialMessage, testutil.DecodeMessage(t, w))

	var entry models.VerificationLog
	require.NoError(t, env.DB.First(&entry).Error)
	require.Equal(t, "evil.test", entry.Domain)
	require.Nil(t, entry.RedirectURL)
}

func TestVerifyInputErrors(t *testing.T) {
	env, _ := newVerifyEnv(t)

	tests := []struct {
		name    string
		body    any
		message string
	}{
		{name: "missing", body: map[string]string{}, message: msgEmailRequired},
		{name: "blank", body: map[string]string{"email": "   "}, message: msgEmailRequired},
		{name: "malformed", body: map[string]string{"email": "not-an-email"}, message: msgInvalidEmail},
		{name: "no body", body: nil, message: msgEmailRequired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := env.Request(http.MethodPost, "/api/verify", tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			require.Equal(t, tc.message, testutil.DecodeMessage(t, w))
		})
	}

	require.Zero(t, countLogs(t, env))
}

func TestVerifyBlocksMobileWhenConfigured(t *testing.T) {
	env, svc := newVerifyEnv(t)
	ctx := context.Background()
	_, err := svc.allow.AddIfAbsent(ctx, "acme.com", "test")
	require.NoError(t, err)
	_, err = svc.settings.SetBlockMobile(ctx, true, "test")
	require.NoError(t, err)

	w := env.Request(http.MethodPost, "/api/verify", map[string]string{"email": "bob@acme.com"}, "User-Agent", iphoneUA)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, redirect.DenialMessage, testutil.DecodeMessage(t, w))
	require.Zero(t, countLogs(t, env))

	w = env.Request(http.MethodPost, "/api/verify", map[string]string{"email": "bob@acme.com"}, "User-Agent", windowsUA)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestValidateEmail(t *testing.T) {
	env, svc := newVerifyEnv(t)
	_, err := svc.allow.AddIfAbsent(context.Background(), "acme.com", "test")
	require.NoError(t, err)

	w := env.Request(http.MethodPost, "/api/validate-email", map[string]string{"email": "amy@acme.com"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, msgValidated, testutil.DecodeMessage(t, w))

	w = env.Request(http.MethodPost, "/api/validate-email", map[string]string{"email": "amy@other.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, msgAccessDenied, testutil.DecodeMessage(t, w))

	w = env.Request(http.MethodPost, "/api/validate-email", map[string]string{"email": ""})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, msgValidateRequired, testutil.DecodeMessage(t, w))

	require.Zero(t, countLogs(t, env))
}

func TestMobileSettings(t *testing.T) {
	env, svc := newVerifyEnv(t)

	w := env.Request(http.MethodGet, "/api/mobile-settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"blockMobile":true}`, w.Body.String())

	_, err := svc.settings.SetBlockMobile(context.Background(), false, "test")
	require.NoError(t, err)

	w = env.Request(http.MethodGet, "/api/mobile-settings", nil)
	require.JSONEq(t, `{"blockMobile":false}`, w.Body.String())
}

func TestMobileSettingsFailsClosed(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := newServiceSet(t, env)

	handler, err := NewVerifyHandler(svc.resolver, failingPolicy{})
	require.NoError(t, err)
	env.Router.GET("/api/mobile-settings", handler.MobileSettings)

	w := env.Request(http.MethodGet, "/api/mobile-settings", nil)
	require.JSONEq(t, `{"blockMobile":true}`, w.Body.String())
}
