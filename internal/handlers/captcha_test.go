package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/domaingate/internal/captcha"
	"github.com/charlesng35/domaingate/internal/handlers/testutil"
)

func newCaptchaEnv(t *testing.T, upstream http.HandlerFunc) *testutil.Env {
	t.Helper()
	env := testutil.NewEnv(t)

	verifier := captcha.NewVerifier(captcha.Config{TurnstileSecret: "turnstile-secret"}, nil)
	if upstream != nil {
		server := httptest.NewServer(upstream)
		t.Cleanup(server.Close)
		verifier.WithEndpoint(captcha.Turnstile, server.URL)
	}

	handler, err := NewCaptchaHandler(verifier)
	require.NoError(t, err)
	env.Router.POST("/api/captcha/verify", handler.Verify)
	return env
}

func decodeCaptcha(t *testing.T, body []byte) captchaResponse {
	t.Helper()
	var resp captchaResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestCaptchaVerifySuccess(t *testing.T) {
	env := newCaptchaEnv(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "turnstile-secret", r.PostForm.Get("secret"))
		require.Equal(t, "tok", r.PostForm.Get("response"))
		_, _ = w.Write([]byte(`{"success":true,"action":"login"}`))
	})

	w := env.Request(http.MethodPost, "/api/captcha/verify", map[string]string{"provider": "turnstile", "token": "tok", "action": "login"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeCaptcha(t, w.Body.Bytes())
	require.True(t, resp.Success)
	require.Equal(t, "login", resp.Action)
}

func TestCaptchaVerifyActionMismatch(t *testing.T) {
	env := newCaptchaEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"action":"signup"}`))
	})

	w := env.Request(http.MethodPost, "/api/captcha/verify", map[string]string{"token": "tok", "action": "login"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeCaptcha(t, w.Body.Bytes())
	require.False(t, resp.Success)
	require.Contains(t, resp.ErrorCodes, "action-mismatch")
}

func TestCaptchaVerifyVendorRejection(t *testing.T) {
	env := newCaptchaEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	})

	w := env.Request(http.MethodPost, "/api/captcha/verify", map[string]string{"token": "tok"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeCaptcha(t, w.Body.Bytes())
	require.False(t, resp.Success)
	require.Equal(t, []string{"invalid-input-response"}, resp.ErrorCodes)
}

func TestCaptchaVerifyUpstreamFailure(t *testing.T) {
	env := newCaptchaEnv(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	w := env.Request(http.MethodPost, "/api/captcha/verify", map[string]string{"token": "tok"})
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, "Verification failed", decodeCaptcha(t, w.Body.Bytes()).Message)
}

func TestCaptchaVerifyRequestErrors(t *testing.T) {
	env := newCaptchaEnv(t, nil)

	w := env.Request(http.MethodPost, "/api/captcha/verify", map[string]string{"token": " "})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Token is required", decodeCaptcha(t, w.Body.Bytes()).Message)

	w = env.Request(http.MethodPost, "/api/captcha/verify", map[string]string{"provider": "friendcaptcha", "token": "tok"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Unsupported CAPTCHA provider", decodeCaptcha(t, w.Body.Bytes()).Message)

	// hCaptcha has no secret configured in this environment.
	w = env.Request(http.MethodPost, "/api/captcha/verify", map[string]string{"provider": "hcaptcha", "token": "tok"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Unsupported CAPTCHA provider", decodeCaptcha(t, w.Body.Bytes()).Message)
}
