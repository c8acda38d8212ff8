package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func siteverifyServer(t *testing.T, body string, status int) (*httptest.Server, *http.Request) {
	t.Helper()
	captured := &http.Request{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		*captured = *r
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestVerifySuccess(t *testing.T) {
	srv, captured := siteverifyServer(t, `{"success":true,"hostname":"example.com"}`, http.StatusOK)
	v := NewVerifier(Config{TurnstileSecret: "s3cret"}, srv.Client()).WithEndpoint(Turnstile, srv.URL)

	res, err := v.Verify(context.Background(), Turnstile, "tok", "203.0.113.5")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "example.com", res.Hostname)
	require.Nil(t, res.Score)

	require.Equal(t, http.MethodPost, captured.Method)
	require.Equal(t, "s3cret", captured.PostForm.Get("secret"))
	require.Equal(t, "tok", captured.PostForm.Get("response"))
	require.Equal(t, "203.0.113.5", captured.PostForm.Get("remoteip"))
}

func TestVerifyRecaptchaScoreAndFailure(t *testing.T) {
	srv, _ := siteverifyServer(t, `{"success":false,"score":0.1,"action":"login","error-codes":["timeout-or-duplicate"]}`, http.StatusOK)
	v := NewVerifier(Config{ReCaptchaSecret: "key"}, nil).WithEndpoint(ReCaptcha, srv.URL)

	res, err := v.Verify(context.Background(), ReCaptcha, "tok", "")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.NotNil(t, res.Score)
	require.InDelta(t, 0.1, *res.Score, 1e-9)
	require.Equal(t, []string{"timeout-or-duplicate"}, res.ErrorCodes)
}

func TestVerifyInputErrors(t *testing.T) {
	v := NewVerifier(Config{HCaptchaSecret: "key"}, nil)

	_, err := v.Verify(context.Background(), HCaptcha, " ", "")
	require.ErrorIs(t, err, ErrTokenRequired)

	_, err = v.Verify(context.Background(), Turnstile, "tok", "")
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = v.Verify(context.Background(), Provider("other"), "tok", "")
	require.ErrorIs(t, err, ErrUnknownProvider)

	require.True(t, v.Enabled(HCaptcha))
	require.False(t, v.Enabled(Turnstile))
}

func TestVerifyUpstreamFailures(t *testing.T) {
	srv, _ := siteverifyServer(t, `oops`, http.StatusBadGateway)
	v := NewVerifier(Config{HCaptchaSecret: "key"}, nil).WithEndpoint(HCaptcha, srv.URL)
	_, err := v.Verify(context.Background(), HCaptcha, "tok", "")
	require.ErrorIs(t, err, ErrUpstream)

	garbage, _ := siteverifyServer(t, `not json`, http.StatusOK)
	v.WithEndpoint(HCaptcha, garbage.URL)
	_, err = v.Verify(context.Background(), HCaptcha, "tok", "")
	require.ErrorIs(t, err, ErrUpstream)
}

func TestVerifyTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	v := NewVerifier(Config{TurnstileSecret: "key", Timeout: 50 * time.Millisecond}, nil).WithEndpoint(Turnstile, slow.URL)
	started := time.Now()
	_, err := v.Verify(context.Background(), Turnstile, "tok", "")
	require.ErrorIs(t, err, ErrUpstream)
	require.Less(t, time.Since(started), time.Second)
}

func TestParseProvider(t *testing.T) {
	cases := map[string]Provider{
		"":             Turnstile,
		"Turnstile":    Turnstile,
		"hcaptcha":     HCaptcha,
		"recaptcha":    ReCaptcha,
		"recaptcha-v2": ReCaptcha,
	}
	for in, want := range cases {
		got, err := ParseProvider(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}
	_, err := ParseProvider("friendlycaptcha")
	require.ErrorIs(t, err, ErrUnknownProvider)
}
