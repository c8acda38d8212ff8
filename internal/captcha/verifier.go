// Package captcha verifies bot-protection tokens against the vendor siteverify APIs.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charlesng35/domaingate/pkg/metrics"
)

// Provider names a supported CAPTCHA vendor.
type Provider string

const (
	Turnstile Provider = "turnstile"
	HCaptcha  Provider = "hcaptcha"
	ReCaptcha Provider = "recaptcha"
)

var defaultEndpoints = map[Provider]string{
	Turnstile: "https://challenges.cloudflare.com/turnstile/v0/siteverify",
	HCaptcha:  "https://hcaptcha.com/siteverify",
	ReCaptcha: "https://www.google.com/recaptcha/api/siteverify",
}

var (
	ErrTokenRequired   = errors.New("captcha: token is required")
	ErrUnknownProvider = errors.New("captcha: unknown provider")
	ErrNotConfigured   = errors.New("captcha: provider not configured")
	ErrUpstream        = errors.New("captcha: verification service unavailable")
)

// Config holds vendor secrets and the request timeout.
type Config struct {
	Timeout         time.Duration
	TurnstileSecret string
	HCaptchaSecret  string
	ReCaptchaSecret string
}

// Result is the vendor verdict.
type Result struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score,omitempty"`
	Action     string   `json:"action,omitempty"`
	Hostname   string   `json:"hostname,omitempty"`
	ErrorCodes []string `json:"errorCodes,omitempty"`
}

// Verifier posts tokens to the vendor siteverify endpoints.
type Verifier struct {
	client    *http.Client
	timeout   time.Duration
	secrets   map[Provider]string
	endpoints map[Provider]string
}

// NewVerifier constructs a Verifier. A nil client uses http.DefaultClient.
func NewVerifier(cfg Config, client *http.Client) *Verifier {
	if client == nil {
		client = http.DefaultClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	endpoints := make(map[Provider]string, len(defaultEndpoints))
	for provider, endpoint := range defaultEndpoints {
		endpoints[provider] = endpoint
	}

	return &Verifier{
		client:  client,
		timeout: timeout,
		secrets: map[Provider]string{
			Turnstile: strings.TrimSpace(cfg.TurnstileSecret),
			HCaptcha:  strings.TrimSpace(cfg.HCaptchaSecret),
			ReCaptcha: strings.TrimSpace(cfg.ReCaptchaSecret),
		},
		endpoints: endpoints,
	}
}

// WithEndpoint overrides the siteverify URL for provider.
func (v *Verifier) WithEndpoint(provider Provider, endpoint string) *Verifier {
	v.endpoints[provider] = endpoint
	return v
}

// Enabled reports whether provider has a secret configured.
func (v *Verifier) Enabled(provider Provider) bool {
	return v != nil && v.secrets[provider] != ""
}

// ParseProvider maps a request value to a Provider. An empty value selects Turnstile.
func ParseProvider(value string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(Turnstile):
		return Turnstile, nil
	case string(HCaptcha):
		return HCaptcha, nil
	case string(ReCaptcha), "recaptcha-v3", "recaptcha-v2":
		return ReCaptcha, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, value)
}

// Verify checks token with provider. A negative vendor verdict is a successful
// call returning Result.Success=false; transport or decoding failures return ErrUpstream.
func (v *Verifier) Verify(ctx context.Context, provider Provider, token, remoteIP string) (Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Result{}, ErrTokenRequired
	}
	endpoint, ok := v.endpoints[provider]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	secret := v.secrets[provider]
	if secret == "" {
		return Result{}, fmt.Errorf("%w: %s", ErrNotConfigured, provider)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	form := url.Values{"secret": {secret}, "response": {token}}
	if remoteIP = strings.TrimSpace(remoteIP); remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		metrics.CaptchaChecks.WithLabelValues(string(provider), "error").Inc()
		return Result{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.CaptchaChecks.WithLabelValues(string(provider), "error").Inc()
		return Result{}, fmt.Errorf("%w: unexpected status %d", ErrUpstream, resp.StatusCode)
	}

	var payload struct {
		Success    bool     `json:"success"`
		Score      *float64 `json:"score"`
		Action     string   `json:"action"`
		Hostname   string   `json:"hostname"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err != nil {
		metrics.CaptchaChecks.WithLabelValues(string(provider), "error").Inc()
		return Result{}, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}

	outcome := "failure"
	if payload.Success {
		outcome = "success"
	}
	metrics.CaptchaChecks.WithLabelValues(string(provider), outcome).Inc()

	return Result{
		Success:    payload.Success,
		Score:      payload.Score,
		Action:     payload.Action,
		Hostname:   payload.Hostname,
		ErrorCodes: payload.ErrorCodes,
	}, nil
}
