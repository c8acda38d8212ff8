package redirect

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/domaingate/internal/geo"
	"github.com/charlesng35/domaingate/internal/models"
	"github.com/charlesng35/domaingate/internal/useragent"
	"github.com/charlesng35/domaingate/pkg/logger"
	"github.com/charlesng35/domaingate/pkg/metrics"
)

// DenialMessage is returned for every rejected domain regardless of the cause.
const DenialMessage = "Sorry, this email address isn't associated with this secure link."

var (
	// ErrEmailRequired indicates an empty email.
	ErrEmailRequired = errors.New("redirect: email is required")
	// ErrInvalidEmailFormat indicates an email without a local@domain.tld shape.
	ErrInvalidEmailFormat = errors.New("redirect: invalid email format")
	// ErrUnavailable indicates the allow-list or settings store could not be read.
	// The request is denied.
	ErrUnavailable = errors.New("redirect: verification unavailable")
)

// Reason classifies a resolution outcome.
type Reason string

const (
	ReasonGranted Reason = "granted"
	ReasonDenied  Reason = "denied"
)

// AllowList reports allow-list membership for a lowercase domain.
type AllowList interface {
	Exists(ctx context.Context, domain string) (bool, error)
}

// TemplateSource supplies the global template list and the stored OS
// configuration. Empty per-OS lists in StoredOSConfig select the global list.
type TemplateSource interface {
	Templates(ctx context.Context) ([]string, error)
	StoredOSConfig(ctx context.Context) (OSConfig, error)
}

// AuditSink persists verification attempts.
type AuditSink interface {
	Log(ctx context.Context, entry *models.VerificationLog) error
}

// Locator enriches audit entries with IP metadata. It must not fail.
type Locator interface {
	Locate(ctx context.Context, ip string) geo.Location
}

// Request carries one verification attempt.
type Request struct {
	Email     string
	UserAgent string
	IP        string
}

// Result is the outcome of a verification attempt.
type Result struct {
	Allowed     bool
	RedirectURL string
	DetectedOS  useragent.Category
	Reason      Reason
	Timestamp   time.Time
}

// Resolver runs the allow-list check, template selection and audit write.
type Resolver struct {
	allow     AllowList
	templates TemplateSource
	audit     AuditSink
	locator   Locator
	intn      func(n int) int
	now       func() time.Time
	log       *zap.Logger
}

// NewResolver wires a resolver. locator may be nil, in which case audit
// entries carry Unknown enrichment.
func NewResolver(allow AllowList, templates TemplateSource, audit AuditSink, locator Locator) (*Resolver, error) {
	if allow == nil {
		return nil, errors.New("redirect resolver: allow list is required")
	}
	if templates == nil {
		return nil, errors.New("redirect resolver: template source is required")
	}
	if audit == nil {
		return nil, errors.New("redirect resolver: audit sink is required")
	}
	return &Resolver{
		allow:     allow,
		templates: templates,
		audit:     audit,
		locator:   locator,
		intn:      rand.IntN,
		now:       time.Now,
		log:       logger.WithModule("redirect"),
	}, nil
}

// WithRand replaces the template picker. intn must return a value in [0, n).
func (r *Resolver) WithRand(intn func(n int) int) *Resolver {
	if intn != nil {
		r.intn = intn
	}
	return r
}

// Check validates email and reports allow-list membership without selecting a
// template or writing an audit entry.
func (r *Resolver) Check(ctx context.Context, email string) (bool, error) {
	domain, err := parseEmail(email)
	if err != nil {
		return false, err
	}
	ok, err := r.allow.Exists(ctx, domain)
	if err != nil {
		r.log.Error("allow list lookup failed", zap.String("domain", domain), zap.Error(err))
		return false, ErrUnavailable
	}
	return ok, nil
}

// Resolve decides whether req.Email is allowed and materializes its redirect URL.
// Input errors return before any side effect. Every other call writes exactly
// one audit entry. Store failures deny the request with ErrUnavailable.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	email := strings.TrimSpace(req.Email)
	domain, err := parseEmail(email)
	if err != nil {
		metrics.Verifications.WithLabelValues("invalid").Inc()
		return Result{}, err
	}

	result := Result{
		DetectedOS: useragent.Classify(req.UserAgent),
		Reason:     ReasonDenied,
		Timestamp:  r.now().UTC(),
	}
	entry := &models.VerificationLog{
		Email:      email,
		Domain:     domain,
		Timestamp:  result.Timestamp,
		UserAgent:  req.UserAgent,
		IP:         req.IP,
		DetectedOS: result.DetectedOS.String(),
	}

	allowed, err := r.allow.Exists(ctx, domain)
	if err != nil {
		r.log.Error("allow list lookup failed", zap.String("domain", domain), zap.Error(err))
		r.record(ctx, entry)
		metrics.Verifications.WithLabelValues("error").Inc()
		return result, ErrUnavailable
	}
	if !allowed {
		r.record(ctx, entry)
		metrics.Verifications.WithLabelValues("denied").Inc()
		return result, nil
	}

	template, err := r.selectTemplate(ctx, result.DetectedOS)
	if err != nil {
		r.log.Error("template selection failed", zap.String("domain", domain), zap.Error(err))
		r.record(ctx, entry)
		metrics.Verifications.WithLabelValues("error").Inc()
		return result, ErrUnavailable
	}

	url := Materialize(template, email)
	entry.RedirectURL = &url
	r.record(ctx, entry)

	result.Allowed = true
	result.RedirectURL = url
	result.Reason = ReasonGranted
	metrics.Verifications.WithLabelValues("allowed").Inc()
	return result, nil
}

func (r *Resolver) selectTemplate(ctx context.Context, category useragent.Category) (string, error) {
	cfg, err := r.templates.StoredOSConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load os config: %w", err)
	}

	candidates := nonBlank(cfg.TemplatesFor(category))
	if len(candidates) == 0 {
		global, err := r.templates.Templates(ctx)
		if err != nil {
			return "", fmt.Errorf("load templates: %w", err)
		}
		candidates = nonBlank(global)
	}
	if len(candidates) == 0 {
		return "", errors.New("no redirect templates configured")
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	idx := r.intn(len(candidates))
	if idx < 0 || idx >= len(candidates) {
		idx = 0
	}
	return candidates[idx], nil
}

// record writes the audit entry. Failures are logged and never reach the caller.
func (r *Resolver) record(ctx context.Context, entry *models.VerificationLog) {
	ctx = context.WithoutCancel(ctx)
	loc := geo.Unknown(entry.IP)
	if r.locator != nil {
		loc = r.locator.Locate(ctx, entry.IP)
	}
	entry.IPCity = loc.City
	entry.IPRegion = loc.Region
	entry.IPCountry = loc.Country
	entry.IPISP = loc.ISP
	entry.IPOrg = loc.Org
	entry.IPTimezone = loc.Timezone
	entry.IPLocation = loc.Coordinates

	if err := r.audit.Log(ctx, entry); err != nil {
		r.log.Warn("verification log write failed",
			zap.String("email", entry.Email),
			zap.Error(err),
		)
	}
}

func parseEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrEmailRequired
	}
	if !ValidEmail(email) {
		return "", ErrInvalidEmailFormat
	}
	return DomainOf(email), nil
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
