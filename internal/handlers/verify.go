package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/domaingate/internal/redirect"
	"github.com/charlesng35/domaingate/internal/useragent"
	"github.com/charlesng35/domaingate/pkg/logger"
	"github.com/charlesng35/domaingate/pkg/metrics"
	"github.com/charlesng35/domaingate/pkg/response"
)

const (
	msgEmailRequired    = "Your email address is required"
	msgInvalidEmail     = "Invalid email format"
	msgUnavailable      = "Unable to verify email. Please try again later."
	msgVerified         = "Email verified successfully"
	msgValidated        = "Email validated successfully"
	msgValidateRequired = "Please enter an email address"
	msgAccessDenied     = "Access Denied"
)

// MobilePolicy exposes the OS configuration consulted by the mobile-block gate.
type MobilePolicy interface {
	StoredOSConfig(ctx context.Context) (redirect.OSConfig, error)
}

// VerifyHandler serves the public verification endpoints.
type VerifyHandler struct {
	resolver *redirect.Resolver
	policy   MobilePolicy
	log      *zap.Logger
}

// NewVerifyHandler constructs a verification handler.
func NewVerifyHandler(resolver *redirect.Resolver, policy MobilePolicy) (*VerifyHandler, error) {
	if resolver == nil {
		return nil, errors.New("verify handler: resolver is required")
	}
	if policy == nil {
		return nil, errors.New("verify handler: mobile policy is required")
	}
	return &VerifyHandler{
		resolver: resolver,
		policy:   policy,
		log:      logger.WithModule("verify"),
	}, nil
}

type verifyRequest struct {
	Email     string `json:"email"`
	Timestamp string `json:"timestamp"`
}

type verifyResponse struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	RedirectURL string    `json:"redirectUrl"`
	DetectedOS  string    `json:"detectedOs"`
	Timestamp   time.Time `json:"timestamp"`
}

// Verify checks the submitted email against the allow-list and returns the
// materialized redirect URL.
func (h *VerifyHandler) Verify(c *gin.Context) {
	var req verifyRequest
	// A malformed body is treated like a missing email.
	_ = c.ShouldBindJSON(&req)

	ctx := requestContext(c)
	ua := userAgent(c)

	if useragent.Classify(ua) == useragent.Mobile && h.blockMobile(ctx) {
		metrics.Verifications.WithLabelValues("denied").Inc()
		response.Message(c, http.StatusBadRequest, redirect.DenialMessage)
		return
	}

	result, err := h.resolver.Resolve(ctx, redirect.Request{
		Email:     req.Email,
		UserAgent: ua,
		IP:        c.ClientIP(),
	})
	if err != nil {
		h.writeError(c, err, msgEmailRequired)
		return
	}
	if !result.Allowed {
		response.Message(c, http.StatusBadRequest, redirect.DenialMessage)
		return
	}

	c.JSON(http.StatusOK, verifyResponse{
		Success:     true,
		Message:     msgVerified,
		RedirectURL: result.RedirectURL,
		DetectedOS:  result.DetectedOS.String(),
		Timestamp:   result.Timestamp,
	})
}

// ValidateEmail reports allow-list membership only. No template is selected and
// no audit entry is written.
func (h *VerifyHandler) ValidateEmail(c *gin.Context) {
	var req verifyRequest
	_ = c.ShouldBindJSON(&req)

	ok, err := h.resolver.Check(requestContext(c), req.Email)
	if err != nil {
		h.writeError(c, err, msgValidateRequired)
		return
	}
	if !ok {
		response.Message(c, http.StatusBadRequest, msgAccessDenied)
		return
	}
	response.Message(c, http.StatusOK, msgValidated)
}

// MobileSettings exposes whether mobile clients are blocked.
func (h *VerifyHandler) MobileSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"blockMobile": h.blockMobile(requestContext(c))})
}

// blockMobile reads the mobile-block flag and treats a settings failure as blocked.
func (h *VerifyHandler) blockMobile(ctx context.Context) bool {
	cfg, err := h.policy.StoredOSConfig(ctx)
	if err != nil {
		h.log.Warn("mobile policy unavailable, blocking mobile clients", zap.Error(err))
		return true
	}
	return cfg.BlockMobile
}

func (h *VerifyHandler) writeError(c *gin.Context, err error, requiredMessage string) {
	switch {
	case errors.Is(err, redirect.ErrEmailRequired):
		response.Message(c, http.StatusBadRequest, requiredMessage)
	case errors.Is(err, redirect.ErrInvalidEmailFormat):
		response.Message(c, http.StatusBadRequest, msgInvalidEmail)
	default:
		h.log.Error("verification failed", zap.Error(err))
		response.Message(c, http.StatusInternalServerError, msgUnavailable)
	}
}
