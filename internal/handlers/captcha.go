package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/domaingate/internal/captcha"
	"github.com/charlesng35/domaingate/pkg/logger"
)

// CaptchaHandler proxies CAPTCHA tokens to the vendor verification endpoints.
type CaptchaHandler struct {
	verifier *captcha.Verifier
}

// NewCaptchaHandler constructs a CAPTCHA handler.
func NewCaptchaHandler(verifier *captcha.Verifier) (*CaptchaHandler, error) {
	if verifier == nil {
		return nil, errors.New("captcha handler: verifier is required")
	}
	return &CaptchaHandler{verifier: verifier}, nil
}

type captchaRequest struct {
	Provider string `json:"provider"`
	Token    string `json:"token"`
	Action   string `json:"action"`
}

type captchaResponse struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	Action     string   `json:"action,omitempty"`
	ErrorCodes []string `json:"errorCodes,omitempty"`
}

// Verify checks a CAPTCHA token with the requested provider.
func (h *CaptchaHandler) Verify(c *gin.Context) {
	var req captchaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, captchaResponse{Message: "Token is required"})
		return
	}

	provider, err := captcha.ParseProvider(req.Provider)
	if err != nil {
		c.JSON(http.StatusBadRequest, captchaResponse{Message: "Unsupported CAPTCHA provider"})
		return
	}

	result, err := h.verifier.Verify(requestContext(c), provider, req.Token, c.ClientIP())
	switch {
	case errors.Is(err, captcha.ErrTokenRequired):
		c.JSON(http.StatusBadRequest, captchaResponse{Message: "Token is required"})
		return
	case errors.Is(err, captcha.ErrUnknownProvider), errors.Is(err, captcha.ErrNotConfigured):
		c.JSON(http.StatusBadRequest, captchaResponse{Message: "Unsupported CAPTCHA provider"})
		return
	case err != nil:
		logger.WithModule("captcha").Warn("captcha verification failed",
			zap.String("provider", string(provider)),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, captchaResponse{Message: "Verification failed"})
		return
	}

	resp := captchaResponse{
		Success:    result.Success,
		Score:      result.Score,
		Action:     result.Action,
		ErrorCodes: result.ErrorCodes,
	}
	expected := strings.TrimSpace(req.Action)
	if resp.Success && expected != "" && result.Action != "" && result.Action != expected {
		resp.Success = false
		resp.ErrorCodes = append(resp.ErrorCodes, "action-mismatch")
	}
	c.JSON(http.StatusOK, resp)
}
