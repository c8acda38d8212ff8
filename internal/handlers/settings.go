package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/domaingate/internal/redirect"
	"github.com/charlesng35/domaingate/internal/services"
	appErrors "github.com/charlesng35/domaingate/pkg/errors"
	"github.com/charlesng35/domaingate/pkg/response"
)

// SettingsHandler administers redirect templates and the OS configuration.
type SettingsHandler struct {
	settings *services.SettingsService
}

// NewSettingsHandler constructs a settings handler.
func NewSettingsHandler(settings *services.SettingsService) (*SettingsHandler, error) {
	if settings == nil {
		return nil, errors.New("settings handler: settings service is required")
	}
	return &SettingsHandler{settings: settings}, nil
}

type updateTemplatesRequest struct {
	Templates templateList `json:"templates"`
	Template  string       `json:"template"`
	UpdatedBy string       `json:"updatedBy" validate:"max=128"`
}

type resetTemplatesRequest struct {
	UpdatedBy string `json:"updatedBy" validate:"max=128"`
}

type updateOSRequest struct {
	Enabled     *bool        `json:"enabled"`
	BlockMobile *bool        `json:"blockMobile"`
	Windows     templateList `json:"windowsRedirectUrls"`
	Linux       templateList `json:"linuxRedirectUrls"`
	Mac         templateList `json:"macRedirectUrls"`
	UpdatedBy   string       `json:"updatedBy" validate:"max=128"`
}

type blockMobileRequest struct {
	BlockMobile *bool  `json:"blockMobile" validate:"required"`
	UpdatedBy   string `json:"updatedBy" validate:"max=128"`
}

type osEnabledRequest struct {
	Enabled   *bool  `json:"enabled" validate:"required"`
	UpdatedBy string `json:"updatedBy" validate:"max=128"`
}

type settingsOverview struct {
	Templates       services.TemplateSettings `json:"templates"`
	OSRedirect      services.OSSettings       `json:"os_redirect"`
	DefaultTemplate string                    `json:"default_template"`
}

type templatesResponse struct {
	Message   string   `json:"message"`
	Templates []string `json:"templates"`
}

type osResponse struct {
	Message string            `json:"message"`
	Config  redirect.OSConfig `json:"config"`
}

// Overview returns templates, OS configuration and provenance in one payload.
func (h *SettingsHandler) Overview(c *gin.Context) {
	ctx := requestContext(c)
	templates, err := h.settings.TemplateSettings(ctx)
	if err != nil {
		internalError(c, err)
		return
	}
	osSettings, err := h.settings.OSSettings(ctx)
	if err != nil {
		internalError(c, err)
		return
	}
	response.Success(c, http.StatusOK, settingsOverview{
		Templates:       templates,
		OSRedirect:      osSettings,
		DefaultTemplate: h.settings.DefaultTemplate(),
	})
}

// GetTemplates returns the global template list.
func (h *SettingsHandler) GetTemplates(c *gin.Context) {
	templates, err := h.settings.TemplateSettings(requestContext(c))
	if err != nil {
		internalError(c, err)
		return
	}
	response.Success(c, http.StatusOK, templates)
}

// UpdateTemplates replaces the global template list.
func (h *SettingsHandler) UpdateTemplates(c *gin.Context) {
	var req updateTemplatesRequest
	if !bindAndValidate(c, &req) {
		return
	}

	templates := []string(req.Templates)
	if req.Template != "" {
		templates = append(templates, req.Template)
	}

	saved, err := h.settings.UpdateTemplates(requestContext(c), templates, req.UpdatedBy)
	if err != nil {
		h.writeSettingsError(c, err)
		return
	}
	response.Success(c, http.StatusOK, templatesResponse{
		Message:   pluralTemplates(len(saved)) + " updated successfully",
		Templates: saved,
	})
}

// ResetTemplates restores the default template.
func (h *SettingsHandler) ResetTemplates(c *gin.Context) {
	var req resetTemplatesRequest
	if !bindOptional(c, &req) {
		return
	}

	saved, err := h.settings.ResetTemplates(requestContext(c), req.UpdatedBy)
	if err != nil {
		internalError(c, err)
		return
	}
	response.Success(c, http.StatusOK, templatesResponse{
		Message:   "Redirect URL templates reset to default successfully",
		Templates: saved,
	})
}

// GetOSConfig returns the effective OS configuration.
func (h *SettingsHandler) GetOSConfig(c *gin.Context) {
	settings, err := h.settings.OSSettings(requestContext(c))
	if err != nil {
		internalError(c, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}

// UpdateOSConfig replaces the OS configuration.
func (h *SettingsHandler) UpdateOSConfig(c *gin.Context) {
	var req updateOSRequest
	if !bindAndValidate(c, &req) {
		return
	}

	cfg, err := h.settings.UpdateOSConfig(requestContext(c), services.OSConfigUpdate{
		Enabled:     req.Enabled,
		BlockMobile: req.BlockMobile,
		Windows:     req.Windows,
		Linux:       req.Linux,
		Mac:         req.Mac,
	}, req.UpdatedBy)
	if err != nil {
		h.writeSettingsError(c, err)
		return
	}
	response.Success(c, http.StatusOK, osResponse{Message: "OS redirect settings updated successfully", Config: cfg})
}

// SetBlockMobile toggles mobile blocking.
func (h *SettingsHandler) SetBlockMobile(c *gin.Context) {
	var req blockMobileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	cfg, err := h.settings.SetBlockMobile(requestContext(c), *req.BlockMobile, req.UpdatedBy)
	if err != nil {
		internalError(c, err)
		return
	}
	message := "Mobile blocking disabled"
	if cfg.BlockMobile {
		message = "Mobile blocking enabled"
	}
	response.Success(c, http.StatusOK, osResponse{Message: message, Config: cfg})
}

// SetOSEnabled toggles OS-specific template selection.
func (h *SettingsHandler) SetOSEnabled(c *gin.Context) {
	var req osEnabledRequest
	if !bindAndValidate(c, &req) {
		return
	}

	cfg, err := h.settings.SetOSEnabled(requestContext(c), *req.Enabled, req.UpdatedBy)
	if err != nil {
		internalError(c, err)
		return
	}
	message := "OS-specific redirects disabled"
	if cfg.Enabled {
		message = "OS-specific redirects enabled"
	}
	response.Success(c, http.StatusOK, osResponse{Message: message, Config: cfg})
}

func (h *SettingsHandler) writeSettingsError(c *gin.Context, err error) {
	var templateErr *services.TemplateError
	var missingErr *services.MissingOSTemplatesError
	switch {
	case errors.Is(err, services.ErrNoTemplates):
		response.Error(c, appErrors.NewBadRequest("Please provide at least one redirect URL template"))
	case errors.As(err, &templateErr):
		response.Error(c, appErrors.NewBadRequest(templateErr.Error()))
	case errors.As(err, &missingErr):
		response.Error(c, appErrors.NewBadRequest(missingErr.Error()))
	default:
		internalError(c, err)
	}
}

func pluralTemplates(n int) string {
	if n == 1 {
		return "1 redirect URL template"
	}
	return strconv.Itoa(n) + " redirect URL templates"
}
