package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/domaingate/internal/database"
	"github.com/charlesng35/domaingate/internal/models"
	"github.com/charlesng35/domaingate/internal/redirect"
)

// Settings keys persisted in the settings table.
const (
	TemplatesKey       = "redirect_url_templates"
	LegacyTemplateKey  = "redirect_url_template"
	OSRedirectKey      = "os_redirect_settings"
	DefaultTemplate    = "https://{domain}.example.com/?ext={email}"
	systemActor        = "system-init"
	templateProbeEmail = "test@example.com"
)

// ErrNoTemplates indicates an update carried no usable template.
var ErrNoTemplates = errors.New("settings service: at least one redirect URL template is required")

// TemplateError reports a template that does not materialize into an absolute URL.
type TemplateError struct {
	Template string
}

func (e *TemplateError) Error() string {
	return "Invalid URL template format: " + e.Template
}

// MissingOSTemplatesError reports an OS configuration update lacking templates for one OS.
type MissingOSTemplatesError struct {
	OS string
}

func (e *MissingOSTemplatesError) Error() string {
	return fmt.Sprintf("Please provide at least one %s redirect URL template", e.OS)
}

// TemplateSettings is the global template list together with its provenance.
type TemplateSettings struct {
	Templates []string   `json:"templates"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	UpdatedBy string     `json:"updated_by,omitempty"`
	IsDefault bool       `json:"is_default"`
}

// OSSettings is the OS configuration together with its provenance.
type OSSettings struct {
	redirect.OSConfig
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	UpdatedBy string     `json:"updated_by,omitempty"`
}

// OSConfigUpdate describes a full OS configuration replacement. Nil booleans keep
// their current value.
type OSConfigUpdate struct {
	Enabled     *bool
	BlockMobile *bool
	Windows     []string
	Linux       []string
	Mac         []string
}

// osDocument is the stored shape. Pointer and legacy fields let older documents
// be read without migration.
type osDocument struct {
	Enabled     *bool    `json:"enabled,omitempty"`
	BlockMobile *bool    `json:"blockMobile,omitempty"`
	Windows     []string `json:"windowsRedirectUrls,omitempty"`
	Linux       []string `json:"linuxRedirectUrls,omitempty"`
	Mac         []string `json:"macRedirectUrls,omitempty"`
	MacLinux    []string `json:"macLinuxRedirectUrls,omitempty"`
}

// SettingsService reads and writes redirect templates and the OS configuration.
type SettingsService struct {
	db              *gorm.DB
	defaultTemplate string
}

// NewSettingsService constructs a SettingsService. An empty defaultTemplate
// selects DefaultTemplate.
func NewSettingsService(db *gorm.DB, defaultTemplate string) (*SettingsService, error) {
	if db == nil {
		return nil, errors.New("settings service: db is required")
	}
	defaultTemplate = strings.TrimSpace(defaultTemplate)
	if defaultTemplate == "" {
		defaultTemplate = DefaultTemplate
	}
	if err := ValidateTemplate(defaultTemplate); err != nil {
		return nil, fmt.Errorf("settings service: default template: %w", err)
	}
	return &SettingsService{db: db, defaultTemplate: defaultTemplate}, nil
}

// DefaultTemplate returns the canonical template restored by ResetTemplates.
func (s *SettingsService) DefaultTemplate() string {
	return s.defaultTemplate
}

// ValidateTemplate checks that template materializes into an absolute URL.
func ValidateTemplate(template string) error {
	probe := redirect.Materialize(template, templateProbeEmail)
	parsed, err := url.Parse(probe)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &TemplateError{Template: template}
	}
	return nil
}

// Templates returns the global template list, never empty.
func (s *SettingsService) Templates(ctx context.Context) ([]string, error) {
	settings, err := s.TemplateSettings(ctx)
	if err != nil {
		return nil, err
	}
	return settings.Templates, nil
}

// TemplateSettings returns the global template list with provenance. A legacy
// single-template row is read as a one-element list.
func (s *SettingsService) TemplateSettings(ctx context.Context) (TemplateSettings, error) {
	ctx = ensureContext(ctx)

	var templates []string
	row, err := database.GetSetting(ctx, s.db, TemplatesKey, &templates)
	switch {
	case err == nil:
		if cleaned := cleanTemplates(templates); len(cleaned) > 0 {
			return withProvenance(TemplateSettings{Templates: cleaned}, row), nil
		}
	case errors.Is(err, database.ErrSettingNotFound):
		legacy, found, err := s.legacyTemplate(ctx)
		if err != nil {
			return TemplateSettings{}, err
		}
		if found {
			return legacy, nil
		}
	default:
		return TemplateSettings{}, fmt.Errorf("settings service: load templates: %w", err)
	}

	return TemplateSettings{Templates: []string{s.defaultTemplate}, IsDefault: true}, nil
}

func (s *SettingsService) legacyTemplate(ctx context.Context) (TemplateSettings, bool, error) {
	var raw json.RawMessage
	row, err := database.GetSetting(ctx, s.db, LegacyTemplateKey, &raw)
	if errors.Is(err, database.ErrSettingNotFound) {
		return TemplateSettings{}, false, nil
	}
	if err != nil {
		return TemplateSettings{}, false, fmt.Errorf("settings service: load legacy template: %w", err)
	}

	var templates []string
	var single string
	if json.Unmarshal(raw, &single) == nil {
		templates = []string{single}
	} else if err := json.Unmarshal(raw, &templates); err != nil {
		return TemplateSettings{}, false, fmt.Errorf("settings service: decode legacy template: %w", err)
	}

	templates = cleanTemplates(templates)
	if len(templates) == 0 {
		return TemplateSettings{}, false, nil
	}
	return withProvenance(TemplateSettings{Templates: templates}, row), true, nil
}

// UpdateTemplates replaces the global template list. Blank entries are dropped and
// every remaining template must materialize into an absolute URL.
func (s *SettingsService) UpdateTemplates(ctx context.Context, templates []string, updatedBy string) ([]string, error) {
	ctx = ensureContext(ctx)

	cleaned, err := validateTemplates(templates)
	if err != nil {
		return nil, err
	}
	if err := database.UpsertSetting(ctx, s.db, TemplatesKey, cleaned, actor(updatedBy)); err != nil {
		return nil, fmt.Errorf("settings service: update templates: %w", err)
	}
	return cleaned, nil
}

// ResetTemplates restores the single default template and removes any legacy row.
func (s *SettingsService) ResetTemplates(ctx context.Context, updatedBy string) ([]string, error) {
	ctx = ensureContext(ctx)

	templates := []string{s.defaultTemplate}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := database.UpsertSetting(ctx, tx, TemplatesKey, templates, actor(updatedBy)); err != nil {
			return err
		}
		return tx.Where(&models.Setting{Key: LegacyTemplateKey}).Delete(&models.Setting{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("settings service: reset templates: %w", err)
	}
	return templates, nil
}

// OSConfig returns the effective OS configuration.
func (s *SettingsService) OSConfig(ctx context.Context) (redirect.OSConfig, error) {
	settings, err := s.OSSettings(ctx)
	if err != nil {
		return redirect.OSConfig{}, err
	}
	return settings.OSConfig, nil
}

// OSSettings returns the effective OS configuration with provenance. Missing
// per-OS lists fall back to the legacy fields and then to the global list. An
// absent document yields enabled redirection with mobile blocking.
func (s *SettingsService) OSSettings(ctx context.Context) (OSSettings, error) {
	ctx = ensureContext(ctx)

	cfg, row, err := s.loadOSConfig(ctx)
	if err != nil {
		return OSSettings{}, err
	}

	global, err := s.Templates(ctx)
	if err != nil {
		return OSSettings{}, err
	}
	cfg.WindowsRedirectURLs = firstNonEmpty(cfg.WindowsRedirectURLs, global)
	cfg.LinuxRedirectURLs = firstNonEmpty(cfg.LinuxRedirectURLs, global)
	cfg.MacRedirectURLs = firstNonEmpty(cfg.MacRedirectURLs, global)

	settings := OSSettings{OSConfig: cfg}
	if row != nil {
		updated := row.UpdatedAt
		settings.UpdatedAt = &updated
		settings.UpdatedBy = row.UpdatedBy
	}
	return settings, nil
}

// StoredOSConfig returns the OS configuration as persisted, with the legacy
// per-OS fields applied but without the global fallback. An empty per-OS list
// means the global templates apply. It reads a single settings row.
func (s *SettingsService) StoredOSConfig(ctx context.Context) (redirect.OSConfig, error) {
	cfg, _, err := s.loadOSConfig(ensureContext(ctx))
	return cfg, err
}

func (s *SettingsService) loadOSConfig(ctx context.Context) (redirect.OSConfig, *models.Setting, error) {
	var doc osDocument
	row, err := database.GetSetting(ctx, s.db, OSRedirectKey, &doc)
	if err != nil && !errors.Is(err, database.ErrSettingNotFound) {
		return redirect.OSConfig{}, nil, fmt.Errorf("settings service: load os config: %w", err)
	}

	cfg := redirect.OSConfig{
		Enabled:             boolOr(doc.Enabled, true),
		BlockMobile:         boolOr(doc.BlockMobile, true),
		WindowsRedirectURLs: firstNonEmpty(doc.Windows),
		LinuxRedirectURLs:   firstNonEmpty(doc.Linux, doc.Windows),
		MacRedirectURLs:     firstNonEmpty(doc.Mac, doc.MacLinux),
	}
	return cfg, row, nil
}

// UpdateOSConfig replaces the OS configuration. All three template lists are required.
func (s *SettingsService) UpdateOSConfig(ctx context.Context, update OSConfigUpdate, updatedBy string) (redirect.OSConfig, error) {
	ctx = ensureContext(ctx)

	windows, err := validateOSTemplates("Windows", update.Windows)
	if err != nil {
		return redirect.OSConfig{}, err
	}
	linux, err := validateOSTemplates("Linux", update.Linux)
	if err != nil {
		return redirect.OSConfig{}, err
	}
	mac, err := validateOSTemplates("Mac", update.Mac)
	if err != nil {
		return redirect.OSConfig{}, err
	}

	current, err := s.StoredOSConfig(ctx)
	if err != nil {
		return redirect.OSConfig{}, err
	}

	cfg := redirect.OSConfig{
		Enabled:             boolOr(update.Enabled, current.Enabled),
		BlockMobile:         boolOr(update.BlockMobile, current.BlockMobile),
		WindowsRedirectURLs: windows,
		LinuxRedirectURLs:   linux,
		MacRedirectURLs:     mac,
	}
	if err := s.saveOSConfig(ctx, cfg, updatedBy); err != nil {
		return redirect.OSConfig{}, err
	}
	return cfg, nil
}

// SetBlockMobile toggles mobile blocking and keeps the rest of the configuration.
func (s *SettingsService) SetBlockMobile(ctx context.Context, block bool, updatedBy string) (redirect.OSConfig, error) {
	return s.patchOSConfig(ctx, updatedBy, func(cfg *redirect.OSConfig) { cfg.BlockMobile = block })
}

// SetOSEnabled toggles OS-specific template selection and keeps the rest of the configuration.
func (s *SettingsService) SetOSEnabled(ctx context.Context, enabled bool, updatedBy string) (redirect.OSConfig, error) {
	return s.patchOSConfig(ctx, updatedBy, func(cfg *redirect.OSConfig) { cfg.Enabled = enabled })
}

func (s *SettingsService) patchOSConfig(ctx context.Context, updatedBy string, apply func(*redirect.OSConfig)) (redirect.OSConfig, error) {
	ctx = ensureContext(ctx)

	cfg, err := s.OSConfig(ctx)
	if err != nil {
		return redirect.OSConfig{}, err
	}
	apply(&cfg)
	if err := s.saveOSConfig(ctx, cfg, updatedBy); err != nil {
		return redirect.OSConfig{}, err
	}
	return cfg, nil
}

func (s *SettingsService) saveOSConfig(ctx context.Context, cfg redirect.OSConfig, updatedBy string) error {
	doc := osDocument{
		Enabled:     &cfg.Enabled,
		BlockMobile: &cfg.BlockMobile,
		Windows:     cfg.WindowsRedirectURLs,
		Linux:       cfg.LinuxRedirectURLs,
		Mac:         cfg.MacRedirectURLs,
	}
	if err := database.UpsertSetting(ctx, s.db, OSRedirectKey, doc, actor(updatedBy)); err != nil {
		return fmt.Errorf("settings service: save os config: %w", err)
	}
	return nil
}

// EnsureDefaults seeds the global template list when neither the current nor the
// legacy key exists.
func (s *SettingsService) EnsureDefaults(ctx context.Context) error {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Setting{}).
		Where(map[string]any{"key": []string{TemplatesKey, LegacyTemplateKey}}).
		Count(&count).Error; err != nil {
		return fmt.Errorf("settings service: check defaults: %w", err)
	}
	if count > 0 {
		return nil
	}
	if _, err := database.InsertSettingIfAbsent(ctx, s.db, TemplatesKey, []string{s.defaultTemplate}, systemActor); err != nil {
		return fmt.Errorf("settings service: seed defaults: %w", err)
	}
	return nil
}

// SplitTemplates splits a newline or comma separated list into trimmed entries.
func SplitTemplates(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == ',' || r == '\r' })
	return cleanTemplates(fields)
}

func validateTemplates(templates []string) ([]string, error) {
	cleaned := cleanTemplates(templates)
	if len(cleaned) == 0 {
		return nil, ErrNoTemplates
	}
	for _, template := range cleaned {
		if err := ValidateTemplate(template); err != nil {
			return nil, err
		}
	}
	return cleaned, nil
}

func validateOSTemplates(os string, templates []string) ([]string, error) {
	cleaned, err := validateTemplates(templates)
	if errors.Is(err, ErrNoTemplates) {
		return nil, &MissingOSTemplatesError{OS: os}
	}
	return cleaned, err
}

func cleanTemplates(templates []string) []string {
	out := make([]string, 0, len(templates))
	for _, template := range templates {
		if template = strings.TrimSpace(template); template != "" {
			out = append(out, template)
		}
	}
	return out
}

func withProvenance(settings TemplateSettings, row *models.Setting) TemplateSettings {
	if row != nil {
		updated := row.UpdatedAt
		settings.UpdatedAt = &updated
		settings.UpdatedBy = row.UpdatedBy
	}
	return settings
}

func firstNonEmpty(lists ...[]string) []string {
	for _, list := range lists {
		if cleaned := cleanTemplates(list); len(cleaned) > 0 {
			return cleaned
		}
	}
	return nil
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func actor(updatedBy string) string {
	if updatedBy = strings.TrimSpace(updatedBy); updatedBy != "" {
		return updatedBy
	}
	return "admin"
}
