package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the domaingate service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Redirect    RedirectConfig    `mapstructure:"redirect"`
	Geo         GeoConfig         `mapstructure:"geo"`
	Captcha     CaptchaConfig     `mapstructure:"captcha"`
	Email       EmailConfig       `mapstructure:"email"`
	Abuse       AbuseConfig       `mapstructure:"abuse"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string            `mapstructure:"driver"`
	Path     string            `mapstructure:"path"`
	DSN      string            `mapstructure:"dsn"`
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Name     string            `mapstructure:"name"`
	User     string            `mapstructure:"user"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Prefix   string        `mapstructure:"prefix"`
}

// AdminConfig holds the shared secrets accepted by the admin endpoints.
type AdminConfig struct {
	Tokens []string `mapstructure:"tokens"`
}

// RedirectConfig controls redirect template defaults.
type RedirectConfig struct {
	DefaultTemplate string `mapstructure:"default_template"`
}

// GeoConfig controls IP geolocation enrichment.
type GeoConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	Providers      []string      `mapstructure:"providers"`
	GeoLitePath    string        `mapstructure:"geolite_path"`
	GeoLiteASNPath string        `mapstructure:"geolite_asn_path"`
}

// CaptchaConfig holds CAPTCHA vendor secrets.
type CaptchaConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	TurnstileSecret string        `mapstructure:"turnstile_secret"`
	HCaptchaSecret  string        `mapstructure:"hcaptcha_secret"`
	ReCaptchaSecret string        `mapstructure:"recaptcha_secret"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AbuseConfig routes abuse reports.
type AbuseConfig struct {
	Recipient string `mapstructure:"recipient"`
}

// MaintenanceConfig schedules background cleanup.
type MaintenanceConfig struct {
	LogRetentionDays int    `mapstructure:"log_retention_days"`
	LogSchedule      string `mapstructure:"log_schedule"`
	CacheSchedule    string `mapstructure:"cache_schedule"`
}

// MonitoringConfig enables metrics endpoints.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// RateLimitConfig bounds per-client request rates. Zero disables a limit.
type RateLimitConfig struct {
	VerifyPerMinute int `mapstructure:"verify_per_minute"`
	AdminPerMinute  int `mapstructure:"admin_per_minute"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("DOMAINGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	config.Admin.Tokens = cleanList(config.Admin.Tokens)
	config.Geo.Providers = cleanList(config.Geo.Providers)

	return &config, nil
}

// Validate reports configuration that would leave the service unusable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if len(c.Admin.Tokens) == 0 {
		return errors.New("config: admin.tokens must contain at least one token")
	}
	if c.Maintenance.LogRetentionDays < 0 {
		return errors.New("config: maintenance.log_retention_days must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_grace", "10s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/domaingate.sqlite")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.url", "")
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.redis.prefix", "domaingate:")

	v.SetDefault("admin.tokens", []string{})

	v.SetDefault("redirect.default_template", "https://{domain}.example.com/?ext={email}")

	v.SetDefault("geo.enabled", true)
	v.SetDefault("geo.timeout", "3s")
	v.SetDefault("geo.cache_ttl", "24h")
	v.SetDefault("geo.providers", []string{"geolite", "ipapi.co", "ip-api.com", "ipwho.is"})
	v.SetDefault("geo.geolite_path", "")
	v.SetDefault("geo.geolite_asn_path", "")

	v.SetDefault("captcha.timeout", "5s")
	v.SetDefault("captcha.turnstile_secret", "")
	v.SetDefault("captcha.hcaptcha_secret", "")
	v.SetDefault("captcha.recaptcha_secret", "")

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.from", "")
	v.SetDefault("email.smtp.use_tls", false)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("abuse.recipient", "")

	v.SetDefault("maintenance.log_retention_days", 90)
	v.SetDefault("maintenance.log_schedule", "@daily")
	v.SetDefault("maintenance.cache_schedule", "@hourly")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")

	v.SetDefault("rate_limit.verify_per_minute", 30)
	v.SetDefault("rate_limit.admin_per_minute", 120)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
