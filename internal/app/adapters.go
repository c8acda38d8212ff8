package app

import (
	"github.com/charlesng35/domaingate/internal/captcha"
	"github.com/charlesng35/domaingate/internal/geo"
	"github.com/charlesng35/domaingate/pkg/mail"
)

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// LocatorConfig converts GeoConfig to the geo package representation.
func (c GeoConfig) LocatorConfig() geo.Config {
	return geo.Config{
		Enabled:        c.Enabled,
		Timeout:        c.Timeout,
		CacheTTL:       c.CacheTTL,
		Providers:      c.Providers,
		GeoLitePath:    c.GeoLitePath,
		GeoLiteASNPath: c.GeoLiteASNPath,
	}
}

// VerifierConfig converts CaptchaConfig to the captcha package representation.
func (c CaptchaConfig) VerifierConfig() captcha.Config {
	return captcha.Config{
		Timeout:         c.Timeout,
		TurnstileSecret: c.TurnstileSecret,
		HCaptchaSecret:  c.HCaptchaSecret,
		ReCaptchaSecret: c.ReCaptchaSecret,
	}
}
