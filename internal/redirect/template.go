// Package redirect decides whether an email may follow a secure link and, if so,
// which redirect URL it receives.
package redirect

import (
	"regexp"
	"strings"
)

const (
	domainPlaceholder = "{domain}"
	emailPlaceholder  = "{email}"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether email has a basic local@domain.tld shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// DomainOf returns the lowercased text after the last "@" in email, or "" when
// there is none.
func DomainOf(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

// CleanDomain returns the label just before the top-level label of the email's
// domain, so "bob@mail.example.com" gives "example". Single-label domains are
// returned unchanged.
func CleanDomain(email string) string {
	domain := DomainOf(email)
	if domain == "" {
		return ""
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return labels[0]
	}
	return labels[len(labels)-2]
}

// Materialize substitutes {domain} and {email} in template. Values are inserted
// verbatim without URL encoding.
func Materialize(template, email string) string {
	return strings.NewReplacer(
		domainPlaceholder, CleanDomain(email),
		emailPlaceholder, email,
	).Replace(template)
}

// HasPlaceholders reports whether s still contains an unresolved placeholder.
func HasPlaceholders(s string) bool {
	return strings.Contains(s, domainPlaceholder) || strings.Contains(s, emailPlaceholder)
}
