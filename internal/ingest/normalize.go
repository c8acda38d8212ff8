// Package ingest turns free-form pasted text or uploaded files into a
// deduplicated set of allow-list domains.
package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Mode selects how raw input is tokenised.
type Mode int

const (
	// ModeMixed splits on newlines, commas and whitespace runs.
	ModeMixed Mode = iota
	// ModeFile splits on line breaks and extracts embedded email addresses.
	ModeFile
)

func (m Mode) String() string {
	if m == ModeFile {
		return "file"
	}
	return "mixed"
}

// Item types and statuses reported per token.
const (
	TypeEmail   = "email"
	TypeDomain  = "domain"
	TypeUnknown = "unknown"

	StatusProcessed = "processed"
	StatusFailed    = "failed"

	ReasonInvalidDomain = "invalid domain format"
	ReasonInvalidEmail  = "invalid email format"
	ReasonUnrecognised  = "not a valid email or domain"
)

// Content types detected in file mode.
const (
	ContentEmails  = "emails"
	ContentDomains = "domains"
	ContentMixed   = "mixed"
)

var (
	mixedSeparators = regexp.MustCompile(`[\n,\s]+`)
	lineSeparators  = regexp.MustCompile(`\r?\n`)
	emailShape      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	embeddedEmail   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	domainShape     = regexp.MustCompile(`^[a-z0-9]+([\-\.]{1}[a-z0-9]+)*\.[a-z]{2,}$`)
)

// Item is the outcome for one token.
type Item struct {
	Input  string `json:"input"`
	Type   string `json:"type"`
	Domain string `json:"domain,omitempty"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Result aggregates a normalisation run and, after Ingest, its persistence outcome.
type Result struct {
	TotalProcessed   int    `json:"totalProcessed"`
	EmailsProcessed  int    `json:"emailsProcessed"`
	DomainsProcessed int    `json:"domainsProcessed"`
	DomainsExtracted int    `json:"domainsExtracted"`
	Added            int    `json:"added"`
	Skipped          int    `json:"skipped"`
	Failed           int    `json:"failed"`
	ContentType      string `json:"contentType,omitempty"`
	Details          []Item `json:"details"`

	// Domains holds the unique candidate domains in first-seen order.
	Domains []string `json:"-"`
}

// Summary renders a one-line description of the run.
func (r Result) Summary() string {
	return fmt.Sprintf(
		"Processed %d items (%d emails, %d domains). Extracted %d unique domains. Added: %d, Skipped: %d, Failed: %d",
		r.TotalProcessed, r.EmailsProcessed, r.DomainsProcessed, r.DomainsExtracted, r.Added, r.Skipped, r.Failed,
	)
}

// ValidDomain reports whether domain is a lowercase registrable name. Bare ICANN
// suffixes such as "co.uk" are rejected. Privately operated suffixes such as
// "github.io" are accepted, since mail is delivered to them directly.
func ValidDomain(domain string) bool {
	if !domainShape.MatchString(domain) {
		return false
	}
	suffix, icann := publicsuffix.PublicSuffix(domain)
	return !(icann && suffix == domain)
}

// Normalize tokenises raw according to mode and classifies each token. It has no
// side effects.
func Normalize(raw string, mode Mode) Result {
	var tokens []string
	switch mode {
	case ModeFile:
		tokens = split(raw, lineSeparators)
	default:
		tokens = split(raw, mixedSeparators)
	}

	n := &normaliser{seen: make(map[string]struct{})}
	n.result.TotalProcessed = len(tokens)
	n.result.Details = make([]Item, 0, len(tokens))

	var emailCount, domainCount int
	for _, token := range tokens {
		token = strings.ToLower(token)

		if mode == ModeFile && !emailShape.MatchString(token) {
			if matches := embeddedEmail.FindAllString(token, -1); len(matches) > 0 {
				for _, email := range matches {
					n.email(email)
				}
				emailCount += len(matches)
				continue
			}
		}

		switch {
		case emailShape.MatchString(token):
			n.email(token)
			emailCount++
		case ValidDomain(token):
			n.domain(token)
			domainCount++
		default:
			n.fail(Item{Input: token, Type: TypeUnknown, Reason: ReasonUnrecognised})
		}
	}

	if mode == ModeFile {
		switch {
		case emailCount > 0 && domainCount == 0:
			n.result.ContentType = ContentEmails
		case domainCount > 0 && emailCount == 0:
			n.result.ContentType = ContentDomains
		default:
			n.result.ContentType = ContentMixed
		}
	}

	n.result.DomainsExtracted = len(n.result.Domains)
	return n.result
}

type normaliser struct {
	result Result
	seen   map[string]struct{}
}

func (n *normaliser) email(email string) {
	n.result.EmailsProcessed++
	domain := email[strings.LastIndex(email, "@")+1:]
	if !ValidDomain(domain) {
		n.fail(Item{Input: email, Type: TypeEmail, Reason: ReasonInvalidDomain})
		return
	}
	n.add(domain)
	n.result.Details = append(n.result.Details, Item{Input: email, Type: TypeEmail, Domain: domain, Status: StatusProcessed})
}

func (n *normaliser) domain(domain string) {
	n.result.DomainsProcessed++
	n.add(domain)
	n.result.Details = append(n.result.Details, Item{Input: domain, Type: TypeDomain, Domain: domain, Status: StatusProcessed})
}

func (n *normaliser) fail(item Item) {
	item.Status = StatusFailed
	n.result.Failed++
	n.result.Details = append(n.result.Details, item)
}

func (n *normaliser) add(domain string) {
	if _, ok := n.seen[domain]; ok {
		return
	}
	n.seen[domain] = struct{}{}
	n.result.Domains = append(n.result.Domains, domain)
}

func split(raw string, sep *regexp.Regexp) []string {
	parts := sep.Split(raw, -1)
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			tokens = append(tokens, part)
		}
	}
	return tokens
}
