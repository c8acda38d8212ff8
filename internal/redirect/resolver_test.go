package redirect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/domaingate/internal/geo"
	"github.com/charlesng35/domaingate/internal/models"
	"github.com/charlesng35/domaingate/internal/useragent"
)

const (
	windowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	macUA     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15"
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148"
)

type fakeAllowList struct {
	domains map[string]bool
	err     error
	calls   int
}

func (f *fakeAllowList) Exists(_ context.Context, domain string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.domains[domain], nil
}

type fakeTemplates struct {
	global      []string
	os          OSConfig
	globalErr   error
	osErr       error
	globalReads int
	osReads     int
}

func (f *fakeTemplates) Templates(context.Context) ([]string, error) {
	f.globalReads++
	return f.global, f.globalErr
}

func (f *fakeTemplates) StoredOSConfig(context.Context) (OSConfig, error) {
	f.osReads++
	return f.os, f.osErr
}

type fakeAudit struct {
	entries []models.VerificationLog
	err     error
}

func (f *fakeAudit) Log(_ context.Context, entry *models.VerificationLog) error {
	f.entries = append(f.entries, *entry)
	return f.err
}

type fixedLocator struct{ loc geo.Location }

func (f fixedLocator) Locate(context.Context, string) geo.Location { return f.loc }

type fixture struct {
	allow     *fakeAllowList
	templates *fakeTemplates
	audit     *fakeAudit
	resolver  *Resolver
}

func newFixture(t *testing.T, domains ...string) *fixture {
	t.Helper()
	allow := &fakeAllowList{domains: map[string]bool{}}
	for _, d := range domains {
		allow.domains[d] = true
	}
	f := &fixture{
		allow:     allow,
		templates: &fakeTemplates{global: []string{"https://{domain}.example.com/?ext={email}"}},
		audit:     &fakeAudit{},
	}
	resolver, err := NewResolver(f.allow, f.templates, f.audit, nil)
	require.NoError(t, err)
	f.resolver = resolver
	return f
}

func TestNewResolverRequiresCollaborators(t *testing.T) {
	_, err := NewResolver(nil, &fakeTemplates{}, &fakeAudit{}, nil)
	require.Error(t, err)
	_, err = NewResolver(&fakeAllowList{}, nil, &fakeAudit{}, nil)
	require.Error(t, err)
	_, err = NewResolver(&fakeAllowList{}, &fakeTemplates{}, nil, nil)
	require.Error(t, err)
}

func TestResolveWindowsTemplate(t *testing.T) {
	f := newFixture(t, "acme.com")
	f.templates.os = OSConfig{
		Enabled:             true,
		WindowsRedirectURLs: []string{"https://{domain}.acme-verify.com/w?e={email}"},
		MacRedirectURLs:     []string{"https://mac.example.com"},
		LinuxRedirectURLs:   []string{"https://linux.example.com"},
	}

	res, err := f.resolver.Resolve(context.Background(), Request{Email: "bob@ACME.com", UserAgent: windowsUA, IP: "203.0.113.9"})
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, ReasonGranted, res.Reason)
	require.Equal(t, useragent.Windows, res.DetectedOS)
	require.Equal(t, "https://acme.acme-verify.com/w?e=bob@ACME.com", res.RedirectURL)

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	require.Equal(t, "acme.com", entry.Domain)
	require.Equal(t, "windows", entry.DetectedOS)
	require.NotNil(t, entry.RedirectURL)
	require.Equal(t, res.RedirectURL, *entry.RedirectURL)
	require.Equal(t, geo.UnknownValue, entry.IPCity)

	require.Equal(t, 1, f.templates.osReads)
	require.Zero(t, f.templates.globalReads)
}

func TestResolveDeniedDomain(t *testing.T) {
	f := newFixture(t, "acme.com")

	res, err := f.resolver.Resolve(context.Background(), Request{Email: "x@evil.com", UserAgent: windowsUA})
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, ReasonDenied, res.Reason)
	require.Empty(t, res.RedirectURL)

	require.Len(t, f.audit.entries, 1)
	require.Nil(t, f.audit.entries[0].RedirectURL)
	require.False(t, f.audit.entries[0].Resolved())
	require.Zero(t, f.templates.osReads)
	require.Zero(t, f.templates.globalReads)
}

func TestResolveAnyCasingIsAllowed(t *testing.T) {
	f := newFixture(t, "acme.com")
	for _, email := range []string{"a@acme.com", "a@ACME.COM", "A@AcMe.CoM"} {
		res, err := f.resolver.Resolve(context.Background(), Request{Email: email})
		require.NoError(t, err)
		require.True(t, res.Allowed, email)
		require.False(t, HasPlaceholders(res.RedirectURL), res.RedirectURL)
	}
}

func TestResolveDenialIsUniform(t *testing.T) {
	f := newFixture(t, "acme.com")
	var results []Result
	for _, email := range []string{"x@evil.com", "x@sub.acme.com", "x@acme.co"} {
		res, err := f.resolver.Resolve(context.Background(), Request{Email: email})
		require.NoError(t, err)
		res.Timestamp = time.Time{}
		results = append(results, res)
	}
	for _, res := range results[1:] {
		require.Equal(t, results[0], res)
	}
}

func TestResolveFallsBackToGlobal(t *testing.T) {
	cases := []struct {
		name    string
		ua      string
		os      OSConfig
		wantOS  useragent.Category
		wantURL string
	}{
		{
			name:    "os redirection disabled",
			ua:      windowsUA,
			os:      OSConfig{Enabled: false, WindowsRedirectURLs: []string{"https://win.example.com"}},
			wantOS:  useragent.Windows,
			wantURL: "https://acme.example.com/?ext=bob@acme.com",
		},
		{
			name:    "mobile user agent",
			ua:      iphoneUA,
			os:      OSConfig{Enabled: true, WindowsRedirectURLs: []string{"https://win.example.com"}},
			wantOS:  useragent.Mobile,
			wantURL: "https://acme.example.com/?ext=bob@acme.com",
		},
		{
			name:    "missing user agent",
			ua:      "",
			os:      OSConfig{Enabled: true, MacRedirectURLs: []string{"https://mac.example.com"}},
			wantOS:  useragent.Unknown,
			wantURL: "https://acme.example.com/?ext=bob@acme.com",
		},
		{
			name:    "empty per-os list",
			ua:      macUA,
			os:      OSConfig{Enabled: true, MacRedirectURLs: []string{" "}},
			wantOS:  useragent.Mac,
			wantURL: "https://acme.example.com/?ext=bob@acme.com",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, "acme.com")
			f.templates.os = tc.os

			res, err := f.resolver.Resolve(context.Background(), Request{Email: "bob@acme.com", UserAgent: tc.ua})
			require.NoError(t, err)
			require.Equal(t, tc.wantOS, res.DetectedOS)
			require.Equal(t, tc.wantURL, res.RedirectURL)
			require.Equal(t, 1, f.templates.osReads)
			require.Equal(t, 1, f.templates.globalReads)
			require.Len(t, f.audit.entries, 1)
		})
	}
}

func TestResolveUsesInjectedRand(t *testing.T) {
	f := newFixture(t, "acme.com")
	f.templates.global = []string{"https://one.example.com", "https://two.example.com", "https://three.example.com"}

	var seen []int
	f.resolver.WithRand(func(n int) int {
		seen = append(seen, n)
		return 2
	})

	res, err := f.resolver.Resolve(context.Background(), Request{Email: "bob@acme.com"})
	require.NoError(t, err)
	require.Equal(t, "https://three.example.com", res.RedirectURL)
	require.Equal(t, []int{3}, seen)

	f.resolver.WithRand(func(int) int { return 99 })
	res, err = f.resolver.Resolve(context.Background(), Request{Email: "bob@acme.com"})
	require.NoError(t, err)
	require.Equal(t, "https://one.example.com", res.RedirectURL)
}

func TestResolveSingleTemplateSkipsRand(t *testing.T) {
	f := newFixture(t, "acme.com")
	f.resolver.WithRand(func(int) int {
		t.Fatal("rand must not be used for a single template")
		return 0
	})
	_, err := f.resolver.Resolve(context.Background(), Request{Email: "bob@acme.com"})
	require.NoError(t, err)
}

func TestResolveInputErrorsHaveNoSideEffects(t *testing.T) {
	f := newFixture(t, "acme.com")

	_, err := f.resolver.Resolve(context.Background(), Request{Email: "   "})
	require.ErrorIs(t, err, ErrEmailRequired)

	_, err = f.resolver.Resolve(context.Background(), Request{Email: "not-an-email"})
	require.ErrorIs(t, err, ErrInvalidEmailFormat)

	require.Zero(t, f.allow.calls)
	require.Empty(t, f.audit.entries)
}

func TestResolveFailsClosedOnAllowListError(t *testing.T) {
	f := newFixture(t, "acme.com")
	f.allow.err = errors.New("connection refused")

	res, err := f.resolver.Resolve(context.Background(), Request{Email: "bob@acme.com"})
	require.ErrorIs(t, err, ErrUnavailable)
	require.False(t, res.Allowed)
	require.Len(t, f.audit.entries, 1)
	require.Nil(t, f.audit.entries[0].RedirectURL)
}

func TestResolveFailsClosedOnSettingsError(t *testing.T) {
	f := newFixture(t, "acme.com")
	f.templates.osErr = errors.New("settings unreachable")

	res, err := f.resolver.Resolve(context.Background(), Request{Email: "bob@acme.com"})
	require.ErrorIs(t, err, ErrUnavailable)
	require.False(t, res.Allowed)
	require.Len(t, f.audit.entries, 1)
	require.Nil(t, f.audit.entries[0].RedirectURL)

	f = newFixture(t, "acme.com")
	f.templates.globalErr = errors.New("settings unreachable")
	_, err = f.resolver.Resolve(context.Background(), Request{Email: "bob@acme.com"})
	require.ErrorIs(t, err, ErrUnavailable)
	require.Len(t, f.audit.entries, 1)
}

func TestResolveAuditFailureDoesNotChangeResult(t *testing.T) {
	f := newFixture(t, "acme.com")
	f.audit.err = errors.New("disk full")

	res, err := f.resolver.Resolve(context.Background(), Request{Email: "bob@acme.com"})
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestResolveEnrichesAuditEntry(t *testing.T) {
	f := newFixture(t, "acme.com")
	resolver, err := NewResolver(f.allow, f.templates, f.audit, fixedLocator{loc: geo.Location{
		City: "Lisbon", Region: "Lisbon", Country: "Portugal", ISP: "Example", Org: "Example",
		Timezone: "Europe/Lisbon", Coordinates: "38.7,-9.1",
	}})
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), Request{Email: "bob@acme.com", IP: "203.0.113.1"})
	require.NoError(t, err)
	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	require.Equal(t, "Lisbon", entry.IPCity)
	require.Equal(t, "Portugal", entry.IPCountry)
	require.Equal(t, "38.7,-9.1", entry.IPLocation)
	require.Equal(t, "203.0.113.1", entry.IP)
}

func TestCheck(t *testing.T) {
	f := newFixture(t, "acme.com")

	ok, err := f.resolver.Check(context.Background(), "bob@Acme.com")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.resolver.Check(context.Background(), "bob@evil.com")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = f.resolver.Check(context.Background(), "")
	require.ErrorIs(t, err, ErrEmailRequired)

	f.allow.err = errors.New("down")
	_, err = f.resolver.Check(context.Background(), "bob@acme.com")
	require.ErrorIs(t, err, ErrUnavailable)

	require.Empty(t, f.audit.entries)
}
