package useragent

import (
	"regexp"
	"strings"
)

// Details is a human-oriented breakdown of a user agent.
type Details struct {
	Browser        string   `json:"browser"`
	BrowserVersion string   `json:"browser_version"`
	Platform       string   `json:"platform"`
	Device         string   `json:"device"`
	OS             Category `json:"os"`
}

type browserRule struct {
	name    string
	version *regexp.Regexp
	match   func(ua string) bool
}

var browserRules = []browserRule{
	{"Microsoft Edge", regexp.MustCompile(`Edg/([0-9.]+)`), func(ua string) bool { return strings.Contains(ua, "Edg/") }},
	{"Opera", regexp.MustCompile(`(?:Opera|OPR)/([0-9.]+)`), func(ua string) bool {
		return strings.Contains(ua, "OPR/") || strings.Contains(ua, "Opera/")
	}},
	{"Google Chrome", regexp.MustCompile(`Chrome/([0-9.]+)`), func(ua string) bool { return strings.Contains(ua, "Chrome/") }},
	{"Mozilla Firefox", regexp.MustCompile(`Firefox/([0-9.]+)`), func(ua string) bool { return strings.Contains(ua, "Firefox/") }},
	{"Safari", regexp.MustCompile(`Version/([0-9.]+)`), func(ua string) bool { return strings.Contains(ua, "Safari/") }},
	{"Internet Explorer", regexp.MustCompile(`rv:([0-9.]+)`), func(ua string) bool { return strings.Contains(ua, "Trident/") }},
}

var (
	macVersion     = regexp.MustCompile(`Mac OS X ([0-9_.]+)`)
	androidVersion = regexp.MustCompile(`Android ([0-9.]+)`)
	iosVersion     = regexp.MustCompile(`OS ([0-9_]+) like Mac OS X`)
	mobileDevice   = regexp.MustCompile(`(?i)Mobile|iPhone|iPod|BlackBerry|IEMobile|Opera Mini`)
	tabletDevice   = regexp.MustCompile(`(?i)iPad|Tablet`)
)

const unknownValue = "Unknown"

// Parse extracts browser, platform and device information from userAgent.
func Parse(userAgent string) Details {
	ua := strings.TrimSpace(userAgent)
	details := Details{
		Browser:        unknownValue,
		BrowserVersion: unknownValue,
		Platform:       unknownValue,
		Device:         "Desktop",
		OS:             Classify(ua),
	}
	if ua == "" {
		details.Device = unknownValue
		return details
	}

	for _, rule := range browserRules {
		if !rule.match(ua) {
			continue
		}
		details.Browser = rule.name
		if m := rule.version.FindStringSubmatch(ua); len(m) == 2 {
			details.BrowserVersion = m[1]
		}
		break
	}

	details.Platform = platform(ua)
	details.Device = device(ua)
	return details
}

func platform(ua string) string {
	switch {
	case strings.Contains(ua, "Windows NT 10.0"):
		return "Windows 10/11"
	case strings.Contains(ua, "Windows NT 6.3"):
		return "Windows 8.1"
	case strings.Contains(ua, "Windows NT 6.2"):
		return "Windows 8"
	case strings.Contains(ua, "Windows NT 6.1"):
		return "Windows 7"
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad") || strings.Contains(ua, "iPod"):
		if m := iosVersion.FindStringSubmatch(ua); len(m) == 2 {
			return "iOS " + strings.ReplaceAll(m[1], "_", ".")
		}
		return "iOS"
	case strings.Contains(ua, "Android"):
		if m := androidVersion.FindStringSubmatch(ua); len(m) == 2 {
			return "Android " + m[1]
		}
		return "Android"
	case strings.Contains(ua, "CrOS"):
		return "ChromeOS"
	case strings.Contains(ua, "Mac OS X"):
		if m := macVersion.FindStringSubmatch(ua); len(m) == 2 {
			return "macOS " + strings.ReplaceAll(m[1], "_", ".")
		}
		return "macOS"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	}
	return unknownValue
}

func device(ua string) string {
	if tabletDevice.MatchString(ua) {
		return "Tablet"
	}
	// Android without "Mobile" is a tablet by convention.
	if strings.Contains(ua, "Android") && !strings.Contains(ua, "Mobile") {
		return "Tablet"
	}
	if mobileDevice.MatchString(ua) || strings.Contains(ua, "Android") {
		return "Mobile"
	}
	return "Desktop"
}
