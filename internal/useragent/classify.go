// Package useragent derives coarse operating system and device information from
// User-Agent header values.
package useragent

import "strings"

// Category is the coarse OS bucket used for redirect template selection.
type Category string

const (
	Windows Category = "windows"
	Mac     Category = "mac"
	Linux   Category = "linux"
	Mobile  Category = "mobile"
	Unknown Category = "unknown"
)

// Marker lists are checked in declaration order; the first list with a hit wins.
// Mobile comes first because handset user agents routinely embed desktop tokens
// such as "Linux" or "Mac OS X".
var rules = []struct {
	category Category
	markers  []string
}{
	{Mobile, []string{"iphone", "ipad", "ipod", "android", "webos", "blackberry", "iemobile", "opera mini"}},
	{Windows, []string{"windows"}},
	{Mac, []string{"mac os", "macos", "darwin"}},
	{Linux, []string{"linux", "x11", "ubuntu", "debian"}},
}

// Classify maps any user agent, including the empty string, to exactly one Category.
func Classify(userAgent string) Category {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return Unknown
	}
	for _, rule := range rules {
		for _, marker := range rule.markers {
			if strings.Contains(ua, marker) {
				return rule.category
			}
		}
	}
	return Unknown
}

// IsDesktop reports whether c has its own redirect template list.
func (c Category) IsDesktop() bool {
	return c == Windows || c == Mac || c == Linux
}

func (c Category) String() string { return string(c) }
