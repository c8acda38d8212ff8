package redirect

import "github.com/charlesng35/domaingate/internal/useragent"

// OSConfig controls OS-specific template selection.
type OSConfig struct {
	Enabled             bool     `json:"enabled"`
	BlockMobile         bool     `json:"blockMobile"`
	WindowsRedirectURLs []string `json:"windowsRedirectUrls"`
	LinuxRedirectURLs   []string `json:"linuxRedirectUrls"`
	MacRedirectURLs     []string `json:"macRedirectUrls"`
}

// TemplatesFor returns the template list for category, or nil when the global
// list applies.
func (c OSConfig) TemplatesFor(category useragent.Category) []string {
	if !c.Enabled {
		return nil
	}
	switch category {
	case useragent.Windows:
		return c.WindowsRedirectURLs
	case useragent.Linux:
		return c.LinuxRedirectURLs
	case useragent.Mac:
		return c.MacRedirectURLs
	}
	return nil
}
