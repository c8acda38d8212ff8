// Package geo resolves client IP addresses to coarse location metadata using an
// ordered chain of providers.
package geo

import (
	"net/netip"
	"strconv"
	"strings"
)

// UnknownValue fills every field that could not be resolved.
const UnknownValue = "Unknown"

// Location is the enrichment attached to verification logs and visitor info.
type Location struct {
	IP       string `json:"ip"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	ISP      string `json:"isp"`
	Org      string `json:"org"`
	Timezone string `json:"timezone"`
	// Coordinates is "lat,lon" or UnknownValue.
	Coordinates string `json:"location"`
	Provider    string `json:"provider,omitempty"`
}

// Unknown returns the fallback location for ip.
func Unknown(ip string) Location {
	return Location{
		IP:          ip,
		City:        UnknownValue,
		Region:      UnknownValue,
		Country:     UnknownValue,
		ISP:         UnknownValue,
		Org:         UnknownValue,
		Timezone:    UnknownValue,
		Coordinates: UnknownValue,
	}
}

// Known reports whether the location carries at least a city or a country.
func (l Location) Known() bool {
	return known(l.City) || known(l.Country)
}

// IsLocal reports whether ip is missing, private, loopback or otherwise not
// routable on the public internet.
func IsLocal(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return true
	}
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsMulticast()
}

func known(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && !strings.EqualFold(value, UnknownValue)
}

// normalise fills blank fields with UnknownValue.
func (l Location) normalise() Location {
	for _, field := range []*string{&l.City, &l.Region, &l.Country, &l.ISP, &l.Org, &l.Timezone, &l.Coordinates} {
		*field = strings.TrimSpace(*field)
		if *field == "" {
			*field = UnknownValue
		}
	}
	return l
}

func coordinates(lat, lon float64) string {
	if lat == 0 && lon == 0 {
		return UnknownValue
	}
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}
