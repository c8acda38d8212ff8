package geo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/multierr"
)

// GeoLite resolves addresses from local MaxMind GeoLite2 City and (optionally) ASN databases.
type GeoLite struct {
	city *geoip2.Reader
	asn  *geoip2.Reader
}

// OpenGeoLite opens the City database at cityPath and, when asnPath is set, the
// ASN database used for ISP and organisation names.
func OpenGeoLite(cityPath, asnPath string) (*GeoLite, error) {
	cityPath = strings.TrimSpace(cityPath)
	if cityPath == "" {
		return nil, errors.New("geo: geolite city database path is required")
	}
	city, err := geoip2.Open(cityPath)
	if err != nil {
		return nil, fmt.Errorf("geo: open geolite city database: %w", err)
	}

	provider := &GeoLite{city: city}
	if asnPath = strings.TrimSpace(asnPath); asnPath != "" {
		asn, err := geoip2.Open(asnPath)
		if err != nil {
			_ = city.Close()
			return nil, fmt.Errorf("geo: open geolite asn database: %w", err)
		}
		provider.asn = asn
	}
	return provider, nil
}

func (g *GeoLite) Name() string { return "geolite" }

func (g *GeoLite) Lookup(_ context.Context, ip string) (Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}, fmt.Errorf("%w: invalid address %q", ErrLookupFailed, ip)
	}

	record, err := g.city.City(parsed)
	if err != nil {
		return Location{}, fmt.Errorf("geo: geolite city lookup: %w", err)
	}

	loc := Location{
		IP:          ip,
		City:        record.City.Names["en"],
		Country:     record.Country.Names["en"],
		Timezone:    record.Location.TimeZone,
		Coordinates: coordinates(record.Location.Latitude, record.Location.Longitude),
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}

	if g.asn != nil {
		if asn, err := g.asn.ASN(parsed); err == nil {
			loc.ISP = asn.AutonomousSystemOrganization
			loc.Org = asn.AutonomousSystemOrganization
		}
	}

	if !loc.Known() {
		return Location{}, fmt.Errorf("%w: %s not in geolite database", ErrLookupFailed, ip)
	}
	return loc, nil
}

// Close releases the underlying database readers.
func (g *GeoLite) Close() error {
	if g == nil {
		return nil
	}
	var err error
	if g.city != nil {
		err = multierr.Append(err, g.city.Close())
	}
	if g.asn != nil {
		err = multierr.Append(err, g.asn.Close())
	}
	return err
}
