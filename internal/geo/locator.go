package geo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/charlesng35/domaingate/internal/cache"
	"github.com/charlesng35/domaingate/pkg/logger"
	"github.com/charlesng35/domaingate/pkg/metrics"
)

const (
	defaultTimeout  = 3 * time.Second
	defaultCacheTTL = 24 * time.Hour
	cacheKeyPrefix  = "geo:"
)

// Config controls provider selection and lookup bounds.
type Config struct {
	Enabled  bool
	Timeout  time.Duration
	CacheTTL time.Duration
	// Providers lists provider names in lookup order. Known names are
	// "geolite", "ipapi.co", "ip-api.com" and "ipwho.is".
	Providers      []string
	GeoLitePath    string
	GeoLiteASNPath string
}

// DefaultProviderOrder is used when Config.Providers is empty.
var DefaultProviderOrder = []string{"geolite", "ipapi.co", "ip-api.com", "ipwho.is"}

// Locator resolves IPs through its providers in order, caching successful results.
type Locator struct {
	enabled   bool
	timeout   time.Duration
	ttl       time.Duration
	store     cache.Store
	providers []Provider
	group     singleflight.Group
	log       *zap.Logger
}

// NewLocator builds a Locator over providers. A nil store disables caching.
func NewLocator(cfg Config, store cache.Store, providers ...Provider) *Locator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Locator{
		enabled:   cfg.Enabled,
		timeout:   timeout,
		ttl:       ttl,
		store:     store,
		providers: providers,
		log:       logger.WithModule("geo"),
	}
}

// BuildProviders instantiates the providers named in cfg. The geolite provider is
// skipped with a warning when no database path is configured or it fails to open.
func BuildProviders(cfg Config, client *http.Client) ([]Provider, error) {
	names := cfg.Providers
	if len(names) == 0 {
		names = DefaultProviderOrder
	}
	if client == nil {
		client = &http.Client{}
	}

	log := logger.WithModule("geo")
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "geolite", "geolite2", "maxmind":
			if strings.TrimSpace(cfg.GeoLitePath) == "" {
				continue
			}
			provider, err := OpenGeoLite(cfg.GeoLitePath, cfg.GeoLiteASNPath)
			if err != nil {
				log.Warn("geolite provider unavailable", zap.Error(err))
				continue
			}
			providers = append(providers, provider)
		case "ipapi.co", "ipapi":
			providers = append(providers, &IPAPICo{Client: client})
		case "ip-api.com", "ip-api":
			providers = append(providers, &IPAPICom{Client: client})
		case "ipwho.is", "ipwhois":
			providers = append(providers, &IPWhoIs{Client: client})
		case "":
		default:
			return nil, fmt.Errorf("geo: unknown provider %q", name)
		}
	}
	return providers, nil
}

// Locate resolves ip. It never fails: private addresses, disabled lookups and
// exhausted providers all yield Unknown values.
func (l *Locator) Locate(ctx context.Context, ip string) Location {
	ip = strings.TrimSpace(ip)
	if l == nil || !l.enabled || len(l.providers) == 0 {
		return Unknown(ip)
	}
	if IsLocal(ip) {
		metrics.GeoLookups.WithLabelValues("none", "skipped").Inc()
		return Unknown(ip)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var cached Location
	if ok, err := cache.GetJSON(ctx, l.store, cacheKeyPrefix+ip, &cached); err != nil {
		l.log.Debug("geo cache read failed", zap.String("ip", ip), zap.Error(err))
	} else if ok {
		metrics.GeoLookups.WithLabelValues("cache", "hit").Inc()
		return cached
	}

	// The shared lookup must not be cut short by whichever caller started it.
	lookupCtx := context.WithoutCancel(ctx)
	result, _, _ := l.group.Do(ip, func() (any, error) {
		return l.lookup(lookupCtx, ip), nil
	})
	return result.(Location)
}

func (l *Locator) lookup(parent context.Context, ip string) Location {
	ctx, cancel := context.WithTimeout(parent, l.timeout)
	defer cancel()

	for _, provider := range l.providers {
		if ctx.Err() != nil {
			break
		}
		loc, err := provider.Lookup(ctx, ip)
		if err != nil || !loc.Known() {
			metrics.GeoLookups.WithLabelValues(provider.Name(), "error").Inc()
			l.log.Debug("geo provider failed",
				zap.String("provider", provider.Name()),
				zap.String("ip", ip),
				zap.Error(err),
			)
			continue
		}

		metrics.GeoLookups.WithLabelValues(provider.Name(), "success").Inc()
		loc.IP = ip
		loc.Provider = provider.Name()
		loc = loc.normalise()
		if err := cache.SetJSON(parent, l.store, cacheKeyPrefix+ip, loc, l.ttl); err != nil {
			l.log.Debug("geo cache write failed", zap.String("ip", ip), zap.Error(err))
		}
		return loc
	}

	metrics.GeoLookups.WithLabelValues("none", "exhausted").Inc()
	return Unknown(ip)
}

// Close releases providers holding resources such as database readers.
func (l *Locator) Close() error {
	if l == nil {
		return nil
	}
	var err error
	for _, provider := range l.providers {
		if closer, ok := provider.(io.Closer); ok {
			err = multierr.Append(err, closer.Close())
		}
	}
	return err
}
