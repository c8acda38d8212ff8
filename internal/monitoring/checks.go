package monitoring

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/domaingate/internal/database"
)

const defaultProbeTimeout = 2 * time.Second

// Pinger is satisfied by cache backends that can verify their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck pings the primary database.
func DatabaseCheck(db *gorm.DB, timeout time.Duration) Check {
	return NewCheck("database", func(ctx context.Context) ProbeResult {
		start := time.Now()
		if db == nil {
			return ProbeResult{Status: StatusDown, Details: "database not configured"}
		}

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout(timeout))
		defer cancel()
		return ResultFromError(database.Ping(probeCtx, db), time.Since(start))
	})
}

// RedisCheck pings the Redis cache. The service runs on the database cache when
// Redis is unreachable, so a failed ping reports degraded and never down.
func RedisCheck(client Pinger, timeout time.Duration) Check {
	return NewCheck("redis", func(ctx context.Context) ProbeResult {
		start := time.Now()
		if client == nil {
			return ProbeResult{Status: StatusDegraded, Details: "redis unavailable, using database cache"}
		}

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout(timeout))
		defer cancel()
		result := ResultFromError(client.Ping(probeCtx), time.Since(start))
		if result.Status == StatusDown {
			result.Status = StatusDegraded
		}
		return result
	})
}

func probeTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultProbeTimeout
	}
	return timeout
}
