// Package monitoring runs dependency probes for the liveness and readiness endpoints.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charlesng35/domaingate/pkg/metrics"
)

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

// ProbeResult captures a single dependency check outcome.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport aggregates probe results. A degraded dependency keeps the report
// healthy; only a down dependency fails it.
type HealthReport struct {
	Healthy bool          `json:"healthy"`
	Status  ProbeStatus   `json:"status"`
	Checks  []ProbeResult `json:"checks"`
}

// Check is a named dependency probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) ProbeResult
}

// NewCheck constructs a check. A nil fn always reports down.
func NewCheck(name string, fn func(ctx context.Context) ProbeResult) Check {
	if fn == nil {
		fn = func(context.Context) ProbeResult {
			return ProbeResult{Status: StatusDown, Details: "probe not implemented"}
		}
	}
	return Check{Name: name, Run: fn}
}

// HealthManager holds the liveness and readiness probes.
type HealthManager struct {
	liveness  []Check
	readiness []Check
}

// NewHealthManager constructs a manager with the supplied readiness checks.
func NewHealthManager(readiness ...Check) *HealthManager {
	m := &HealthManager{}
	for _, check := range readiness {
		m.RegisterReadiness(check)
	}
	return m
}

// RegisterLiveness appends a liveness probe.
func (m *HealthManager) RegisterLiveness(check Check) {
	if check.Name != "" {
		m.liveness = append(m.liveness, check)
	}
}

// RegisterReadiness appends a readiness probe.
func (m *HealthManager) RegisterReadiness(check Check) {
	if check.Name != "" {
		m.readiness = append(m.readiness, check)
	}
}

// Liveness runs the liveness probes. With none registered the process is alive.
func (m *HealthManager) Liveness(ctx context.Context) HealthReport {
	return evaluate(ctx, "liveness", m.liveness)
}

// Readiness runs every readiness probe sequentially.
func (m *HealthManager) Readiness(ctx context.Context) HealthReport {
	return evaluate(ctx, "readiness", m.readiness)
}

func evaluate(ctx context.Context, kind string, checks []Check) HealthReport {
	report := HealthReport{
		Healthy: true,
		Status:  StatusUp,
		Checks:  make([]ProbeResult, 0, len(checks)),
	}

	for _, check := range checks {
		result := runCheck(ctx, check)
		report.Checks = append(report.Checks, result)
		metrics.HealthProbes.WithLabelValues(kind, check.Name, string(result.Status)).Inc()

		switch result.Status {
		case StatusDown:
			report.Healthy = false
			report.Status = StatusDown
		case StatusDegraded:
			if report.Status == StatusUp {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

func runCheck(ctx context.Context, check Check) (result ProbeResult) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			result = ProbeResult{Status: StatusDown, Details: fmt.Sprint(rec)}
		}
		if result.Status == "" {
			result.Status = StatusDown
		}
		if result.Duration == 0 {
			result.Duration = time.Since(start)
		}
		result.Component = check.Name
	}()

	return check.Run(ctx)
}

// ResultFromError converts a probe error into a result. Timeouts are reported as
// degraded rather than down.
func ResultFromError(err error, duration time.Duration) ProbeResult {
	if duration < 0 {
		duration = 0
	}
	if err == nil {
		return ProbeResult{Status: StatusUp, Duration: duration}
	}

	status := StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = StatusDegraded
	}
	return ProbeResult{Status: status, Details: err.Error(), Duration: duration}
}
