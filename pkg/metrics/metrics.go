package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Verifications counts verification attempts by result (allowed|denied|invalid|error).
	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domaingate_verifications_total",
			Help: "Total number of email verification attempts",
		},
		[]string{"result"},
	)

	// GeoLookups counts geolocation lookups per provider and outcome (hit|miss|error|skipped).
	GeoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domaingate_geo_lookups_total",
			Help: "Total number of IP geolocation lookups",
		},
		[]string{"provider", "result"},
	)

	// IngestedDomains counts domains handled by bulk ingestion (added|skipped|failed).
	IngestedDomains = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domaingate_ingested_domains_total",
			Help: "Total number of domains processed by bulk ingestion",
		},
		[]string{"result"},
	)

	// AdminAuth records admin token checks by result (success|failure).
	AdminAuth = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domaingate_admin_auth_total",
			Help: "Total number of admin token checks",
		},
		[]string{"result"},
	)

	// CaptchaChecks counts CAPTCHA verifications per provider and outcome.
	CaptchaChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domaingate_captcha_checks_total",
			Help: "Total number of CAPTCHA verifications",
		},
		[]string{"provider", "result"},
	)

	// HealthProbes counts dependency probe outcomes per probe kind and component.
	HealthProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domaingate_health_probes_total",
			Help: "Total number of health probe evaluations",
		},
		[]string{"kind", "component", "status"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "domaingate_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
