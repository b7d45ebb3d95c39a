package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ProofsGenerated         prometheus.Counter
	ProofGenerationFailures prometheus.Counter
	ProofsInvalidated       prometheus.Counter
	ExpiredProofsCleaned    prometheus.Counter
	CleanupFailures         prometheus.Counter
	ProximityVerifications  *prometheus.CounterVec
	AuditEventsDropped      prometheus.Counter
	RateLimited             *prometheus.CounterVec
	EndpointLatency         *prometheus.HistogramVec
	gatherer                prometheus.Gatherer
}

// New registers the metrics on reg. Pass prometheus.NewRegistry() in tests so
// repeated construction does not collide.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProofsGenerated: f.NewCounter(prometheus.CounterOpts{
			Name: "geoprivacy_proofs_generated_total",
			Help: "Total number of location proofs generated",
		}),
		ProofGenerationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "geoprivacy_proof_generation_failures_total",
			Help: "Total number of location proof generations that failed",
		}),
		ProofsInvalidated: f.NewCounter(prometheus.CounterOpts{
			Name: "geoprivacy_proofs_invalidated_total",
			Help: "Total number of location proofs invalidated by their owner",
		}),
		ExpiredProofsCleaned: f.NewCounter(prometheus.CounterOpts{
			Name: "geoprivacy_expired_proofs_cleaned_total",
			Help: "Total number of expired location proofs removed by the sweeper",
		}),
		CleanupFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "geoprivacy_cleanup_failures_total",
			Help: "Total number of cleanup sweeps that failed",
		}),
		ProximityVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geoprivacy_proximity_verifications_total",
			Help: "Proximity checks by outcome",
		}, []string{"result"}),
		AuditEventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "geoprivacy_audit_events_dropped_total",
			Help: "Audit events dropped because the publisher buffer was full",
		}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geoprivacy_rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter by route class",
		}, []string{"class"}),
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geoprivacy_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: reg,
	}
}

func (m *Metrics) IncrementProofsGenerated()         { m.ProofsGenerated.Inc() }
func (m *Metrics) IncrementProofGenerationFailures() { m.ProofGenerationFailures.Inc() }
func (m *Metrics) IncrementProofsInvalidated()       { m.ProofsInvalidated.Inc() }
func (m *Metrics) IncrementCleanupFailures()         { m.CleanupFailures.Inc() }
func (m *Metrics) IncrementAuditEventsDropped()      { m.AuditEventsDropped.Inc() }

// AddExpiredProofsCleaned records the count removed by one sweep.
func (m *Metrics) AddExpiredProofsCleaned(n int) {
	m.ExpiredProofsCleaned.Add(float64(n))
}

// ObserveProximityVerification counts one proximity check by outcome.
func (m *Metrics) ObserveProximityVerification(verified bool) {
	result := "rejected"
	if verified {
		result = "verified"
	}
	m.ProximityVerifications.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementRateLimited(class string) {
	m.RateLimited.WithLabelValues(class).Inc()
}

// ObserveEndpointLatency records a request duration in seconds.
func (m *Metrics) ObserveEndpointLatency(route string, seconds float64) {
	m.EndpointLatency.WithLabelValues(route).Observe(seconds)
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
