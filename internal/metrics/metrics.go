package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks issued quotes.
	QuotesIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "x402_quotes_issued_total",
			Help: "Total number of quotes issued.",
		},
	)

	// Tracks resolver outcomes as seen by callers.
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "x402_resolutions_total",
			Help: "Total number of payment-requirement resolutions by outcome.",
		},
		[]string{"outcome"}, // finalized | payment_required
	)

	// Tracks the internal reason a quote was not honored. These reasons are
	// observability-only: the network response is identical for all of them.
	QuoteRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "x402_quote_rejections_total",
			Help: "Internal quote rejection reasons behind payment_required outcomes.",
		},
		[]string{"reason"}, // missing_quote | not_found | expired | owner_mismatch | already_consumed
	)

	// Tracks quotes removed by the expiry sweeper.
	QuotesSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "x402_quotes_swept_total",
			Help: "Total number of expired quotes removed by the sweeper.",
		},
	)

	// Tracks outbound facilitator calls.
	FacilitatorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "x402_facilitator_requests_total",
			Help: "Total number of facilitator API requests (by endpoint and status).",
		},
		[]string{"endpoint", "status"},
	)

	// Measures duration of facilitator calls.
	FacilitatorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "x402_facilitator_request_duration_seconds",
			Help:    "Duration of facilitator API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"endpoint"},
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "x402_errors_total",
			Help: "Count of service-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Tracks NATS messages published by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)
)

// ObserveDuration records the time taken since start on the given histogram.
func ObserveDuration(h *prometheus.HistogramVec, start time.Time, labels ...string) {
	h.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
}

func IncResolution(outcome string) {
	ResolutionsTotal.WithLabelValues(outcome).Inc()
}

func IncRejection(reason string) {
	QuoteRejectionsTotal.WithLabelValues(reason).Inc()
}

func IncFacilitatorRequest(endpoint, status string) {
	FacilitatorRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}
