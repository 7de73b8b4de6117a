// Package metrics provides Prometheus metrics for the scribe gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "corti_scribe"

// Metrics holds all Prometheus collectors for the gateway.
type Metrics struct {
	SessionsStarted prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsFailed  prometheus.Counter
	SessionDuration prometheus.Histogram

	FramesQueued    prometheus.Counter
	FramesForwarded prometheus.Counter
	FramesDropped   prometheus.Counter

	TranscriptsInterim prometheus.Counter
	TranscriptsFinal   prometheus.Counter
	FactBatches        prometheus.Counter
	CreditsConsumed    prometheus.Counter

	ProviderErrors *prometheus.CounterVec
}

// New creates and registers all collectors on the given registerer.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Recording sessions accepted from browsers",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Recording sessions currently open",
		}),
		SessionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Sessions that ended in the failed state",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall-clock duration of completed sessions",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		FramesQueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_queued_total",
			Help:      "Audio frames held while awaiting configuration acceptance",
		}),
		FramesForwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_forwarded_total",
			Help:      "Audio frames forwarded to the provider",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_dropped_total",
			Help:      "Audio frames dropped because the pre-acceptance queue was full",
		}),
		TranscriptsInterim: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_interim_total",
			Help:      "Interim transcript segments relayed",
		}),
		TranscriptsFinal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Final transcript segments relayed",
		}),
		FactBatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fact_batches_total",
			Help:      "Fact reconciliation batches applied",
		}),
		CreditsConsumed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_consumed_total",
			Help:      "Provider credits consumed across all sessions",
		}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider failures by phase",
		}, []string{"phase"}),
	}
}
