// Package metrics provides Prometheus metrics for the readaloud pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "readaloud"

// Stage labels for StageDuration.
const (
	StageNormalize  = "normalize"
	StageSynthesize = "synthesize"
	StageTranscribe = "transcribe"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Runs counts finished pipeline runs by outcome ("ready" or "failed").
	Runs *prometheus.CounterVec

	// StageDuration observes how long each pipeline stage took.
	StageDuration *prometheus.HistogramVec

	// Chunks counts text chunks submitted for synthesis.
	Chunks prometheus.Counter

	// RateLimitRetries counts backoff pauses taken after a rate-limit response.
	RateLimitRetries prometheus.Counter

	// FallbackFailures counts recovered transcription failures by error kind.
	FallbackFailures *prometheus.CounterVec
}

// New creates all metrics and registers them with reg. A nil reg creates
// unregistered metrics, which is convenient in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by outcome",
		}, []string{"outcome"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		Chunks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Total number of text chunks submitted for synthesis",
		}),
		RateLimitRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_retries_total",
			Help:      "Total number of retries after a rate-limit response",
		}),
		FallbackFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_failures_total",
			Help:      "Total number of recovered transcription fallback failures by kind",
		}, []string{"kind"}),
	}
}

// ObserveStage records the time elapsed since start for stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// OnRetry matches retry.Policy.OnRetry and counts each backoff pause.
func (m *Metrics) OnRetry(int, time.Duration, error) {
	m.RateLimitRetries.Inc()
}
