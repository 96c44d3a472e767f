// Package metrics records bulk-dispatch counters in a private Prometheus registry.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mailpurge"

// Chunk outcomes.
const (
	OutcomeBulk     = "bulk"
	OutcomeFallback = "fallback"
	OutcomeSkipped  = "skipped"
	OutcomeFatal    = "fatal"
)

// Recorder is safe for concurrent use. A nil *Recorder discards everything.
type Recorder struct {
	reg        *prometheus.Registry
	chunks     *prometheus.CounterVec
	processed  *prometheus.CounterVec
	itemErrors *prometheus.CounterVec
	retries    *prometheus.CounterVec
	chunkTime  *prometheus.HistogramVec
}

// New builds a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunks resolved, by action and outcome.",
		}, []string{"action", "outcome"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Messages successfully mutated.",
		}, []string{"action"}),
		itemErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_item_failures_total",
			Help:      "Per-message fallback calls that failed.",
		}, []string{"action"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Remote calls retried after a transient failure.",
		}, []string{"op"}),
		chunkTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_duration_seconds",
			Help:      "Wall time spent resolving one chunk.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"action"}),
	}
	r.reg.MustRegister(r.chunks, r.processed, r.itemErrors, r.retries, r.chunkTime)
	return r
}

// Chunk records one resolved chunk.
func (r *Recorder) Chunk(action, outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.chunks.WithLabelValues(action, outcome).Inc()
	r.chunkTime.WithLabelValues(action).Observe(took.Seconds())
}

func (r *Recorder) Processed(action string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.processed.WithLabelValues(action).Add(float64(n))
}

func (r *Recorder) ItemFailed(action string) {
	if r == nil {
		return
	}
	r.itemErrors.WithLabelValues(action).Inc()
}

func (r *Recorder) Retry(op string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(op).Inc()
}

// Gatherer exposes the registry, e.g. for tests or an HTTP handler.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
