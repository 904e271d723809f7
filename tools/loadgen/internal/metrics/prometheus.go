// Package metrics exports load generator results to Prometheus and keeps a
// run summary.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome classifies one operation.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeConflict Outcome = "conflict"
	OutcomeRejected Outcome = "rejected"
	OutcomeError    Outcome = "error"
)

// Recorder collects per operation counters and latencies.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Recorder struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	targetRPS prometheus.Gauge
	violation prometheus.Counter

	mu     sync.Mutex
	counts map[string]map[Outcome]int64
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loadgen",
			Name:      "operations_total",
			Help:      "Operations executed against the settlement service.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "loadgen",
			Name:      "operation_duration_seconds",
			Help:      "Operation latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		targetRPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loadgen",
			Name:      "target_rps",
			Help:      "Configured request rate, zero when unlimited.",
		}),
		violation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loadgen",
			Name:      "over_allocation_total",
			Help:      "Documents observed with more allocated than their total.",
		}),
		counts: make(map[string]map[Outcome]int64),
	}
	r.registry.MustRegister(r.requests, r.duration, r.targetRPS, r.violation)
	return r
}

// Observe records one finished operation.
func (r *Recorder) Observe(op string, outcome Outcome, elapsed time.Duration) {
	r.requests.WithLabelValues(op, string(outcome)).Inc()
	r.duration.WithLabelValues(op).Observe(elapsed.Seconds())

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts[op] == nil {
		r.counts[op] = make(map[Outcome]int64)
	}
	r.counts[op][outcome]++
}

// SetTargetRPS publishes the configured rate.
func (r *Recorder) SetTargetRPS(rps float64) {
	r.targetRPS.Set(rps)
}

// OverAllocation records a document found over-allocated.
func (r *Recorder) OverAllocation() {
	r.violation.Inc()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts["invariant"] == nil {
		r.counts["invariant"] = make(map[Outcome]int64)
	}
	r.counts["invariant"][OutcomeError]++
}

// Count returns how often op ended with outcome.
func (r *Recorder) Count(op string, outcome Outcome) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[op][outcome]
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes the metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Summary renders the per operation counts as a table.
func (r *Recorder) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make([]string, 0, len(r.counts))
	for op := range r.counts {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	var b strings.Builder
	fmt.Fprintf(&b, "%-18s %8s %8s %8s %8s\n", "operation", "ok", "conflict", "rejected", "error")
	for _, op := range ops {
		c := r.counts[op]
		fmt.Fprintf(&b, "%-18s %8d %8d %8d %8d\n", op,
			c[OutcomeOK], c[OutcomeConflict], c[OutcomeRejected], c[OutcomeError])
	}
	return b.String()
}
