package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StoreOperation identifies the record store method being instrumented.
type StoreOperation string

const (
	// StoreOperationGet records keyed reads against the score store.
	StoreOperationGet StoreOperation = "get"
	// StoreOperationUpsert records keyed writes against the score store.
	StoreOperationUpsert StoreOperation = "upsert"
)

// StoreOutcome captures the result of a store operation.
type StoreOutcome string

const (
	// StoreOutcomeHit indicates a read found a row for the fid.
	StoreOutcomeHit StoreOutcome = "hit"
	// StoreOutcomeMiss indicates a read found no row for the fid.
	StoreOutcomeMiss StoreOutcome = "miss"
	// StoreOutcomeStored indicates an upsert persisted the row.
	StoreOutcomeStored StoreOutcome = "stored"
	// StoreOutcomeError indicates the operation failed.
	StoreOutcomeError StoreOutcome = "error"
)

// LookupOutcome captures how a score lookup resolved.
type LookupOutcome string

const (
	// LookupOutcomeHit means the lookup was served from a fresh cached row.
	LookupOutcomeHit LookupOutcome = "hit"
	// LookupOutcomeRefreshed means the lookup fetched from upstream.
	LookupOutcomeRefreshed LookupOutcome = "refreshed"
	// LookupOutcomeAbsent means neither cache nor upstream had data.
	LookupOutcomeAbsent LookupOutcome = "absent"
)

// UpstreamOutcome captures the result of one upstream API call.
type UpstreamOutcome string

const (
	// UpstreamOutcomeOK indicates a usable upstream response.
	UpstreamOutcomeOK UpstreamOutcome = "ok"
	// UpstreamOutcomeError indicates transport, status, or decode failure.
	UpstreamOutcomeError UpstreamOutcome = "error"
)

// Recorder publishes Prometheus metrics for lookup, store, and upstream
// activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	lookupRequests *prometheus.CounterVec
	lookupLatency  *prometheus.HistogramVec

	storeOperations *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec

	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a
// dedicated registry is created so multiple recorders can coexist without
// conflicting with the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	lookupRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "castlens",
		Subsystem: "lookup",
		Name:      "requests_total",
		Help:      "Total score lookups resolved by the cache coordinator.",
	}, []string{"outcome", "from_cache"})

	lookupLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "castlens",
		Subsystem: "lookup",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for completed score lookups.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"outcome"})

	storeOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "castlens",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Record store operations executed by the cache coordinator.",
	}, []string{"operation", "result"})

	storeLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "castlens",
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Latency distribution for record store operations.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"operation", "result"})

	upstreamRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "castlens",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Requests issued to external reputation and search APIs.",
	}, []string{"service", "outcome"})

	upstreamLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "castlens",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for external API requests.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"service"})

	reg.MustRegister(lookupRequests, lookupLatency, storeOperations, storeLatency, upstreamRequests, upstreamLatency)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:         reg,
		handler:          handler,
		lookupRequests:   lookupRequests,
		lookupLatency:    lookupLatency,
		storeOperations:  storeOperations,
		storeLatency:     storeLatency,
		upstreamRequests: upstreamRequests,
		upstreamLatency:  upstreamLatency,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveLookup records the outcome and latency for a completed lookup.
func (r *Recorder) ObserveLookup(outcome LookupOutcome, fromCache bool, duration time.Duration) {
	if r == nil {
		return
	}
	outcomeLabel := normalizeLabel(string(outcome))
	cacheLabel := "false"
	if fromCache {
		cacheLabel = "true"
	}
	r.lookupRequests.WithLabelValues(outcomeLabel, cacheLabel).Inc()
	r.lookupLatency.WithLabelValues(outcomeLabel).Observe(duration.Seconds())
}

// ObserveStoreGet records the result of a record store read.
func (r *Recorder) ObserveStoreGet(result StoreOutcome, duration time.Duration) {
	r.observeStore(StoreOperationGet, result, duration)
}

// ObserveStoreUpsert records the result of a record store write.
func (r *Recorder) ObserveStoreUpsert(result StoreOutcome, duration time.Duration) {
	r.observeStore(StoreOperationUpsert, result, duration)
}

// ObserveUpstream records one request against an external API.
func (r *Recorder) ObserveUpstream(service string, outcome UpstreamOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	serviceLabel := normalizeLabel(service)
	r.upstreamRequests.WithLabelValues(serviceLabel, normalizeLabel(string(outcome))).Inc()
	r.upstreamLatency.WithLabelValues(serviceLabel).Observe(duration.Seconds())
}

func (r *Recorder) observeStore(operation StoreOperation, result StoreOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	resLabel := normalizeLabel(string(result))
	r.storeOperations.WithLabelValues(string(operation), resLabel).Inc()
	r.storeLatency.WithLabelValues(string(operation), resLabel).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
