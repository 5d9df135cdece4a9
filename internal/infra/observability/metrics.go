package observability

import (
	"time"

	"github.com/finbook/finbook/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ledger service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	ledgerOps           *prometheus.CounterVec
	opDuration          *prometheus.HistogramVec
	insufficientBalance prometheus.Counter
	cacheHits           *prometheus.CounterVec
	cacheMisses         *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ledgerOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finbook_ledger_operations_total",
				Help: "Total ledger operations by op and outcome.",
			},
			[]string{"op", "status"},
		),
		opDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finbook_ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations by op.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		insufficientBalance: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "finbook_insufficient_balance_total",
				Help: "Total operations rejected for insufficient balance.",
			},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finbook_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finbook_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finbook_http_requests_total",
				Help: "Total HTTP requests by status class.",
			},
			[]string{"status"},
		),
	}
}

// RecordLedgerOp records one ledger operation: its duration and its outcome.
func (m *Metrics) RecordLedgerOp(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ledgerOps.WithLabelValues(op, status).Inc()
	m.opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// IncrInsufficientBalance increments the insufficient-balance rejection counter.
func (m *Metrics) IncrInsufficientBalance() {
	m.insufficientBalance.Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrHTTPRequest increments the request counter with a status-class label.
func (m *Metrics) IncrHTTPRequest(status string) {
	m.httpRequests.WithLabelValues(status).Inc()
}

// GetLedgerSnapshot returns a snapshot of ledger metrics suitable for the
// GET /v1/metrics/ledger endpoint.
func (m *Metrics) GetLedgerSnapshot() *domain.LedgerMetrics {
	// Prometheus counters expose cumulative values.
	created := getCounterValue(m.ledgerOps, "create", "success")
	updated := getCounterValue(m.ledgerOps, "update", "success")
	deleted := getCounterValue(m.ledgerOps, "delete", "success")
	failed := getCounterValue(m.ledgerOps, "create", "error") +
		getCounterValue(m.ledgerOps, "update", "error") +
		getCounterValue(m.ledgerOps, "delete", "error")

	cacheHits := getCounterValue(m.cacheHits, "account")
	cacheMisses := getCounterValue(m.cacheMisses, "account")
	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.LedgerMetrics{
		CreatedTotal:            int64(created),
		UpdatedTotal:            int64(updated),
		DeletedTotal:            int64(deleted),
		FailedTotal:             int64(failed),
		InsufficientBalanceHits: int64(getSingleCounterValue(m.insufficientBalance)),
		CacheHitRate:            cacheHitRate,
		Period:                  "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the
// given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getSingleCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
