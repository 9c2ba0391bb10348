package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_records_fetched_total",
		Help: "Total number of raw ledger records fetched from the store",
	})

	RecordsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_records_rejected_total",
		Help: "Total number of ledger records dropped by the normalizer",
	}, []string{"field"})

	MatchesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realized_matches_emitted_total",
		Help: "Total number of realized matches produced by the lot matcher",
	})

	OversoldSells = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oversold_sells_total",
		Help: "Total number of sells that exceeded the open lots of their symbol",
	}, []string{"policy"})

	Writes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_writes_total",
		Help: "Total number of write decisions by entity and outcome",
	}, []string{"entity", "outcome"})

	StoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_operations_total",
		Help: "Total number of record store operations",
	}, []string{"operation", "status"})

	StoreOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_operation_duration_seconds",
		Help:    "Duration of record store operations, retries included",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	Iterations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_iterations_total",
		Help: "Total number of scheduler iterations",
	}, []string{"status"})

	IterationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_iteration_duration_seconds",
		Help:    "Duration of scheduler iterations",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	LastSuccessfulRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reconcile_last_success_timestamp_seconds",
		Help: "Unix time of the last reconciliation run that finished without error",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of cache hits",
	}, []string{"cache"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of cache misses",
	}, []string{"cache"})
)

func RecordCacheHit(cache string) {
	CacheHits.WithLabelValues(cache).Inc()
}

func RecordCacheMiss(cache string) {
	CacheMisses.WithLabelValues(cache).Inc()
}

func RecordStoreOperation(operation, status string) {
	StoreOperations.WithLabelValues(operation, status).Inc()
}

func RecordWrite(entity, outcome string) {
	Writes.WithLabelValues(entity, outcome).Inc()
}

func RecordIteration(status string, duration time.Duration) {
	Iterations.WithLabelValues(status).Inc()
	IterationDuration.Observe(duration.Seconds())
}

type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
