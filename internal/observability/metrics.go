package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreMutations counts committed store mutations by entity and operation.
	StoreMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "peakshare_store_mutations_total",
		Help: "Total number of committed store mutations",
	}, []string{"entity", "operation"})

	// StoreRejections counts mutations rejected with an application error.
	StoreRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "peakshare_store_rejections_total",
		Help: "Total number of store mutations rejected by error code",
	}, []string{"operation", "code"})

	// PersistenceEvents counts change events applied per sink.
	PersistenceEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "peakshare_persistence_events_total",
		Help: "Total number of change events applied to a persistence sink",
	}, []string{"sink", "entity"})

	// PersistenceErrors counts failed sink writes.
	PersistenceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "peakshare_persistence_errors_total",
		Help: "Total number of failed persistence sink writes",
	}, []string{"sink", "entity"})

	// PersistenceDrops counts events dropped because the dispatch queue was full.
	PersistenceDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "peakshare_persistence_dropped_total",
		Help: "Total number of change events dropped due to a full queue",
	})

	// PersistenceLatency records sink apply latency.
	PersistenceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "peakshare_persistence_latency_seconds",
		Help:    "Persistence sink apply latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})

	// FeedBuildLatency records feed composition latency by feed kind.
	FeedBuildLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "peakshare_feed_build_latency_seconds",
		Help:    "Feed composition latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"feed"})
)

// TrackPersistence returns a function that records sink latency when called (e.g. defer).
func TrackPersistence(sink string) func() {
	start := time.Now()
	return func() {
		PersistenceLatency.WithLabelValues(sink).Observe(time.Since(start).Seconds())
	}
}

// TrackFeed returns a function that records feed build latency when called.
func TrackFeed(feed string) func() {
	start := time.Now()
	return func() {
		FeedBuildLatency.WithLabelValues(feed).Observe(time.Since(start).Seconds())
	}
}

// RedisErrors counts failed Redis commands by command name.
var RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "peakshare_redis_errors_total",
	Help: "Total number of failed Redis commands",
}, []string{"command"})
