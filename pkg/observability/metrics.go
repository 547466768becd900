package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the aggregation pipeline. Registered once via
// promauto on package init and served on /metrics.
var (
	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "loci",
		Subsystem: "search",
		Name:      "duration_seconds",
		Help:      "End-to-end search latency by resolving provider.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	PaidAPICalls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loci",
		Subsystem: "enrichment",
		Name:      "paid_api_calls_total",
		Help:      "Calls actually issued to the commercial places API.",
	})

	EnrichmentSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loci",
		Subsystem: "enrichment",
		Name:      "skips_total",
		Help:      "Searches where the enrichment policy skipped the paid source.",
	}, []string{"reason"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loci",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Response cache hits.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loci",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Response cache misses.",
	})

	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loci",
		Subsystem: "provider",
		Name:      "errors_total",
		Help:      "Adapter failures by provider.",
	}, []string{"provider"})

	MergedPlaces = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loci",
		Subsystem: "merge",
		Name:      "merged_places_total",
		Help:      "Cross-source place pairs merged above the confidence threshold.",
	})
)
