package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	KnowledgeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_tutor_knowledge_requests_total",
			Help: "Total knowledge requests processed",
		},
		[]string{"status"},
	)

	KnowledgeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voice_tutor_knowledge_duration_seconds",
			Help:    "Knowledge pipeline duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_tutor_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_tutor_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	SourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_tutor_source_failures_total",
			Help: "Total knowledge source fetch failures",
		},
		[]string{"source"},
	)

	AggregatedItems = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voice_tutor_aggregated_items",
			Help:    "Number of knowledge items per aggregation after dedup",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)

	SummariesGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_tutor_weekly_summaries_total",
			Help: "Weekly summary generations by outcome",
		},
		[]string{"outcome"},
	)

	InteractionsLogged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_tutor_interactions_logged_total",
			Help: "Interaction records written",
		},
		[]string{"type"},
	)
)

func Init() {
	prometheus.MustRegister(KnowledgeRequests)
	prometheus.MustRegister(KnowledgeDuration)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(SourceFailures)
	prometheus.MustRegister(AggregatedItems)
	prometheus.MustRegister(SummariesGenerated)
	prometheus.MustRegister(InteractionsLogged)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
