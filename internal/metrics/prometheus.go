package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DecisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ezextender_decision_duration_seconds",
			Help:    "Decision processing duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"via"},
	)

	DecisionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ezextender_decision_total",
			Help: "Total decisions produced, by verdict and path",
		},
		[]string{"recommend", "via"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ezextender_confidence_score",
			Help:    "Decision confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	EvidenceHitsCount = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ezextender_evidence_hits_count",
			Help:    "Number of evidence hits per query",
			Buckets: []float64{0, 1, 2, 5, 10},
		},
		[]string{"collection"},
	)

	RetrievalFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ezextender_retrieval_failures_total",
			Help: "Vector index queries degraded to empty evidence",
		},
		[]string{"collection"},
	)

	ReviewsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ezextender_reviews_recorded_total",
			Help: "Reviewer decisions recorded as precedent",
		},
		[]string{"tag", "outcome"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ezextender_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ezextender_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	PolicyClausesIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ezextender_policy_clauses_ingested_total",
			Help: "Policy clauses ingested into the vector index",
		},
	)

	DocumentsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ezextender_documents_skipped_total",
			Help: "Documents skipped during ingestion batches",
		},
	)
)

func Init() {
	prometheus.MustRegister(DecisionDuration)
	prometheus.MustRegister(DecisionTotal)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(EvidenceHitsCount)
	prometheus.MustRegister(RetrievalFailures)
	prometheus.MustRegister(ReviewsRecorded)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(PolicyClausesIngested)
	prometheus.MustRegister(DocumentsSkipped)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
