package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper feed service.
// Metrics are organized by subsystem: feed requests, paper sources, the feed
// cache, background jobs, and LLM operations. All counters and histograms are
// registered via promauto for automatic registration with the default
// Prometheus registry.
type Metrics struct {
	// FeedRequests counts feed operations, labeled by operation and status.
	FeedRequests *prometheus.CounterVec

	// FeedRequestDuration observes feed operation duration in seconds, labeled by operation.
	FeedRequestDuration *prometheus.HistogramVec

	// PapersServed counts papers served to users across all feed pages.
	PapersServed prometheus.Counter

	// PartialPages counts feed pages served below the viable-results floor.
	PartialPages prometheus.Counter

	// SourceFetches counts fetch operations against paper sources, labeled by source.
	SourceFetches *prometheus.CounterVec

	// SourceFetchesFailed counts failed fetches, labeled by source and error type.
	SourceFetchesFailed *prometheus.CounterVec

	// SourceFetchDuration observes fetch duration in seconds, labeled by source.
	SourceFetchDuration *prometheus.HistogramVec

	// PapersPerFetch observes the distribution of papers returned per fetch, labeled by source.
	PapersPerFetch *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses from paper sources, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// PapersDropped counts upstream records dropped during normalization.
	PapersDropped prometheus.Counter

	// CachePapersAppended counts papers appended to the feed cache.
	CachePapersAppended prometheus.Counter

	// CacheQueriesEvicted counts query partitions evicted from the feed cache.
	CacheQueriesEvicted prometheus.Counter

	// CacheServedPages counts feed pages served from cache without a fresh fetch.
	CacheServedPages prometheus.Counter

	// JobsEnqueued counts background jobs accepted onto the queue, labeled by job name.
	JobsEnqueued *prometheus.CounterVec

	// JobsDropped counts background jobs rejected because the queue was full, labeled by job name.
	JobsDropped *prometheus.CounterVec

	// JobsCompleted counts background jobs by name and outcome (ok, error).
	JobsCompleted *prometheus.CounterVec

	// JobDuration observes background job duration in seconds, labeled by job name.
	JobDuration *prometheus.HistogramVec

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Feed
		FeedRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_requests_total",
			Help:      "Total number of feed operations by operation and status",
		}, []string{"operation", "status"}),
		FeedRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_request_duration_seconds",
			Help:      "Duration of feed operations in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		PapersServed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_served_total",
			Help:      "Total number of papers served in feed pages",
		}),
		PartialPages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_pages_total",
			Help:      "Total number of feed pages served below the viable-results floor",
		}),

		// Sources
		SourceFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Total number of fetches against paper sources",
		}, []string{"source"}),
		SourceFetchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_failed_total",
			Help:      "Total number of failed fetches against paper sources",
		}, []string{"source", "error_type"}),
		SourceFetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of fetches against paper sources in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		PapersPerFetch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_fetch",
			Help:      "Number of papers returned per fetch by source",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200},
		}, []string{"source"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from paper sources",
		}, []string{"source"}),
		PapersDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_dropped_total",
			Help:      "Total number of upstream records dropped during normalization",
		}),

		// Feed cache
		CachePapersAppended: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_papers_appended_total",
			Help:      "Total number of papers appended to the feed cache",
		}),
		CacheQueriesEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_queries_evicted_total",
			Help:      "Total number of query partitions evicted from the feed cache",
		}),
		CacheServedPages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_served_pages_total",
			Help:      "Total number of feed pages served from cache without a fresh fetch",
		}),

		// Background jobs
		JobsEnqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_enqueued_total",
			Help:      "Total number of background jobs accepted onto the queue",
		}, []string{"job"}),
		JobsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_dropped_total",
			Help:      "Total number of background jobs rejected because the queue was full",
		}, []string{"job"}),
		JobsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of background jobs by outcome",
		}, []string{"job", "outcome"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of background jobs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"job"}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by operation",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by operation",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation", "model"}),
	}
}

// RecordFeedRequest records one feed operation and its duration.
func (m *Metrics) RecordFeedRequest(operation, status string, durationSeconds float64) {
	m.FeedRequests.WithLabelValues(operation, status).Inc()
	m.FeedRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordPageServed records a served feed page.
func (m *Metrics) RecordPageServed(paperCount int, partial, fromCache bool) {
	m.PapersServed.Add(float64(paperCount))
	if partial {
		m.PartialPages.Inc()
	}
	if fromCache {
		m.CacheServedPages.Inc()
	}
}

// RecordSourceFetch records a successful fetch against a paper source.
func (m *Metrics) RecordSourceFetch(source string, paperCount int, durationSeconds float64) {
	m.SourceFetches.WithLabelValues(source).Inc()
	m.SourceFetchDuration.WithLabelValues(source).Observe(durationSeconds)
	m.PapersPerFetch.WithLabelValues(source).Observe(float64(paperCount))
}

// RecordSourceFetchFailed records a failed fetch against a paper source.
func (m *Metrics) RecordSourceFetchFailed(source, errorType string, durationSeconds float64) {
	m.SourceFetches.WithLabelValues(source).Inc()
	m.SourceFetchesFailed.WithLabelValues(source, errorType).Inc()
	m.SourceFetchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordSourceRateLimited records a rate limit response from a source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordPapersDropped records upstream records dropped during normalization.
func (m *Metrics) RecordPapersDropped(count int) {
	m.PapersDropped.Add(float64(count))
}

// RecordCacheAppended records papers appended to the feed cache.
func (m *Metrics) RecordCacheAppended(count int) {
	m.CachePapersAppended.Add(float64(count))
}

// RecordCacheEviction records one query partition evicted from the feed cache.
func (m *Metrics) RecordCacheEviction() {
	m.CacheQueriesEvicted.Inc()
}

// RecordJobEnqueued records a background job accepted onto the queue.
func (m *Metrics) RecordJobEnqueued(job string) {
	m.JobsEnqueued.WithLabelValues(job).Inc()
}

// RecordJobDropped records a background job rejected because the queue was full.
func (m *Metrics) RecordJobDropped(job string) {
	m.JobsDropped.WithLabelValues(job).Inc()
}

// RecordJobCompleted records a finished background job and its duration.
func (m *Metrics) RecordJobCompleted(job string, err error, durationSeconds float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.JobsCompleted.WithLabelValues(job, outcome).Inc()
	m.JobDuration.WithLabelValues(job).Observe(durationSeconds)
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}
