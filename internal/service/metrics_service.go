package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and the survey-specific
// counters. A nil receiver is safe everywhere so instrumentation can be
// threaded through without nil checks at call sites.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	codesIssued     prometheus.Counter
	codesVerified   *prometheus.CounterVec
	submissions     prometheus.Counter
	moderation      *prometheus.CounterVec
	likes           *prometheus.CounterVec
}

// NewMetricsService registers all collectors on a fresh registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stats_cache_hits_total",
		Help: "Total stats cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stats_cache_misses_total",
		Help: "Total stats cache misses",
	})

	codesIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "verification_codes_issued_total",
		Help: "Total verification codes issued",
	})

	codesVerified := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_attempts_total",
		Help: "Verification attempts by outcome",
	}, []string{"outcome"})

	submissions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "survey_submissions_completed_total",
		Help: "Total surveys reaching the complete status",
	})

	moderation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comment_moderation_total",
		Help: "Comment moderation verdicts by outcome",
	}, []string{"outcome"})

	likes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comment_likes_total",
		Help: "Like attempts by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		codesIssued, codesVerified, submissions, moderation, likes, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		codesIssued:     codesIssued,
		codesVerified:   codesVerified,
		submissions:     submissions,
		moderation:      moderation,
		likes:           likes,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a stats cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordCodeIssued counts a successfully stored verification code.
func (m *MetricsService) RecordCodeIssued() {
	if m == nil {
		return
	}
	m.codesIssued.Inc()
}

// RecordVerification counts a verification attempt. Outcome is one of
// ok, invalid, expired.
func (m *MetricsService) RecordVerification(outcome string) {
	if m == nil {
		return
	}
	m.codesVerified.WithLabelValues(outcome).Inc()
}

// RecordSubmissionCompleted counts a survey reaching complete.
func (m *MetricsService) RecordSubmissionCompleted() {
	if m == nil {
		return
	}
	m.submissions.Inc()
}

// RecordModeration counts a moderation verdict. Outcome is approved or
// rejected.
func (m *MetricsService) RecordModeration(outcome string) {
	if m == nil {
		return
	}
	m.moderation.WithLabelValues(outcome).Inc()
}

// RecordLike counts a like attempt. Outcome is liked or already_liked.
func (m *MetricsService) RecordLike(outcome string) {
	if m == nil {
		return
	}
	m.likes.WithLabelValues(outcome).Inc()
}
