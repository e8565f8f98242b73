// Package metrics exposes Prometheus instrumentation for the API and
// the indexing worker.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalTotal     *prometheus.CounterVec
	retrievalModeTotal *prometheus.CounterVec
	retrievalHitTotal  *prometheus.CounterVec
	noContextTotal     *prometheus.CounterVec
	retrievedChunks    *prometheus.HistogramVec
	retrievalDuration  *prometheus.HistogramVec
	hopsPerQuery       *prometheus.HistogramVec
	hopFailuresTotal   *prometheus.CounterVec
	keywordHopTotal    *prometheus.CounterVec
	judgeCostUSD       *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rulehound",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rulehound",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rulehound",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rulehound",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total successful retrieval requests.",
		},
		[]string{"service", "endpoint"},
	)
	retrievalModeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rulehound",
			Subsystem: "retrieval",
			Name:      "mode_requests_total",
			Help:      "Total successful retrieval requests by mode.",
		},
		[]string{"service", "endpoint", "mode"},
	)
	retrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rulehound",
			Subsystem: "retrieval",
			Name:      "hit_total",
			Help:      "Total retrieval requests with at least one chunk.",
		},
		[]string{"service", "endpoint"},
	)
	noContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rulehound",
			Subsystem: "retrieval",
			Name:      "no_context_total",
			Help:      "Total retrieval requests with an empty context.",
		},
		[]string{"service", "endpoint"},
	)
	retrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rulehound",
			Subsystem: "retrieval",
			Name:      "retrieved_chunks",
			Help:      "Distribution of chunks per successful retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rulehound",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	hopsPerQuery := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rulehound",
			Subsystem: "retrieval",
			Name:      "judge_hops",
			Help:      "Distribution of judge-driven hops per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
		[]string{"service", "endpoint"},
	)
	hopFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rulehound",
			Subsystem: "retrieval",
			Name:      "hop_failures_total",
			Help:      "Total hops that degraded due to judge or index failures.",
		},
		[]string{"service", "endpoint"},
	)
	keywordHopTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rulehound",
			Subsystem: "retrieval",
			Name:      "keyword_hops_total",
			Help:      "Total retrievals where the keyword fill hop added chunks.",
		},
		[]string{"service", "endpoint"},
	)
	judgeCostUSD := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rulehound",
			Subsystem: "judge",
			Name:      "cost_usd_total",
			Help:      "Cumulative estimated judge spend in USD.",
		},
		[]string{"service", "endpoint"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalTotal,
		retrievalModeTotal,
		retrievalHitTotal,
		noContextTotal,
		retrievedChunks,
		retrievalDuration,
		hopsPerQuery,
		hopFailuresTotal,
		keywordHopTotal,
		judgeCostUSD,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		retrievalTotal:     retrievalTotal,
		retrievalModeTotal: retrievalModeTotal,
		retrievalHitTotal:  retrievalHitTotal,
		noContextTotal:     noContextTotal,
		retrievedChunks:    retrievedChunks,
		retrievalDuration:  retrievalDuration,
		hopsPerQuery:       hopsPerQuery,
		hopFailuresTotal:   hopFailuresTotal,
		keywordHopTotal:    keywordHopTotal,
		judgeCostUSD:       judgeCostUSD,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &metricsRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RecordRetrieval observes everything the engine reports about one
// successful retrieval: context size, hop activity, and judge spend.
func (m *HTTPServerMetrics) RecordRetrieval(service, endpoint string, result *domain.RetrievalResult, duration time.Duration) {
	if result == nil {
		return
	}

	chunkCount := len(result.Context.Chunks)
	m.retrievalTotal.WithLabelValues(service, endpoint).Inc()
	m.retrievedChunks.WithLabelValues(service, endpoint).Observe(float64(chunkCount))
	m.retrievalDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	m.hopsPerQuery.WithLabelValues(service, endpoint).Observe(float64(len(result.HopEvaluations)))

	if chunkCount > 0 {
		m.retrievalHitTotal.WithLabelValues(service, endpoint).Inc()
	} else {
		m.noContextTotal.WithLabelValues(service, endpoint).Inc()
	}

	var cost float64
	for _, eval := range result.HopEvaluations {
		cost += eval.CostUSD
		if eval.Failed {
			m.hopFailuresTotal.WithLabelValues(service, endpoint).Inc()
		}
	}
	if cost > 0 {
		m.judgeCostUSD.WithLabelValues(service, endpoint).Add(cost)
	}

	if result.KeywordHop != nil && len(result.KeywordHop.AddedChunkIDs) > 0 {
		m.keywordHopTotal.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordRetrievalMode(service, endpoint, mode string) {
	if mode == "" {
		mode = "unknown"
	}
	m.retrievalModeTotal.WithLabelValues(service, endpoint, mode).Inc()
}

type metricsRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *metricsRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *metricsRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *metricsRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *metricsRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
