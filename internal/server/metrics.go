package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airq_analyses_total",
		Help: "Total number of analyses by category level",
	}, []string{"level", "source"})

	validationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airq_validation_failures_total",
		Help: "Total number of inputs rejected by validation",
	})

	scoreHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "airq_score",
		Help:    "Distribution of overall air quality scores",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	})

	recommendationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airq_recommendations_total",
		Help: "Total number of recommendations issued by priority",
	}, []string{"priority"})

	readingsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airq_readings_processed_total",
		Help: "Total number of ingested readings processed",
	})

	scoreDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airq_score_drops_total",
		Help: "Total number of sudden score drops detected",
	})

	rollingAverage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airq_rolling_average_score",
		Help: "Rolling average of ingested reading scores",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airq_ingest_queue_depth",
		Help: "Readings waiting in the ingest queue",
	})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and durations per route template, so
// query strings and path values do not explode label cardinality.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}
		requestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}
