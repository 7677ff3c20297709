package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "food_rescue",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "food_rescue",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "food_rescue",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	claimTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "food_rescue",
			Subsystem: "claims",
			Name:      "transitions_total",
			Help:      "Claim status changes by resulting status.",
		},
		[]string{"status"},
	)

	mealsRescued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "food_rescue",
			Subsystem: "claims",
			Name:      "meals_rescued_total",
			Help:      "Quantity handed out through completed claims.",
		},
	)

	donationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "food_rescue",
			Subsystem: "donations",
			Name:      "created_total",
			Help:      "Donation records created from expired stock.",
		},
	)

	sideEffects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "food_rescue",
			Subsystem: "dispatch",
			Name:      "tasks_total",
			Help:      "Side-effect tasks by type and outcome.",
		},
		[]string{"task", "success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		claimTransitions,
		mealsRescued,
		donationsCreated,
		sideEffects,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := CanonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordClaimTransition counts a claim entering status.
func RecordClaimTransition(status string) {
	claimTransitions.WithLabelValues(status).Inc()
}

// RecordMealsRescued adds qty to the rescued meal counter.
func RecordMealsRescued(qty int) {
	if qty > 0 {
		mealsRescued.Add(float64(qty))
	}
}

// RecordDonations counts newly created donation records.
func RecordDonations(n int) {
	if n > 0 {
		donationsCreated.Add(float64(n))
	}
}

// RecordTask counts one side-effect task execution.
func RecordTask(task string, success bool) {
	sideEffects.WithLabelValues(task, strconv.FormatBool(success)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// CanonicalPath collapses ids so label cardinality stays bounded:
// /api/food-claims/65f.../approve becomes /api/food-claims/:id/approve.
func CanonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	for i, p := range parts {
		if looksLikeID(p) {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func looksLikeID(s string) bool {
	if len(s) != 24 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}
