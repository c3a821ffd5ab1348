package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codraw",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "codraw",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codraw",
		Name:      "events_total",
		Help:      "Total number of protocol events received, by frame type",
	}, []string{"type"})
)

// RegisterHub exposes live room and connection counts as gauges. Call once
// at startup.
func RegisterHub(rooms, connections func() float64) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "codraw",
		Name:      "rooms",
		Help:      "Number of live rooms",
	}, rooms)
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "codraw",
		Name:      "connections",
		Help:      "Number of live websocket connections",
	}, connections)
}

// EventReceived counts one inbound protocol frame.
func EventReceived(frameType string) {
	events.WithLabelValues(frameType).Inc()
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records request metrics with Prometheus labels.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		labels := prometheus.Labels{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": strconv.Itoa(rec.status),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
