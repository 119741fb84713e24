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
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accounts_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "accounts_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accounts_registrations_total",
		Help: "Registration attempts by result",
	}, []string{"result"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accounts_logins_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accounts_events_published_total",
		Help: "Lifecycle events handed to the broker, by type and result",
	}, []string{"type", "result"})

	brokerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "accounts_broker_state",
		Help: "Event publisher connection state (0 disconnected, 1 connecting, 2 connected, 3 closing, 4 closed)",
	})
)

// ObserveHTTPRequest records one served request. route is the mux pattern,
// never the raw path, to keep label cardinality bounded.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func ObserveRegistration(result string) { registrations.WithLabelValues(result).Inc() }

func ObserveLogin(result string) { logins.WithLabelValues(result).Inc() }

func ObserveEventPublished(kind, result string) {
	eventsPublished.WithLabelValues(kind, result).Inc()
}

// SetBrokerState takes the numeric value of rabbitmq.State.
func SetBrokerState(state int) { brokerState.Set(float64(state)) }

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Middleware must wrap the ServeMux directly so the matched pattern is
// visible once the mux returns.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		ObserveHTTPRequest(r.Method, route, rec.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.status, w.wrote = code, true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
