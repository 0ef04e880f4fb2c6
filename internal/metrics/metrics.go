package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rental"

const (
	SkipPast     = "past"
	SkipOverlap  = "overlap"
	SkipInvalid  = "invalid_window"
	SkipConflict = "conflict"
)

// Metrics holds the service's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	SlotsCreated    prometheus.Counter
	SlotsSkipped    *prometheus.CounterVec
	SlotsDeleted    prometheus.Counter
	Appointments    *prometheus.CounterVec
	LockContention  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		SlotsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_created_total",
			Help:      "Availability slots written to storage.",
		}),
		SlotsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_skipped_total",
			Help:      "Recurrence candidates dropped by reason.",
		}, []string{"reason"}),
		SlotsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_deleted_total",
			Help:      "Availability slots removed.",
		}),
		Appointments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_total",
			Help:      "Appointment state changes by status.",
		}, []string{"status"}),
		LockContention: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_contention_total",
			Help:      "Requests rejected because a lock was held.",
		}, []string{"scope"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	registry.MustRegister(
		m.SlotsCreated,
		m.SlotsSkipped,
		m.SlotsDeleted,
		m.Appointments,
		m.LockContention,
		m.RequestDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) ObserveGenerated(created int, skipped map[string]int) {
	if m == nil {
		return
	}

	m.SlotsCreated.Add(float64(created))
	for reason, n := range skipped {
		if n > 0 {
			m.SlotsSkipped.WithLabelValues(reason).Add(float64(n))
		}
	}
}

func (m *Metrics) SlotCreated() {
	if m == nil {
		return
	}
	m.SlotsCreated.Inc()
}

func (m *Metrics) SlotDeleted() {
	if m == nil {
		return
	}
	m.SlotsDeleted.Inc()
}

func (m *Metrics) Appointment(status string) {
	if m == nil {
		return
	}
	m.Appointments.WithLabelValues(status).Inc()
}

func (m *Metrics) LockBusy(scope string) {
	if m == nil {
		return
	}
	m.LockContention.WithLabelValues(scope).Inc()
}

// Middleware records request latency labelled with the matched chi route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.RequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
