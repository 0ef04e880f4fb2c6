package router

import (
	"log/slog"
	"net/http"

	apptCancel "rental-service/internal/http-server/handlers/appointments/cancel"
	apptCreate "rental-service/internal/http-server/handlers/appointments/create"
	apptList "rental-service/internal/http-server/handlers/appointments/list"
	availCreate "rental-service/internal/http-server/handlers/availability/create"
	availDelete "rental-service/internal/http-server/handlers/availability/delete"
	availList "rental-service/internal/http-server/handlers/availability/list"
	availRecurring "rental-service/internal/http-server/handlers/availability/recurring"
	"rental-service/internal/metrics"
	"rental-service/internal/service"
	"rental-service/pkg/middleware/mwLogger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// New wires every route of the service. m may be nil, in which case no
// metrics are recorded or exposed.
func New(log *slog.Logger, svc *service.Service, m *metrics.Metrics) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)
	if m != nil {
		router.Use(m.Middleware)
		router.Handle("/metrics", m.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		// Availability
		r.Get("/listings/{listingId}/availability", availList.New(log, svc))
		r.Post("/listings/{listingId}/availability", availCreate.New(log, svc))
		r.Post("/listings/{listingId}/availability/recurring", availRecurring.New(log, svc))
		r.Delete("/availability/{slotId}", availDelete.New(log, svc))

		// Appointments
		r.Post("/appointments", apptCreate.New(log, svc))
		r.Get("/tenants/{tenantId}/appointments", apptList.New(log, svc))
		r.Delete("/appointments/{appointmentId}", apptCancel.New(log, svc))
	})

	return router
}
