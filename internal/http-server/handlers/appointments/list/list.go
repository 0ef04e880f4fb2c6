package list

import (
	"context"
	"log/slog"
	"net/http"

	"rental-service/api"
	"rental-service/pkg/response"
	"rental-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type AppointmentLister interface {
	ListTenantAppointments(ctx context.Context, tenantID string) ([]api.Appointment, error)
}

type Response struct {
	response.Response
	Appointments []api.Appointment `json:"appointments"`
}

func New(log *slog.Logger, lister AppointmentLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		tenantID := chi.URLParam(r, "tenantId")
		if tenantID == "" {
			log.Error("tenantId is empty")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, "tenantId is required"))
			return
		}

		appts, err := lister.ListTenantAppointments(r.Context(), tenantID)
		if err != nil {
			log.Error("Failed to list appointments", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to fetch appointments"))
			return
		}

		render.JSON(w, r, Response{Appointments: appts})
	}
}
