package cancel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"rental-service/api"
	"rental-service/pkg/response"
	"rental-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type AppointmentCanceller interface {
	CancelAppointment(ctx context.Context, appointmentID string) (*api.Appointment, error)
}

type Response struct {
	response.Response
	Appointment *api.Appointment `json:"appointment,omitempty"`
}

func New(log *slog.Logger, canceller AppointmentCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.cancel.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "appointmentId")
		if id == "" {
			log.Error("appointmentId is empty")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, "appointmentId is required"))
			return
		}

		appt, err := canceller.CancelAppointment(r.Context(), id)

		switch {
		case errors.Is(err, response.ErrNotFound):
			log.Warn("appointment not found", slog.String("appointment_id", id))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error(response.NOT_FOUND, "appointment not found"))
			return
		case errors.Is(err, response.ErrConflict):
			log.Warn("appointment already cancelled", slog.String("appointment_id", id))
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error(response.CONFLICT, "appointment already cancelled"))
			return
		case err != nil:
			log.Error("Failed to cancel appointment", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to cancel appointment"))
			return
		}

		log.Info("Appointment cancelled", slog.String("appointment_id", appt.ID))

		render.JSON(w, r, Response{Appointment: appt})
	}
}
