package create

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"rental-service/api"
	"rental-service/pkg/response"
	"rental-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type AppointmentBooker interface {
	BookSlot(ctx context.Context, req *api.AppointmentRequest) (*api.Appointment, error)
}

type Request struct {
	api.AppointmentRequest
}

type Response struct {
	response.Response
	Appointment *api.Appointment `json:"appointment,omitempty"`
}

func New(log *slog.Logger, booker AppointmentBooker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.create.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, "failed to decode request"))
			return
		}

		if err := validator.New().Struct(req); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)

			log.Error("Invalid request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}

		appt, err := booker.BookSlot(r.Context(), &req.AppointmentRequest)

		switch {
		case errors.Is(err, response.ErrNotFound):
			log.Warn("slot not found", slog.String("slot_id", req.SlotID))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error(response.NOT_FOUND, "slot not found"))
			return
		case errors.Is(err, response.ErrSlotNotAvailable):
			log.Warn("slot not available", slog.String("slot_id", req.SlotID))
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error(response.SLOT_NOT_AVAILABLE, "slot is not available"))
			return
		case errors.Is(err, response.ErrLocked):
			log.Warn("slot is being booked", slog.String("slot_id", req.SlotID))
			render.Status(r, http.StatusLocked)
			render.JSON(w, r, response.Error(response.LOCKED, "slot is being booked by another request"))
			return
		case err != nil:
			log.Error("Failed to book slot", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to book slot"))
			return
		}

		log.Info("Appointment booked", slog.String("appointment_id", appt.ID), slog.String("slot_id", appt.SlotID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{Appointment: appt})
	}
}
