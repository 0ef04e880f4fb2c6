package recurring

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"rental-service/api"
	"rental-service/internal/recurrence"
	"rental-service/pkg/response"
	"rental-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type AvailabilityGenerator interface {
	GenerateRecurring(ctx context.Context, listingID string, req *api.RecurringAvailabilityRequest) (*api.RecurringAvailabilityResponse, error)
}

type Request struct {
	api.RecurringAvailabilityRequest
}

type Response struct {
	response.Response
	api.RecurringAvailabilityResponse
}

func New(log *slog.Logger, generator AvailabilityGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.recurring.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		listingID := chi.URLParam(r, "listingId")

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, "failed to decode request"))
			return
		}

		log.Debug("Request body decoded", slog.Any("request", req))

		if err := validator.New().Struct(req); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)

			log.Error("Invalid request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}

		resp, err := generator.GenerateRecurring(r.Context(), listingID, &req.RecurringAvailabilityRequest)

		var verr *recurrence.ValidationError
		switch {
		case errors.As(err, &verr):
			log.Warn("Recurrence rejected", slog.String("field", verr.Field), slog.String("reason", verr.Reason))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.VALIDATION_FAILED, verr.Error()))
			return
		case errors.Is(err, response.ErrLocked):
			log.Warn("Availability generation already running", slog.String("listing_id", listingID))
			render.Status(r, http.StatusLocked)
			render.JSON(w, r, response.Error(response.LOCKED, "availability generation already in progress for this listing"))
			return
		case err != nil:
			log.Error("Failed to generate availability", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to generate availability"))
			return
		}

		log.Info("Recurring availability generated",
			slog.String("listing_id", listingID),
			slog.Int("count", resp.Count),
			slog.Int("skipped", resp.Skipped),
		)

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{RecurringAvailabilityResponse: *resp})
	}
}
