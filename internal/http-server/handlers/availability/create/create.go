package create

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

type SlotCreator interface {
	CreateSlot(ctx context.Context, listingID string, req *api.CreateSlotRequest) (*api.Slot, error)
}

type Request struct {
	api.CreateSlotRequest
}

type Response struct {
	response.Response
	Slot *api.Slot `json:"slot,omitempty"`
}

func New(log *slog.Logger, creator SlotCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.create.New"

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

		if err := validator.New().Struct(req); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)

			log.Error("Invalid request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}

		slot, err := creator.CreateSlot(r.Context(), listingID, &req.CreateSlotRequest)

		var verr *recurrence.ValidationError
		switch {
		case errors.As(err, &verr):
			log.Warn("Slot rejected", slog.String("field", verr.Field), slog.String("reason", verr.Reason))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.VALIDATION_FAILED, verr.Error()))
			return
		case errors.Is(err, response.ErrConflict):
			log.Warn("Slot overlaps existing availability", slog.String("listing_id", listingID))
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error(response.CONFLICT, "slot overlaps existing availability"))
			return
		case err != nil:
			log.Error("Failed to create slot", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to create slot"))
			return
		}

		log.Info("Slot created", slog.String("slot_id", slot.ID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{Slot: slot})
	}
}
