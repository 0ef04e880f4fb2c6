package delete

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"rental-service/pkg/response"
	"rental-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type SlotDeleter interface {
	DeleteSlot(ctx context.Context, slotID string) error
}

func New(log *slog.Logger, deleter SlotDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.delete.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		slotID := chi.URLParam(r, "slotId")
		if slotID == "" {
			log.Error("slotId is empty")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BAD_REQUEST, "slotId is required"))
			return
		}

		err := deleter.DeleteSlot(r.Context(), slotID)

		switch {
		case errors.Is(err, response.ErrNotFound):
			log.Warn("slot not found", slog.String("slot_id", slotID))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error(response.NOT_FOUND, "slot not found"))
			return
		case errors.Is(err, response.ErrSlotBooked):
			log.Warn("slot is booked", slog.String("slot_id", slotID))
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error(response.SLOT_BOOKED, "cannot delete a booked slot"))
			return
		case err != nil:
			log.Error("Failed to delete slot", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to delete slot"))
			return
		}

		log.Info("Slot deleted", slog.String("slot_id", slotID))

		w.WriteHeader(http.StatusNoContent)
	}
}
