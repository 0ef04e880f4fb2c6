package list

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"rental-service/api"
	"rental-service/pkg/response"
	"rental-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type SlotLister interface {
	ListSlots(ctx context.Context, listingID string, from *time.Time) ([]api.Slot, error)
}

type Response struct {
	response.Response
	Slots []api.Slot `json:"slots"`
}

func New(log *slog.Logger, lister SlotLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		listingID := chi.URLParam(r, "listingId")

		var from *time.Time
		if raw := r.URL.Query().Get("from"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				log.Error("Invalid from parameter", sl.Err(err))
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error(response.VALIDATION_FAILED, "from must be an RFC3339 timestamp"))
				return
			}
			from = &t
		}

		slots, err := lister.ListSlots(r.Context(), listingID, from)
		if err != nil {
			log.Error("Failed to list slots", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.FAILED_REQUEST, "failed to list availability"))
			return
		}

		log.Debug("Slots listed", slog.String("listing_id", listingID), slog.Int("count", len(slots)))

		render.JSON(w, r, Response{Slots: slots})
	}
}
