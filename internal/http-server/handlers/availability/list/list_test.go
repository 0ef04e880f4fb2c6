package list

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rental-service/api"
	"rental-service/pkg/logger/slogdiscard"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type listerMock struct {
	mock.Mock
}

func (m *listerMock) ListSlots(ctx context.Context, listingID string, from *time.Time) ([]api.Slot, error) {
	args := m.Called(ctx, listingID, from)
	slots, _ := args.Get(0).([]api.Slot)
	return slots, args.Error(1)
}

func newRouter(lister SlotLister) http.Handler {
	router := chi.NewRouter()
	router.Get("/api/listings/{listingId}/availability", New(slogdiscard.NewDiscardLogger(), lister))
	return router
}

func TestListHandler(t *testing.T) {
	start := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)
	lister := &listerMock{}
	lister.On("ListSlots", mock.Anything, "listing-1", (*time.Time)(nil)).
		Return([]api.Slot{{ID: "s1", ListingID: "listing-1", StartAt: start, EndAt: start.Add(time.Hour)}}, nil).Once()

	rec := httptest.NewRecorder()
	newRouter(lister).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/listing-1/availability", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Slots, 1)
	assert.Equal(t, "s1", got.Slots[0].ID)
	assert.False(t, got.Slots[0].IsBooked)
	lister.AssertExpectations(t)
}

func TestListHandler_From(t *testing.T) {
	lister := &listerMock{}
	lister.On("ListSlots", mock.Anything, "listing-1", mock.MatchedBy(func(from *time.Time) bool {
		return from != nil && from.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	})).Return([]api.Slot{}, nil).Once()

	rec := httptest.NewRecorder()
	newRouter(lister).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/listing-1/availability?from=2030-01-01T00:00:00Z", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"slots":[]}`, rec.Body.String())
	lister.AssertExpectations(t)
}

func TestListHandler_BadFrom(t *testing.T) {
	lister := &listerMock{}

	rec := httptest.NewRecorder()
	newRouter(lister).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/listing-1/availability?from=yesterday", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	lister.AssertNotCalled(t, "ListSlots", mock.Anything, mock.Anything, mock.Anything)
}
