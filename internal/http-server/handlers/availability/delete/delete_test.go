package delete

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"rental-service/pkg/logger/slogdiscard"
	"rental-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type deleterMock struct {
	mock.Mock
}

func (m *deleterMock) DeleteSlot(ctx context.Context, slotID string) error {
	return m.Called(ctx, slotID).Error(0)
}

func TestDeleteHandler(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "deleted", wantCode: http.StatusNoContent},
		{name: "missing", err: fmt.Errorf("op: %w", response.ErrNotFound), wantCode: http.StatusNotFound},
		{name: "booked", err: fmt.Errorf("op: %w", response.ErrSlotBooked), wantCode: http.StatusConflict},
		{name: "failure", err: fmt.Errorf("db down"), wantCode: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deleter := &deleterMock{}
			deleter.On("DeleteSlot", mock.Anything, "slot-1").Return(tc.err).Once()

			router := chi.NewRouter()
			router.Delete("/api/availability/{slotId}", New(slogdiscard.NewDiscardLogger(), deleter))

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/availability/slot-1", nil))

			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantCode == http.StatusNoContent {
				assert.Empty(t, rec.Body.String())
			}
			deleter.AssertExpectations(t)
		})
	}
}
