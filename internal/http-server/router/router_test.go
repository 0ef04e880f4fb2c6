package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rental-service/api"
	"rental-service/internal/events"
	"rental-service/internal/lock"
	"rental-service/internal/metrics"
	"rental-service/internal/recurrence"
	"rental-service/internal/service"
	"rental-service/internal/storage/memory"
	"rental-service/pkg/logger/slogdiscard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	log := slogdiscard.NewDiscardLogger()
	m := metrics.New()
	svc := service.NewService(
		log,
		memory.New(),
		lock.NewMemoryLock(),
		recurrence.NewExpander(time.UTC, recurrence.DefaultOptions),
		events.NopPublisher{},
		m,
		time.Minute,
	)

	srv := httptest.NewServer(New(log, svc, m))
	t.Cleanup(srv.Close)

	return srv
}

func do(t *testing.T, method, url, body string, out any) int {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}

	return resp.StatusCode
}

func TestRouter_AvailabilityAndAppointments(t *testing.T) {
	srv := newServer(t)

	// 2099-03-02 is a Monday
	var generated api.RecurringAvailabilityResponse
	code := do(t, http.MethodPost, srv.URL+"/api/listings/flat-7/availability/recurring",
		`{"type":"weekly","startDate":"2099-03-02","endDate":"2099-03-22","startTime":"09:00","endTime":"17:00","weekdays":[1,3],"interval":1}`,
		&generated)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, 6, generated.Count)
	assert.Equal(t, 0, generated.Skipped)

	var listed struct {
		Slots []api.Slot `json:"slots"`
	}
	code = do(t, http.MethodGet, srv.URL+"/api/listings/flat-7/availability", "", &listed)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, listed.Slots, 6)
	first := listed.Slots[0]
	assert.Equal(t, time.Date(2099, 3, 2, 9, 0, 0, 0, time.UTC), first.StartAt.UTC())

	var errBody struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	code = do(t, http.MethodPost, srv.URL+"/api/listings/flat-7/availability",
		`{"startAt":"2099-03-02T16:00:00Z","endAt":"2099-03-02T18:00:00Z"}`, &errBody)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", errBody.Code)

	var booked struct {
		Appointment api.Appointment `json:"appointment"`
	}
	code = do(t, http.MethodPost, srv.URL+"/api/appointments",
		`{"slotId":"`+first.ID+`","tenantId":"tenant-1","message":"hi"}`, &booked)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "scheduled", booked.Appointment.Status)

	code = do(t, http.MethodPost, srv.URL+"/api/appointments",
		`{"slotId":"`+first.ID+`","tenantId":"tenant-2"}`, &errBody)
	assert.Equal(t, http.StatusConflict, code)

	code = do(t, http.MethodDelete, srv.URL+"/api/availability/"+first.ID, "", &errBody)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "SLOT_BOOKED", errBody.Code)

	var appts struct {
		Appointments []api.Appointment `json:"appointments"`
	}
	code = do(t, http.MethodGet, srv.URL+"/api/tenants/tenant-1/appointments", "", &appts)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, appts.Appointments, 1)

	var cancelled struct {
		Appointment api.Appointment `json:"appointment"`
	}
	code = do(t, http.MethodDelete, srv.URL+"/api/appointments/"+booked.Appointment.ID, "", &cancelled)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cancelled", cancelled.Appointment.Status)

	code = do(t, http.MethodDelete, srv.URL+"/api/availability/"+first.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, code)

	code = do(t, http.MethodDelete, srv.URL+"/api/availability/"+first.ID, "", &errBody)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRouter_RecurrenceValidationMessage(t *testing.T) {
	srv := newServer(t)

	var errBody struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	code := do(t, http.MethodPost, srv.URL+"/api/listings/flat-7/availability/recurring",
		`{"type":"monthly","startDate":"2099-01-01","endDate":"2099-04-30","startTime":"09:00","endTime":"10:00","interval":1}`,
		&errBody)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_FAILED", errBody.Code)
	assert.Contains(t, errBody.Error, "monthDays")
}

func TestRouter_Metrics(t *testing.T) {
	srv := newServer(t)

	do(t, http.MethodGet, srv.URL+"/api/listings/flat-7/availability", "", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
