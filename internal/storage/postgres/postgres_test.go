package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"rental-service/internal/models"
	"rental-service/pkg/response"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStorage *Storage

// TestMain starts a disposable PostgreSQL container. Without Docker the
// tests in this package are skipped.
func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err == nil {
		err = pool.Client.Ping()
	}
	if err != nil {
		log.Printf("docker is not available, skipping postgres tests: %v", err)
		os.Exit(m.Run())
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=rental",
			"POSTGRES_PASSWORD=rental",
			"POSTGRES_DB=rental",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start postgres: %s", err)
	}
	_ = resource.Expire(120)

	dsn := fmt.Sprintf("postgres://rental:rental@%s/rental?sslmode=disable", resource.GetHostPort("5432/tcp"))

	pool.MaxWait = 60 * time.Second
	if err := pool.Retry(func() error {
		var errRetry error
		testStorage, errRetry = New(dsn)
		return errRetry
	}); err != nil {
		_ = pool.Purge(resource)
		log.Fatalf("Could not connect to postgres: %s", err)
	}

	if err := testStorage.Migrate(context.Background()); err != nil {
		_ = pool.Purge(resource)
		log.Fatalf("Could not migrate: %s", err)
	}

	code := m.Run()

	_ = testStorage.Close()
	_ = pool.Purge(resource)

	os.Exit(code)
}

func storage(t *testing.T) *Storage {
	t.Helper()

	if testStorage == nil {
		t.Skip("postgres is not available")
	}

	return testStorage
}

func at(d, h int) time.Time {
	return time.Date(2031, 6, d, h, 0, 0, 0, time.UTC)
}

func TestStorage_SlotExclusion(t *testing.T) {
	s := storage(t)
	ctx := context.Background()

	listing := fmt.Sprintf("listing-%d", time.Now().UnixNano())

	id, err := s.CreateSlot(ctx, &models.AvailabilitySlot{ListingID: listing, StartAt: at(1, 9), EndAt: at(1, 11)})
	require.NoError(t, err)

	_, err = s.CreateSlot(ctx, &models.AvailabilitySlot{ListingID: listing, StartAt: at(1, 10), EndAt: at(1, 12)})
	assert.True(t, errors.Is(err, response.ErrConflict), "got %v", err)

	_, err = s.CreateSlot(ctx, &models.AvailabilitySlot{ListingID: listing, StartAt: at(1, 11), EndAt: at(1, 12)})
	assert.NoError(t, err, "touching slots do not overlap")

	_, err = s.CreateSlot(ctx, &models.AvailabilitySlot{ListingID: listing, StartAt: at(2, 12), EndAt: at(2, 9)})
	assert.True(t, errors.Is(err, response.ErrBadRequest), "got %v", err)

	created, err := s.CreateSlots(ctx, []models.AvailabilitySlot{
		{ListingID: listing, StartAt: at(1, 9), EndAt: at(1, 10)},
		{ListingID: listing, StartAt: at(3, 9), EndAt: at(3, 10)},
		{ListingID: listing, StartAt: at(4, 9), EndAt: at(4, 10)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	from := at(2, 0)
	slots, err := s.ListSlots(ctx, listing, &from)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].StartAt.Equal(at(3, 9)))

	got, err := s.GetSlot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, listing, got.ListingID)

	_, err = s.GetSlot(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, response.ErrNotFound))
}

func TestStorage_BookingLifecycle(t *testing.T) {
	s := storage(t)
	ctx := context.Background()

	listing := fmt.Sprintf("listing-%d", time.Now().UnixNano())
	tenant := fmt.Sprintf("tenant-%d", time.Now().UnixNano())

	slotID, err := s.CreateSlot(ctx, &models.AvailabilitySlot{ListingID: listing, StartAt: at(5, 14), EndAt: at(5, 15)})
	require.NoError(t, err)

	apptID, err := s.BookSlot(ctx, &models.Appointment{SlotID: slotID, TenantID: tenant, Message: "hello"})
	require.NoError(t, err)

	_, err = s.BookSlot(ctx, &models.Appointment{SlotID: slotID, TenantID: "other"})
	assert.True(t, errors.Is(err, response.ErrSlotNotAvailable), "got %v", err)

	assert.True(t, errors.Is(s.DeleteSlot(ctx, slotID), response.ErrSlotBooked))

	appts, err := s.ListTenantAppointments(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, apptID, appts[0].ID)
	assert.Equal(t, listing, appts[0].ListingID)
	assert.Equal(t, models.AppointmentScheduled, appts[0].Status)

	cancelled, err := s.CancelAppointment(ctx, apptID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCancelled, cancelled.Status)

	_, err = s.CancelAppointment(ctx, apptID)
	assert.True(t, errors.Is(err, response.ErrConflict), "got %v", err)

	require.NoError(t, s.DeleteSlot(ctx, slotID))
	assert.True(t, errors.Is(s.DeleteSlot(ctx, slotID), response.ErrNotFound))

	// history survives the slot
	appt, err := s.GetAppointment(ctx, apptID)
	require.NoError(t, err)
	assert.Empty(t, appt.SlotID)
	assert.True(t, appt.StartAt.Equal(at(5, 14)))
}
