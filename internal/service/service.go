package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rental-service/api"
	"rental-service/internal/events"
	"rental-service/internal/lock"
	"rental-service/internal/metrics"
	"rental-service/internal/models"
	"rental-service/internal/recurrence"
	"rental-service/pkg/response"
	"rental-service/pkg/sl"
)

type Service struct {
	log       *slog.Logger
	store     Store
	locker    lock.Locker
	expander  *recurrence.Expander
	publisher events.Publisher
	metrics   *metrics.Metrics
	lockTTL   time.Duration
	now       func() time.Time
}

type Store interface {
	// Availability
	CreateSlot(ctx context.Context, slot *models.AvailabilitySlot) (string, error)
	CreateSlots(ctx context.Context, slots []models.AvailabilitySlot) (int, error)
	GetSlot(ctx context.Context, id string) (*models.AvailabilitySlot, error)
	ListSlots(ctx context.Context, listingID string, from *time.Time) ([]models.AvailabilitySlot, error)
	DeleteSlot(ctx context.Context, id string) error

	// Appointments
	BookSlot(ctx context.Context, appt *models.Appointment) (string, error)
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	ListTenantAppointments(ctx context.Context, tenantID string) ([]models.Appointment, error)
	CancelAppointment(ctx context.Context, id string) (*models.Appointment, error)
}

func NewService(
	log *slog.Logger,
	store Store,
	locker lock.Locker,
	expander *recurrence.Expander,
	publisher events.Publisher,
	m *metrics.Metrics,
	lockTTL time.Duration,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}

	return &Service{
		log:       log,
		store:     store,
		locker:    locker,
		expander:  expander,
		publisher: publisher,
		metrics:   m,
		lockTTL:   lockTTL,
		now:       time.Now,
	}
}

// WithClock overrides the service's time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.expander = s.expander.WithClock(now)

	return s
}

// Availability

func (s *Service) ListSlots(ctx context.Context, listingID string, from *time.Time) ([]api.Slot, error) {
	const op = "service.ListSlots"

	slots, err := s.store.ListSlots(ctx, listingID, from)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]api.Slot, 0, len(slots))
	for _, slot := range slots {
		out = append(out, toSlot(slot))
	}

	return out, nil
}

func (s *Service) CreateSlot(ctx context.Context, listingID string, req *api.CreateSlotRequest) (*api.Slot, error) {
	const op = "service.CreateSlot"

	if strings.TrimSpace(listingID) == "" {
		return nil, &recurrence.ValidationError{Field: "listingId", Reason: "is required"}
	}

	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return nil, &recurrence.ValidationError{Field: "startAt", Reason: "must be an RFC3339 timestamp"}
	}

	endAt, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		return nil, &recurrence.ValidationError{Field: "endAt", Reason: "must be an RFC3339 timestamp"}
	}

	if !startAt.Before(endAt) {
		return nil, &recurrence.ValidationError{Field: "endAt", Reason: "must be after startAt"}
	}

	if startAt.Before(s.now()) {
		return nil, &recurrence.ValidationError{Field: "startAt", Reason: "must not be in the past"}
	}

	slot := &models.AvailabilitySlot{
		ListingID: listingID,
		StartAt:   startAt.UTC(),
		EndAt:     endAt.UTC(),
	}

	id, err := s.store.CreateSlot(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.SlotCreated()
	s.publish(ctx, events.SubjectSlotCreated, events.SlotChanged{
		SlotID:    id,
		ListingID: listingID,
		StartAt:   slot.StartAt,
		EndAt:     slot.EndAt,
	})

	created, err := s.store.GetSlot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := toSlot(*created)
	return &out, nil
}

// GenerateRecurring expands a recurrence rule for the listing and stores the
// resulting slots. Only one generation per listing runs at a time.
func (s *Service) GenerateRecurring(ctx context.Context, listingID string, req *api.RecurringAvailabilityRequest) (*api.RecurringAvailabilityResponse, error) {
	const op = "service.GenerateRecurring"

	rreq, err := s.buildRequest(listingID, req)
	if err != nil {
		return nil, err
	}

	if err := s.expander.Validate(rreq); err != nil {
		return nil, err
	}

	key := lock.ListingAvailabilityKey(listingID)

	release, err := s.acquire(ctx, key, "listing")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer release()

	from := rreq.StartDate

	existing, err := s.store.ListSlots(ctx, listingID, &from)
	if err != nil {
		return nil, fmt.Errorf("%s: list existing: %w", op, err)
	}

	batch, err := s.expander.Expand(rreq, existing)
	if err != nil {
		var verr *recurrence.ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	created, err := s.store.CreateSlots(ctx, batch.Slots)
	if err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	conflicts := len(batch.Slots) - created
	if conflicts > 0 {
		s.log.Warn("slots skipped on insert",
			slog.String("op", op),
			slog.String("listing_id", listingID),
			slog.Int("conflicts", conflicts),
		)
	}

	skipped := batch.Skipped() + conflicts

	s.metrics.ObserveGenerated(created, map[string]int{
		metrics.SkipPast:     batch.SkippedPast,
		metrics.SkipOverlap:  batch.SkippedOverlap,
		metrics.SkipInvalid:  batch.SkippedInvalid,
		metrics.SkipConflict: conflicts,
	})

	s.publish(ctx, events.SubjectAvailabilityGenerated, events.AvailabilityGenerated{
		ListingID: listingID,
		Pattern:   string(rreq.Pattern),
		Count:     created,
		Skipped:   skipped,
		At:        s.now().UTC(),
	})

	return &api.RecurringAvailabilityResponse{
		Count:   created,
		Skipped: skipped,
	}, nil
}

func (s *Service) DeleteSlot(ctx context.Context, slotID string) error {
	const op = "service.DeleteSlot"

	slot, err := s.store.GetSlot(ctx, slotID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.DeleteSlot(ctx, slotID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.SlotDeleted()
	s.publish(ctx, events.SubjectSlotDeleted, events.SlotChanged{
		SlotID:    slot.ID,
		ListingID: slot.ListingID,
		StartAt:   slot.StartAt,
		EndAt:     slot.EndAt,
	})

	return nil
}

// Appointments

func (s *Service) BookSlot(ctx context.Context, req *api.AppointmentRequest) (*api.Appointment, error) {
	const op = "service.BookSlot"

	release, err := s.acquire(ctx, lock.SlotKey(req.SlotID), "slot")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer release()

	slot, err := s.store.GetSlot(ctx, req.SlotID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if slot.IsBooked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
	}

	if !slot.StartAt.After(s.now()) {
		return nil, fmt.Errorf("%s: slot already started: %w", op, response.ErrSlotNotAvailable)
	}

	id, err := s.store.BookSlot(ctx, &models.Appointment{
		SlotID:   req.SlotID,
		TenantID: req.TenantID,
		Message:  strings.TrimSpace(req.Message),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Appointment(string(models.AppointmentScheduled))
	s.publish(ctx, events.SubjectAppointmentBooked, appointmentEvent(appt))

	out := toAppointment(*appt)
	return &out, nil
}

func (s *Service) ListTenantAppointments(ctx context.Context, tenantID string) ([]api.Appointment, error) {
	const op = "service.ListTenantAppointments"

	appts, err := s.store.ListTenantAppointments(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]api.Appointment, 0, len(appts))
	for _, appt := range appts {
		out = append(out, toAppointment(appt))
	}

	return out, nil
}

func (s *Service) CancelAppointment(ctx context.Context, appointmentID string) (*api.Appointment, error) {
	const op = "service.CancelAppointment"

	appt, err := s.store.CancelAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Appointment(string(models.AppointmentCancelled))
	s.publish(ctx, events.SubjectAppointmentCancelled, appointmentEvent(appt))

	out := toAppointment(*appt)
	return &out, nil
}

// acquire takes the lock or fails with response.ErrLocked. The returned
// func releases it.
func (s *Service) acquire(ctx context.Context, key, scope string) (func(), error) {
	ok, err := s.locker.Lock(ctx, key, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}

	if !ok {
		s.metrics.LockBusy(scope)
		return nil, fmt.Errorf("%s: %w", key, response.ErrLocked)
	}

	return func() {
		// the request context may already be cancelled
		if err := s.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
			s.log.Error("failed to release lock", slog.String("key", key), sl.Err(err))
		}
	}, nil
}

func (s *Service) publish(ctx context.Context, subject string, data any) {
	if err := s.publisher.Publish(ctx, subject, data); err != nil {
		s.log.Warn("failed to publish event", slog.String("subject", subject), sl.Err(err))
	}
}

func (s *Service) buildRequest(listingID string, req *api.RecurringAvailabilityRequest) (recurrence.Request, error) {
	loc := s.expander.Location()

	startDate, err := recurrence.ParseDate(req.StartDate, loc)
	if err != nil {
		return recurrence.Request{}, &recurrence.ValidationError{Field: "startDate", Reason: "must be a YYYY-MM-DD date"}
	}

	endDate, err := recurrence.ParseDate(req.EndDate, loc)
	if err != nil {
		return recurrence.Request{}, &recurrence.ValidationError{Field: "endDate", Reason: "must be a YYYY-MM-DD date"}
	}

	startTime, err := recurrence.ParseClock(req.StartTime)
	if err != nil {
		return recurrence.Request{}, &recurrence.ValidationError{Field: "startTime", Reason: "must be HH:mm"}
	}

	endTime, err := recurrence.ParseClock(req.EndTime)
	if err != nil {
		return recurrence.Request{}, &recurrence.ValidationError{Field: "endTime", Reason: "must be HH:mm"}
	}

	interval := 1
	if req.Interval != nil {
		interval = *req.Interval
	}

	return recurrence.Request{
		ListingID:   listingID,
		Pattern:     recurrence.Pattern(strings.ToLower(req.Type)),
		StartDate:   startDate,
		EndDate:     endDate,
		StartTime:   startTime,
		EndTime:     endTime,
		Interval:    interval,
		Weekdays:    req.Weekdays,
		MonthDays:   req.MonthDays,
		SlotMinutes: req.SlotMinutes,
	}, nil
}

func toSlot(slot models.AvailabilitySlot) api.Slot {
	return api.Slot{
		ID:        slot.ID,
		ListingID: slot.ListingID,
		StartAt:   slot.StartAt.UTC(),
		EndAt:     slot.EndAt.UTC(),
		IsBooked:  slot.IsBooked,
	}
}

func toAppointment(appt models.Appointment) api.Appointment {
	return api.Appointment{
		ID:        appt.ID,
		SlotID:    appt.SlotID,
		ListingID: appt.ListingID,
		TenantID:  appt.TenantID,
		Status:    string(appt.Status),
		Message:   appt.Message,
		StartAt:   appt.StartAt.UTC(),
		EndAt:     appt.EndAt.UTC(),
		CreatedAt: appt.CreatedAt.UTC(),
	}
}

func appointmentEvent(appt *models.Appointment) events.AppointmentChanged {
	return events.AppointmentChanged{
		AppointmentID: appt.ID,
		SlotID:        appt.SlotID,
		ListingID:     appt.ListingID,
		TenantID:      appt.TenantID,
		Status:        string(appt.Status),
		StartAt:       appt.StartAt,
	}
}
