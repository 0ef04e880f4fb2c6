package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"rental-service/internal/models"
	"rental-service/pkg/response"

	"github.com/google/uuid"
)

// Store keeps availability in process memory. Slots of a listing are kept
// sorted by start time and never overlap.
type Store struct {
	mu           sync.RWMutex
	slots        map[string]*models.AvailabilitySlot
	byListing    map[string][]*models.AvailabilitySlot
	appointments map[string]*models.Appointment
	now          func() time.Time
}

func New() *Store {
	return &Store{
		slots:        make(map[string]*models.AvailabilitySlot),
		byListing:    make(map[string][]*models.AvailabilitySlot),
		appointments: make(map[string]*models.Appointment),
		now:          time.Now,
	}
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) CreateSlot(_ context.Context, slot *models.AvailabilitySlot) (string, error) {
	const op = "storage.memory.CreateSlot"

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.insertLocked(*slot)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// CreateSlots inserts every slot that does not collide with a stored one and
// returns how many were inserted. A malformed slot rejects the whole batch.
func (s *Store) CreateSlots(_ context.Context, slots []models.AvailabilitySlot) (int, error) {
	const op = "storage.memory.CreateSlots"

	for _, slot := range slots {
		if !slot.StartAt.Before(slot.EndAt) {
			return 0, fmt.Errorf("%s: start must be before end: %w", op, response.ErrBadRequest)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := 0
	for _, slot := range slots {
		if _, err := s.insertLocked(slot); err != nil {
			if errors.Is(err, response.ErrConflict) {
				continue
			}
			return created, fmt.Errorf("%s: %w", op, err)
		}
		created++
	}

	return created, nil
}

func (s *Store) GetSlot(_ context.Context, id string) (*models.AvailabilitySlot, error) {
	const op = "storage.memory.GetSlot"

	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.slots[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	cp := *slot
	return &cp, nil
}

// ListSlots returns the listing's slots ordered by start. When from is set
// only slots ending after it are returned.
func (s *Store) ListSlots(_ context.Context, listingID string, from *time.Time) ([]models.AvailabilitySlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.byListing[listingID]
	out := make([]models.AvailabilitySlot, 0, len(list))
	for _, slot := range list {
		if from != nil && !slot.EndAt.After(*from) {
			continue
		}
		out = append(out, *slot)
	}

	return out, nil
}

func (s *Store) DeleteSlot(_ context.Context, id string) error {
	const op = "storage.memory.DeleteSlot"

	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	if slot.IsBooked {
		return fmt.Errorf("%s: %w", op, response.ErrSlotBooked)
	}

	delete(s.slots, id)
	list := s.byListing[slot.ListingID]
	s.byListing[slot.ListingID] = slices.DeleteFunc(list, func(x *models.AvailabilitySlot) bool {
		return x.ID == id
	})

	return nil
}

// BookSlot marks the slot as booked and stores the appointment in one step.
func (s *Store) BookSlot(_ context.Context, appt *models.Appointment) (string, error) {
	const op = "storage.memory.BookSlot"

	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[appt.SlotID]
	if !ok {
		return "", fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	if slot.IsBooked {
		return "", fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
	}

	slot.IsBooked = true

	stored := *appt
	stored.ID = uuid.NewString()
	stored.ListingID = slot.ListingID
	stored.StartAt = slot.StartAt
	stored.EndAt = slot.EndAt
	stored.Status = models.AppointmentScheduled
	stored.CreatedAt = s.now().UTC()
	s.appointments[stored.ID] = &stored

	return stored.ID, nil
}

func (s *Store) GetAppointment(_ context.Context, id string) (*models.Appointment, error) {
	const op = "storage.memory.GetAppointment"

	s.mu.RLock()
	defer s.mu.RUnlock()

	appt, ok := s.appointments[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	cp := *appt
	return &cp, nil
}

func (s *Store) ListTenantAppointments(_ context.Context, tenantID string) ([]models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Appointment, 0)
	for _, appt := range s.appointments {
		if appt.TenantID == tenantID {
			out = append(out, *appt)
		}
	}

	slices.SortFunc(out, func(a, b models.Appointment) int {
		if c := a.StartAt.Compare(b.StartAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return out, nil
}

// CancelAppointment marks a scheduled appointment cancelled and frees its slot.
func (s *Store) CancelAppointment(_ context.Context, id string) (*models.Appointment, error) {
	const op = "storage.memory.CancelAppointment"

	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	if appt.Status == models.AppointmentCancelled {
		return nil, fmt.Errorf("%s: already cancelled: %w", op, response.ErrConflict)
	}

	appt.Status = models.AppointmentCancelled
	if slot, ok := s.slots[appt.SlotID]; ok {
		slot.IsBooked = false
	}

	cp := *appt
	return &cp, nil
}

func (s *Store) insertLocked(slot models.AvailabilitySlot) (string, error) {
	if !slot.StartAt.Before(slot.EndAt) {
		return "", fmt.Errorf("start must be before end: %w", response.ErrBadRequest)
	}

	list := s.byListing[slot.ListingID]
	idx := sort.Search(len(list), func(i int) bool {
		return !list[i].StartAt.Before(slot.StartAt)
	})

	if idx > 0 && list[idx-1].Overlaps(slot.StartAt, slot.EndAt) {
		return "", response.ErrConflict
	}
	if idx < len(list) && list[idx].Overlaps(slot.StartAt, slot.EndAt) {
		return "", response.ErrConflict
	}

	stored := slot
	stored.ID = uuid.NewString()
	stored.IsBooked = false
	stored.CreatedAt = s.now().UTC()

	s.slots[stored.ID] = &stored
	s.byListing[slot.ListingID] = slices.Insert(list, idx, &stored)

	return stored.ID, nil
}
