package models

import "time"

type AvailabilitySlot struct {
	ID        string    `db:"id"`
	ListingID string    `db:"listing_id"`
	StartAt   time.Time `db:"start_at"`
	EndAt     time.Time `db:"end_at"`
	IsBooked  bool      `db:"is_booked"`
	CreatedAt time.Time `db:"created_at"`
}

// Overlaps reports whether [start, end) intersects the slot. Touching
// windows do not overlap.
func (s AvailabilitySlot) Overlaps(start, end time.Time) bool {
	return start.Before(s.EndAt) && end.After(s.StartAt)
}

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

type Appointment struct {
	ID        string            `db:"id"`
	SlotID    string            `db:"slot_id"`
	ListingID string            `db:"listing_id"`
	TenantID  string            `db:"tenant_id"`
	Status    AppointmentStatus `db:"status"`
	Message   string            `db:"message"`
	StartAt   time.Time         `db:"start_at"`
	EndAt     time.Time         `db:"end_at"`
	CreatedAt time.Time         `db:"created_at"`
}
