package events

import (
	"context"
	"time"
)

const (
	SubjectAvailabilityGenerated = "availability.generated"
	SubjectSlotCreated           = "availability.slot_created"
	SubjectSlotDeleted           = "availability.slot_deleted"
	SubjectAppointmentBooked     = "appointment.booked"
	SubjectAppointmentCancelled  = "appointment.cancelled"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
}

type AvailabilityGenerated struct {
	ListingID string    `json:"listingId"`
	Pattern   string    `json:"type"`
	Count     int       `json:"count"`
	Skipped   int       `json:"skipped"`
	At        time.Time `json:"at"`
}

type SlotChanged struct {
	SlotID    string    `json:"slotId"`
	ListingID string    `json:"listingId"`
	StartAt   time.Time `json:"startAt"`
	EndAt     time.Time `json:"endAt"`
}

type AppointmentChanged struct {
	AppointmentID string    `json:"appointmentId"`
	SlotID        string    `json:"slotId"`
	ListingID     string    `json:"listingId"`
	TenantID      string    `json:"tenantId"`
	Status        string    `json:"status"`
	StartAt       time.Time `json:"startAt"`
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error {
	return nil
}
