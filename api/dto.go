package api

import "time"

// Availability

type Slot struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listingId"`
	StartAt   time.Time `json:"startAt"`
	EndAt     time.Time `json:"endAt"`
	IsBooked  bool      `json:"isBooked"`
}

type CreateSlotRequest struct {
	StartAt string `json:"startAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndAt   string `json:"endAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

type RecurringAvailabilityRequest struct {
	Type        string `json:"type" validate:"required"`
	StartDate   string `json:"startDate" validate:"required"`
	EndDate     string `json:"endDate" validate:"required"`
	StartTime   string `json:"startTime" validate:"required"`
	EndTime     string `json:"endTime" validate:"required"`
	Weekdays    []int  `json:"weekdays,omitempty"`
	MonthDays   []int  `json:"monthDays,omitempty"`
	Interval    *int   `json:"interval,omitempty"`
	SlotMinutes int    `json:"slotMinutes,omitempty" validate:"min=0"`
}

type RecurringAvailabilityResponse struct {
	Count   int `json:"count"`
	Skipped int `json:"skipped"`
}

// Appointments

type AppointmentRequest struct {
	SlotID   string `json:"slotId" validate:"required"`
	TenantID string `json:"tenantId" validate:"required"`
	Message  string `json:"message,omitempty" validate:"max=1000"`
}

type Appointment struct {
	ID        string    `json:"id"`
	SlotID    string    `json:"slotId,omitempty"`
	ListingID string    `json:"listingId"`
	TenantID  string    `json:"tenantId"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	StartAt   time.Time `json:"startAt"`
	EndAt     time.Time `json:"endAt"`
	CreatedAt time.Time `json:"createdAt"`
}
