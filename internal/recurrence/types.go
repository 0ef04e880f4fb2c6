package recurrence

import (
	"fmt"
	"time"

	"rental-service/internal/models"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

type Pattern string

const (
	Daily   Pattern = "daily"
	Weekly  Pattern = "weekly"
	Monthly Pattern = "monthly"
	// Custom currently behaves exactly like Daily with a caller supplied interval.
	Custom Pattern = "custom"
)

func (p Pattern) Valid() bool {
	switch p {
	case Daily, Weekly, Monthly, Custom:
		return true
	default:
		return false
	}
}

// MaxInterval is the largest accepted repeat spacing for the pattern.
func (p Pattern) MaxInterval() int {
	switch p {
	case Weekly:
		return 52
	case Monthly:
		return 12
	default:
		return 365
	}
}

// Clock is a wall-clock time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return Clock{}, err
	}

	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On returns the instant of the clock on the calendar date of d, in d's location.
func (c Clock) On(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour, c.Minute, 0, 0, d.Location())
}

// ParseDate parses a YYYY-MM-DD calendar date anchored at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

// Request is the complete, immutable input of one expansion.
type Request struct {
	ListingID string
	Pattern   Pattern
	StartDate time.Time
	EndDate   time.Time
	StartTime Clock
	EndTime   Clock
	Interval  int
	Weekdays  []int // 0 = Sunday
	MonthDays []int
	// SlotMinutes splits the daily window into consecutive slots; 0 keeps one slot per date.
	SlotMinutes int
}

type Options struct {
	MaxOccurrences int
	MaxSpanDays    int
}

var DefaultOptions = Options{
	MaxOccurrences: 1000,
	MaxSpanDays:    731,
}

// Batch is the ordered set of slot candidates produced by one expansion.
type Batch struct {
	ListingID      string
	Slots          []models.AvailabilitySlot
	SkippedPast    int
	SkippedOverlap int
	// SkippedInvalid counts dates whose window has no positive duration in the
	// expander's location, e.g. a start time inside a spring-forward gap.
	SkippedInvalid int
}

func (b *Batch) Skipped() int {
	return b.SkippedPast + b.SkippedOverlap + b.SkippedInvalid
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
