package recurrence

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"rental-service/internal/models"

	"github.com/teambition/rrule-go"
)

// indexed by time.Weekday
var rruleWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// Expander turns recurrence requests into concrete availability slots.
// It performs no I/O: existing slots of the listing are passed in by the caller.
type Expander struct {
	loc  *time.Location
	opts Options
	now  func() time.Time
}

func NewExpander(loc *time.Location, opts Options) *Expander {
	if loc == nil {
		loc = time.UTC
	}
	if opts.MaxOccurrences <= 0 {
		opts.MaxOccurrences = DefaultOptions.MaxOccurrences
	}
	if opts.MaxSpanDays <= 0 {
		opts.MaxSpanDays = DefaultOptions.MaxSpanDays
	}

	return &Expander{
		loc:  loc,
		opts: opts,
		now:  time.Now,
	}
}

// WithClock returns a copy of the expander that reads the current time from now.
func (e *Expander) WithClock(now func() time.Time) *Expander {
	cp := *e
	cp.now = now

	return &cp
}

func (e *Expander) Location() *time.Location {
	return e.loc
}

// Validate returns the first violated constraint of req as a *ValidationError.
func (e *Expander) Validate(req Request) error {
	if strings.TrimSpace(req.ListingID) == "" {
		return invalid("listingId", "is required")
	}

	if !req.Pattern.Valid() {
		return invalid("type", fmt.Sprintf("unknown recurrence type %q", req.Pattern))
	}

	if req.StartDate.IsZero() {
		return invalid("startDate", "is required")
	}

	if req.EndDate.IsZero() {
		return invalid("endDate", "is required")
	}

	startDate, endDate := e.date(req.StartDate), e.date(req.EndDate)
	if endDate.Before(startDate) {
		return invalid("endDate", "must not precede startDate")
	}

	if !req.StartTime.Valid() {
		return invalid("startTime", "is not a valid time of day")
	}

	if !req.EndTime.Valid() {
		return invalid("endTime", "is not a valid time of day")
	}

	span := req.EndTime.Minutes() - req.StartTime.Minutes()
	if span <= 0 {
		return invalid("endTime", "must be after startTime")
	}

	if req.Interval <= 0 {
		return invalid("interval", "must be a positive integer")
	}

	if limit := req.Pattern.MaxInterval(); req.Interval > limit {
		return invalid("interval", fmt.Sprintf("must be at most %d for %s recurrence", limit, req.Pattern))
	}

	if req.SlotMinutes < 0 {
		return invalid("slotMinutes", "must not be negative")
	}

	if req.SlotMinutes > span {
		return invalid("slotMinutes", "exceeds the time window")
	}

	switch req.Pattern {
	case Weekly:
		if len(req.Weekdays) == 0 {
			return invalid("weekdays", "at least one weekday is required for weekly recurrence")
		}
		for _, wd := range req.Weekdays {
			if wd < 0 || wd > 6 {
				return invalid("weekdays", fmt.Sprintf("%d is out of range 0-6", wd))
			}
		}
	case Monthly:
		if len(req.MonthDays) == 0 {
			return invalid("monthDays", "at least one day of month is required for monthly recurrence")
		}
		for _, md := range req.MonthDays {
			if md < 1 || md > 31 {
				return invalid("monthDays", fmt.Sprintf("%d is out of range 1-31", md))
			}
		}
	}

	if days := daysBetween(startDate, endDate); days > e.opts.MaxSpanDays {
		return invalid("endDate", fmt.Sprintf("date range exceeds %d days", e.opts.MaxSpanDays))
	}

	return nil
}

// Expand validates req and produces its slots in ascending start order.
// Slots starting before now and slots overlapping existing ones are dropped
// and counted in the batch.
func (e *Expander) Expand(req Request, existing []models.AvailabilitySlot) (*Batch, error) {
	const op = "recurrence.Expander.Expand"

	if err := e.Validate(req); err != nil {
		return nil, err
	}

	rule, err := rrule.NewRRule(e.ruleOption(req))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	taken := make([]models.AvailabilitySlot, 0, len(existing))
	for _, s := range existing {
		if s.ListingID == "" || s.ListingID == req.ListingID {
			taken = append(taken, s)
		}
	}
	slices.SortFunc(taken, func(a, b models.AvailabilitySlot) int {
		return a.StartAt.Compare(b.StartAt)
	})

	now := e.now()
	batch := &Batch{ListingID: req.ListingID}
	generated := 0

	next := rule.Iterator()
	for occurrence, ok := next(); ok; occurrence, ok = next() {
		ws := e.windows(occurrence, req)
		if ws == nil {
			// the wall-clock window vanished in a DST transition
			batch.SkippedInvalid++
			continue
		}

		for _, w := range ws {
			generated++
			if generated > e.opts.MaxOccurrences {
				return nil, invalid("endDate", fmt.Sprintf("date range yields more than %d slots", e.opts.MaxOccurrences))
			}

			if w.start.Before(now) {
				batch.SkippedPast++
				continue
			}

			if overlapsAny(taken, w) || overlapsLast(batch.Slots, w) {
				batch.SkippedOverlap++
				continue
			}

			batch.Slots = append(batch.Slots, models.AvailabilitySlot{
				ListingID: req.ListingID,
				StartAt:   w.start,
				EndAt:     w.end,
			})
		}
	}

	slices.SortStableFunc(batch.Slots, func(a, b models.AvailabilitySlot) int {
		return a.StartAt.Compare(b.StartAt)
	})

	return batch, nil
}

func (e *Expander) ruleOption(req Request) rrule.ROption {
	dtstart := req.StartTime.On(e.date(req.StartDate))

	opt := rrule.ROption{
		Dtstart:  dtstart,
		Until:    req.StartTime.On(e.date(req.EndDate)),
		Interval: req.Interval,
	}

	switch req.Pattern {
	case Weekly:
		opt.Freq = rrule.WEEKLY
		// weeks are 7-day blocks starting on the start date
		opt.Wkst = rruleWeekdays[dtstart.Weekday()]
		for _, wd := range uniqueSorted(req.Weekdays) {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[wd])
		}
	case Monthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = uniqueSorted(req.MonthDays)
	default:
		opt.Freq = rrule.DAILY
	}

	return opt
}

type window struct {
	start time.Time
	end   time.Time
}

func (e *Expander) windows(occurrence time.Time, req Request) []window {
	day := e.date(occurrence)
	start, end := req.StartTime.On(day), req.EndTime.On(day)
	if !start.Before(end) {
		return nil
	}

	if req.SlotMinutes == 0 {
		return []window{{start: start, end: end}}
	}

	step := time.Duration(req.SlotMinutes) * time.Minute
	out := make([]window, 0, int(end.Sub(start)/step))
	for cur := start; !cur.Add(step).After(end); cur = cur.Add(step) {
		out = append(out, window{start: cur, end: cur.Add(step)})
	}
	if len(out) == 0 {
		return nil
	}

	return out
}

// date returns midnight of t's calendar date in the expander's location.
func (e *Expander) date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, e.loc)
}

func overlapsAny(sorted []models.AvailabilitySlot, w window) bool {
	for _, s := range sorted {
		if !s.StartAt.Before(w.end) {
			return false
		}
		if s.Overlaps(w.start, w.end) {
			return true
		}
	}

	return false
}

func overlapsLast(accepted []models.AvailabilitySlot, w window) bool {
	if len(accepted) == 0 {
		return false
	}

	return accepted[len(accepted)-1].Overlaps(w.start, w.end)
}

func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	return int(b.Sub(a).Hours() / 24)
}

func uniqueSorted(values []int) []int {
	out := slices.Clone(values)
	slices.Sort(out)

	return slices.Compact(out)
}
