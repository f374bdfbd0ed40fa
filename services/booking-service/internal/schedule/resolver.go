// Package schedule resolves weekly schedules and date-specific exceptions into
// the effective open windows of a business or staff member.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/timenorm"
)

// An exception starting at midnight and ending at or after this clock closes the whole day.
var closedDayEnd = timenorm.NewClock(23, 59, 0)

type Source interface {
	ListAvailability(ctx context.Context, owner model.Owner) ([]model.AvailabilityEntry, error)
}

type entry struct {
	window Window
	closed bool
}

// Calendar is a parsed snapshot of one owner's schedule and exception entries.
type Calendar struct {
	weekly     map[int][]Window
	exceptions map[timenorm.Date][]entry
}

// NewCalendar validates and indexes entries. Time-of-day values that do not
// parse are reported as NormalizationError.
func NewCalendar(entries []model.AvailabilityEntry) (Calendar, error) {
	cal := Calendar{
		weekly:     make(map[int][]Window),
		exceptions: make(map[timenorm.Date][]entry),
	}
	for _, e := range entries {
		start, err := timenorm.ClockOf(e.Start)
		if err != nil {
			return Calendar{}, err
		}
		end, err := timenorm.ClockOf(e.End)
		if err != nil {
			return Calendar{}, err
		}
		if start == timenorm.EndOfDay {
			return Calendar{}, errs.Validation("start_time", "24:00 can only close a window")
		}
		w := Window{Start: start, End: end}

		switch e.Kind {
		case model.EntrySchedule:
			if e.DayOfWeek < 1 || e.DayOfWeek > 7 {
				return Calendar{}, errs.Validation("day_of_week", fmt.Sprintf("%d outside 1..7", e.DayOfWeek))
			}
			cal.weekly[e.DayOfWeek] = append(cal.weekly[e.DayOfWeek], w)
		case model.EntryException:
			if e.Date.IsZero() {
				return Calendar{}, errs.Validation("date", "required for exception entries")
			}
			cal.exceptions[e.Date] = append(cal.exceptions[e.Date], entry{
				window: w,
				closed: start == 0 && end >= closedDayEnd,
			})
		default:
			return Calendar{}, errs.Validation("kind", fmt.Sprintf("unknown availability entry kind %q", e.Kind))
		}
	}
	return cal, nil
}

// Windows returns the effective windows for date, sorted by start. Exceptions
// for the date replace the weekly schedule entirely; a date with no windows is closed.
func (c Calendar) Windows(date timenorm.Date) []Window {
	var out []Window
	if exc, ok := c.exceptions[date]; ok {
		for _, e := range exc {
			if e.closed || e.window.Empty() {
				continue
			}
			out = append(out, e.window)
		}
	} else {
		for _, w := range c.weekly[date.Weekday()] {
			if !w.Empty() {
				out = append(out, w)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out
}

// HasException reports whether date is governed by exception entries.
func (c Calendar) HasException(date timenorm.Date) bool {
	_, ok := c.exceptions[date]
	return ok
}

// Covers reports whether [start, end) fits entirely inside one effective
// window. Windows of the previous date that wrap past midnight are considered too.
func (c Calendar) Covers(loc *time.Location, start, end time.Time) bool {
	day := timenorm.DateOf(start.In(loc))
	for _, w := range c.Windows(day) {
		if w.Contains(day, loc, start, end) {
			return true
		}
	}
	prev := day.AddDays(-1)
	for _, w := range c.Windows(prev) {
		if w.Wraps() && w.Contains(prev, loc, start, end) {
			return true
		}
	}
	return false
}

// Resolver loads calendars from the entity store.
type Resolver struct {
	src Source
}

func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

func (r *Resolver) Calendar(ctx context.Context, owner model.Owner) (Calendar, error) {
	entries, err := r.src.ListAvailability(ctx, owner)
	if err != nil {
		return Calendar{}, err
	}
	return NewCalendar(entries)
}

// EffectiveWindows resolves the open windows of owner on date.
func (r *Resolver) EffectiveWindows(ctx context.Context, owner model.Owner, date timenorm.Date) ([]Window, error) {
	cal, err := r.Calendar(ctx, owner)
	if err != nil {
		return nil, err
	}
	return cal.Windows(date), nil
}
