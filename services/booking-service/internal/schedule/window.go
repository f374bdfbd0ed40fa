package schedule

import (
	"time"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/timenorm"
)

// Window is an open [Start, End) span of wall-clock time on one calendar date.
// End < Start means the window runs past midnight into the next date.
type Window struct {
	Start timenorm.Clock
	End   timenorm.Clock
}

func (w Window) Wraps() bool { return w.End < w.Start }

func (w Window) Empty() bool { return w.End == w.Start }

// Span returns the absolute instants the window covers when opened on date in loc.
func (w Window) Span(date timenorm.Date, loc *time.Location) (time.Time, time.Time) {
	endDate := date
	if w.Wraps() {
		endDate = date.AddDays(1)
	}
	return date.At(w.Start, loc).UTC(), endDate.At(w.End, loc).UTC()
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// Contains reports whether [start, end) lies inside the window opened on date.
func (w Window) Contains(date timenorm.Date, loc *time.Location, start, end time.Time) bool {
	ws, we := w.Span(date, loc)
	return !start.Before(ws) && !end.After(we)
}
