package availability

import (
	"time"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses half-open intervals: [a,b) and [c,d) overlap iff a < d && c < b.
// Touching boundaries do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func overlapsAny(iv Interval, busy []model.BusyInterval, exclude string) bool {
	for _, b := range busy {
		if exclude != "" && b.BookingID == exclude {
			continue
		}
		if iv.Overlaps(Interval{Start: b.Start, End: b.End}) {
			return true
		}
	}
	return false
}

// overlappingQuantity sums the quantity of every usage overlapping iv.
func overlappingQuantity(iv Interval, usage []model.BusyInterval, exclude string) int {
	total := 0
	for _, u := range usage {
		if exclude != "" && u.BookingID == exclude {
			continue
		}
		if iv.Overlaps(Interval{Start: u.Start, End: u.End}) {
			total += u.Quantity
		}
	}
	return total
}
