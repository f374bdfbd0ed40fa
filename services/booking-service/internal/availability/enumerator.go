package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/timenorm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Limits bound the work a single enumeration may do.
type Limits struct {
	MaxSpanDays        int
	MaxCandidates      int
	MinIntervalMinutes int
}

func DefaultLimits() Limits {
	return Limits{MaxSpanDays: 31, MaxCandidates: 5000, MinIntervalMinutes: 5}
}

type Query struct {
	BusinessID string
	ServiceID  string
	// Mode defaults to the service's effective booking mode.
	Mode             model.BookingMode
	RangeStart       time.Time
	RangeEnd         time.Time
	IntervalMinutes  int
	StaffID          string
	ResourceTypeID   string
	ResourceQuantity int
}

type Result struct {
	Mode     model.BookingMode
	Duration time.Duration
	Location *time.Location
	// Starts are UTC, ascending and unique.
	Starts []time.Time
}

type Enumerator struct {
	eval   *Evaluator
	limits Limits
}

func NewEnumerator(eval *Evaluator, limits Limits) *Enumerator {
	def := DefaultLimits()
	if limits.MaxSpanDays <= 0 {
		limits.MaxSpanDays = def.MaxSpanDays
	}
	if limits.MaxCandidates <= 0 {
		limits.MaxCandidates = def.MaxCandidates
	}
	if limits.MinIntervalMinutes <= 0 {
		limits.MinIntervalMinutes = def.MinIntervalMinutes
	}
	return &Enumerator{eval: eval, limits: limits}
}

// Enumerate returns every start in [RangeStart, RangeEnd) whose slot fits
// before RangeEnd and passes Evaluator.Check. Bookings are fetched once per
// calendar day rather than once per candidate.
func (e *Enumerator) Enumerate(ctx context.Context, q Query) (res Result, err error) {
	ctx, span := otel.Tracer("availability").Start(ctx, "availability.enumerate",
		trace.WithAttributes(
			attribute.String("business.id", q.BusinessID),
			attribute.String("service.id", q.ServiceID),
			attribute.Int("interval_minutes", q.IntervalMinutes),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("slots", len(res.Starts)))
		span.End()
	}()

	if err := e.validate(q); err != nil {
		return Result{}, err
	}
	p, err := e.eval.prepare(ctx, q.Mode, selection{
		businessID:       q.BusinessID,
		serviceID:        q.ServiceID,
		staffID:          q.StaffID,
		resourceTypeID:   q.ResourceTypeID,
		resourceQuantity: q.ResourceQuantity,
	})
	if err != nil {
		return Result{}, err
	}

	// Windows come from the staff calendar when the mode is staff bound and
	// from business hours otherwise.
	cal := p.businessCal
	if p.mode.needs().staff {
		cal = p.staffCal
	}

	rangeStart, rangeEnd := q.RangeStart.UTC(), q.RangeEnd.UTC()
	step := time.Duration(q.IntervalMinutes) * time.Minute
	seen := make(map[time.Time]struct{})
	starts := make([]time.Time, 0)

	// Start a day early so windows wrapping past midnight into rangeStart's date are walked.
	last := timenorm.DateOf(rangeEnd.In(p.loc))
	for day := timenorm.DateOf(rangeStart.In(p.loc)).AddDays(-1); !last.Before(day); day = day.AddDays(1) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		candidates := dayCandidates(cal, day, p.loc, rangeStart, rangeEnd, p.duration, step)
		if len(candidates) == 0 {
			continue
		}

		from, to := candidates[0], candidates[0].Add(p.duration)
		for _, c := range candidates[1:] {
			if c.Before(from) {
				from = c
			}
			if end := c.Add(p.duration); end.After(to) {
				to = end
			}
		}
		b, err := e.eval.load(ctx, p, from, to)
		if err != nil {
			return Result{}, err
		}

		for _, c := range candidates {
			if _, dup := seen[c]; dup {
				continue
			}
			err := p.mode.evaluate(p, b, Interval{Start: c, End: c.Add(p.duration)}, "")
			switch {
			case err == nil:
				seen[c] = struct{}{}
				starts = append(starts, c)
			case errs.IsConflict(err):
			default:
				return Result{}, err
			}
		}
	}

	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	return Result{Mode: p.mode.Name(), Duration: p.duration, Location: p.loc, Starts: starts}, nil
}

func (e *Enumerator) validate(q Query) error {
	if q.RangeStart.IsZero() {
		return errs.Validation("range_start", "required")
	}
	if q.RangeEnd.IsZero() {
		return errs.Validation("range_end", "required")
	}
	if !q.RangeEnd.After(q.RangeStart) {
		return errs.Validation("range_end", "must be after range_start")
	}
	if q.IntervalMinutes < e.limits.MinIntervalMinutes {
		return errs.Validation("interval_minutes", fmt.Sprintf("must be at least %d", e.limits.MinIntervalMinutes))
	}
	span := q.RangeEnd.Sub(q.RangeStart)
	if span > time.Duration(e.limits.MaxSpanDays)*24*time.Hour {
		return errs.Validation("range_end", fmt.Sprintf("range exceeds %d days", e.limits.MaxSpanDays))
	}
	if n := int(span / (time.Duration(q.IntervalMinutes) * time.Minute)); n > e.limits.MaxCandidates {
		return errs.Validation("interval_minutes", fmt.Sprintf("range yields %d candidates, limit is %d", n, e.limits.MaxCandidates))
	}
	return nil
}

// dayCandidates steps through each window opened on day, starting at the
// later of the window start and rangeStart, while the slot still ends by both
// the window end and rangeEnd.
func dayCandidates(cal schedule.Calendar, day timenorm.Date, loc *time.Location, rangeStart, rangeEnd time.Time, duration, step time.Duration) []time.Time {
	var out []time.Time
	for _, w := range cal.Windows(day) {
		ws, we := w.Span(day, loc)
		lo := ws
		if rangeStart.After(lo) {
			lo = rangeStart
		}
		hi := we
		if rangeEnd.Before(hi) {
			hi = rangeEnd
		}
		for t := lo; !t.Add(duration).After(hi); t = t.Add(step) {
			out = append(out, t)
		}
	}
	return out
}
