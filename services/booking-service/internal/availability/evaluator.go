// Package availability decides whether a candidate slot may be booked and
// enumerates every slot in a range that passes that decision.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/schedule"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/timenorm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Candidate is one slot to check. DurationMinutes defaults to the service
// duration and ResourceQuantity defaults to 1 for modes that consume a resource.
type Candidate struct {
	BusinessID       string
	ServiceID        string
	StaffID          string
	ResourceTypeID   string
	ResourceQuantity int
	Start            time.Time
	DurationMinutes  int
}

type Evaluator struct {
	store    Store
	resolver *schedule.Resolver
}

func NewEvaluator(store Store) *Evaluator {
	return &Evaluator{store: store, resolver: schedule.NewResolver(store)}
}

// plan holds the facts about a candidate that do not depend on its start time.
type plan struct {
	mode     Mode
	business model.Business
	service  model.Service
	staff    model.Staff
	resource model.ResourceType
	loc      *time.Location
	duration time.Duration
	quantity int

	businessCal schedule.Calendar
	staffCal    schedule.Calendar
}

// booked holds the non-cancelled bookings relevant to a span of time.
type booked struct {
	business []model.BusyInterval
	staff    []model.BusyInterval
	usage    []model.BusyInterval
}

type selection struct {
	businessID       string
	serviceID        string
	staffID          string
	resourceTypeID   string
	resourceQuantity int
	durationMinutes  int
}

// Check returns nil when the candidate may be booked under mode, an
// *errs.ConflictError naming the failed clause when it may not, and any other
// error when the inputs are invalid or the store fails. An empty mode uses the
// service's effective booking mode. excludeBookingID is ignored in overlap and
// capacity arithmetic so a booking can be re-checked in place.
func (e *Evaluator) Check(ctx context.Context, mode model.BookingMode, c Candidate, excludeBookingID string) (err error) {
	ctx, span := otel.Tracer("availability").Start(ctx, "availability.check",
		trace.WithAttributes(
			attribute.String("booking.mode", string(mode)),
			attribute.String("business.id", c.BusinessID),
			attribute.String("service.id", c.ServiceID),
		),
	)
	defer func() {
		if err != nil && !errs.IsConflict(err) {
			span.RecordError(err)
		}
		if clause, ok := errs.ConflictClause(err); ok {
			span.SetAttributes(attribute.String("availability.clause", string(clause)))
		}
		span.End()
	}()

	if c.Start.IsZero() {
		return errs.Validation("start", "required")
	}
	p, err := e.prepare(ctx, mode, selection{
		businessID:       c.BusinessID,
		serviceID:        c.ServiceID,
		staffID:          c.StaffID,
		resourceTypeID:   c.ResourceTypeID,
		resourceQuantity: c.ResourceQuantity,
		durationMinutes:  c.DurationMinutes,
	})
	if err != nil {
		return err
	}

	iv := Interval{Start: c.Start.UTC(), End: c.Start.UTC().Add(p.duration)}
	b, err := e.load(ctx, p, iv.Start, iv.End)
	if err != nil {
		return err
	}
	return p.mode.evaluate(p, b, iv, excludeBookingID)
}

// ServiceMode returns the booking mode and duration serviceID is checked
// under when the caller does not name a mode.
func (e *Evaluator) ServiceMode(ctx context.Context, businessID, serviceID string) (model.BookingMode, time.Duration, error) {
	business, service, err := e.businessAndService(ctx, businessID, serviceID)
	if err != nil {
		return "", 0, err
	}
	return service.EffectiveMode(business), service.Duration(), nil
}

// Zone returns the zone offset-less inputs for businessID are read in:
// override when set, else the business time zone, else UTC.
func (e *Evaluator) Zone(ctx context.Context, businessID, override string) (*time.Location, error) {
	if businessID == "" {
		return nil, errs.Validation("business_id", "required")
	}
	business, err := e.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return timenorm.FallbackZone(override, business.Timezone)
}

func (e *Evaluator) businessAndService(ctx context.Context, businessID, serviceID string) (model.Business, model.Service, error) {
	if businessID == "" {
		return model.Business{}, model.Service{}, errs.Validation("business_id", "required")
	}
	if serviceID == "" {
		return model.Business{}, model.Service{}, errs.Validation("service_id", "required")
	}
	business, err := e.store.GetBusiness(ctx, businessID)
	if err != nil {
		return model.Business{}, model.Service{}, err
	}
	service, err := e.store.GetService(ctx, serviceID)
	if err != nil {
		return model.Business{}, model.Service{}, err
	}
	if service.BusinessID != business.ID {
		return model.Business{}, model.Service{}, errs.NotFound("service", serviceID)
	}
	return business, service, nil
}

func (e *Evaluator) prepare(ctx context.Context, mode model.BookingMode, sel selection) (*plan, error) {
	business, service, err := e.businessAndService(ctx, sel.businessID, sel.serviceID)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = service.EffectiveMode(business)
	}
	m, err := ModeOf(mode)
	if err != nil {
		return nil, err
	}

	p := &plan{mode: m, business: business, service: service}

	switch {
	case sel.durationMinutes < 0:
		return nil, errs.Validation("duration_minutes", "must be positive")
	case sel.durationMinutes > 0:
		p.duration = time.Duration(sel.durationMinutes) * time.Minute
	case service.DurationMinutes > 0:
		p.duration = service.Duration()
	default:
		return nil, errs.Validation("duration_minutes", fmt.Sprintf("service %q has no duration", service.ID))
	}

	p.loc, err = timenorm.LoadZone(business.Timezone)
	if err != nil {
		return nil, err
	}

	n := m.needs()
	if !n.staff && sel.staffID != "" {
		return nil, errs.Validation("staff_id", fmt.Sprintf("not used by %s bookings", m.Name()))
	}
	if !n.resource && sel.resourceTypeID != "" {
		return nil, errs.Validation("resource_type_id", fmt.Sprintf("not used by %s bookings", m.Name()))
	}
	if n.businessHours {
		p.businessCal, err = e.resolver.Calendar(ctx, model.Owner{Kind: model.OwnerBusiness, ID: business.ID})
		if err != nil {
			return nil, err
		}
	}
	if n.staff {
		if sel.staffID == "" {
			return nil, errs.Validation("staff_id", fmt.Sprintf("required for %s bookings", m.Name()))
		}
		p.staff, err = e.store.GetStaff(ctx, sel.staffID)
		if err != nil {
			return nil, err
		}
		if p.staff.BusinessID != business.ID {
			return nil, errs.NotFound("staff", sel.staffID)
		}
		p.staffCal, err = e.resolver.Calendar(ctx, model.Owner{Kind: model.OwnerStaff, ID: p.staff.ID})
		if err != nil {
			return nil, err
		}
	}
	if n.resource {
		if sel.resourceTypeID == "" {
			return nil, errs.Validation("resource_type_id", fmt.Sprintf("required for %s bookings", m.Name()))
		}
		switch {
		case sel.resourceQuantity < 0:
			return nil, errs.Validation("resource_quantity", "must be positive")
		case sel.resourceQuantity == 0:
			p.quantity = 1
		default:
			p.quantity = sel.resourceQuantity
		}
		p.resource, err = e.store.GetResourceType(ctx, sel.resourceTypeID)
		if err != nil {
			return nil, err
		}
		if p.resource.BusinessID != business.ID {
			return nil, errs.NotFound("resource_type", sel.resourceTypeID)
		}
	}
	return p, nil
}

// load fetches the bookings the plan's mode needs that overlap [from, to).
func (e *Evaluator) load(ctx context.Context, p *plan, from, to time.Time) (booked, error) {
	var (
		b   booked
		err error
	)
	n := p.mode.needs()
	if n.businessBookings {
		b.business, err = e.store.ListBookedIntervals(ctx, model.Owner{Kind: model.OwnerBusiness, ID: p.business.ID}, from, to)
		if err != nil {
			return booked{}, err
		}
	}
	if n.staff {
		b.staff, err = e.store.ListBookedIntervals(ctx, model.Owner{Kind: model.OwnerStaff, ID: p.staff.ID}, from, to)
		if err != nil {
			return booked{}, err
		}
	}
	if n.resource {
		b.usage, err = e.store.ListResourceUsage(ctx, p.resource.ID, from, to)
		if err != nil {
			return booked{}, err
		}
	}
	return b, nil
}
