// Package booking creates, reschedules and cancels bookings. Every write
// re-runs the availability check inside the same transaction as the insert.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/timenorm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type CreateParams struct {
	BusinessID     string
	ServiceID      string
	CustomerID     string
	StaffID        string
	ResourceTypeID string
	// ResourceQuantity defaults to 1 when the service consumes a resource.
	ResourceQuantity int
	// BookingTime is an ISO-8601 timestamp. Without an offset it is read in
	// TimeZone, else in the business time zone.
	BookingTime string
	TimeZone    string
	Notes       string
}

// Changes lists the fields an update may touch; nil fields are left as they are.
type Changes struct {
	BookingTime  *string
	TimeZone     string
	StaffID      *string
	Status       *model.BookingStatus
	Notes        *string
	CancelReason string
}

type Orchestrator struct {
	store  Transactor
	logger *slog.Logger
	retry  RetryPolicy
	now    func() time.Time
}

type Option func(*Orchestrator)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *Orchestrator) { o.retry = p }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(store Transactor, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		logger: logger,
		retry:  DefaultRetryPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Create(ctx context.Context, p CreateParams) (out model.Booking, err error) {
	ctx, span := otel.Tracer("booking").Start(ctx, "booking.create",
		trace.WithAttributes(
			attribute.String("business.id", p.BusinessID),
			attribute.String("service.id", p.ServiceID),
		),
	)
	defer func() { o.finish(span, "create", out, err) }()

	if err := validateCreate(p); err != nil {
		return model.Booking{}, err
	}

	err = Retry(ctx, o.retry, func(ctx context.Context) error {
		return o.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			b, err := o.create(ctx, tx, p)
			if err != nil {
				return err
			}
			out = b
			return nil
		})
	})
	if err != nil {
		return model.Booking{}, err
	}
	return out, nil
}

func validateCreate(p CreateParams) error {
	switch {
	case strings.TrimSpace(p.BusinessID) == "":
		return errs.Validation("business_id", "required")
	case strings.TrimSpace(p.ServiceID) == "":
		return errs.Validation("service_id", "required")
	case strings.TrimSpace(p.CustomerID) == "":
		return errs.Validation("customer_id", "required")
	case strings.TrimSpace(p.BookingTime) == "":
		return errs.Validation("booking_time", "required")
	case p.ResourceQuantity < 0:
		return errs.Validation("resource_quantity", "must be positive")
	}
	return nil
}

func (o *Orchestrator) create(ctx context.Context, tx Tx, p CreateParams) (model.Booking, error) {
	business, err := tx.GetBusiness(ctx, p.BusinessID)
	if err != nil {
		return model.Booking{}, err
	}
	start, err := normalizeStart(p.BookingTime, p.TimeZone, business)
	if err != nil {
		return model.Booking{}, err
	}
	service, err := tx.GetService(ctx, p.ServiceID)
	if err != nil {
		return model.Booking{}, err
	}
	if service.BusinessID != business.ID {
		return model.Booking{}, errs.NotFound("service", p.ServiceID)
	}
	customer, err := tx.GetCustomer(ctx, p.CustomerID)
	if err != nil {
		return model.Booking{}, err
	}
	if customer.BusinessID != business.ID {
		return model.Booking{}, errs.NotFound("customer", p.CustomerID)
	}

	mode := service.EffectiveMode(business)
	if err := requireModeFields(mode, p.StaffID, p.ResourceTypeID); err != nil {
		return model.Booking{}, err
	}
	quantity := p.ResourceQuantity
	if mode.NeedsResource() && quantity == 0 {
		quantity = 1
	}

	if err := tx.Lock(ctx, lockKeys(mode, business.ID, p.StaffID, p.ResourceTypeID)...); err != nil {
		return model.Booking{}, err
	}
	err = availability.NewEvaluator(tx).Check(ctx, mode, availability.Candidate{
		BusinessID:       business.ID,
		ServiceID:        service.ID,
		StaffID:          p.StaffID,
		ResourceTypeID:   p.ResourceTypeID,
		ResourceQuantity: quantity,
		Start:            start,
	}, "")
	if err != nil {
		return model.Booking{}, err
	}

	now := o.now().UTC()
	b := model.Booking{
		ID:          uuid.NewString(),
		BusinessID:  business.ID,
		ServiceID:   service.ID,
		CustomerID:  customer.ID,
		StaffID:     p.StaffID,
		BookingTime: start,
		EndTime:     start.Add(service.Duration()),
		Status:      model.StatusConfirmed,
		Notes:       p.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if mode.NeedsResource() {
		b.ResourceUsage = &model.ResourceUsage{BookingID: b.ID, ResourceTypeID: p.ResourceTypeID, Quantity: quantity}
	}
	if err := tx.InsertBooking(ctx, b); err != nil {
		return model.Booking{}, err
	}
	if err := emit(ctx, tx, outbox.EventBookingCreated, b, now); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// Update applies changes to a booking. The availability check runs again,
// ignoring the booking itself, only when the start time or staff member
// actually changes.
func (o *Orchestrator) Update(ctx context.Context, bookingID string, c Changes) (out model.Booking, err error) {
	ctx, span := otel.Tracer("booking").Start(ctx, "booking.update",
		trace.WithAttributes(attribute.String("booking.id", bookingID)),
	)
	defer func() { o.finish(span, "update", out, err) }()

	if strings.TrimSpace(bookingID) == "" {
		return model.Booking{}, errs.Validation("booking_id", "required")
	}

	err = Retry(ctx, o.retry, func(ctx context.Context) error {
		return o.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			b, err := o.update(ctx, tx, bookingID, c)
			if err != nil {
				return err
			}
			out = b
			return nil
		})
	})
	if err != nil {
		return model.Booking{}, err
	}
	return out, nil
}

// Cancel marks a booking cancelled. Its resource usage is kept for audit and
// no longer counts towards capacity. Cancelling twice is a no-op.
func (o *Orchestrator) Cancel(ctx context.Context, bookingID, reason string) (model.Booking, error) {
	status := model.StatusCancelled
	return o.Update(ctx, bookingID, Changes{Status: &status, CancelReason: reason})
}

func (o *Orchestrator) Get(ctx context.Context, bookingID string) (model.Booking, error) {
	if strings.TrimSpace(bookingID) == "" {
		return model.Booking{}, errs.Validation("booking_id", "required")
	}
	var out model.Booking
	err := o.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

func (o *Orchestrator) update(ctx context.Context, tx Tx, bookingID string, c Changes) (model.Booking, error) {
	current, err := tx.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	business, err := tx.GetBusiness(ctx, current.BusinessID)
	if err != nil {
		return model.Booking{}, err
	}
	service, err := tx.GetService(ctx, current.ServiceID)
	if err != nil {
		return model.Booking{}, err
	}

	next := current
	if c.BookingTime != nil {
		start, err := normalizeStart(*c.BookingTime, c.TimeZone, business)
		if err != nil {
			return model.Booking{}, err
		}
		next.BookingTime = start
		next.EndTime = start.Add(service.Duration())
	}
	if c.StaffID != nil {
		next.StaffID = strings.TrimSpace(*c.StaffID)
	}
	if c.Notes != nil {
		next.Notes = *c.Notes
	}
	if c.Status != nil {
		if !current.Status.CanTransition(*c.Status) {
			return model.Booking{}, errs.Validation("status",
				fmt.Sprintf("cannot move a %s booking to %s", current.Status, *c.Status))
		}
		next.Status = *c.Status
	}

	rescheduled := !next.BookingTime.Equal(current.BookingTime) || next.StaffID != current.StaffID
	if rescheduled {
		if current.Status != model.StatusConfirmed || next.Status != model.StatusConfirmed {
			return model.Booking{}, errs.Validation("booking_time", "only confirmed bookings can be rescheduled")
		}
		mode := service.EffectiveMode(business)
		resourceTypeID, quantity := "", 0
		if current.ResourceUsage != nil {
			resourceTypeID, quantity = current.ResourceUsage.ResourceTypeID, current.ResourceUsage.Quantity
		}
		if err := requireModeFields(mode, next.StaffID, resourceTypeID); err != nil {
			return model.Booking{}, err
		}
		if err := tx.Lock(ctx, lockKeys(mode, business.ID, next.StaffID, resourceTypeID)...); err != nil {
			return model.Booking{}, err
		}
		err = availability.NewEvaluator(tx).Check(ctx, mode, availability.Candidate{
			BusinessID:       business.ID,
			ServiceID:        service.ID,
			StaffID:          next.StaffID,
			ResourceTypeID:   resourceTypeID,
			ResourceQuantity: quantity,
			Start:            next.BookingTime,
		}, current.ID)
		if err != nil {
			return model.Booking{}, err
		}
	}

	cancelled := next.Status == model.StatusCancelled && current.Status != model.StatusCancelled
	if cancelled {
		at := o.now().UTC()
		next.CancelledAt = &at
		next.CancelReason = c.CancelReason
	}
	if !rescheduled && !cancelled && next.Status == current.Status && next.Notes == current.Notes {
		return current, nil
	}

	now := o.now().UTC()
	next.UpdatedAt = now
	if err := tx.UpdateBooking(ctx, next); err != nil {
		return model.Booking{}, err
	}
	eventType := outbox.EventBookingUpdated
	if cancelled {
		eventType = outbox.EventBookingCancelled
	}
	if err := emit(ctx, tx, eventType, next, now); err != nil {
		return model.Booking{}, err
	}
	return next, nil
}

func normalizeStart(raw, zone string, business model.Business) (time.Time, error) {
	loc, err := timenorm.FallbackZone(zone, business.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	return timenorm.Instant(raw, loc)
}

// requireModeFields rejects bookings missing the fields their mode needs and
// bookings naming a staff member or resource their mode would not check.
func requireModeFields(mode model.BookingMode, staffID, resourceTypeID string) error {
	switch {
	case mode.NeedsStaff() && staffID == "":
		return errs.Validation("staff_id", fmt.Sprintf("required for %s bookings", mode))
	case !mode.NeedsStaff() && staffID != "":
		return errs.Validation("staff_id", fmt.Sprintf("not used by %s bookings", mode))
	case mode.NeedsResource() && resourceTypeID == "":
		return errs.Validation("resource_type_id", fmt.Sprintf("required for %s bookings", mode))
	case !mode.NeedsResource() && resourceTypeID != "":
		return errs.Validation("resource_type_id", fmt.Sprintf("not used by %s bookings", mode))
	}
	return nil
}

// lockKeys names the scopes whose bookings the check for mode reads.
func lockKeys(mode model.BookingMode, businessID, staffID, resourceTypeID string) []string {
	var keys []string
	if mode == model.ModeTimeOnly {
		keys = append(keys, "business:"+businessID)
	}
	if mode.NeedsStaff() {
		keys = append(keys, "staff:"+staffID)
	}
	if mode.NeedsResource() {
		keys = append(keys, "resource:"+resourceTypeID)
	}
	sort.Strings(keys)
	return keys
}

func emit(ctx context.Context, tx Tx, eventType string, b model.Booking, now time.Time) error {
	evt, err := outbox.NewBookingEvent(eventType, b, now)
	if err != nil {
		return err
	}
	return tx.InsertEvent(ctx, evt)
}

func (o *Orchestrator) finish(span trace.Span, op string, b model.Booking, err error) {
	defer span.End()
	switch {
	case err == nil:
		span.SetAttributes(attribute.String("booking.id", b.ID))
		o.logger.Info("booking "+op+"d",
			"booking_id", b.ID,
			"business_id", b.BusinessID,
			"status", b.Status,
			"booking_time", timenorm.Format(b.BookingTime),
		)
	case errs.IsConflict(err):
		clause, _ := errs.ConflictClause(err)
		span.SetAttributes(attribute.String("availability.clause", string(clause)))
		o.logger.Warn("booking "+op+" rejected", "clause", clause, "err", err)
	case errs.IsValidation(err), errs.IsNotFound(err), errs.IsNormalization(err):
		o.logger.Info("booking "+op+" invalid", "err", err)
	default:
		span.RecordError(err)
		o.logger.Error("booking "+op+" failed", "err", err)
	}
}
