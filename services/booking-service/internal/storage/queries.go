package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/timenorm"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	q querier
}

func (r queries) GetBusiness(ctx context.Context, id string) (model.Business, error) {
	var b model.Business
	var mode string
	err := r.q.QueryRow(ctx, `
		SELECT id::text, name, timezone, COALESCE(default_booking_mode, '')
		FROM businesses
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Timezone, &mode)
	if err != nil {
		return model.Business{}, notFound(err, "business", id)
	}
	b.DefaultBookingMode = model.BookingMode(mode)
	return b, nil
}

func (r queries) GetService(ctx context.Context, id string) (model.Service, error) {
	var s model.Service
	var mode string
	err := r.q.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, duration_minutes, COALESCE(booking_mode, '')
		FROM services
		WHERE id = $1
	`, id).Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMinutes, &mode)
	if err != nil {
		return model.Service{}, notFound(err, "service", id)
	}
	s.BookingMode = model.BookingMode(mode)
	return s, nil
}

func (r queries) GetStaff(ctx context.Context, id string) (model.Staff, error) {
	var s model.Staff
	err := r.q.QueryRow(ctx, `
		SELECT s.id::text, s.business_id::text, s.name, s.is_active,
			COALESCE(array_agg(ss.service_id::text) FILTER (WHERE ss.service_id IS NOT NULL), '{}')
		FROM staff s
		LEFT JOIN staff_services ss ON ss.staff_id = s.id
		WHERE s.id = $1
		GROUP BY s.id
	`, id).Scan(&s.ID, &s.BusinessID, &s.Name, &s.IsActive, &s.ServiceIDs)
	if err != nil {
		return model.Staff{}, notFound(err, "staff", id)
	}
	return s, nil
}

func (r queries) GetResourceType(ctx context.Context, id string) (model.ResourceType, error) {
	var rt model.ResourceType
	err := r.q.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, total_capacity
		FROM resource_types
		WHERE id = $1
	`, id).Scan(&rt.ID, &rt.BusinessID, &rt.Name, &rt.TotalCapacity)
	if err != nil {
		return model.ResourceType{}, notFound(err, "resource_type", id)
	}
	return rt, nil
}

func (r queries) GetCustomer(ctx context.Context, id string) (model.Customer, error) {
	var c model.Customer
	err := r.q.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, COALESCE(email, ''), COALESCE(phone, '')
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.BusinessID, &c.Name, &c.Email, &c.Phone)
	if err != nil {
		return model.Customer{}, notFound(err, "customer", id)
	}
	return c, nil
}

func (r queries) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	var (
		b              model.Booking
		status         string
		resourceTypeID *string
		quantity       *int
	)
	err := r.q.QueryRow(ctx, `
		SELECT b.id::text, b.business_id::text, b.service_id::text, b.customer_id::text,
			COALESCE(b.staff_id::text, ''), b.booking_time, b.end_time, b.status, b.notes,
			b.cancelled_at, COALESCE(b.cancel_reason, ''), b.created_at, b.updated_at,
			ru.resource_type_id::text, ru.quantity
		FROM bookings b
		LEFT JOIN resource_usages ru ON ru.booking_id = b.id
		WHERE b.id = $1
	`, id).Scan(
		&b.ID,
		&b.BusinessID,
		&b.ServiceID,
		&b.CustomerID,
		&b.StaffID,
		&b.BookingTime,
		&b.EndTime,
		&status,
		&b.Notes,
		&b.CancelledAt,
		&b.CancelReason,
		&b.CreatedAt,
		&b.UpdatedAt,
		&resourceTypeID,
		&quantity,
	)
	if err != nil {
		return model.Booking{}, notFound(err, "booking", id)
	}
	b.Status = model.BookingStatus(status)
	b.BookingTime, b.EndTime = b.BookingTime.UTC(), b.EndTime.UTC()
	if resourceTypeID != nil && quantity != nil {
		b.ResourceUsage = &model.ResourceUsage{BookingID: b.ID, ResourceTypeID: *resourceTypeID, Quantity: *quantity}
	}
	return b, nil
}

// ListAvailability reads business hours and closures for a business, or the
// schedule and exception rows of a staff member.
func (r queries) ListAvailability(ctx context.Context, owner model.Owner) ([]model.AvailabilityEntry, error) {
	var sql string
	switch owner.Kind {
	case model.OwnerBusiness:
		sql = `
			SELECT 'schedule', day_of_week, NULL::date, start_time, end_time, ''
			FROM business_hours WHERE business_id = $1
			UNION ALL
			SELECT 'exception', NULL::smallint, date, start_time, end_time, COALESCE(reason, '')
			FROM business_exceptions WHERE business_id = $1
		`
	case model.OwnerStaff:
		sql = `
			SELECT kind, day_of_week, date, start_time, end_time, COALESCE(reason, '')
			FROM staff_availability WHERE staff_id = $1
		`
	default:
		return nil, nil
	}

	rows, err := r.q.Query(ctx, sql, owner.ID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []model.AvailabilityEntry
	for rows.Next() {
		var (
			kind       string
			dayOfWeek  pgtype.Int2
			date       pgtype.Date
			start, end pgtype.Time
			e          model.AvailabilityEntry
		)
		if err := rows.Scan(&kind, &dayOfWeek, &date, &start, &end, &e.Reason); err != nil {
			return nil, classify(err)
		}
		e.Kind = model.EntryKind(kind)
		if dayOfWeek.Valid {
			e.DayOfWeek = int(dayOfWeek.Int16)
		}
		if date.Valid {
			e.Date = timenorm.DateOf(date.Time)
		}
		if e.Start, err = timenorm.TimeOfDay(start); err != nil {
			return nil, err
		}
		if e.End, err = timenorm.TimeOfDay(end); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (r queries) ListBookedIntervals(ctx context.Context, scope model.Owner, from, to time.Time) ([]model.BusyInterval, error) {
	column := "business_id"
	if scope.Kind == model.OwnerStaff {
		column = "staff_id"
	}
	return r.intervals(ctx, `
		SELECT id::text, booking_time, end_time, 0
		FROM bookings
		WHERE `+column+` = $1
			AND status <> 'cancelled'
			AND booking_time < $3
			AND end_time > $2
		ORDER BY booking_time ASC
	`, scope.ID, from, to)
}

func (r queries) ListResourceUsage(ctx context.Context, resourceTypeID string, from, to time.Time) ([]model.BusyInterval, error) {
	return r.intervals(ctx, `
		SELECT b.id::text, b.booking_time, b.end_time, ru.quantity
		FROM resource_usages ru
		JOIN bookings b ON b.id = ru.booking_id
		WHERE ru.resource_type_id = $1
			AND b.status <> 'cancelled'
			AND b.booking_time < $3
			AND b.end_time > $2
		ORDER BY b.booking_time ASC
	`, resourceTypeID, from, to)
}

func (r queries) intervals(ctx context.Context, sql string, id string, from, to time.Time) ([]model.BusyInterval, error) {
	rows, err := r.q.Query(ctx, sql, id, from, to)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []model.BusyInterval
	for rows.Next() {
		var iv model.BusyInterval
		if err := rows.Scan(&iv.BookingID, &iv.Start, &iv.End, &iv.Quantity); err != nil {
			return nil, classify(err)
		}
		iv.Start, iv.End = iv.Start.UTC(), iv.End.UTC()
		out = append(out, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}
