package availability_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/storage/memstore"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/timenorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bizID   = "biz-1"
	svcID   = "svc-1"
	staffID = "staff-1"
	roomID  = "room"
)

// Monday.
var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

var businessOwner = model.Owner{Kind: model.OwnerBusiness, ID: bizID}
var staffOwner = model.Owner{Kind: model.OwnerStaff, ID: staffID}

func weekly(dow int, start, end string) model.AvailabilityEntry {
	return model.AvailabilityEntry{Kind: model.EntrySchedule, DayOfWeek: dow, Start: start, End: end}
}

// newStore seeds a UTC business open Mon 09:00-17:00 with one 30 minute service.
func newStore(mode model.BookingMode) *memstore.Store {
	s := memstore.New()
	s.PutBusiness(model.Business{ID: bizID, Name: "Salon", Timezone: "UTC"})
	s.PutService(model.Service{ID: svcID, BusinessID: bizID, Name: "Cut", DurationMinutes: 30, BookingMode: mode})
	s.AddAvailability(businessOwner, weekly(1, "09:00", "17:00"))
	s.PutStaff(model.Staff{ID: staffID, BusinessID: bizID, Name: "Ana", IsActive: true, ServiceIDs: []string{svcID}})
	s.AddAvailability(staffOwner, weekly(1, "10:00", "12:00"))
	s.PutResourceType(model.ResourceType{ID: roomID, BusinessID: bizID, Name: "Room", TotalCapacity: 2})
	return s
}

func putBooking(s *memstore.Store, id string, start time.Time, mutate func(*model.Booking)) {
	b := model.Booking{
		ID:          id,
		BusinessID:  bizID,
		ServiceID:   svcID,
		CustomerID:  "cus-1",
		BookingTime: start,
		EndTime:     start.Add(30 * time.Minute),
		Status:      model.StatusConfirmed,
	}
	if mutate != nil {
		mutate(&b)
	}
	s.PutBooking(b)
}

func withUsage(q int) func(*model.Booking) {
	return func(b *model.Booking) {
		b.ResourceUsage = &model.ResourceUsage{BookingID: b.ID, ResourceTypeID: roomID, Quantity: q}
	}
}

func clauseOf(t *testing.T, err error) errs.Clause {
	t.Helper()
	clause, ok := errs.ConflictClause(err)
	require.True(t, ok, "expected conflict, got %v", err)
	return clause
}

func TestEnumerate_TimeOnlyRange(t *testing.T) {
	s := newStore(model.ModeTimeOnly)
	en := availability.NewEnumerator(availability.NewEvaluator(s), availability.DefaultLimits())

	res, err := en.Enumerate(context.Background(), availability.Query{
		BusinessID:      bizID,
		ServiceID:       svcID,
		Mode:            model.ModeTimeOnly,
		RangeStart:      at(9, 0),
		RangeEnd:        at(10, 0),
		IntervalMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{at(9, 0), at(9, 30)}, res.Starts)
	assert.Equal(t, 30*time.Minute, res.Duration)
	assert.Equal(t, model.ModeTimeOnly, res.Mode)
}

func TestCheck_CapacityScenario(t *testing.T) {
	s := newStore(model.ModeResourceOnly)
	putBooking(s, "a", at(10, 0), withUsage(1))
	putBooking(s, "b", at(10, 0), withUsage(1))
	ev := availability.NewEvaluator(s)
	ctx := context.Background()

	candidate := func(start time.Time) availability.Candidate {
		return availability.Candidate{BusinessID: bizID, ServiceID: svcID, ResourceTypeID: roomID, ResourceQuantity: 1, Start: start}
	}

	err := ev.Check(ctx, model.ModeResourceOnly, candidate(at(10, 15)), "")
	assert.Equal(t, errs.ClauseCapacity, clauseOf(t, err))

	assert.NoError(t, ev.Check(ctx, model.ModeResourceOnly, candidate(at(10, 31)), ""))
	// Touching the end of the existing bookings is not an overlap.
	assert.NoError(t, ev.Check(ctx, model.ModeResourceOnly, candidate(at(10, 30)), ""))
	// Re-checking one of the bookings in place frees its unit.
	assert.NoError(t, ev.Check(ctx, model.ModeResourceOnly, candidate(at(10, 15)), "a"))
}

func TestCheck_CancelledBookingsAreIgnored(t *testing.T) {
	s := newStore(model.ModeResourceOnly)
	cancel := func(b *model.Booking) { b.Status = model.StatusCancelled }
	putBooking(s, "a", at(10, 0), func(b *model.Booking) { withUsage(2)(b); cancel(b) })
	ev := availability.NewEvaluator(s)

	err := ev.Check(context.Background(), model.ModeResourceOnly, availability.Candidate{
		BusinessID: bizID, ServiceID: svcID, ResourceTypeID: roomID, ResourceQuantity: 2, Start: at(10, 0),
	}, "")
	assert.NoError(t, err)
}

func TestCheck_StaffScheduleScenario(t *testing.T) {
	s := memstore.New()
	s.PutBusiness(model.Business{ID: bizID, Timezone: "UTC"})
	s.PutService(model.Service{ID: svcID, BusinessID: bizID, DurationMinutes: 30, BookingMode: model.ModeStaffOnly})
	s.PutStaff(model.Staff{ID: staffID, BusinessID: bizID, IsActive: true, ServiceIDs: []string{svcID}})
	s.AddAvailability(staffOwner, weekly(2, "10:00", "12:00"))
	ev := availability.NewEvaluator(s)

	wednesday := day.AddDate(0, 0, 2).Add(10 * time.Hour)
	err := ev.Check(context.Background(), model.ModeStaffOnly, availability.Candidate{
		BusinessID: bizID, ServiceID: svcID, StaffID: staffID, Start: wednesday,
	}, "")
	assert.Equal(t, errs.ClauseSchedule, clauseOf(t, err))

	tuesday := day.AddDate(0, 0, 1).Add(10 * time.Hour)
	assert.NoError(t, ev.Check(context.Background(), model.ModeStaffOnly, availability.Candidate{
		BusinessID: bizID, ServiceID: svcID, StaffID: staffID, Start: tuesday,
	}, ""))
}

func TestCheck_Clauses(t *testing.T) {
	ctx := context.Background()

	t.Run("time only slot taken", func(t *testing.T) {
		s := newStore(model.ModeTimeOnly)
		putBooking(s, "x", at(9, 0), nil)
		ev := availability.NewEvaluator(s)
		err := ev.Check(ctx, model.ModeTimeOnly, availability.Candidate{BusinessID: bizID, ServiceID: svcID, Start: at(9, 15)}, "")
		assert.Equal(t, errs.ClauseSlotTaken, clauseOf(t, err))
		assert.NoError(t, ev.Check(ctx, model.ModeTimeOnly, availability.Candidate{BusinessID: bizID, ServiceID: svcID, Start: at(9, 30)}, ""))
	})

	t.Run("business closed", func(t *testing.T) {
		ev := availability.NewEvaluator(newStore(model.ModeTimeOnly))
		err := ev.Check(ctx, model.ModeTimeOnly, availability.Candidate{BusinessID: bizID, ServiceID: svcID, Start: at(16, 45)}, "")
		assert.Equal(t, errs.ClauseBusinessClosed, clauseOf(t, err))
	})

	t.Run("staff busy", func(t *testing.T) {
		s := newStore(model.ModeStaffOnly)
		putBooking(s, "x", at(10, 0), func(b *model.Booking) { b.StaffID = staffID })
		ev := availability.NewEvaluator(s)
		err := ev.Check(ctx, model.ModeStaffOnly, availability.Candidate{BusinessID: bizID, ServiceID: svcID, StaffID: staffID, Start: at(10, 0)}, "")
		assert.Equal(t, errs.ClauseStaffBusy, clauseOf(t, err))
		assert.NoError(t, ev.Check(ctx, model.ModeStaffOnly, availability.Candidate{BusinessID: bizID, ServiceID: svcID, StaffID: staffID, Start: at(10, 0)}, "x"))
	})

	t.Run("service not offered", func(t *testing.T) {
		s := newStore(model.ModeStaffOnly)
		s.PutStaff(model.Staff{ID: staffID, BusinessID: bizID, IsActive: true})
		ev := availability.NewEvaluator(s)
		err := ev.Check(ctx, model.ModeStaffOnly, availability.Candidate{BusinessID: bizID, ServiceID: svcID, StaffID: staffID, Start: at(10, 0)}, "")
		assert.Equal(t, errs.ClauseServiceNotOffered, clauseOf(t, err))
	})

	t.Run("staff and resource needs both", func(t *testing.T) {
		s := newStore(model.ModeStaffAndResource)
		putBooking(s, "x", at(11, 0), withUsage(2))
		ev := availability.NewEvaluator(s)
		c := availability.Candidate{BusinessID: bizID, ServiceID: svcID, StaffID: staffID, ResourceTypeID: roomID, Start: at(11, 0)}

		err := ev.Check(ctx, model.ModeStaffAndResource, c, "")
		assert.Equal(t, errs.ClauseCapacity, clauseOf(t, err))

		c.Start = at(13, 0)
		err = ev.Check(ctx, model.ModeStaffAndResource, c, "")
		assert.Equal(t, errs.ClauseSchedule, clauseOf(t, err))

		c.Start = at(10, 0)
		assert.NoError(t, ev.Check(ctx, model.ModeStaffAndResource, c, ""))
	})

	t.Run("business exception closes the day", func(t *testing.T) {
		s := newStore(model.ModeTimeOnly)
		s.AddAvailability(businessOwner, model.AvailabilityEntry{
			Kind: model.EntryException, Date: timenorm.DateOf(day), Start: "00:00", End: "23:59", Reason: "holiday",
		})
		ev := availability.NewEvaluator(s)
		err := ev.Check(ctx, model.ModeTimeOnly, availability.Candidate{BusinessID: bizID, ServiceID: svcID, Start: at(10, 0)}, "")
		assert.Equal(t, errs.ClauseBusinessClosed, clauseOf(t, err))
	})
}

func TestCheck_InputErrors(t *testing.T) {
	ctx := context.Background()
	ev := availability.NewEvaluator(newStore(""))

	err := ev.Check(ctx, model.ModeStaffOnly, availability.Candidate{BusinessID: bizID, ServiceID: svcID, Start: at(10, 0)}, "")
	assert.True(t, errs.IsValidation(err), "%v", err)

	err = ev.Check(ctx, model.ModeResourceOnly, availability.Candidate{BusinessID: bizID, ServiceID: svcID, Start: at(10, 0)}, "")
	assert.True(t, errs.IsValidation(err), "%v", err)

	err = ev.Check(ctx, "by_moon_phase", availability.Candidate{BusinessID: bizID, ServiceID: svcID, Start: at(10, 0)}, "")
	assert.True(t, errs.IsValidation(err), "%v", err)

	err = ev.Check(ctx, model.ModeTimeOnly, availability.Candidate{BusinessID: "nope", ServiceID: svcID, Start: at(10, 0)}, "")
	assert.True(t, errs.IsNotFound(err), "%v", err)

	err = ev.Check(ctx, model.ModeStaffOnly, availability.Candidate{BusinessID: bizID, ServiceID: svcID, StaffID: "ghost", Start: at(10, 0)}, "")
	assert.True(t, errs.IsNotFound(err), "%v", err)

	err = ev.Check(ctx, model.ModeTimeOnly, availability.Candidate{BusinessID: bizID, ServiceID: svcID}, "")
	assert.True(t, errs.IsValidation(err), "%v", err)
}

func TestCheck_RejectsFieldsTheModeIgnores(t *testing.T) {
	ctx := context.Background()
	s := newStore(model.ModeTimeOnly)
	ev := availability.NewEvaluator(s)

	err := ev.Check(ctx, model.ModeTimeOnly, availability.Candidate{BusinessID: bizID, ServiceID: svcID, StaffID: staffID, Start: at(10, 0)}, "")
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "staff_id", verr.Field)

	err = ev.Check(ctx, model.ModeStaffOnly, availability.Candidate{
		BusinessID: bizID, ServiceID: svcID, StaffID: staffID, ResourceTypeID: roomID, Start: at(10, 0),
	}, "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "resource_type_id", verr.Field)

	_, err = availability.NewEnumerator(ev, availability.DefaultLimits()).Enumerate(ctx, availability.Query{
		BusinessID: bizID, ServiceID: svcID, Mode: model.ModeResourceOnly, ResourceTypeID: roomID, StaffID: staffID,
		RangeStart: at(9, 0), RangeEnd: at(17, 0), IntervalMinutes: 30,
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "staff_id", verr.Field)
}

func TestCheck_DefaultsToServiceMode(t *testing.T) {
	ev := availability.NewEvaluator(newStore(model.ModeStaffOnly))
	err := ev.Check(context.Background(), "", availability.Candidate{BusinessID: bizID, ServiceID: svcID, Start: at(10, 0)}, "")
	assert.True(t, errs.IsValidation(err), "staff_id should be required, got %v", err)

	mode, dur, err := ev.ServiceMode(context.Background(), bizID, svcID)
	require.NoError(t, err)
	assert.Equal(t, model.ModeStaffOnly, mode)
	assert.Equal(t, 30*time.Minute, dur)
}

func TestEnumerate_OvernightWindow(t *testing.T) {
	s := memstore.New()
	s.PutBusiness(model.Business{ID: bizID, Timezone: "UTC"})
	s.PutService(model.Service{ID: svcID, BusinessID: bizID, DurationMinutes: 60})
	// Sunday 22:00 to Monday 02:00.
	s.AddAvailability(businessOwner, weekly(7, "22:00", "02:00"))
	en := availability.NewEnumerator(availability.NewEvaluator(s), availability.Limits{})

	res, err := en.Enumerate(context.Background(), availability.Query{
		BusinessID:      bizID,
		ServiceID:       svcID,
		RangeStart:      day,
		RangeEnd:        day.Add(6 * time.Hour),
		IntervalMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day, day.Add(30 * time.Minute), day.Add(time.Hour)}, res.Starts)
}

func TestEnumerate_BusinessZone(t *testing.T) {
	s := newStore(model.ModeTimeOnly)
	s.PutBusiness(model.Business{ID: bizID, Timezone: "America/New_York"})
	en := availability.NewEnumerator(availability.NewEvaluator(s), availability.DefaultLimits())

	res, err := en.Enumerate(context.Background(), availability.Query{
		BusinessID:      bizID,
		ServiceID:       svcID,
		RangeStart:      day,
		RangeEnd:        day.Add(24 * time.Hour),
		IntervalMinutes: 60,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Starts)
	// 09:00 EST.
	assert.Equal(t, at(14, 0), res.Starts[0])
	assert.Equal(t, at(21, 0), res.Starts[len(res.Starts)-1])
	assert.Equal(t, "America/New_York", res.Location.String())
}

func TestEnumerate_Limits(t *testing.T) {
	en := availability.NewEnumerator(availability.NewEvaluator(newStore("")), availability.Limits{MaxSpanDays: 2, MaxCandidates: 100, MinIntervalMinutes: 15})
	base := availability.Query{BusinessID: bizID, ServiceID: svcID, RangeStart: day, RangeEnd: day.Add(24 * time.Hour), IntervalMinutes: 30}

	q := base
	q.IntervalMinutes = 10
	_, err := en.Enumerate(context.Background(), q)
	assert.True(t, errs.IsValidation(err))

	q = base
	q.RangeEnd = day.Add(72 * time.Hour)
	_, err = en.Enumerate(context.Background(), q)
	assert.True(t, errs.IsValidation(err))

	q = base
	q.IntervalMinutes = 15
	_, err = en.Enumerate(context.Background(), q)
	assert.NoError(t, err, "96 candidates are within the limit")

	q.RangeEnd = day.Add(48 * time.Hour)
	_, err = en.Enumerate(context.Background(), q)
	assert.True(t, errs.IsValidation(err), "192 candidates exceed the limit")

	q = base
	q.RangeEnd = q.RangeStart
	_, err = en.Enumerate(context.Background(), q)
	assert.True(t, errs.IsValidation(err))

	_, err = en.Enumerate(context.Background(), base)
	assert.NoError(t, err)
}

// Every enumerated slot must pass Check, and the output must be sorted without duplicates.
func TestEnumerate_AgreesWithCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	modes := []model.BookingMode{model.ModeTimeOnly, model.ModeStaffOnly, model.ModeResourceOnly, model.ModeStaffAndResource}
	ctx := context.Background()

	for _, mode := range modes {
		s := newStore(mode)
		s.AddAvailability(staffOwner, weekly(1, "13:00", "16:00"), weekly(2, "09:00", "11:00"))
		for i := 0; i < 12; i++ {
			start := at(9, 0).Add(time.Duration(rng.Intn(48)) * 15 * time.Minute)
			id := string(rune('a' + i))
			putBooking(s, id, start, func(b *model.Booking) {
				if rng.Intn(2) == 0 {
					b.StaffID = staffID
				}
				if rng.Intn(3) == 0 {
					b.Status = model.StatusCancelled
				}
				withUsage(1 + rng.Intn(2))(b)
			})
		}

		ev := availability.NewEvaluator(s)
		en := availability.NewEnumerator(ev, availability.DefaultLimits())
		q := availability.Query{
			BusinessID:      bizID,
			ServiceID:       svcID,
			Mode:            mode,
			RangeStart:      at(8, 0),
			RangeEnd:        at(8, 0).Add(48 * time.Hour),
			IntervalMinutes: 15,
			StaffID:         staffID,
			ResourceTypeID:  roomID,
		}
		if !mode.NeedsStaff() {
			q.StaffID = ""
		}
		if !mode.NeedsResource() {
			q.ResourceTypeID = ""
		}
		res, err := en.Enumerate(ctx, q)
		require.NoError(t, err, mode)

		for i, start := range res.Starts {
			if i > 0 {
				require.True(t, res.Starts[i-1].Before(start), "%s: not strictly ascending at %d", mode, i)
			}
			err := ev.Check(ctx, mode, availability.Candidate{
				BusinessID: bizID, ServiceID: svcID, StaffID: q.StaffID, ResourceTypeID: q.ResourceTypeID, Start: start,
			}, "")
			require.NoError(t, err, "%s: enumerated %s fails check", mode, start)
		}

		// And every 15 minute step in range that passes Check is enumerated.
		want := 0
		for c := q.RangeStart; !c.Add(30 * time.Minute).After(q.RangeEnd); c = c.Add(15 * time.Minute) {
			if ev.Check(ctx, mode, availability.Candidate{
				BusinessID: bizID, ServiceID: svcID, StaffID: q.StaffID, ResourceTypeID: q.ResourceTypeID, Start: c,
			}, "") == nil {
				want++
			}
		}
		assert.Equal(t, want, len(res.Starts), mode)
	}
}
