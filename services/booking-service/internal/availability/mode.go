package availability

import (
	"fmt"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
)

// Mode is one booking mode's set of availability clauses. The set of modes is
// closed: the only implementations live in this file and ModeOf maps every
// model.BookingMode onto one of them.
type Mode interface {
	Name() model.BookingMode
	needs() needs
	evaluate(p *plan, b booked, iv Interval, exclude string) error
}

type needs struct {
	businessHours    bool
	staff            bool
	resource         bool
	businessBookings bool
}

func ModeOf(m model.BookingMode) (Mode, error) {
	switch m {
	case model.ModeTimeOnly:
		return timeOnly{}, nil
	case model.ModeStaffOnly:
		return staffOnly{}, nil
	case model.ModeResourceOnly:
		return resourceOnly{}, nil
	case model.ModeStaffAndResource:
		return staffAndResource{}, nil
	}
	return nil, errs.Validation("booking_mode", fmt.Sprintf("unknown booking mode %q", m))
}

type timeOnly struct{}

func (timeOnly) Name() model.BookingMode { return model.ModeTimeOnly }

func (timeOnly) needs() needs { return needs{businessHours: true, businessBookings: true} }

func (timeOnly) evaluate(p *plan, b booked, iv Interval, exclude string) error {
	if err := businessHoursClause(p, iv); err != nil {
		return err
	}
	if overlapsAny(iv, b.business, exclude) {
		return errs.Conflict(errs.ClauseSlotTaken, "another booking overlaps this slot")
	}
	return nil
}

type staffOnly struct{}

func (staffOnly) Name() model.BookingMode { return model.ModeStaffOnly }

func (staffOnly) needs() needs { return needs{staff: true} }

func (staffOnly) evaluate(p *plan, b booked, iv Interval, exclude string) error {
	if !p.staff.IsActive {
		return errs.Conflict(errs.ClauseSchedule, "staff member is inactive")
	}
	if !p.staffCal.Covers(p.loc, iv.Start, iv.End) {
		return errs.Conflict(errs.ClauseSchedule, "outside the staff member's working hours")
	}
	if !p.staff.Offers(p.service.ID) {
		return errs.Conflict(errs.ClauseServiceNotOffered, "staff member does not offer this service")
	}
	if overlapsAny(iv, b.staff, exclude) {
		return errs.Conflict(errs.ClauseStaffBusy, "staff member already has a booking")
	}
	return nil
}

type resourceOnly struct{}

func (resourceOnly) Name() model.BookingMode { return model.ModeResourceOnly }

func (resourceOnly) needs() needs { return needs{businessHours: true, resource: true} }

func (resourceOnly) evaluate(p *plan, b booked, iv Interval, exclude string) error {
	if err := businessHoursClause(p, iv); err != nil {
		return err
	}
	used := overlappingQuantity(iv, b.usage, exclude)
	if used+p.quantity > p.resource.TotalCapacity {
		return errs.Conflict(errs.ClauseCapacity,
			fmt.Sprintf("%d of %d units in use, %d requested", used, p.resource.TotalCapacity, p.quantity))
	}
	return nil
}

type staffAndResource struct{}

func (staffAndResource) Name() model.BookingMode { return model.ModeStaffAndResource }

func (staffAndResource) needs() needs {
	return needs{businessHours: true, staff: true, resource: true}
}

func (staffAndResource) evaluate(p *plan, b booked, iv Interval, exclude string) error {
	if err := (staffOnly{}).evaluate(p, b, iv, exclude); err != nil {
		return err
	}
	return (resourceOnly{}).evaluate(p, b, iv, exclude)
}

func businessHoursClause(p *plan, iv Interval) error {
	if !p.businessCal.Covers(p.loc, iv.Start, iv.End) {
		return errs.Conflict(errs.ClauseBusinessClosed, "outside business hours")
	}
	return nil
}
