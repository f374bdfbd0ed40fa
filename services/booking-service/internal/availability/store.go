package availability

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/schedule"
)

// Store is the read side of the entity store the engine depends on. Get
// methods return errs.NotFoundError for absent ids. List methods only return
// rows of bookings that are not cancelled.
type Store interface {
	schedule.Source

	GetBusiness(ctx context.Context, id string) (model.Business, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	GetStaff(ctx context.Context, id string) (model.Staff, error)
	GetResourceType(ctx context.Context, id string) (model.ResourceType, error)

	// ListBookedIntervals returns the bookings of a business or a staff member
	// overlapping [from, to).
	ListBookedIntervals(ctx context.Context, scope model.Owner, from, to time.Time) ([]model.BusyInterval, error)
	// ListResourceUsage returns the usage rows of a resource type whose booking overlaps [from, to).
	ListResourceUsage(ctx context.Context, resourceTypeID string, from, to time.Time) ([]model.BusyInterval, error)
}
