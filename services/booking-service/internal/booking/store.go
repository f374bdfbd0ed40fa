package booking

import (
	"context"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/outbox"
)

// Tx is the entity store inside one transaction. Every read the availability
// check makes and every write that follows it go through the same Tx.
type Tx interface {
	availability.Store

	GetCustomer(ctx context.Context, id string) (model.Customer, error)
	// GetBooking returns the booking with its resource usage, if any.
	GetBooking(ctx context.Context, id string) (model.Booking, error)

	// Lock blocks other transactions locking any of keys until this one ends.
	Lock(ctx context.Context, keys ...string) error

	InsertBooking(ctx context.Context, b model.Booking) error
	UpdateBooking(ctx context.Context, b model.Booking) error
	InsertEvent(ctx context.Context, evt outbox.Event) error
}

// Transactor runs fn in one atomic transaction, committing when fn returns nil.
// Implementations report retryable failures as errs.TransientStoreError.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
