// Package storage is the Postgres entity store.
package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/bookslot/libs/db"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/outbox"
)

// Store reads straight from the pool outside transactions, which is enough
// for availability queries, and runs writes through InTx.
type Store struct {
	queries
	pool   *db.Pool
	outbox *outbox.Repository
}

var (
	_ booking.Transactor = (*Store)(nil)
	_ booking.Tx         = (*txStore)(nil)
)

func New(pool *db.Pool) *Store {
	return &Store{
		queries: queries{q: pool},
		pool:    pool,
		outbox:  outbox.NewRepository(pool),
	}
}

// InTx runs fn in a SERIALIZABLE transaction. Serialization failures and
// deadlocks surface as errs.TransientStoreError so callers can retry.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	err := s.pool.SerializableTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{queries: queries{q: tx}, tx: tx, outbox: s.outbox})
	})
	return classify(err)
}

type txStore struct {
	queries
	tx     pgx.Tx
	outbox *outbox.Repository
}

// Lock takes transaction-scoped advisory locks on keys, in the given order.
func (t *txStore) Lock(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, k); err != nil {
			return classify(err)
		}
	}
	return nil
}

func (t *txStore) InsertBooking(ctx context.Context, b model.Booking) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bookings
			(id, business_id, service_id, customer_id, staff_id, booking_time, end_time, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, $6, $7, $8, $9, $10, $11)
	`, b.ID, b.BusinessID, b.ServiceID, b.CustomerID, b.StaffID, b.BookingTime, b.EndTime, string(b.Status), b.Notes, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return classify(err)
	}
	if b.ResourceUsage == nil {
		return nil
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO resource_usages (booking_id, resource_type_id, quantity)
		VALUES ($1, $2, $3)
	`, b.ID, b.ResourceUsage.ResourceTypeID, b.ResourceUsage.Quantity)
	return classify(err)
}

// UpdateBooking rewrites the mutable columns. Resource usage rows are never
// touched, so a cancelled booking keeps its usage for audit.
func (t *txStore) UpdateBooking(ctx context.Context, b model.Booking) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET staff_id = NULLIF($2, '')::uuid,
			booking_time = $3,
			end_time = $4,
			status = $5,
			notes = $6,
			cancelled_at = $7,
			cancel_reason = NULLIF($8, ''),
			updated_at = $9
		WHERE id = $1
	`, b.ID, b.StaffID, b.BookingTime, b.EndTime, string(b.Status), b.Notes, b.CancelledAt, b.CancelReason, b.UpdatedAt)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, "booking", b.ID)
	}
	return nil
}

func (t *txStore) InsertEvent(ctx context.Context, evt outbox.Event) error {
	return classify(t.outbox.Insert(ctx, t.tx, evt))
}

// ReadyCheck reports whether the pool can reach Postgres.
func (s *Store) ReadyCheck() func(context.Context) error {
	return db.ReadyCheck(s.pool)
}
