// Package memstore is an in-memory entity store. Transactions are serialized
// by a single lock and rolled back by restoring a snapshot of the bookings.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/outbox"
)

type Store struct {
	mu       sync.Mutex
	d        *data
	txErrors []error
}

func New() *Store {
	return &Store{d: &data{
		businesses:   make(map[string]model.Business),
		services:     make(map[string]model.Service),
		staff:        make(map[string]model.Staff),
		resources:    make(map[string]model.ResourceType),
		customers:    make(map[string]model.Customer),
		availability: make(map[model.Owner][]model.AvailabilityEntry),
		bookings:     make(map[string]model.Booking),
	}}
}

var (
	_ booking.Transactor = (*Store)(nil)
	_ booking.Tx         = txn{}
)

func (s *Store) PutBusiness(b model.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.businesses[b.ID] = b
}

func (s *Store) PutService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.services[svc.ID] = svc
}

func (s *Store) PutStaff(st model.Staff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.ServiceIDs = append([]string(nil), st.ServiceIDs...)
	s.d.staff[st.ID] = st
}

func (s *Store) PutResourceType(rt model.ResourceType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.resources[rt.ID] = rt
}

func (s *Store) PutCustomer(c model.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.customers[c.ID] = c
}

func (s *Store) AddAvailability(owner model.Owner, entries ...model.AvailabilityEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.availability[owner] = append(s.d.availability[owner], entries...)
}

// PutBooking stores b as is, bypassing every availability check.
func (s *Store) PutBooking(b model.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.bookings[b.ID] = cloneBooking(b)
}

// Bookings returns every stored booking ordered by start time.
func (s *Store) Bookings() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0, len(s.d.bookings))
	for _, b := range s.d.bookings {
		out = append(out, cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BookingTime.Equal(out[j].BookingTime) {
			return out[i].BookingTime.Before(out[j].BookingTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Event(nil), s.d.events...)
}

// FailTx makes the next len(errors) transactions fail with the given errors
// before running their callback.
func (s *Store) FailTx(errors ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txErrors = append(s.txErrors, errors...)
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.txErrors) > 0 {
		err := s.txErrors[0]
		s.txErrors = s.txErrors[1:]
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	snap := s.d.snapshot()
	if err := fn(ctx, txn{s.d}); err != nil {
		s.d.restore(snap)
		return err
	}
	return nil
}

func (s *Store) GetBusiness(ctx context.Context, id string) (model.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.GetBusiness(ctx, id)
}

func (s *Store) GetService(ctx context.Context, id string) (model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.GetService(ctx, id)
}

func (s *Store) GetStaff(ctx context.Context, id string) (model.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.GetStaff(ctx, id)
}

func (s *Store) GetResourceType(ctx context.Context, id string) (model.ResourceType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.GetResourceType(ctx, id)
}

func (s *Store) ListAvailability(ctx context.Context, owner model.Owner) ([]model.AvailabilityEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.ListAvailability(ctx, owner)
}

func (s *Store) ListBookedIntervals(ctx context.Context, scope model.Owner, from, to time.Time) ([]model.BusyInterval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.ListBookedIntervals(ctx, scope, from, to)
}

func (s *Store) ListResourceUsage(ctx context.Context, resourceTypeID string, from, to time.Time) ([]model.BusyInterval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.ListResourceUsage(ctx, resourceTypeID, from, to)
}

// data holds the tables. Its methods assume the Store lock is held.
type data struct {
	businesses   map[string]model.Business
	services     map[string]model.Service
	staff        map[string]model.Staff
	resources    map[string]model.ResourceType
	customers    map[string]model.Customer
	availability map[model.Owner][]model.AvailabilityEntry
	bookings     map[string]model.Booking
	events       []outbox.Event
}

type snapshot struct {
	bookings map[string]model.Booking
	events   int
}

func (d *data) snapshot() snapshot {
	bookings := make(map[string]model.Booking, len(d.bookings))
	for id, b := range d.bookings {
		bookings[id] = b
	}
	return snapshot{bookings: bookings, events: len(d.events)}
}

func (d *data) restore(s snapshot) {
	d.bookings = s.bookings
	d.events = d.events[:s.events]
}

func (d *data) GetBusiness(_ context.Context, id string) (model.Business, error) {
	b, ok := d.businesses[id]
	if !ok {
		return model.Business{}, errs.NotFound("business", id)
	}
	return b, nil
}

func (d *data) GetService(_ context.Context, id string) (model.Service, error) {
	svc, ok := d.services[id]
	if !ok {
		return model.Service{}, errs.NotFound("service", id)
	}
	return svc, nil
}

func (d *data) GetStaff(_ context.Context, id string) (model.Staff, error) {
	st, ok := d.staff[id]
	if !ok {
		return model.Staff{}, errs.NotFound("staff", id)
	}
	st.ServiceIDs = append([]string(nil), st.ServiceIDs...)
	return st, nil
}

func (d *data) GetResourceType(_ context.Context, id string) (model.ResourceType, error) {
	rt, ok := d.resources[id]
	if !ok {
		return model.ResourceType{}, errs.NotFound("resource_type", id)
	}
	return rt, nil
}

func (d *data) GetCustomer(_ context.Context, id string) (model.Customer, error) {
	c, ok := d.customers[id]
	if !ok {
		return model.Customer{}, errs.NotFound("customer", id)
	}
	return c, nil
}

func (d *data) GetBooking(_ context.Context, id string) (model.Booking, error) {
	b, ok := d.bookings[id]
	if !ok {
		return model.Booking{}, errs.NotFound("booking", id)
	}
	return cloneBooking(b), nil
}

func (d *data) ListAvailability(_ context.Context, owner model.Owner) ([]model.AvailabilityEntry, error) {
	return append([]model.AvailabilityEntry(nil), d.availability[owner]...), nil
}

func (d *data) ListBookedIntervals(_ context.Context, scope model.Owner, from, to time.Time) ([]model.BusyInterval, error) {
	var out []model.BusyInterval
	for _, b := range d.bookings {
		if b.Status == model.StatusCancelled || !overlaps(b, from, to) {
			continue
		}
		switch scope.Kind {
		case model.OwnerBusiness:
			if b.BusinessID != scope.ID {
				continue
			}
		case model.OwnerStaff:
			if b.StaffID == "" || b.StaffID != scope.ID {
				continue
			}
		default:
			continue
		}
		out = append(out, model.BusyInterval{BookingID: b.ID, Start: b.BookingTime, End: b.EndTime})
	}
	sortIntervals(out)
	return out, nil
}

func (d *data) ListResourceUsage(_ context.Context, resourceTypeID string, from, to time.Time) ([]model.BusyInterval, error) {
	var out []model.BusyInterval
	for _, b := range d.bookings {
		if b.Status == model.StatusCancelled || b.ResourceUsage == nil || b.ResourceUsage.ResourceTypeID != resourceTypeID {
			continue
		}
		if !overlaps(b, from, to) {
			continue
		}
		out = append(out, model.BusyInterval{BookingID: b.ID, Start: b.BookingTime, End: b.EndTime, Quantity: b.ResourceUsage.Quantity})
	}
	sortIntervals(out)
	return out, nil
}

type txn struct {
	*data
}

func (txn) Lock(context.Context, ...string) error { return nil }

func (t txn) InsertBooking(_ context.Context, b model.Booking) error {
	if _, exists := t.bookings[b.ID]; exists {
		return &errs.StoreError{Err: errDuplicateBooking(b.ID)}
	}
	t.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (t txn) UpdateBooking(_ context.Context, b model.Booking) error {
	if _, exists := t.bookings[b.ID]; !exists {
		return errs.NotFound("booking", b.ID)
	}
	t.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (t txn) InsertEvent(_ context.Context, evt outbox.Event) error {
	t.events = append(t.events, evt)
	return nil
}

type errDuplicateBooking string

func (e errDuplicateBooking) Error() string { return "duplicate booking id " + string(e) }

func overlaps(b model.Booking, from, to time.Time) bool {
	return b.BookingTime.Before(to) && from.Before(b.EndTime)
}

func sortIntervals(in []model.BusyInterval) {
	sort.Slice(in, func(i, j int) bool {
		if !in[i].Start.Equal(in[j].Start) {
			return in[i].Start.Before(in[j].Start)
		}
		return in[i].BookingID < in[j].BookingID
	})
}

func cloneBooking(b model.Booking) model.Booking {
	if b.ResourceUsage != nil {
		u := *b.ResourceUsage
		b.ResourceUsage = &u
	}
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		b.CancelledAt = &at
	}
	return b
}
