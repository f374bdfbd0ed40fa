package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
)

const (
	EventBookingCreated   = "booking.created.v1"
	EventBookingUpdated   = "booking.updated.v1"
	EventBookingCancelled = "booking.cancelled.v1"

	AggregateBooking = "booking"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type BookingPayload struct {
	EventID          string     `json:"event_id"`
	OccurredAt       time.Time  `json:"occurred_at"`
	BookingID        string     `json:"booking_id"`
	BusinessID       string     `json:"business_id"`
	ServiceID        string     `json:"service_id"`
	CustomerID       string     `json:"customer_id"`
	StaffID          string     `json:"staff_id,omitempty"`
	ResourceTypeID   string     `json:"resource_type_id,omitempty"`
	ResourceQuantity int        `json:"resource_quantity,omitempty"`
	BookingTime      time.Time  `json:"booking_time"`
	EndTime          time.Time  `json:"end_time"`
	Status           string     `json:"status"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	CancelReason     string     `json:"cancel_reason,omitempty"`
}

func NewBookingEvent(eventType string, b model.Booking, now time.Time) (Event, error) {
	id := uuid.NewString()
	p := BookingPayload{
		EventID:      id,
		OccurredAt:   now.UTC(),
		BookingID:    b.ID,
		BusinessID:   b.BusinessID,
		ServiceID:    b.ServiceID,
		CustomerID:   b.CustomerID,
		StaffID:      b.StaffID,
		BookingTime:  b.BookingTime.UTC(),
		EndTime:      b.EndTime.UTC(),
		Status:       string(b.Status),
		CancelledAt:  b.CancelledAt,
		CancelReason: b.CancelReason,
	}
	if b.ResourceUsage != nil {
		p.ResourceTypeID = b.ResourceUsage.ResourceTypeID
		p.ResourceQuantity = b.ResourceUsage.Quantity
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventID:       id,
		AggregateType: AggregateBooking,
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
