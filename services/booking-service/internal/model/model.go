package model

import (
	"slices"
	"strings"
	"time"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/timenorm"
)

// BookingMode selects which constraints gate a candidate slot.
type BookingMode string

const (
	ModeTimeOnly         BookingMode = "time_only"
	ModeStaffOnly        BookingMode = "staff_only"
	ModeResourceOnly     BookingMode = "resource_only"
	ModeStaffAndResource BookingMode = "staff_and_resource"
)

// ParseBookingMode accepts snake_case, kebab-case and CamelCase spellings.
func ParseBookingMode(raw string) (BookingMode, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	switch key {
	case "timeonly":
		return ModeTimeOnly, true
	case "staffonly":
		return ModeStaffOnly, true
	case "resourceonly":
		return ModeResourceOnly, true
	case "staffandresource":
		return ModeStaffAndResource, true
	}
	return "", false
}

func (m BookingMode) NeedsStaff() bool {
	return m == ModeStaffOnly || m == ModeStaffAndResource
}

func (m BookingMode) NeedsResource() bool {
	return m == ModeResourceOnly || m == ModeStaffAndResource
}

type Business struct {
	ID                 string
	Name               string
	Timezone           string
	DefaultBookingMode BookingMode
}

type Service struct {
	ID              string
	BusinessID      string
	Name            string
	DurationMinutes int
	// BookingMode overrides the business default when set.
	BookingMode BookingMode
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

func (s Service) EffectiveMode(b Business) BookingMode {
	if s.BookingMode != "" {
		return s.BookingMode
	}
	if b.DefaultBookingMode != "" {
		return b.DefaultBookingMode
	}
	return ModeTimeOnly
}

type Staff struct {
	ID         string
	BusinessID string
	Name       string
	IsActive   bool
	ServiceIDs []string
}

func (s Staff) Offers(serviceID string) bool {
	return slices.Contains(s.ServiceIDs, serviceID)
}

type ResourceType struct {
	ID            string
	BusinessID    string
	Name          string
	TotalCapacity int
}

type Customer struct {
	ID         string
	BusinessID string
	Name       string
	Email      string
	Phone      string
}

type OwnerKind string

const (
	OwnerBusiness OwnerKind = "business"
	OwnerStaff    OwnerKind = "staff"
)

// Owner identifies whose weekly schedule and exceptions are being resolved.
type Owner struct {
	Kind OwnerKind
	ID   string
}

type EntryKind string

const (
	EntrySchedule  EntryKind = "schedule"
	EntryException EntryKind = "exception"
)

// AvailabilityEntry is either a weekly Schedule row (DayOfWeek set, ISO 1..7)
// or a date-specific Exception row (Date set). Start/End are "HH:MM:SS" in the
// business time zone.
type AvailabilityEntry struct {
	Kind      EntryKind
	DayOfWeek int
	Date      timenorm.Date
	Start     string
	End       string
	Reason    string
}

type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

func ParseBookingStatus(raw string) (BookingStatus, bool) {
	switch s := BookingStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusConfirmed, StatusCancelled, StatusCompleted:
		return s, true
	}
	return "", false
}

// CanTransition reports whether a booking may move from s to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	if s == next {
		return true
	}
	return s == StatusConfirmed && (next == StatusCancelled || next == StatusCompleted)
}

type ResourceUsage struct {
	BookingID      string
	ResourceTypeID string
	Quantity       int
}

type Booking struct {
	ID            string
	BusinessID    string
	ServiceID     string
	CustomerID    string
	StaffID       string
	BookingTime   time.Time
	EndTime       time.Time
	Status        BookingStatus
	Notes         string
	ResourceUsage *ResourceUsage
	CancelledAt   *time.Time
	CancelReason  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BusyInterval is the [Start, End) span a non-cancelled booking occupies.
// Quantity is only meaningful for resource usage rows.
type BusyInterval struct {
	BookingID string
	Start     time.Time
	End       time.Time
	Quantity  int
}
