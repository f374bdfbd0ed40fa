package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBookingMode(t *testing.T) {
	cases := map[string]BookingMode{
		"time_only":          ModeTimeOnly,
		"TimeOnly":           ModeTimeOnly,
		"staff-only":         ModeStaffOnly,
		"ResourceOnly":       ModeResourceOnly,
		"staff_and_resource": ModeStaffAndResource,
		"StaffAndResource":   ModeStaffAndResource,
	}
	for raw, want := range cases {
		got, ok := ParseBookingMode(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := ParseBookingMode("room_only")
	assert.False(t, ok)
}

func TestModeRequirements(t *testing.T) {
	assert.False(t, ModeTimeOnly.NeedsStaff())
	assert.False(t, ModeTimeOnly.NeedsResource())
	assert.True(t, ModeStaffOnly.NeedsStaff())
	assert.True(t, ModeResourceOnly.NeedsResource())
	assert.True(t, ModeStaffAndResource.NeedsStaff())
	assert.True(t, ModeStaffAndResource.NeedsResource())
}

func TestEffectiveMode(t *testing.T) {
	biz := Business{DefaultBookingMode: ModeStaffOnly}
	assert.Equal(t, ModeStaffOnly, Service{}.EffectiveMode(biz))
	assert.Equal(t, ModeResourceOnly, Service{BookingMode: ModeResourceOnly}.EffectiveMode(biz))
	assert.Equal(t, ModeTimeOnly, Service{}.EffectiveMode(Business{}))
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusConfirmed.CanTransition(StatusCancelled))
	assert.True(t, StatusConfirmed.CanTransition(StatusCompleted))
	assert.True(t, StatusCancelled.CanTransition(StatusCancelled))
	assert.False(t, StatusCancelled.CanTransition(StatusConfirmed))
	assert.False(t, StatusCompleted.CanTransition(StatusCancelled))
}
