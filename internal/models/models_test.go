package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTripTransitions(t *testing.T) {
	cases := []struct {
		from, to TripStatus
		ok       bool
	}{
		{TripPending, TripMatched, true},
		{TripPending, TripCancelled, true},
		{TripPending, TripExpired, true},
		{TripMatched, TripBooked, true},
		{TripMatched, TripPending, true},
		{TripBooked, TripCompleted, true},
		{TripBooked, TripCancelled, true},
		// booking claims and cancel re-pools go through the store's conditional
		// update, not the public transition surface
		{TripPending, TripBooked, false},
		{TripBooked, TripPending, false},
		{TripPending, TripCompleted, false},
		{TripCompleted, TripPending, false},
		{TripCancelled, TripMatched, false},
		{TripExpired, TripPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransitionTrip(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTripTerminal(t *testing.T) {
	assert.True(t, TripTerminal(TripCompleted))
	assert.True(t, TripTerminal(TripCancelled))
	assert.True(t, TripTerminal(TripExpired))
	assert.False(t, TripTerminal(TripPending))
	assert.False(t, TripTerminal(TripBooked))
}

func TestBookingTransitions(t *testing.T) {
	assert.True(t, CanTransitionBooking(BookingPending, BookingWhatsAppLaunched))
	assert.True(t, CanTransitionBooking(BookingWhatsAppLaunched, BookingConfirmed))
	assert.True(t, CanTransitionBooking(BookingPending, BookingCancelled))
	assert.True(t, CanTransitionBooking(BookingWhatsAppLaunched, BookingCancelled))
	assert.False(t, CanTransitionBooking(BookingPending, BookingConfirmed))
	assert.False(t, CanTransitionBooking(BookingConfirmed, BookingCancelled))
	assert.False(t, CanTransitionBooking(BookingCancelled, BookingPending))
}

func TestRoleCounterpart(t *testing.T) {
	assert.Equal(t, RoleDriver, RolePassenger.Counterpart())
	assert.Equal(t, RolePassenger, RoleDriver.Counterpart())
}

func TestValidVehicleType(t *testing.T) {
	for _, vt := range []VehicleType{VehicleMoto, VehicleCar, VehicleTuktuk, VehicleMinibus} {
		assert.True(t, ValidVehicleType(vt))
	}
	assert.False(t, ValidVehicleType("bicycle"))
}
