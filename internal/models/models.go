package models

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes the two sides of a trip.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
)

// Counterpart returns the opposite role.
func (r Role) Counterpart() Role {
	if r == RolePassenger {
		return RoleDriver
	}
	return RolePassenger
}

func ValidRole(r Role) bool { return r == RolePassenger || r == RoleDriver }

type VehicleType string

const (
	VehicleMoto    VehicleType = "moto"
	VehicleCar     VehicleType = "car"
	VehicleTuktuk  VehicleType = "tuktuk"
	VehicleMinibus VehicleType = "minibus"
)

func ValidVehicleType(v VehicleType) bool {
	switch v {
	case VehicleMoto, VehicleCar, VehicleTuktuk, VehicleMinibus:
		return true
	}
	return false
}

// Place is a geographic point plus the free-text address the user typed.
type Place struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// Zero reports whether the place carries no usable location at all.
func (p Place) Zero() bool {
	return p.Lat == 0 && p.Lng == 0 && p.Address == ""
}

type TripStatus string

const (
	TripPending   TripStatus = "pending"
	TripMatched   TripStatus = "matched"
	TripBooked    TripStatus = "booked"
	TripCompleted TripStatus = "completed"
	TripCancelled TripStatus = "cancelled"
	TripExpired   TripStatus = "expired"
)

// tripEdges encodes the trip state machine. matched -> pending is the single
// backward edge: a cancelled booking returns both trips to the pool.
var tripEdges = map[TripStatus][]TripStatus{
	TripPending: {TripMatched, TripCancelled, TripExpired},
	TripMatched: {TripBooked, TripPending, TripCancelled, TripExpired},
	TripBooked:  {TripCompleted, TripCancelled},
}

func CanTransitionTrip(from, to TripStatus) bool {
	for _, s := range tripEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

func TripTerminal(s TripStatus) bool {
	return s == TripCompleted || s == TripCancelled || s == TripExpired
}

// Trip is a passenger's ride request or a driver's ride offer.
type Trip struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Role        Role   `json:"role"`
	Origin      Place  `json:"origin"`
	Destination Place  `json:"destination"`
	// VehicleType is required for driver trips; for passenger requests it is
	// an optional filter and empty means "any vehicle".
	VehicleType    VehicleType `json:"vehicle_type,omitempty"`
	ScheduledTime  time.Time   `json:"scheduled_time"`
	SeatsAvailable int         `json:"seats_available,omitempty"`
	FareRwf        *int64      `json:"fare_rwf,omitempty"`
	IsNegotiable   bool        `json:"is_negotiable"`
	Status         TripStatus  `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type BookingStatus string

const (
	BookingPending          BookingStatus = "pending"
	BookingWhatsAppLaunched BookingStatus = "whatsapp_launched"
	BookingConfirmed        BookingStatus = "confirmed"
	BookingCancelled        BookingStatus = "cancelled"
)

var bookingEdges = map[BookingStatus][]BookingStatus{
	BookingPending:          {BookingWhatsAppLaunched, BookingCancelled},
	BookingWhatsAppLaunched: {BookingConfirmed, BookingCancelled},
}

func CanTransitionBooking(from, to BookingStatus) bool {
	for _, s := range bookingEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Booking pairs exactly one passenger trip with one driver trip. Bookings are
// never deleted; cancelled rows stay around for audit.
type Booking struct {
	ID              string        `json:"id"`
	PassengerTripID string        `json:"passenger_trip_id"`
	DriverTripID    string        `json:"driver_trip_id"`
	Status          BookingStatus `json:"status"`
	CancelReason    string        `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralValidated ReferralStatus = "validated"
	ReferralRejected  ReferralStatus = "rejected"
)

// Referral records one claimed promo code at signup. Immutable once the
// validation status leaves pending; the points ledger consumes the
// validation_status transitions downstream.
type Referral struct {
	ID               string         `json:"id"`
	ReferrerID       string         `json:"referrer_id"`
	RefereeID        string         `json:"referee_id"`
	RefereeRole      Role           `json:"referee_role"`
	ValidationStatus ReferralStatus `json:"validation_status"`
	RewardWeek       string         `json:"reward_week"` // ISO year-week, e.g. 2026-W35
	CreatedAt        time.Time      `json:"created_at"`
}

func NewID() string { return uuid.NewString() }
