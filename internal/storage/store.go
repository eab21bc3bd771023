// Package storage owns persistence for trips, bookings and referrals. Both
// implementations expose the same conditional-update primitive: transitions
// name the statuses they are allowed to move from, and the store reports
// whether the row was actually in one of them at update time. That single
// primitive is what makes concurrent booking resolve to exactly one winner.
package storage

import (
	"context"
	"time"

	"github.com/example/kigali-rides/internal/models"
)

type TripStore interface {
	CreateTrip(ctx context.Context, t *models.Trip) error
	// GetTrip fails with a NotFoundError kind when id is absent.
	GetTrip(ctx context.Context, id string) (*models.Trip, error)
	// TransitionTrip conditionally moves the trip to `to` if its current
	// status is one of `from`. ok=false means the row was not in any of the
	// named statuses (lost race or stale client); the trip is returned in its
	// current state either way when it exists.
	TransitionTrip(ctx context.Context, id string, to models.TripStatus, from ...models.TripStatus) (*models.Trip, bool, error)
	// ListTrips returns trips currently in any of the given statuses.
	ListTrips(ctx context.Context, statuses ...models.TripStatus) ([]models.Trip, error)
	// ExpireStale moves every pending/matched trip scheduled before cutoff to
	// expired and returns the affected ids. Idempotent; rows booked
	// concurrently are skipped because the update is conditional.
	ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error)
}

type BookingStore interface {
	// CreateBooking fails with an AlreadyBookedError kind when either trip
	// already has a non-cancelled booking (uniqueness constraint, not a prior
	// read).
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	// TransitionBooking is the booking-side conditional update. reason is
	// recorded only on cancellation.
	TransitionBooking(ctx context.Context, id string, to models.BookingStatus, reason string, from ...models.BookingStatus) (*models.Booking, bool, error)
}

type ReferralStore interface {
	// CreateReferral fails with a DuplicateReferralError kind when a referral
	// for the same (referrer, referee) pair exists.
	CreateReferral(ctx context.Context, r *models.Referral) error
}

// UserDirectory resolves promo codes to their owners. Backed by the user
// table owned by the out-of-scope auth system.
type UserDirectory interface {
	// LookupPromoCode fails with an InvalidCodeError kind when nobody owns code.
	LookupPromoCode(ctx context.Context, code string) (ownerID string, err error)
}
