// Package booking drives the booking lifecycle: pending ->
// whatsapp_launched -> confirmed, with cancellation from the two
// non-terminal states. All precondition failures are reported synchronously;
// retry policy belongs to the caller.
package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/kigali-rides/internal/errs"
	"github.com/example/kigali-rides/internal/models"
	"github.com/example/kigali-rides/internal/notify"
	"github.com/example/kigali-rides/internal/observability"
	"github.com/example/kigali-rides/internal/storage"
)

// IndexSync mirrors trip status changes into the geo index so search results
// stop showing trips the coordinator just booked.
type IndexSync interface {
	Upsert(t models.Trip)
	Remove(id string)
}

type Coordinator struct {
	Trips    storage.TripStore
	Bookings storage.BookingStore
	Gateway  notify.Gateway
	Index    IndexSync // optional
	Logger   *slog.Logger

	HandoffTimeout time.Duration // default 5s
}

func NewCoordinator(trips storage.TripStore, bookings storage.BookingStore, gw notify.Gateway, index IndexSync, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		Trips:          trips,
		Bookings:       bookings,
		Gateway:        gw,
		Index:          index,
		Logger:         logger,
		HandoffTimeout: 5 * time.Second,
	}
}

// bookable is the status set a trip may be claimed from. The single
// conditional update from this set is what resolves two concurrent selections
// of the same trip to exactly one winner.
var bookable = []models.TripStatus{models.TripPending, models.TripMatched}

// CreateBooking claims both trips and creates the pending booking. On any
// conflict the trips already claimed here are released and the caller gets
// AlreadyBookedError; re-running the search is the expected recovery.
func (c *Coordinator) CreateBooking(ctx context.Context, passengerTripID, driverTripID string) (*models.Booking, error) {
	pt, err := c.Trips.GetTrip(ctx, passengerTripID)
	if err != nil {
		return nil, err
	}
	if pt.Role != models.RolePassenger {
		return nil, errs.New(errs.Validation, "trip %s is not a passenger trip", passengerTripID)
	}
	dt, err := c.Trips.GetTrip(ctx, driverTripID)
	if err != nil {
		return nil, err
	}
	if dt.Role != models.RoleDriver {
		return nil, errs.New(errs.Validation, "trip %s is not a driver trip", driverTripID)
	}

	pt, ok, err := c.Trips.TransitionTrip(ctx, passengerTripID, models.TripBooked, bookable...)
	if err != nil {
		return nil, err
	}
	if !ok {
		observability.BookingConflictsTotal.Inc()
		return nil, errs.New(errs.AlreadyBooked, "passenger trip %s is no longer available", passengerTripID)
	}
	dt, ok, err = c.Trips.TransitionTrip(ctx, driverTripID, models.TripBooked, bookable...)
	if err != nil {
		c.release(ctx, passengerTripID)
		return nil, err
	}
	if !ok {
		c.release(ctx, passengerTripID)
		observability.BookingConflictsTotal.Inc()
		return nil, errs.New(errs.AlreadyBooked, "driver trip %s is no longer available", driverTripID)
	}

	now := time.Now().UTC()
	b := &models.Booking{
		ID:              models.NewID(),
		PassengerTripID: passengerTripID,
		DriverTripID:    driverTripID,
		Status:          models.BookingPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := c.Bookings.CreateBooking(ctx, b); err != nil {
		// The unique active-booking constraint fired (or the store is down);
		// either way both claims must be released.
		c.release(ctx, passengerTripID)
		c.release(ctx, driverTripID)
		if errs.Is(err, errs.AlreadyBooked) {
			observability.BookingConflictsTotal.Inc()
		}
		return nil, err
	}

	c.syncIndex(pt, dt)
	observability.BookingsCreatedTotal.Inc()
	c.Logger.Info("booking created", "booking_id", b.ID, "passenger_trip", passengerTripID, "driver_trip", driverTripID)
	return b, nil
}

// LaunchWhatsApp moves the booking to whatsapp_launched and hands contact
// details to the gateway. The status CAS is the exactly-once gate: repeat
// calls are no-ops returning the current state, so client retries are safe.
func (c *Coordinator) LaunchWhatsApp(ctx context.Context, bookingID string) (*models.Booking, error) {
	b, err := c.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch b.Status {
	case models.BookingWhatsAppLaunched:
		return b, nil
	case models.BookingConfirmed, models.BookingCancelled:
		return nil, errs.New(errs.InvalidTransition, "booking %s is %s", bookingID, b.Status)
	}

	b, ok, err := c.Bookings.TransitionBooking(ctx, bookingID, models.BookingWhatsAppLaunched, "", models.BookingPending)
	if err != nil {
		return nil, err
	}
	if !ok {
		if b.Status == models.BookingWhatsAppLaunched {
			return b, nil // concurrent launch won; same outcome
		}
		return nil, errs.New(errs.InvalidTransition, "booking %s is %s", bookingID, b.Status)
	}

	pt, perr := c.Trips.GetTrip(ctx, b.PassengerTripID)
	dt, derr := c.Trips.GetTrip(ctx, b.DriverTripID)
	if perr != nil || derr != nil {
		observability.HandoffFailuresTotal.Inc()
		return b, errs.New(errs.Dependency, "booking %s launched but trip lookup failed", bookingID)
	}

	hctx, cancel := context.WithTimeout(ctx, c.HandoffTimeout)
	defer cancel()
	res, err := c.Gateway.Handoff(hctx, b, pt, dt)
	if err != nil {
		// The transition stands; handoff failure is reported, not rolled back.
		observability.HandoffFailuresTotal.Inc()
		c.Logger.Error("whatsapp handoff failed", "booking_id", bookingID, "error", err)
		return b, errs.Wrap(errs.Dependency, err, "notification gateway unavailable")
	}
	observability.HandoffsTotal.Inc()
	c.Logger.Info("whatsapp handoff", "booking_id", bookingID, "external_ref", res.ExternalRef)
	return b, nil
}

// Confirm records the external confirmation that the parties actually
// connected. Terminal.
func (c *Coordinator) Confirm(ctx context.Context, bookingID string) (*models.Booking, error) {
	b, ok, err := c.Bookings.TransitionBooking(ctx, bookingID, models.BookingConfirmed, "", models.BookingWhatsAppLaunched)
	if err != nil {
		return nil, err
	}
	if !ok {
		if b.Status == models.BookingConfirmed {
			return b, nil
		}
		return nil, errs.New(errs.InvalidTransition, "booking %s is %s, cannot confirm", bookingID, b.Status)
	}
	return b, nil
}

// Cancel cancels the booking and returns both trips to the matching pool.
// Rejected when either trip already completed; the booking is left untouched
// in that case.
func (c *Coordinator) Cancel(ctx context.Context, bookingID, reason string) (*models.Booking, error) {
	b, err := c.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == models.BookingConfirmed || b.Status == models.BookingCancelled {
		return nil, errs.New(errs.InvalidTransition, "booking %s is %s, cannot cancel", bookingID, b.Status)
	}

	pt, err := c.Trips.GetTrip(ctx, b.PassengerTripID)
	if err != nil {
		return nil, err
	}
	dt, err := c.Trips.GetTrip(ctx, b.DriverTripID)
	if err != nil {
		return nil, err
	}
	if pt.Status == models.TripCompleted || dt.Status == models.TripCompleted {
		return nil, errs.New(errs.InvalidTransition, "booking %s references a completed trip", bookingID)
	}

	b, ok, err := c.Bookings.TransitionBooking(ctx, bookingID, models.BookingCancelled, reason,
		models.BookingPending, models.BookingWhatsAppLaunched)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.New(errs.InvalidTransition, "booking %s is %s, cannot cancel", bookingID, b.Status)
	}

	// Both trips re-enter the pool. A trip that moved on (e.g. cancelled by
	// its owner meanwhile) is left alone by the conditional update.
	if t, ok, err := c.Trips.TransitionTrip(ctx, b.PassengerTripID, models.TripPending, models.TripBooked); err == nil && ok {
		c.syncIndex(t)
	}
	if t, ok, err := c.Trips.TransitionTrip(ctx, b.DriverTripID, models.TripPending, models.TripBooked); err == nil && ok {
		c.syncIndex(t)
	}
	observability.BookingsCancelledTotal.Inc()
	c.Logger.Info("booking cancelled", "booking_id", bookingID, "reason", reason)
	return b, nil
}

// release undoes a successful claim after the other half of the pair failed.
func (c *Coordinator) release(ctx context.Context, tripID string) {
	t, ok, err := c.Trips.TransitionTrip(ctx, tripID, models.TripPending, models.TripBooked)
	if err != nil || !ok {
		c.Logger.Error("failed to release trip claim", "trip_id", tripID, "error", err)
		return
	}
	c.syncIndex(t)
}

func (c *Coordinator) syncIndex(ts ...*models.Trip) {
	if c.Index == nil {
		return
	}
	for _, t := range ts {
		if t != nil {
			c.Index.Upsert(*t)
		}
	}
}
