// Package trips owns the trip lifecycle: submission validation, explicit
// status transitions and the staleness sweep. Booking-driven transitions live
// in the booking coordinator; both go through the same store primitive.
package trips

import (
	"context"
	"time"

	"github.com/example/kigali-rides/internal/errs"
	"github.com/example/kigali-rides/internal/models"
	"github.com/example/kigali-rides/internal/storage"
)

// IndexSync is the slice of the geo index the service needs to keep spatial
// queries in step with status changes.
type IndexSync interface {
	Upsert(t models.Trip)
	Remove(id string)
}

type Service struct {
	Store storage.TripStore
	Index IndexSync
	// Grace is how far past scheduled_time a trip stays usable. Applied both
	// at submission (reject trips already stale) and by the sweep.
	Grace time.Duration
}

const DefaultGrace = 5 * time.Minute

func NewService(store storage.TripStore, index IndexSync, grace time.Duration) *Service {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Service{Store: store, Index: index, Grace: grace}
}

// Submit validates and persists a new trip as pending.
func (s *Service) Submit(ctx context.Context, t *models.Trip) (*models.Trip, error) {
	if err := s.validate(t, time.Now()); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	t.ID = models.NewID()
	t.Status = models.TripPending
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Role == models.RolePassenger {
		t.SeatsAvailable = 0
	}
	if err := s.Store.CreateTrip(ctx, t); err != nil {
		return nil, err
	}
	if s.Index != nil {
		s.Index.Upsert(*t)
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Trip, error) {
	return s.Store.GetTrip(ctx, id)
}

// Transition moves a trip along the state machine, rejecting illegal edges.
// The conditional update guards against the status having moved between the
// read and the write.
func (s *Service) Transition(ctx context.Context, id string, to models.TripStatus) (*models.Trip, error) {
	t, err := s.Store.GetTrip(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransitionTrip(t.Status, to) {
		return nil, errs.New(errs.InvalidTransition, "trip %s cannot move %s -> %s", id, t.Status, to)
	}
	updated, ok, err := s.Store.TransitionTrip(ctx, id, to, t.Status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.New(errs.InvalidTransition, "trip %s changed concurrently; refresh and retry", id)
	}
	if s.Index != nil {
		s.Index.Upsert(*updated)
	}
	return updated, nil
}

// ExpireStale sweeps every pending/matched trip whose scheduled_time plus
// grace has passed. Safe to run repeatedly and concurrently with bookings:
// rows booked mid-sweep are skipped by the conditional update.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.Store.ExpireStale(ctx, now.Add(-s.Grace))
	if err != nil {
		return 0, err
	}
	if s.Index != nil {
		for _, id := range ids {
			s.Index.Remove(id)
		}
	}
	return len(ids), nil
}

// WarmIndex loads every open trip into the geo index at startup.
func (s *Service) WarmIndex(ctx context.Context) error {
	if s.Index == nil {
		return nil
	}
	open, err := s.Store.ListTrips(ctx, models.TripPending, models.TripMatched, models.TripBooked)
	if err != nil {
		return err
	}
	for _, t := range open {
		s.Index.Upsert(t)
	}
	return nil
}

func (s *Service) validate(t *models.Trip, now time.Time) error {
	if t.OwnerID == "" {
		return errs.New(errs.Validation, "owner_id is required")
	}
	if !models.ValidRole(t.Role) {
		return errs.New(errs.Validation, "role must be passenger or driver")
	}
	if t.Origin.Zero() {
		return errs.New(errs.Validation, "origin is required")
	}
	if t.Destination.Zero() {
		return errs.New(errs.Validation, "destination is required")
	}
	if !validCoord(t.Origin) || !validCoord(t.Destination) {
		return errs.New(errs.Validation, "coordinates out of range")
	}
	if t.ScheduledTime.IsZero() {
		return errs.New(errs.Validation, "scheduled_time is required")
	}
	if t.ScheduledTime.Before(now.Add(-s.Grace)) {
		return errs.New(errs.Validation, "scheduled_time is more than %s in the past", s.Grace)
	}
	if t.FareRwf != nil && *t.FareRwf < 0 {
		return errs.New(errs.Validation, "fare must be nonnegative")
	}
	switch t.Role {
	case models.RoleDriver:
		if !models.ValidVehicleType(t.VehicleType) {
			return errs.New(errs.Validation, "driver trips require a valid vehicle_type")
		}
		if t.SeatsAvailable < 1 {
			return errs.New(errs.Validation, "driver trips require seats_available >= 1")
		}
	case models.RolePassenger:
		if t.VehicleType != "" && !models.ValidVehicleType(t.VehicleType) {
			return errs.New(errs.Validation, "unknown vehicle_type filter")
		}
	}
	return nil
}

func validCoord(p models.Place) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
