package storage

import (
	"context"
	"sync"
	"time"

	"github.com/example/kigali-rides/internal/errs"
	"github.com/example/kigali-rides/internal/models"
)

// Memory is the single-node store used in tests and local runs. A single
// mutex makes every operation a transactional unit, mirroring what the
// Postgres store gets from conditional UPDATEs and unique indexes.
type Memory struct {
	mu            sync.Mutex
	trips         map[string]*models.Trip
	bookings      map[string]*models.Booking
	activeByTrip  map[string]string // trip id -> non-cancelled booking id
	referralPairs map[string]string // referrer|referee -> referral id
	referrals     map[string]*models.Referral
	promoCodes    map[string]string // code -> owner id
}

func NewMemory() *Memory {
	return &Memory{
		trips:         make(map[string]*models.Trip),
		bookings:      make(map[string]*models.Booking),
		activeByTrip:  make(map[string]string),
		referralPairs: make(map[string]string),
		referrals:     make(map[string]*models.Referral),
		promoCodes:    make(map[string]string),
	}
}

func (m *Memory) CreateTrip(ctx context.Context, t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.trips[t.ID] = &cp
	return nil
}

func (m *Memory) GetTrip(ctx context.Context, id string) (*models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "trip %s not found", id)
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) TransitionTrip(ctx context.Context, id string, to models.TripStatus, from ...models.TripStatus) (*models.Trip, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, false, errs.New(errs.NotFound, "trip %s not found", id)
	}
	if !statusIn(t.Status, from) {
		cp := *t
		return &cp, false, nil
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	return &cp, true, nil
}

func (m *Memory) ListTrips(ctx context.Context, statuses ...models.TripStatus) ([]models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Trip
	for _, t := range m.trips {
		if statusIn(t.Status, statuses) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *Memory) ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	now := time.Now().UTC()
	for _, t := range m.trips {
		if (t.Status == models.TripPending || t.Status == models.TripMatched) && t.ScheduledTime.Before(cutoff) {
			t.Status = models.TripExpired
			t.UpdatedAt = now
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (m *Memory) CreateBooking(ctx context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.activeByTrip[b.PassengerTripID]; ok {
		return errs.New(errs.AlreadyBooked, "passenger trip %s already held by booking %s", b.PassengerTripID, id)
	}
	if id, ok := m.activeByTrip[b.DriverTripID]; ok {
		return errs.New(errs.AlreadyBooked, "driver trip %s already held by booking %s", b.DriverTripID, id)
	}
	cp := *b
	m.bookings[b.ID] = &cp
	m.activeByTrip[b.PassengerTripID] = b.ID
	m.activeByTrip[b.DriverTripID] = b.ID
	return nil
}

func (m *Memory) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "booking %s not found", id)
	}
	cp := *b
	return &cp, nil
}

func (m *Memory) TransitionBooking(ctx context.Context, id string, to models.BookingStatus, reason string, from ...models.BookingStatus) (*models.Booking, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, false, errs.New(errs.NotFound, "booking %s not found", id)
	}
	if !bookingStatusIn(b.Status, from) {
		cp := *b
		return &cp, false, nil
	}
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	if to == models.BookingCancelled {
		b.CancelReason = reason
		delete(m.activeByTrip, b.PassengerTripID)
		delete(m.activeByTrip, b.DriverTripID)
	}
	cp := *b
	return &cp, true, nil
}

func (m *Memory) CreateReferral(ctx context.Context, r *models.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := r.ReferrerID + "|" + r.RefereeID
	if _, ok := m.referralPairs[key]; ok {
		return errs.New(errs.DuplicateReferral, "referral already claimed for this pair")
	}
	cp := *r
	m.referrals[r.ID] = &cp
	m.referralPairs[key] = r.ID
	return nil
}

func (m *Memory) LookupPromoCode(ctx context.Context, code string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.promoCodes[code]
	if !ok {
		return "", errs.New(errs.InvalidCode, "unknown promo code")
	}
	return owner, nil
}

// SetPromoCode seeds a code for tests and local runs.
func (m *Memory) SetPromoCode(code, ownerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promoCodes[code] = ownerID
}

func statusIn(s models.TripStatus, set []models.TripStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func bookingStatusIn(s models.BookingStatus, set []models.BookingStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
