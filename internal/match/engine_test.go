package match

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/kigali-rides/internal/geo"
	"github.com/example/kigali-rides/internal/models"
)

func passengerTrip(id, owner string, lat, lng float64, sched time.Time) *models.Trip {
	return &models.Trip{
		ID:            id,
		OwnerID:       owner,
		Role:          models.RolePassenger,
		Origin:        models.Place{Lat: lat, Lng: lng, Address: "origin"},
		Destination:   models.Place{Lat: lat + 0.02, Lng: lng + 0.02, Address: "dest"},
		ScheduledTime: sched,
		Status:        models.TripPending,
		CreatedAt:     time.Now(),
	}
}

func driverTrip(id, owner string, lat, lng float64, vt models.VehicleType, sched time.Time) *models.Trip {
	t := passengerTrip(id, owner, lat, lng, sched)
	t.Role = models.RoleDriver
	t.VehicleType = vt
	t.SeatsAvailable = 2
	return t
}

func TestFindMatchesNearbyDriver(t *testing.T) {
	// passenger at the city centre, driver a few blocks away leaving in 10min
	idx := geo.NewIndex()
	now := time.Now()
	p := passengerTrip("p1", "alice", -1.95, 30.06, now)
	d := driverTrip("d1", "bosco", -1.955, 30.063, models.VehicleCar, now.Add(10*time.Minute))
	idx.Upsert(*d)

	e := NewEngine(idx, nil)
	got := e.FindMatches(context.Background(), p, 5, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].Trip.ID)
	assert.InDelta(t, 0.64, got[0].DistanceKm, 0.1)
}

func TestFindMatchesEmptyIsNormal(t *testing.T) {
	e := NewEngine(geo.NewIndex(), nil)
	got := e.FindMatches(context.Background(), passengerTrip("p1", "alice", -1.95, 30.06, time.Now()), 5, 10)
	assert.Empty(t, got)
}

func TestFindMatchesFilters(t *testing.T) {
	idx := geo.NewIndex()
	now := time.Now()
	p := passengerTrip("p1", "alice", -1.95, 30.06, now)

	keep := driverTrip("keep", "d-keep", -1.951, 30.061, models.VehicleMoto, now.Add(30*time.Minute))
	samRole := passengerTrip("same-role", "someone", -1.951, 30.061, now)
	sameOwner := driverTrip("own", "alice", -1.951, 30.061, models.VehicleMoto, now)
	booked := driverTrip("booked", "d-b", -1.951, 30.061, models.VehicleMoto, now)
	booked.Status = models.TripBooked
	lateShift := driverTrip("late", "d-l", -1.951, 30.061, models.VehicleMoto, now.Add(3*time.Hour))
	for _, tr := range []*models.Trip{keep, samRole, sameOwner, booked, lateShift} {
		idx.Upsert(*tr)
	}

	e := NewEngine(idx, nil)
	got := e.FindMatches(context.Background(), p, 5, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].Trip.ID)
}

func TestFindMatchesVehicleFilter(t *testing.T) {
	idx := geo.NewIndex()
	now := time.Now()
	idx.Upsert(*driverTrip("moto", "d1", -1.951, 30.061, models.VehicleMoto, now))
	idx.Upsert(*driverTrip("car", "d2", -1.951, 30.061, models.VehicleCar, now))

	e := NewEngine(idx, nil)

	// no filter: any vehicle works
	p := passengerTrip("p1", "alice", -1.95, 30.06, now)
	assert.Len(t, e.FindMatches(context.Background(), p, 5, 10), 2)

	// exact filter
	p.VehicleType = models.VehicleCar
	got := e.FindMatches(context.Background(), p, 5, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "car", got[0].Trip.ID)

	// driver searching sees only compatible passengers
	d := driverTrip("d3", "claude", -1.95, 30.06, models.VehicleMoto, now)
	pickyPassenger := passengerTrip("picky", "eva", -1.951, 30.061, now)
	pickyPassenger.VehicleType = models.VehicleCar
	idx.Upsert(*pickyPassenger)
	openPassenger := passengerTrip("open", "frank", -1.951, 30.061, now)
	idx.Upsert(*openPassenger)
	got = e.FindMatches(context.Background(), d, 5, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "open", got[0].Trip.ID)
}

func TestFindMatchesLimit(t *testing.T) {
	idx := geo.NewIndex()
	now := time.Now()
	for i := 0; i < 15; i++ {
		id := fmt.Sprintf("d%d", i)
		idx.Upsert(*driverTrip(id, "owner-"+id, -1.95+float64(i)*0.001, 30.06, models.VehicleMoto, now))
	}
	e := NewEngine(idx, nil)
	p := passengerTrip("p1", "alice", -1.95, 30.06, now)

	got := e.FindMatches(context.Background(), p, 5, 3)
	assert.Len(t, got, 3)
	// defaults kick in for zero values
	got = e.FindMatches(context.Background(), p, 0, 0)
	assert.Len(t, got, DefaultLimit)
}

type fakePresence struct{ alive map[string]bool }

func (f *fakePresence) FilterAlive(ctx context.Context, ids []string, now time.Time) map[string]bool {
	return f.alive
}

func TestFindMatchesPresenceFilter(t *testing.T) {
	idx := geo.NewIndex()
	now := time.Now()
	idx.Upsert(*driverTrip("live", "d-live", -1.951, 30.061, models.VehicleMoto, now))
	idx.Upsert(*driverTrip("gone", "d-gone", -1.951, 30.061, models.VehicleMoto, now))

	e := NewEngine(idx, &fakePresence{alive: map[string]bool{"d-live": true}})
	got := e.FindMatches(context.Background(), passengerTrip("p1", "alice", -1.95, 30.06, now), 5, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "live", got[0].Trip.ID)
}
