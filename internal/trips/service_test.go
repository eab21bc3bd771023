package trips

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/kigali-rides/internal/errs"
	"github.com/example/kigali-rides/internal/geo"
	"github.com/example/kigali-rides/internal/models"
	"github.com/example/kigali-rides/internal/storage"
)

func newService() (*Service, *storage.Memory, *geo.Index) {
	store := storage.NewMemory()
	idx := geo.NewIndex()
	return NewService(store, idx, 5*time.Minute), store, idx
}

func validPassengerTrip() *models.Trip {
	return &models.Trip{
		OwnerID:       "alice",
		Role:          models.RolePassenger,
		Origin:        models.Place{Lat: -1.95, Lng: 30.06, Address: "CBD"},
		Destination:   models.Place{Lat: -1.97, Lng: 30.10, Address: "Airport"},
		ScheduledTime: time.Now().Add(time.Hour),
	}
}

func validDriverTrip() *models.Trip {
	t := validPassengerTrip()
	t.OwnerID = "bosco"
	t.Role = models.RoleDriver
	t.VehicleType = models.VehicleCar
	t.SeatsAvailable = 3
	return t
}

func TestSubmitAssignsIdentityAndStatus(t *testing.T) {
	svc, _, idx := newService()
	got, err := svc.Submit(context.Background(), validPassengerTrip())
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, models.TripPending, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, 1, idx.Len(), "new trip enters the geo index")
}

func TestSubmitValidation(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*models.Trip)
	}{
		{"missing owner", func(tr *models.Trip) { tr.OwnerID = "" }},
		{"bad role", func(tr *models.Trip) { tr.Role = "cyclist" }},
		{"missing origin", func(tr *models.Trip) { tr.Origin = models.Place{} }},
		{"missing destination", func(tr *models.Trip) { tr.Destination = models.Place{} }},
		{"lat out of range", func(tr *models.Trip) { tr.Origin.Lat = 123 }},
		{"no scheduled time", func(tr *models.Trip) { tr.ScheduledTime = time.Time{} }},
		{"too far in the past", func(tr *models.Trip) { tr.ScheduledTime = time.Now().Add(-time.Hour) }},
		{"negative fare", func(tr *models.Trip) {
			fare := int64(-100)
			tr.FareRwf = &fare
		}},
		{"unknown vehicle filter", func(tr *models.Trip) { tr.VehicleType = "helicopter" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := validPassengerTrip()
			tc.mutate(tr)
			_, err := svc.Submit(ctx, tr)
			assert.Equal(t, errs.Validation, errs.KindOf(err))
		})
	}
}

func TestSubmitDriverRequirements(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	tr := validDriverTrip()
	tr.SeatsAvailable = 0
	_, err := svc.Submit(ctx, tr)
	assert.Equal(t, errs.Validation, errs.KindOf(err))

	tr = validDriverTrip()
	tr.VehicleType = ""
	_, err = svc.Submit(ctx, tr)
	assert.Equal(t, errs.Validation, errs.KindOf(err))

	_, err = svc.Submit(ctx, validDriverTrip())
	assert.NoError(t, err)
}

func TestSubmitWithinGraceWindow(t *testing.T) {
	svc, _, _ := newService()
	tr := validPassengerTrip()
	tr.ScheduledTime = time.Now().Add(-2 * time.Minute) // recent past, inside grace
	_, err := svc.Submit(context.Background(), tr)
	assert.NoError(t, err)
}

func TestTransitionEnforcesStateMachine(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	tr, err := svc.Submit(ctx, validPassengerTrip())
	require.NoError(t, err)

	// legal: pending -> matched -> pending
	got, err := svc.Transition(ctx, tr.ID, models.TripMatched)
	require.NoError(t, err)
	assert.Equal(t, models.TripMatched, got.Status)
	_, err = svc.Transition(ctx, tr.ID, models.TripPending)
	require.NoError(t, err)

	// illegal: pending -> completed
	_, err = svc.Transition(ctx, tr.ID, models.TripCompleted)
	assert.Equal(t, errs.InvalidTransition, errs.KindOf(err))

	// terminal states accept nothing
	_, err = svc.Transition(ctx, tr.ID, models.TripCancelled)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, tr.ID, models.TripPending)
	assert.Equal(t, errs.InvalidTransition, errs.KindOf(err))
}

func TestTransitionUnknownTrip(t *testing.T) {
	svc, _, _ := newService()
	_, err := svc.Transition(context.Background(), "ghost", models.TripMatched)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestExpireStaleSweep(t *testing.T) {
	svc, store, idx := newService()
	ctx := context.Background()

	stale := validPassengerTrip()
	stale.ScheduledTime = time.Now().Add(-time.Minute) // within grace at submission
	staleTrip, err := svc.Submit(ctx, stale)
	require.NoError(t, err)
	fresh, err := svc.Submit(ctx, validPassengerTrip())
	require.NoError(t, err)

	// sweep as if 10 minutes passed
	n, err := svc.ExpireStale(ctx, time.Now().Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetTrip(ctx, staleTrip.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TripExpired, got.Status)
	got, err = store.GetTrip(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TripPending, got.Status)
	assert.Equal(t, 1, idx.Len(), "expired trip leaves the index")

	// idempotent
	n, err = svc.ExpireStale(ctx, time.Now().Add(10*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)
}
