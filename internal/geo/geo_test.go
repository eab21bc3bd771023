package geo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/kigali-rides/internal/models"
)

func TestHaversineZero(t *testing.T) {
	assert.Equal(t, 0.0, HaversineKm(0, 0, 0, 0))
}

func TestHaversineKigaliBlocks(t *testing.T) {
	// city centre to Nyamirambo-ish, a short hop
	d := HaversineKm(-1.95, 30.06, -1.955, 30.063)
	assert.InDelta(t, 0.64, d, 0.05)
}

func tripAt(id string, lat, lng float64, created time.Time) models.Trip {
	return models.Trip{
		ID:        id,
		OwnerID:   "owner-" + id,
		Role:      models.RoleDriver,
		Origin:    models.Place{Lat: lat, Lng: lng, Address: "somewhere"},
		Status:    models.TripPending,
		CreatedAt: created,
	}
}

func TestQuerySortedByDistance(t *testing.T) {
	idx := NewIndex()
	now := time.Now()
	center := models.Place{Lat: -1.95, Lng: 30.06}

	idx.Upsert(tripAt("far", -1.98, 30.10, now))
	idx.Upsert(tripAt("near", -1.951, 30.061, now))
	idx.Upsert(tripAt("mid", -1.96, 30.07, now))

	got := idx.Query(center, 50, nil)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].DistanceKm, got[i].DistanceKm,
			"results must be nondecreasing in distance")
	}
	assert.Equal(t, "near", got[0].Trip.ID)
	assert.Equal(t, "far", got[2].Trip.ID)
}

func TestQueryTieBreakByCreatedAt(t *testing.T) {
	idx := NewIndex()
	base := time.Now()
	center := models.Place{Lat: -1.95, Lng: 30.06}

	// identical coordinates, different ages
	younger := tripAt("younger", -1.951, 30.061, base.Add(time.Minute))
	older := tripAt("older", -1.951, 30.061, base)
	idx.Upsert(younger)
	idx.Upsert(older)

	got := idx.Query(center, 5, nil)
	require.Len(t, got, 2)
	assert.Equal(t, "older", got[0].Trip.ID, "earlier created_at gets first visibility")
}

func TestQueryRadiusExcludes(t *testing.T) {
	idx := NewIndex()
	now := time.Now()
	center := models.Place{Lat: -1.95, Lng: 30.06}

	idx.Upsert(tripAt("inside", -1.955, 30.063, now))
	idx.Upsert(tripAt("outside", -2.6, 29.74, now)) // Huye, way beyond 5km

	got := idx.Query(center, 5, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "inside", got[0].Trip.ID)
}

func TestQueryPredicate(t *testing.T) {
	idx := NewIndex()
	now := time.Now()
	center := models.Place{Lat: -1.95, Lng: 30.06}

	a := tripAt("a", -1.951, 30.061, now)
	b := tripAt("b", -1.951, 30.061, now)
	b.Role = models.RolePassenger
	idx.Upsert(a)
	idx.Upsert(b)

	got := idx.Query(center, 5, func(tr *models.Trip) bool { return tr.Role == models.RolePassenger })
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Trip.ID)
}

func TestUpsertTerminalRemoves(t *testing.T) {
	idx := NewIndex()
	now := time.Now()
	tr := tripAt("t1", -1.951, 30.061, now)
	idx.Upsert(tr)
	require.Equal(t, 1, idx.Len())

	tr.Status = models.TripExpired
	idx.Upsert(tr)
	assert.Equal(t, 0, idx.Len(), "terminal trips leave the index")
}
