package geo

import (
	"math"
	"sort"
	"sync"

	"github.com/example/kigali-rides/internal/models"
)

// Candidate is a trip within the queried radius plus its great-circle
// distance from the query center.
type Candidate struct {
	Trip       models.Trip `json:"trip"`
	DistanceKm float64     `json:"distance_km"`
}

// Index answers "which trips lie within radius R of point P". It knows
// nothing about roles, vehicles or schedules beyond what the caller's
// predicate expresses; it is purely a spatial filter-then-sort. Reads take no
// locks beyond the RWMutex read side, so queries can run with arbitrary
// concurrency.
type Index struct {
	mu    sync.RWMutex
	trips map[string]models.Trip
}

func NewIndex() *Index {
	return &Index{trips: make(map[string]models.Trip)}
}

func (g *Index) Upsert(t models.Trip) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if models.TripTerminal(t.Status) {
		delete(g.trips, t.ID)
		return
	}
	g.trips[t.ID] = t
}

func (g *Index) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.trips, id)
}

func (g *Index) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.trips)
}

// Query returns every held trip accepted by pred whose origin lies within
// radiusKm of center, ordered by ascending distance. Ties are broken by
// earlier created_at so older trips get first visibility.
func (g *Index) Query(center models.Place, radiusKm float64, pred func(*models.Trip) bool) []Candidate {
	g.mu.RLock()
	out := make([]Candidate, 0, 16)
	for _, t := range g.trips {
		if pred != nil && !pred(&t) {
			continue
		}
		d := HaversineKm(center.Lat, center.Lng, t.Origin.Lat, t.Origin.Lng)
		if d > radiusKm {
			continue
		}
		out = append(out, Candidate{Trip: t, DistanceKm: d})
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		if !out[i].Trip.CreatedAt.Equal(out[j].Trip.CreatedAt) {
			return out[i].Trip.CreatedAt.Before(out[j].Trip.CreatedAt)
		}
		return out[i].Trip.ID < out[j].Trip.ID
	})
	return out
}

// HaversineKm is the great-circle distance on a spherical earth, mean radius
// 6371 km. Error is acceptable for urban-scale (<=50 km) queries.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
