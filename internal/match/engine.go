// Package match finds counterpart trips for an open trip. Searching is
// read-only: browsing candidates never mutates them, so any number of
// searchers can run concurrently. Status only moves when a user explicitly
// selects a candidate (booking coordinator's job).
package match

import (
	"context"
	"time"

	"github.com/example/kigali-rides/internal/geo"
	"github.com/example/kigali-rides/internal/models"
)

type GeoIndex interface {
	Query(center models.Place, radiusKm float64, pred func(*models.Trip) bool) []geo.Candidate
}

// PresenceChecker reports which driver ids have pinged recently. Optional;
// nil means no liveness filtering (tests, single-node dev).
type PresenceChecker interface {
	FilterAlive(ctx context.Context, ids []string, now time.Time) map[string]bool
}

type Engine struct {
	Index    GeoIndex
	Presence PresenceChecker

	DefaultRadiusKm float64       // 5 km
	DefaultLimit    int           // 10
	Window          time.Duration // symmetric scheduled_time window, 120m
}

const (
	DefaultRadiusKm = 5.0
	DefaultLimit    = 10
	DefaultWindow   = 2 * time.Hour
)

func NewEngine(index GeoIndex, presence PresenceChecker) *Engine {
	return &Engine{
		Index:           index,
		Presence:        presence,
		DefaultRadiusKm: DefaultRadiusKm,
		DefaultLimit:    DefaultLimit,
		Window:          DefaultWindow,
	}
}

// FindMatches returns up to limit counterpart candidates for t, nearest
// first. Zero radiusKm/limit fall back to the engine defaults. An empty slice
// is the normal "nothing out there" outcome, not an error.
func (e *Engine) FindMatches(ctx context.Context, t *models.Trip, radiusKm float64, limit int) []geo.Candidate {
	if radiusKm <= 0 {
		radiusKm = e.DefaultRadiusKm
	}
	if limit <= 0 {
		limit = e.DefaultLimit
	}
	window := e.Window
	if window <= 0 {
		window = DefaultWindow
	}

	want := t.Role.Counterpart()
	cands := e.Index.Query(t.Origin, radiusKm, func(c *models.Trip) bool {
		if c.ID == t.ID || c.OwnerID == t.OwnerID {
			return false
		}
		if c.Role != want || c.Status != models.TripPending {
			return false
		}
		if !vehicleCompatible(t, c) {
			return false
		}
		delta := c.ScheduledTime.Sub(t.ScheduledTime)
		if delta < 0 {
			delta = -delta
		}
		return delta <= window
	})

	cands = e.filterPresence(ctx, cands)
	if len(cands) > limit {
		cands = cands[:limit]
	}
	return cands
}

// vehicleCompatible applies the filter from whichever side expressed one.
// A passenger request with no vehicle type takes any driver.
func vehicleCompatible(a, b *models.Trip) bool {
	passenger, driver := a, b
	if a.Role == models.RoleDriver {
		passenger, driver = b, a
	}
	if passenger.VehicleType == "" {
		return true
	}
	return passenger.VehicleType == driver.VehicleType
}

// filterPresence drops driver candidates whose owner has gone quiet. On any
// doubt (no projection configured) candidates pass through.
func (e *Engine) filterPresence(ctx context.Context, cands []geo.Candidate) []geo.Candidate {
	if e.Presence == nil {
		return cands
	}
	var driverIDs []string
	for _, c := range cands {
		if c.Trip.Role == models.RoleDriver {
			driverIDs = append(driverIDs, c.Trip.OwnerID)
		}
	}
	if len(driverIDs) == 0 {
		return cands
	}
	alive := e.Presence.FilterAlive(ctx, driverIDs, time.Now())
	out := cands[:0]
	for _, c := range cands {
		if c.Trip.Role == models.RoleDriver && !alive[c.Trip.OwnerID] {
			continue
		}
		out = append(out, c)
	}
	return out
}
