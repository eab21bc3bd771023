package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/kigali-rides/internal/errs"
	"github.com/example/kigali-rides/internal/geo"
	"github.com/example/kigali-rides/internal/ingest"
	"github.com/example/kigali-rides/internal/models"
	"github.com/example/kigali-rides/internal/observability"
)

type submitTripRequest struct {
	OwnerID        string             `json:"owner_id"`
	Role           models.Role        `json:"role"`
	Origin         models.Place       `json:"origin"`
	Destination    models.Place       `json:"destination"`
	VehicleType    models.VehicleType `json:"vehicle_type"`
	ScheduledTime  time.Time          `json:"scheduled_time"`
	SeatsAvailable int                `json:"seats_available"`
	FareRwf        *int64             `json:"fare_rwf"`
	IsNegotiable   bool               `json:"is_negotiable"`
}

func (s *Server) handleSubmitTrip(w http.ResponseWriter, r *http.Request) {
	var req submitTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errs.New(errs.Validation, "malformed body: %v", err))
		return
	}
	t := &models.Trip{
		OwnerID:        req.OwnerID,
		Role:           req.Role,
		Origin:         req.Origin,
		Destination:    req.Destination,
		VehicleType:    req.VehicleType,
		ScheduledTime:  req.ScheduledTime,
		SeatsAvailable: req.SeatsAvailable,
		FareRwf:        req.FareRwf,
		IsNegotiable:   req.IsNegotiable,
	}
	t, err := s.Trips.Submit(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	observability.TripsSubmittedTotal.Inc()
	_ = s.Kafka.Publish(ingest.EventTripSubmitted, t.ID, t)
	s.writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	t, err := s.Trips.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTransitionTrip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.TripStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errs.New(errs.Validation, "malformed body: %v", err))
		return
	}
	t, err := s.Trips.Transition(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = s.Kafka.Publish(ingest.EventTripTransitioned, t.ID, t)
	s.writeJSON(w, http.StatusOK, t)
}

type matchesResponse struct {
	TripID  string          `json:"trip_id"`
	Matches []geo.Candidate `json:"matches"`
}

func (s *Server) handleSearchMatches(w http.ResponseWriter, r *http.Request) {
	t, err := s.Trips.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	radiusKm := queryFloat(r, "radius_km", s.cfg.MatchRadiusKm)
	limit := queryInt(r, "limit", s.cfg.MatchLimit)

	cands := s.Engine.FindMatches(r.Context(), t, radiusKm, limit)
	observability.MatchesServedTotal.Inc()
	observability.MatchCandidates.Observe(float64(len(cands)))
	if cands == nil {
		cands = []geo.Candidate{} // empty list, not null: "no matches" is a normal outcome
	}
	s.writeJSON(w, http.StatusOK, matchesResponse{TripID: t.ID, Matches: cands})
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PassengerTripID string `json:"passenger_trip_id"`
		DriverTripID    string `json:"driver_trip_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errs.New(errs.Validation, "malformed body: %v", err))
		return
	}
	if req.PassengerTripID == "" || req.DriverTripID == "" {
		s.writeError(w, r, errs.New(errs.Validation, "passenger_trip_id and driver_trip_id are required"))
		return
	}
	b, err := s.Coord.CreateBooking(r.Context(), req.PassengerTripID, req.DriverTripID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = s.Kafka.Publish(ingest.EventBookingCreated, b.ID, b)
	s.pushBookingUpdate(r, b)
	s.writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.Coord.Bookings.GetBooking(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleLaunchWhatsApp(w http.ResponseWriter, r *http.Request) {
	b, err := s.Coord.LaunchWhatsApp(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = s.Kafka.Publish(ingest.EventBookingLaunched, b.ID, b)
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleConfirmBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.Coord.Confirm(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = s.Kafka.Publish(ingest.EventBookingConfirmed, b.ID, b)
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	b, err := s.Coord.Cancel(r.Context(), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = s.Kafka.Publish(ingest.EventBookingCancelled, b.ID, b)
	s.pushBookingUpdate(r, b)
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleResolveReferral(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code        string      `json:"code"`
		RefereeID   string      `json:"referee_id"`
		RefereeRole models.Role `json:"referee_role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errs.New(errs.Validation, "malformed body: %v", err))
		return
	}
	ref, err := s.Referrals.Resolve(r.Context(), req.Code, req.RefereeID, req.RefereeRole)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_ = s.Kafka.Publish(ingest.EventReferralResolved, ref.ID, ref)
	s.writeJSON(w, http.StatusCreated, ref)
}

func (s *Server) handleExpireTrips(w http.ResponseWriter, r *http.Request) {
	n, err := s.Trips.ExpireStale(r.Context(), time.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	observability.TripsExpiredTotal.Add(float64(n))
	if n > 0 {
		_ = s.Kafka.Publish(ingest.EventTripsExpired, "sweep", map[string]int{"expired": n})
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"expired": n})
}

func (s *Server) handleDriverPresence(w http.ResponseWriter, r *http.Request) {
	var ping ingest.PresencePing
	if err := json.NewDecoder(r.Body).Decode(&ping); err != nil {
		s.writeError(w, r, errs.New(errs.Validation, "malformed body: %v", err))
		return
	}
	if ping.DriverID == "" {
		s.writeError(w, r, errs.New(errs.Validation, "driver_id is required"))
		return
	}
	ping.At = time.Now().UTC()
	if s.PresenceKafka != nil {
		if err := s.PresenceKafka.Publish("presence.ping", ping.DriverID, ping); err != nil {
			s.logger.Error("presence publish failed", "driver_id", ping.DriverID, "error", err)
		}
	} else if s.Presence != nil {
		if err := s.Presence.Touch(r.Context(), ping.DriverID, ping.Lat, ping.Lng); err != nil {
			s.writeError(w, r, errs.Wrap(errs.Dependency, err, "presence store unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	s.WSReg.Add(userID, conn)
	go func() {
		// drain until the peer hangs up, then drop the session
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.WSReg.Remove(userID)
				_ = conn.Close()
				return
			}
		}
	}()
}

// pushBookingUpdate pokes both trip owners over any open websocket session.
// Purely best-effort; clients poll regardless.
func (s *Server) pushBookingUpdate(r *http.Request, b *models.Booking) {
	for _, tripID := range []string{b.PassengerTripID, b.DriverTripID} {
		t, err := s.Trips.Get(r.Context(), tripID)
		if err != nil {
			continue
		}
		_ = s.WSReg.Notify(t.OwnerID, map[string]any{"booking": b})
	}
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	if v := r.URL.Query().Get(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
