package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/kigali-rides/internal/booking"
	"github.com/example/kigali-rides/internal/config"
	"github.com/example/kigali-rides/internal/errs"
	"github.com/example/kigali-rides/internal/geo"
	"github.com/example/kigali-rides/internal/ingest"
	"github.com/example/kigali-rides/internal/match"
	"github.com/example/kigali-rides/internal/notify"
	"github.com/example/kigali-rides/internal/referral"
	"github.com/example/kigali-rides/internal/trips"
)

// Server is the transport-agnostic core exposed over HTTP. Every operation
// returns a discriminated result: successes carry the entity, failures an
// error envelope with a stable kind string.
type Server struct {
	cfg    config.ServerConfig
	logger *slog.Logger

	Trips         *trips.Service
	Engine        *match.Engine
	Coord         *booking.Coordinator
	Referrals     *referral.Validator
	Presence      *geo.Presence
	Kafka         *ingest.Producer
	PresenceKafka *ingest.Producer
	WSReg         *notify.WSRegistry

	mux *mux.Router
}

type Deps struct {
	Trips         *trips.Service
	Engine        *match.Engine
	Coord         *booking.Coordinator
	Referrals     *referral.Validator
	Presence      *geo.Presence
	Kafka         *ingest.Producer
	PresenceKafka *ingest.Producer
	WSReg         *notify.WSRegistry
}

func NewServer(cfg config.ServerConfig, logger *slog.Logger, d Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if d.WSReg == nil {
		d.WSReg = notify.NewWSRegistry()
	}
	s := &Server{
		cfg:           cfg,
		logger:        logger,
		Trips:         d.Trips,
		Engine:        d.Engine,
		Coord:         d.Coord,
		Referrals:     d.Referrals,
		Presence:      d.Presence,
		Kafka:         d.Kafka,
		PresenceKafka: d.PresenceKafka,
		WSReg:         d.WSReg,
		mux:           mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Kind    errs.Kind `json:"kind"`
	Message string    `json:"message"`
}

// writeError maps error kinds onto HTTP statuses. DependencyError details are
// logged server-side only; the envelope stays generic.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := statusForKind(kind)
	body := errorBody{Kind: kind, Message: err.Error()}
	if kind == "" {
		s.logger.Error("unclassified error", "error", err, "path", r.URL.Path)
		body = errorBody{Kind: errs.Dependency, Message: "internal error"}
		status = http.StatusInternalServerError
	} else if kind == errs.Dependency {
		s.logger.Error("dependency failure", "error", err, "path", r.URL.Path)
		body.Message = "a dependency is unavailable; retry with backoff"
	}
	s.writeJSON(w, status, map[string]errorBody{"error": body})
}

func statusForKind(k errs.Kind) int {
	switch k {
	case errs.Validation:
		return http.StatusBadRequest
	case errs.NotFound:
		return http.StatusNotFound
	case errs.InvalidTransition, errs.AlreadyBooked, errs.DuplicateReferral:
		return http.StatusConflict
	case errs.InvalidCode, errs.SelfReferral:
		return http.StatusUnprocessableEntity
	case errs.Dependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/trips", s.handleSubmitTrip).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{id}", s.handleGetTrip).Methods("GET")
	s.mux.HandleFunc("/api/v1/trips/{id}/transition", s.handleTransitionTrip).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{id}/matches", s.handleSearchMatches).Methods("GET")

	s.mux.HandleFunc("/api/v1/bookings", s.handleCreateBooking).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/{id}", s.handleGetBooking).Methods("GET")
	s.mux.HandleFunc("/api/v1/bookings/{id}/whatsapp", s.handleLaunchWhatsApp).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/{id}/confirm", s.handleConfirmBooking).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/{id}/cancel", s.handleCancelBooking).Methods("POST")

	s.mux.HandleFunc("/api/v1/referrals", s.handleResolveReferral).Methods("POST")

	s.mux.HandleFunc("/internal/trips/expire", s.handleExpireTrips).Methods("POST")
	s.mux.HandleFunc("/internal/driver/presence", s.handleDriverPresence).Methods("POST")

	s.mux.HandleFunc("/ws/{user_id}", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}
