package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/example/kigali-rides/internal/booking"
	"github.com/example/kigali-rides/internal/config"
	"github.com/example/kigali-rides/internal/geo"
	httpapi "github.com/example/kigali-rides/internal/http"
	"github.com/example/kigali-rides/internal/ingest"
	"github.com/example/kigali-rides/internal/logging"
	"github.com/example/kigali-rides/internal/match"
	"github.com/example/kigali-rides/internal/models"
	"github.com/example/kigali-rides/internal/notify"
	"github.com/example/kigali-rides/internal/referral"
	"github.com/example/kigali-rides/internal/storage"
	"github.com/example/kigali-rides/internal/trips"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	// Stores: Postgres when a DSN is configured, otherwise the in-memory
	// single-node store for local runs.
	var (
		tripStore    storage.TripStore
		bookingStore storage.BookingStore
		refStore     storage.ReferralStore
		users        storage.UserDirectory
	)
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgres(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if cfg.RunMigrations {
			if b, err := os.ReadFile(filepath.Join("migrations", "001_create_core.sql")); err == nil {
				if _, err := pg.DB().Exec(string(b)); err != nil {
					logger.Error("migration failed", "error", err)
					os.Exit(1)
				}
				logger.Info("migration applied", "file", "001_create_core.sql")
			}
		}
		tripStore, bookingStore, refStore, users = pg, pg, pg, pg
	} else {
		mem := storage.NewMemory()
		tripStore, bookingStore, refStore, users = mem, mem, mem, mem
	}

	index := geo.NewIndex()
	tripSvc := trips.NewService(tripStore, index, cfg.GraceWindow)
	if err := tripSvc.WarmIndex(context.Background()); err != nil {
		logger.Error("geo index warm-up failed", "error", err)
	}

	var presence *geo.Presence
	var presenceChecker match.PresenceChecker
	if cfg.RedisAddr != "" {
		presence = geo.NewPresence(cfg.RedisAddr, cfg.RedisPassword, cfg.PresenceKey, cfg.PresenceTTL)
		defer presence.Close()
		presenceChecker = presence
	}

	engine := match.NewEngine(index, presenceChecker)
	engine.DefaultRadiusKm = cfg.MatchRadiusKm
	engine.DefaultLimit = cfg.MatchLimit
	engine.Window = cfg.MatchWindow

	var gateway notify.Gateway = noopGateway{}
	if cfg.HandoffEndpoint != "" {
		gateway = notify.NewHTTPGateway(cfg.HandoffEndpoint, cfg.HandoffToken, cfg.HandoffTimeout)
	} else {
		logger.Warn("WHATSAPP_GATEWAY_URL not set; handoffs are logged and dropped")
	}

	coord := booking.NewCoordinator(tripStore, bookingStore, gateway, index, logger)
	coord.HandoffTimeout = cfg.HandoffTimeout

	var events, presenceEvents *ingest.Producer
	if len(cfg.KafkaBrokers) > 0 {
		events = ingest.NewProducer(cfg.KafkaBrokers, cfg.TripEventsTopic)
		defer events.Close()
		presenceEvents = ingest.NewProducer(cfg.KafkaBrokers, cfg.PresenceTopic)
		defer presenceEvents.Close()
	}

	srv := httpapi.NewServer(cfg, logger, httpapi.Deps{
		Trips:         tripSvc,
		Engine:        engine,
		Coord:         coord,
		Referrals:     referral.NewValidator(users, refStore),
		Presence:      presence,
		Kafka:         events,
		PresenceKafka: presenceEvents,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("bye")
}

// noopGateway stands in when no messaging gateway is configured.
type noopGateway struct{}

func (noopGateway) Handoff(ctx context.Context, b *models.Booking, passenger, driver *models.Trip) (notify.HandoffResult, error) {
	return notify.HandoffResult{Success: true, ExternalRef: "noop"}, nil
}
