// The presence projector consumes driver presence pings from Kafka and
// writes them into the Redis last-seen projection, so every API replica sees
// the same liveness view.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/kigali-rides/internal/config"
	"github.com/example/kigali-rides/internal/geo"
	"github.com/example/kigali-rides/internal/ingest"
)

var (
	pingsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presence_pings_consumed_total",
		Help: "Total presence pings consumed",
	})
	pingsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presence_pings_invalid_total",
		Help: "Total invalid presence messages",
	})
	projectionUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presence_projection_updates_total",
		Help: "Total successful projection updates",
	})
	projectionErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presence_projection_errors_total",
		Help: "Total projection update failures",
	})
)

func init() {
	prometheus.MustRegister(pingsConsumed, pingsInvalid, projectionUpdates, projectionErrors)
}

func main() {
	_ = godotenv.Load()

	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", "", "address to serve prometheus metrics on (overrides METRICS_ADDR)")
	flag.Parse()

	cfg, err := config.LoadPresenceConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}

	presence := geo.NewPresence(cfg.RedisAddr, cfg.RedisPassword, cfg.PresenceKey, cfg.PresenceTTL)
	defer presence.Close()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := presence.Ping(r.Context()); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
		})
		log.Printf("metrics/health listening on %s", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.Group,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer func() { _ = r.Close() }()

	log.Printf("presence projector listening topic=%s brokers=%v group=%s", cfg.Topic, cfg.KafkaBrokers, cfg.Group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down presence projector")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		pingsConsumed.Inc()

		var ping ingest.PresencePing
		if err := json.Unmarshal(m.Value, &ping); err != nil || ping.DriverID == "" {
			pingsInvalid.Inc()
			log.Printf("invalid presence message: %v", err)
			continue
		}

		if err := projectWithRetry(ctx, presence, ping, 3, 200*time.Millisecond); err != nil {
			projectionErrors.Inc()
			log.Printf("projection update failed for driver=%s: %v", ping.DriverID, err)
			continue
		}
		projectionUpdates.Inc()
	}
}

// Projection is the subset of the presence store this binary needs; small so
// tests can fake it.
type Projection interface {
	Touch(ctx context.Context, driverID string, lat, lng float64) error
}

// projectWithRetry writes one ping with retry and exponential backoff.
func projectWithRetry(ctx context.Context, p Projection, ping ingest.PresencePing, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = p.Touch(ctx, ping.DriverID, ping.Lat, ping.Lng); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
