// The sweeper periodically triggers the staleness sweep on the API server.
// It is deliberately dumb: no database access, just a cron-style HTTP POST,
// so it can run anywhere the API is reachable.
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

	"github.com/example/kigali-rides/internal/config"
	"github.com/example/kigali-rides/internal/logging"
)

var (
	sweepRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_runs_total",
		Help: "Total sweep requests issued",
	})
	sweepFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_failures_total",
		Help: "Total sweep requests that failed",
	})
	sweepExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_trips_expired_total",
		Help: "Total trips reported expired by sweeps",
	})
)

func init() {
	prometheus.MustRegister(sweepRuns, sweepFailures, sweepExpired)
}

func main() {
	_ = godotenv.Load()

	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", "", "address to serve prometheus metrics on (overrides METRICS_ADDR)")
	flag.Parse()

	cfg, err := config.LoadSweeperConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	logger := logging.NewLogger(cfg.LogLevel)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: cfg.RequestTimeout}
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	logger.Info("sweeper started", "target", cfg.TargetURL, "interval", cfg.Interval)
	sweep(ctx, client, cfg.TargetURL, logger.Info, logger.Error)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down sweeper")
			return
		case <-ticker.C:
			sweep(ctx, client, cfg.TargetURL, logger.Info, logger.Error)
		}
	}
}

func sweep(ctx context.Context, client *http.Client, target string, info, errlog func(string, ...any)) {
	sweepRuns.Inc()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, http.NoBody)
	if err != nil {
		sweepFailures.Inc()
		errlog("sweep request build failed", "error", err)
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		sweepFailures.Inc()
		errlog("sweep request failed", "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		sweepFailures.Inc()
		errlog("sweep rejected", "status", resp.StatusCode)
		return
	}
	var out struct {
		Expired int `json:"expired"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		sweepFailures.Inc()
		errlog("sweep response malformed", "error", err)
		return
	}
	sweepExpired.Add(float64(out.Expired))
	if out.Expired > 0 {
		info("sweep expired trips", "count", out.Expired)
	}
}
