package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jax-options-gex/libs/greeks"
	"jax-options-gex/libs/flow"
	"jax-options-gex/libs/observability"
	"jax-options-gex/libs/store"
	"jax-options-gex/libs/tsclient"
	"jax-options-gex/services/gex-ingest/internal/config"
	"jax-options-gex/services/gex-ingest/internal/engine"
)

var startTime = time.Now()

func main() {
	var configPath, dbCredsPath, httpPort string
	flag.StringVar(&configPath, "config", "config/gex-ingest.json", "Path to configuration file")
	flag.StringVar(&dbCredsPath, "db-credentials", "config/db.env", "Path to database credentials file")
	flag.StringVar(&httpPort, "port", "8096", "HTTP server port")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	creds, err := config.LoadCredentials(dbCredsPath)
	if err != nil {
		log.Fatalf("failed to load credentials: %v", err)
	}

	storeConfig := store.DefaultConfig()
	storeConfig.DSN = creds.DSN()
	storeConfig.MigrationsPath = "migrations"

	st, err := store.ConnectWithMigrations(ctx, storeConfig)
	if err != nil {
		log.Fatalf("failed to connect to store: %v", err)
	}
	defer st.Close()
	log.Printf("store connected")

	tokens := tsclient.NewTokenManager(creds.TradeStationClientID, creds.TradeStationClientSecret, creds.TradeStationRefreshToken)
	tsConfig := tsclient.DefaultConfig()
	tsConfig.UseSandbox = creds.UseSandbox
	tsClient, err := tsclient.NewClient(tsConfig, tokens)
	if err != nil {
		log.Fatalf("failed to create upstream client: %v", err)
	}

	spotCache, err := tsclient.NewSpotCache(os.Getenv("REDIS_URL"), 5*time.Second)
	if err != nil {
		log.Fatalf("failed to create spot cache: %v", err)
	}
	defer spotCache.Close()

	greeksCalc := greeks.NewCalculator(cfg.Greeks.RiskFreeRate, cfg.Greeks.DividendYield)
	flowAgg := flow.NewAggregator()

	registry := observability.NewRegistry()
	gexMetrics := observability.NewGEXMetrics(registry)

	eng := engine.New(tsClient, greeksCalc, flowAgg, st, spotCache, cfg, gexMetrics)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := st.HealthCheck(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": "gex-ingest",
			"uptime":  time.Since(startTime).String(),
		})
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		registry.WriteText(w)
	})

	server := &http.Server{Addr: ":" + httpPort, Handler: mux}
	go func() {
		log.Printf("HTTP server listening on :%s", httpPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- eng.Run(ctx)
	}()

	log.Printf("gex-ingest started for %d symbol(s)", len(cfg.Symbols))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Printf("shutting down...")
	case err := <-runErrCh:
		if err != nil {
			log.Printf("engine exited with error: %v", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	select {
	case <-runErrCh:
	case <-time.After(10 * time.Second):
	}

	fmt.Fprintln(os.Stdout, "gex-ingest exited cleanly")
}
