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

	"jax-options-gex/libs/observability"
	"jax-options-gex/libs/store"
	"jax-options-gex/services/gex-scheduler/internal/config"
	"jax-options-gex/services/gex-scheduler/internal/scheduler"
)

var startTime = time.Now()

func main() {
	var configPath, dbCredsPath, httpPort string
	flag.StringVar(&configPath, "config", "config/gex-scheduler.json", "Path to configuration file")
	flag.StringVar(&dbCredsPath, "db-credentials", "config/db.env", "Path to database credentials file")
	flag.StringVar(&httpPort, "port", "8097", "HTTP server port")
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

	registry := observability.NewRegistry()
	gexMetrics := observability.NewGEXMetrics(registry)

	sched := scheduler.New(st, cfg, gexMetrics)

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
			"service": "gex-scheduler",
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
		runErrCh <- sched.Run(ctx)
	}()

	log.Printf("gex-scheduler started for %d symbol(s), interval=%ds", len(cfg.Symbols), cfg.IntervalSeconds)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Printf("shutting down...")
	case err := <-runErrCh:
		if err != nil && err != context.Canceled {
			log.Printf("scheduler exited with error: %v", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	select {
	case <-runErrCh:
	case <-time.After(5 * time.Second):
	}

	fmt.Fprintln(os.Stdout, "gex-scheduler exited cleanly")
}
