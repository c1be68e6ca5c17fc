// FILE: main.go
// Package main – Program entrypoint and HTTP/metrics server.
//
// Boot sequence:
//   1) loadBotEnv()               – read .env (no shell exports required)
//   2) cfg := loadConfigFromEnv() – build and validate runtime Config
//   3) newLogger(cfg.LogLevel)    – structured logger
//   4) buildSupervisor(cfg, log)  – wire detector/engine/executor/feed
//   5) start Prometheus /metrics and /healthz on cfg.MetricsAddr
//   6) supervisor.Run(ctx) until SIGINT/SIGTERM
//
// Example:
//   go run .
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	os.Exit(run())
}

func run() int {
	loadBotEnv()

	cfg, err := loadConfigFromEnv()
	if err != nil {
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		if errors.Is(err, ErrInvalidURL) {
			return int(ExitInvalidURL)
		}
		return int(ExitConfigError)
	}

	log := newLogger(cfg.LogLevel)

	sup, err := buildSupervisor(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("main.build_failed")
		return int(ExitExecutorInit)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("main.metrics_listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("main.metrics_server_failed")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runErr := sup.Run(ctx)

	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)

	if runErr != nil {
		if errors.Is(runErr, ErrEmergencyShutdown) {
			log.Error().Err(runErr).Msg("main.emergency_shutdown")
		} else {
			log.Error().Err(runErr).Msg("main.fatal")
		}
		return int(ExitFatalRuntime)
	}
	return int(ExitOK)
}
