// FILE: supervisor.go
// Package main – Supervisor: process lifecycle. Takes an already
// validated configuration, opens durable stores, wires the detector/dispatcher/engine/executor
// chain, starts the feed reader and heartbeat, and shuts everything down
// cleanly on cancellation.
//
// Goroutine orchestration is modeled on the reference repo's main.go/
// live.go sequencing (wire collaborators, start background loops, wait
// on the run context, shut down in reverse order), using
// golang.org/x/sync/errgroup in place of a flat unmanaged goroutine set
// so the first failure cancels every sibling.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Supervisor owns every long-lived collaborator for one process
// lifetime.
type Supervisor struct {
	cfg Config
	log zerolog.Logger

	alertLog  *AlertLog
	detector  *Detector
	engine    *Engine
	executor  *OrderExecutor
	sim       *SimExecutor
	risk      *RiskGuard
	feed      *Feed
	tail      *TailDispatcher
}

// buildSupervisor wires every collaborator per cfg but starts nothing.
func buildSupervisor(cfg Config, log zerolog.Logger) (*Supervisor, error) {
	if err := os.MkdirAll(dirOf(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("prepare db dir: %w", err)
	}
	if err := os.MkdirAll(dirOf(cfg.LiveStateFile), 0755); err != nil {
		return nil, fmt.Errorf("prepare state dir: %w", err)
	}

	alertLog, err := openAlertLog(cfg.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("open alert log: %w", err)
	}

	initial, err := loadTraderState(cfg.LiveStateFile)
	if err != nil {
		alertLog.Close()
		return nil, fmt.Errorf("load trader state: %w", err)
	}

	risk := newRiskGuard(cfg, log)

	var sim *SimExecutor
	var raw RawExecutor
	switch cfg.ExecutorMode {
	case "brokerage":
		if cfg.BrokerageURL == "" {
			alertLog.Close()
			return nil, fmt.Errorf("EXECUTOR_MODE=brokerage requires BROKERAGE_URL")
		}
		raw = newBrokerageExecutor(cfg.BrokerageURL, cfg.SchwabAccountID, cfg.BrokerageToken)
	default:
		sim = newSimExecutor()
		raw = sim
	}

	var eng *Engine
	executor := newOrderExecutor(raw, cfg, log, func(price Money, side Side) {
		// checkBadFill runs synchronously from inside Engine.submit, which
		// is already called with eng.mu held; EmergencyShutdown must run
		// on its own goroutine so it doesn't re-lock a mutex this
		// goroutine is already holding.
		go eng.EmergencyShutdown(context.Background(), fmt.Sprintf("bad fill at %s (%s)", price.String(), side))
	})

	eng = newEngine(cfg, log, executor, alertLog, risk, initial)

	var sup *Supervisor
	handler := func(alertID int64, alert Alert) {
		eng.ProcessAlert(context.Background(), alertID, alert)
	}

	var sink AlertSink
	var tail *TailDispatcher
	if cfg.InlineDispatchOnly {
		sink = newInlineDispatcher(alertLog, log, handler, true)
	} else {
		sink = newInlineDispatcher(alertLog, log, nil, false)
		tail = newTailDispatcher(alertLog, log, handler, eng.LastAlertID, func(int64) {})
	}

	detector := newDetector(cfg, log, sink)

	feed := newFeed(cfg.MarketFeedURL, bearerHeader(cfg.BrokerageToken), cfg.Symbols, detector, log)

	sup = &Supervisor{
		cfg:      cfg,
		log:      component(log, "supervisor"),
		alertLog: alertLog,
		detector: detector,
		engine:   eng,
		executor: executor,
		sim:      sim,
		risk:     risk,
		feed:     feed,
		tail:     tail,
	}
	return sup, nil
}

func bearerHeader(token string) string {
	if token == "" {
		return ""
	}
	return "Bearer " + token
}

func dirOf(path string) string {
	if path == "" {
		return "."
	}
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// Run blocks until ctx is cancelled or a collaborator fails fatally.
func (s *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.feed.Run(ctx)
	})

	if s.tail != nil {
		g.Go(func() error {
			err := s.tail.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		return s.heartbeat(ctx)
	})

	g.Go(func() error {
		select {
		case reason := <-s.engine.FatalSignal():
			return fmt.Errorf("%w: %s", ErrEmergencyShutdown, reason)
		case <-ctx.Done():
			return nil
		}
	})

	err := g.Wait()
	s.shutdown()
	return err
}

func (s *Supervisor) heartbeat(ctx context.Context) error {
	interval := time.Duration(s.cfg.HeartbeatSec) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.log.Info().Int("symbols", len(s.cfg.Symbols)).Msg("supervisor.heartbeat")
		}
	}
}

func (s *Supervisor) shutdown() {
	s.log.Info().Msg("supervisor.shutdown")
	if err := s.alertLog.Close(); err != nil {
		s.log.Error().Err(err).Msg("supervisor.alert_log_close_failed")
	}
}
