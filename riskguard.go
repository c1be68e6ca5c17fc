// FILE: riskguard.go
// Package main – Risk Guard: rolling trade-rate limiter, kill-switch
// file check, emergency flatten.
//
// The rolling-hour counter is a plain timestamp ring rather than
// golang.org/x/time/rate: a token bucket admits bursts a strict trailing
// 3600s count must not (see DESIGN.md). x/time/rate is used instead for
// the tail dispatcher's adaptive-poll ceiling in dispatch.go, where burst
// admission is exactly the desired behavior.
package main

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RiskGuard tracks trade timestamps in a rolling window and checks for a
// kill-switch file before each decision cycle.
type RiskGuard struct {
	mu            sync.Mutex
	trades        []time.Time
	maxPerHour    int
	killSwitchPath string
	log           zerolog.Logger
}

func newRiskGuard(cfg Config, log zerolog.Logger) *RiskGuard {
	return &RiskGuard{
		maxPerHour:     cfg.LiveMaxTradesPerHour,
		killSwitchPath: cfg.LiveKillSwitchFile,
		log:            component(log, "risk_guard"),
	}
}

// RecordTrade appends now to the rolling window and reports whether the
// hourly cap has just been exceeded.
func (r *RiskGuard) RecordTrade() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.trades = append(r.trades, now)
	r.pruneLocked(now)
	return r.maxPerHour > 0 && len(r.trades) > r.maxPerHour
}

func (r *RiskGuard) pruneLocked(now time.Time) {
	cutoff := now.Add(-3600 * time.Second)
	i := 0
	for i < len(r.trades) && r.trades[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		r.trades = r.trades[i:]
	}
}

// KillSwitchTripped reports whether the configured kill-switch file
// exists. Contents are ignored; presence alone triggers shutdown.
func (r *RiskGuard) KillSwitchTripped() bool {
	if r.killSwitchPath == "" {
		return false
	}
	_, err := os.Stat(r.killSwitchPath)
	return err == nil
}
