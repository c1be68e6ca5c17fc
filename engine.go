// FILE: engine.go
// Package main – Trade Decision Engine: flip-only per-symbol state
// machine, consuming alerts either inline or by tailing the Alert Log.
//
// process_alert is protected by a mutex so alerts are serialized
// per-process; state is persisted while that mutex is held.
package main

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Engine owns the positions map and outstanding-limit bookkeeping and
// drives the Order Executor in response to alerts.
type Engine struct {
	mu sync.Mutex

	cfg      Config
	log      zerolog.Logger
	executor Executor
	alertLog *AlertLog
	risk     *RiskGuard

	positions map[string]int64
	limits    map[string]OutstandingLimit
	lastAlertID int64
	stateFile string

	fatal   bool
	fatalCh chan string
}

func newEngine(cfg Config, log zerolog.Logger, executor Executor, alertLog *AlertLog, risk *RiskGuard, initial TraderState) *Engine {
	e := &Engine{
		cfg:         cfg,
		log:         component(log, "engine"),
		executor:    executor,
		alertLog:    alertLog,
		risk:        risk,
		positions:   initial.Positions,
		limits:      make(map[string]OutstandingLimit),
		lastAlertID: initial.LastAlertID,
		stateFile:   cfg.LiveStateFile,
		fatalCh:     make(chan string, 1),
	}
	if e.positions == nil {
		e.positions = make(map[string]int64)
	}
	return e
}

// FatalSignal reports the reason the engine shut down, once an emergency
// shutdown has tripped. The Supervisor selects on this alongside its
// other collaborators so a tripped engine terminates the whole process
// instead of continuing to receive alerts it will no longer act on.
func (e *Engine) FatalSignal() <-chan string {
	return e.fatalCh
}

// ProcessAlert is the single entry point both dispatch modes call. It is
// serialized by mu so per-symbol alerts never race each other, and it
// persists state after each mutating action.
func (e *Engine) ProcessAlert(ctx context.Context, alertID int64, alert Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fatal {
		return
	}

	if alertID <= e.lastAlertID {
		return
	}

	if e.risk.KillSwitchTripped() {
		e.log.Warn().Msg("engine.kill_switch_seen")
		recordRiskGuardTrip("kill_switch")
		e.emergencyShutdownLocked(ctx, "kill switch file present")
		return
	}

	if _, working := e.limits[alert.Symbol]; working {
		e.log.Info().Str("symbol", alert.Symbol).Int64("alert_id", alertID).Msg("engine.skip_outstanding_limit")
		e.lastAlertID = alertID
		e.persistLocked()
		return
	}

	switch alert.Direction {
	case DirectionAskHeavy:
		e.handleAskHeavy(ctx, alert)
	case DirectionBidHeavy:
		e.handleBidHeavy(ctx, alert)
	}

	e.lastAlertID = alertID
	e.persistLocked()
}

func (e *Engine) handleAskHeavy(ctx context.Context, alert Alert) {
	qty := e.positions[alert.Symbol]
	switch {
	case qty < 0:
		// already short: skip
		return
	case qty == 0:
		e.submitAndApply(ctx, alert, SideShort, e.cfg.LiveShortSize)
	default: // long: close then open short, only if the close fills
		res := e.submit(ctx, alert, SideSell, qty)
		if res == nil || !res.Filled {
			return
		}
		e.applyFill(ctx, alert.Symbol, SideSell, res.FilledQty)
		e.submitAndApply(ctx, alert, SideShort, e.cfg.LiveShortSize)
	}
}

func (e *Engine) handleBidHeavy(ctx context.Context, alert Alert) {
	qty := e.positions[alert.Symbol]
	switch {
	case qty > 0:
		// already long: skip
		return
	case qty == 0:
		e.submitAndApply(ctx, alert, SideBuy, e.cfg.LivePositionSize)
	default: // short: cover then open long, only if the cover fills
		res := e.submit(ctx, alert, SideCover, -qty)
		if res == nil || !res.Filled {
			return
		}
		e.applyFill(ctx, alert.Symbol, SideCover, res.FilledQty)
		e.submitAndApply(ctx, alert, SideBuy, e.cfg.LivePositionSize)
	}
}

func (e *Engine) submitAndApply(ctx context.Context, alert Alert, side Side, qty int64) {
	res := e.submit(ctx, alert, side, qty)
	if res == nil {
		return
	}
	e.applyFill(ctx, alert.Symbol, side, res.FilledQty)
}

// submit dispatches one order through the executor, preferring a limit
// order when configured, and records the attempt to the orders audit
// table regardless of outcome.
func (e *Engine) submit(ctx context.Context, alert Alert, side Side, qty int64) *OrderResult {
	if qty <= 0 {
		return nil
	}
	var res *OrderResult
	var err error
	if e.cfg.LivePreferLimitOrders {
		res, err = e.executor.SubmitLimit(ctx, alert.Symbol, side, qty, alert)
	} else {
		res, err = e.executor.SubmitMarket(ctx, alert.Symbol, side, qty)
	}

	rec := OrderRecord{
		AlertID:   alert.ID,
		Symbol:    alert.Symbol,
		Direction: alert.Direction,
		Side:      side,
		Qty:       qty,
		Price:     alert.Price,
		CreatedAt: alert.Timestamp,
	}
	if err != nil {
		rec.Error = err.Error()
		e.log.Error().Err(err).Str("symbol", alert.Symbol).Str("side", string(side)).Msg("engine.submit_failed")
	} else if res != nil {
		rec.BrokerOrderID = res.OrderID
		rec.StatusCode = res.StatusCode
		if res.Filled {
			rec.Price = res.AvgFillPrice
		}
		if res.OutstandingLimit != nil {
			e.limits[alert.Symbol] = *res.OutstandingLimit
		} else {
			delete(e.limits, alert.Symbol)
		}
	}
	if appendErr := e.alertLog.AppendOrder(ctx, rec); appendErr != nil {
		e.log.Error().Err(appendErr).Msg("engine.order_audit_failed")
	}
	if err != nil {
		return nil
	}
	return res
}

func (e *Engine) applyFill(ctx context.Context, symbol string, side Side, filledQty int64) {
	e.applyPositionLocked(symbol, side, filledQty)
	if e.risk.RecordTrade() {
		e.log.Error().Int("max_per_hour", e.cfg.LiveMaxTradesPerHour).Msg("engine.rate_exceeded")
		recordRiskGuardTrip("rate_exceeded")
		e.emergencyShutdownLocked(ctx, "rate exceeded")
	}
}

// applyPositionLocked updates the position book and gauge without
// touching the rate guard. emergencyShutdownLocked's own flattening
// fills go through this path so that closing out positions during a
// shutdown can never retrip the rate guard and recurse.
func (e *Engine) applyPositionLocked(symbol string, side Side, filledQty int64) {
	delta := side.PositionDelta(filledQty)
	newQty := e.positions[symbol] + delta
	if newQty == 0 {
		delete(e.positions, symbol)
	} else {
		e.positions[symbol] = newQty
	}
	setPositionGauge(symbol, newQty)
}

func (e *Engine) persistLocked() {
	st := TraderState{Positions: copyPositions(e.positions), LastAlertID: e.lastAlertID}
	if err := saveTraderState(e.stateFile, st); err != nil {
		e.log.Error().Err(err).Msg("engine.persist_failed")
	}
}

func copyPositions(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// emergencyShutdownLocked cancels all orders, flattens every non-zero
// position via market orders, and latches the engine shut: once this
// runs, ProcessAlert refuses every subsequent alert and FatalSignal
// carries the reason to the Supervisor so the process terminates with a
// non-zero exit code instead of idling with a dead trading engine.
// Caller must hold e.mu.
func (e *Engine) emergencyShutdownLocked(ctx context.Context, reason string) {
	e.log.Error().Str("reason", reason).Msg("engine.emergency_shutdown")
	_ = e.executor.CancelAllOrders(ctx)

	open := copyPositions(e.positions)
	for symbol, qty := range open {
		if qty == 0 {
			continue
		}
		side := SideSell
		amount := qty
		if qty < 0 {
			side = SideCover
			amount = -qty
		}
		if res, err := e.executor.SubmitMarket(ctx, symbol, side, amount); err == nil && res != nil && res.Filled {
			e.applyPositionLocked(symbol, side, res.FilledQty)
		}
	}
	e.persistLocked()

	if !e.fatal {
		e.fatal = true
		select {
		case e.fatalCh <- reason:
		default:
		}
	}
}

// EmergencyShutdown is the public, lock-acquiring entry point for trips
// raised outside the ProcessAlert path; the Supervisor wires the Order
// Executor's bad-fill callback to it. Rate-limit trips are handled inside
// applyFill via emergencyShutdownLocked.
func (e *Engine) EmergencyShutdown(ctx context.Context, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emergencyShutdownLocked(ctx, reason)
}

// LastAlertID exposes the last processed id for the tail dispatcher's
// resume-on-restart getter/setter.
func (e *Engine) LastAlertID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAlertID
}
