// FILE: executor.go
// Package main – Order Executor: limit-first submission with timeout
// policies (MARKET/REPRICE/ABANDON), fill polling, cancel, quote
// refresh, bad-fill kill-switch, and price derivation. Wraps a
// RawExecutor (the simulator or the real brokerage client) with the
// policy logic that applies regardless of which backend is underneath —
// the same split the reference repo draws between step.go's poll/
// reprice loop and broker_bridge.go's thin transport calls.
package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// RawExecutor is the thin transport surface a concrete brokerage backend
// implements. OrderExecutor layers policy (pricing, polling, timeout
// handling, bad-fill detection) on top of it.
type RawExecutor interface {
	Name() string
	PlaceMarket(ctx context.Context, symbol string, side Side, qty int64) (orderID string, status OrderStatusResult, err error)
	PlaceLimit(ctx context.Context, symbol string, side Side, qty int64, limitPrice Money) (orderID string, err error)
	GetOrderStatus(ctx context.Context, orderID string) (OrderStatusResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}

// OrderExecutor is the Executor the Trade Decision Engine drives.
type OrderExecutor struct {
	raw     RawExecutor
	cfg     Config
	log     zerolog.Logger
	breaker *gobreaker.CircuitBreaker[any]
	onBadFill func(price Money, side Side)

	openMu       sync.Mutex
	openOrderIDs map[string]bool
}

// trackOpen records orderID as live at the broker so CancelAllOrders can
// reach it. untrackOpen drops it once it's cancelled or reaches a
// terminal status.
func (e *OrderExecutor) trackOpen(orderID string) {
	e.openMu.Lock()
	e.openOrderIDs[orderID] = true
	e.openMu.Unlock()
}

func (e *OrderExecutor) untrackOpen(orderID string) {
	e.openMu.Lock()
	delete(e.openOrderIDs, orderID)
	e.openMu.Unlock()
}

func newOrderExecutor(raw RawExecutor, cfg Config, log zerolog.Logger, onBadFill func(Money, Side)) *OrderExecutor {
	st := gobreaker.Settings{
		Name:    "executor-" + raw.Name(),
		Timeout: 30 * time.Second,
	}
	return &OrderExecutor{
		raw:          raw,
		cfg:          cfg,
		log:          component(log, "executor"),
		breaker:      gobreaker.NewCircuitBreaker[any](st),
		onBadFill:    onBadFill,
		openOrderIDs: make(map[string]bool),
	}
}

func (e *OrderExecutor) Name() string { return e.raw.Name() }

func (e *OrderExecutor) call(ctx context.Context, fn func() (any, error)) (any, error) {
	return e.breaker.Execute(fn)
}

// SubmitMarket places an immediate market order and applies the bad-fill
// guard against the reported fill price.
func (e *OrderExecutor) SubmitMarket(ctx context.Context, symbol string, side Side, qty int64) (*OrderResult, error) {
	recordOrderSubmitted(side, "market")
	v, err := e.call(ctx, func() (any, error) {
		orderID, status, err := e.raw.PlaceMarket(ctx, symbol, side, qty)
		return struct {
			orderID string
			status  OrderStatusResult
		}{orderID, status}, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutorReject, err)
	}
	out := v.(struct {
		orderID string
		status  OrderStatusResult
	})
	if out.status.Status == OrderFilled || out.status.Status == OrderPartiallyFilled {
		e.checkBadFill(out.status.AvgFillPrice, side)
	}
	if out.status.Status == OrderFilled {
		recordOrderFilled(side)
	}
	return &OrderResult{
		OrderID:      out.orderID,
		Filled:       out.status.Status == OrderFilled,
		FilledQty:    out.status.FilledQuantity,
		AvgFillPrice: out.status.AvgFillPrice,
		StatusCode:   200,
	}, nil
}

// SubmitLimit derives a padded limit price, submits, and polls to a
// terminal state or LIVE_LIMIT_FILL_TIMEOUT, then applies the configured
// timeout policy.
func (e *OrderExecutor) SubmitLimit(ctx context.Context, symbol string, side Side, qty int64, alert Alert) (*OrderResult, error) {
	recordOrderSubmitted(side, "limit")
	refPrice, err := e.referencePrice(ctx, symbol, side, alert)
	if err != nil {
		return nil, err
	}
	limitPrice := padLimitPrice(refPrice, side, e.cfg.LiveLimitSlippageBps)

	orderID, err := e.raw.PlaceLimit(ctx, symbol, side, qty, limitPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutorReject, err)
	}
	e.trackOpen(orderID)

	filledSeen, status, err := e.poll(ctx, orderID, qty, e.cfg.LiveLimitFillTimeout)
	if err != nil {
		return nil, err
	}
	if status == OrderFilled {
		e.checkBadFill(limitPrice, side)
		recordOrderFilled(side)
		return &OrderResult{OrderID: orderID, Filled: true, FilledQty: filledSeen, AvgFillPrice: limitPrice, StatusCode: 200}, nil
	}
	if status == OrderRejected {
		return &OrderResult{OrderID: orderID, Filled: false, FilledQty: filledSeen, StatusCode: 400}, nil
	}

	// Timed out without reaching a terminal state: apply policy.
	recordLimitTimeout(e.cfg.LiveLimitTimeoutPolicy)
	remaining := qty - filledSeen
	switch e.cfg.LiveLimitTimeoutPolicy {
	case TimeoutPolicyMarket:
		_ = e.raw.CancelOrder(ctx, orderID)
		e.untrackOpen(orderID)
		if remaining <= 0 {
			return &OrderResult{OrderID: orderID, Filled: true, FilledQty: filledSeen, AvgFillPrice: limitPrice}, nil
		}
		mres, err := e.SubmitMarket(ctx, symbol, side, remaining)
		if err != nil {
			return &OrderResult{OrderID: orderID, Filled: filledSeen > 0, FilledQty: filledSeen, AvgFillPrice: limitPrice}, nil
		}
		return &OrderResult{
			OrderID:      orderID,
			Filled:       true,
			FilledQty:    filledSeen + mres.FilledQty,
			AvgFillPrice: limitPrice,
			StatusCode:   200,
		}, nil

	case TimeoutPolicyReprice:
		_ = e.raw.CancelOrder(ctx, orderID)
		e.untrackOpen(orderID)
		newRef, err := e.referencePrice(ctx, symbol, side, alert)
		if err != nil {
			return &OrderResult{OrderID: orderID, Filled: filledSeen > 0, FilledQty: filledSeen, AvgFillPrice: limitPrice}, nil
		}
		newPrice := padLimitPrice(newRef, side, e.cfg.LiveLimitSlippageBps)
		newID, err := e.raw.PlaceLimit(ctx, symbol, side, remaining, newPrice)
		if err != nil {
			return &OrderResult{OrderID: orderID, Filled: filledSeen > 0, FilledQty: filledSeen, AvgFillPrice: limitPrice}, nil
		}
		e.trackOpen(newID)
		moreFilledSeen, status2, err := e.poll(ctx, newID, remaining, e.cfg.LiveLimitFillTimeout)
		if err != nil {
			return &OrderResult{OrderID: newID, Filled: filledSeen > 0, FilledQty: filledSeen, AvgFillPrice: newPrice}, nil
		}
		total := filledSeen + moreFilledSeen
		if status2 == OrderFilled {
			e.checkBadFill(newPrice, side)
		}
		return &OrderResult{
			OrderID:      newID,
			Filled:       status2 == OrderFilled,
			FilledQty:    total,
			AvgFillPrice: newPrice,
			OutstandingLimit: outstandingIf(status2 != OrderFilled, symbol, newID, side, remaining-moreFilledSeen),
		}, nil

	default: // ABANDON: leave the partial fill applied
		return &OrderResult{
			OrderID:      orderID,
			Filled:       false,
			FilledQty:    filledSeen,
			AvgFillPrice: limitPrice,
			OutstandingLimit: outstandingIf(true, symbol, orderID, side, remaining),
		}, nil
	}
}

func outstandingIf(stillWorking bool, symbol, orderID string, side Side, remaining int64) *OutstandingLimit {
	if !stillWorking || remaining <= 0 {
		return nil
	}
	return &OutstandingLimit{Symbol: symbol, OrderID: orderID, Side: side, Qty: remaining, SinceTS: time.Now()}
}

// poll reads order status every LIVE_LIMIT_FILL_POLL_INTERVAL until a
// terminal state or timeout elapses. filled_seen is monotonic
// non-decreasing and clamped to qty, per _apply_filled_delta.
func (e *OrderExecutor) poll(ctx context.Context, orderID string, qty int64, timeout time.Duration) (int64, OrderStatus, error) {
	deadline := time.Now().Add(timeout)
	var filledSeen int64
	for {
		status, err := e.raw.GetOrderStatus(ctx, orderID)
		if err != nil {
			return filledSeen, OrderPending, fmt.Errorf("%w: %v", ErrExecutorReject, err)
		}
		if status.FilledQuantity > filledSeen {
			filledSeen = status.FilledQuantity
		}
		if filledSeen > qty {
			filledSeen = qty
		}
		switch status.Status {
		case OrderFilled, OrderRejected, OrderCancelled, OrderExpired, OrderFailed:
			e.untrackOpen(orderID)
			return filledSeen, status.Status, nil
		}
		if time.Now().After(deadline) {
			return filledSeen, OrderTimeout, nil
		}
		select {
		case <-ctx.Done():
			return filledSeen, OrderTimeout, ctx.Err()
		case <-time.After(e.cfg.LiveLimitFillPollInterval):
		}
	}
}

func (e *OrderExecutor) FetchOrderStatus(ctx context.Context, orderID string) (*OrderStatusResult, error) {
	s, err := e.raw.GetOrderStatus(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (e *OrderExecutor) CancelOrder(ctx context.Context, orderID string) error {
	err := e.raw.CancelOrder(ctx, orderID)
	if err == nil {
		e.untrackOpen(orderID)
	}
	return err
}

// CancelAllOrders cancels every order tracked as live at the broker. It
// snapshots the id set before issuing cancels so a concurrent trackOpen
// racing with this call never gets silently skipped or iterated unsafely.
func (e *OrderExecutor) CancelAllOrders(ctx context.Context) error {
	e.openMu.Lock()
	ids := make([]string, 0, len(e.openOrderIDs))
	for orderID := range e.openOrderIDs {
		ids = append(ids, orderID)
	}
	e.openMu.Unlock()

	var firstErr error
	for _, orderID := range ids {
		if err := e.raw.CancelOrder(ctx, orderID); err != nil && firstErr == nil {
			firstErr = err
		}
		e.untrackOpen(orderID)
	}
	return firstErr
}

func (e *OrderExecutor) FetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	q, err := e.raw.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// referencePrice applies the side-appropriate quote selection: ask for
// BUY/COVER, bid for SELL/SHORT, else midpoint, else last, else alert
// price.
func (e *OrderExecutor) referencePrice(ctx context.Context, symbol string, side Side, alert Alert) (Money, error) {
	q, err := e.raw.GetQuote(ctx, symbol)
	if err == nil {
		switch side {
		case SideBuy, SideCover:
			if q.HasAsk {
				return q.Ask, nil
			}
		case SideSell, SideShort:
			if q.HasBid {
				return q.Bid, nil
			}
		}
		if q.HasBid && q.HasAsk {
			return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2)), nil
		}
		if q.HasLast {
			return q.Last, nil
		}
	}
	if alert.Price.IsZero() {
		return Money{}, errors.New("no reference price available")
	}
	return alert.Price, nil
}

// padLimitPrice pads ref by LIVE_LIMIT_SLIPPAGE_BPS: BUY/COVER pads up,
// SELL/SHORT pads down, rounded to 4 decimals, clamped >= 0.01.
func padLimitPrice(ref Money, side Side, bps int) Money {
	factor := decimal.NewFromInt(int64(bps)).Div(decimal.NewFromInt(10000))
	var padded Money
	switch side {
	case SideBuy, SideCover:
		padded = ref.Mul(decimal.NewFromInt(1).Add(factor))
	default:
		padded = ref.Mul(decimal.NewFromInt(1).Sub(factor))
	}
	padded = round4(padded)
	floor := decimal.NewFromFloat(0.01)
	if padded.LessThan(floor) {
		padded = floor
	}
	return padded
}

// checkBadFill engages emergency shutdown when a confirmed fill lands on
// a suspicious whole-cent extreme: [0.985,0.995] for BUY/COVER or
// [0.005,0.015] for SELL/SHORT.
func (e *OrderExecutor) checkBadFill(price Money, side Side) {
	frac := price.Sub(price.Truncate(0))
	lo985 := decimal.NewFromFloat(0.985)
	hi995 := decimal.NewFromFloat(0.995)
	lo005 := decimal.NewFromFloat(0.005)
	hi015 := decimal.NewFromFloat(0.015)

	bad := false
	switch side {
	case SideBuy, SideCover:
		bad = frac.GreaterThanOrEqual(lo985) && frac.LessThanOrEqual(hi995)
	case SideSell, SideShort:
		bad = frac.GreaterThanOrEqual(lo005) && frac.LessThanOrEqual(hi015)
	}
	if bad && e.onBadFill != nil {
		e.log.Error().Str("price", price.String()).Str("side", string(side)).Msg("executor.bad_fill")
		recordRiskGuardTrip("bad_fill")
		e.onBadFill(price, side)
	}
}
