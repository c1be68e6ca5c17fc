package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestPadLimitPriceDirection(t *testing.T) {
	t.Parallel()
	ref := decimal.NewFromFloat(100.00)
	buy := padLimitPrice(ref, SideBuy, 10) // 10 bps = 0.1%
	if !buy.GreaterThan(ref) {
		t.Errorf("BUY should pad up: %s vs ref %s", buy, ref)
	}
	sell := padLimitPrice(ref, SideSell, 10)
	if !sell.LessThan(ref) {
		t.Errorf("SELL should pad down: %s vs ref %s", sell, ref)
	}
}

func TestPadLimitPriceFloor(t *testing.T) {
	t.Parallel()
	tiny := decimal.NewFromFloat(0.001)
	got := padLimitPrice(tiny, SideSell, 5000) // 50% pad down gives 0.0005, below the floor
	if got.LessThan(decimal.NewFromFloat(0.01)) {
		t.Errorf("padLimitPrice must floor at 0.01, got %s", got)
	}
}

func newTestOrderExecutor(raw RawExecutor) (*OrderExecutor, *[]string) {
	var badFills []string
	cfg := Config{
		LiveLimitFillTimeout:      30 * time.Millisecond,
		LiveLimitFillPollInterval: 5 * time.Millisecond,
		LiveLimitSlippageBps:      5,
		LiveLimitTimeoutPolicy:    TimeoutPolicyMarket,
	}
	e := newOrderExecutor(raw, cfg, zerolog.Nop(), func(price Money, side Side) {
		badFills = append(badFills, price.String())
	})
	return e, &badFills
}

func TestSubmitMarketInstantFill(t *testing.T) {
	t.Parallel()
	sim := newSimExecutor()
	sim.SetPrice("AAPL", decimal.NewFromFloat(100.00))
	e, _ := newTestOrderExecutor(sim)

	res, err := e.SubmitMarket(context.Background(), "AAPL", SideBuy, 100)
	if err != nil {
		t.Fatalf("SubmitMarket: %v", err)
	}
	if !res.Filled || res.FilledQty != 100 {
		t.Errorf("expected a full fill, got %+v", res)
	}
}

func TestSubmitMarketBadFillTriggersCallback(t *testing.T) {
	t.Parallel()
	sim := newSimExecutor()
	// .990 fraction sits inside the [0.985,0.995] BUY bad-fill band.
	sim.SetPrice("AAPL", decimal.NewFromFloat(100.990))
	e, badFills := newTestOrderExecutor(sim)

	_, err := e.SubmitMarket(context.Background(), "AAPL", SideBuy, 100)
	if err != nil {
		t.Fatalf("SubmitMarket: %v", err)
	}
	if len(*badFills) != 1 {
		t.Fatalf("expected the bad-fill callback to fire once, got %d", len(*badFills))
	}
}

// stubRawExecutor lets tests control fill behavior deterministically,
// unlike SimExecutor's probabilistic fills.
type stubRawExecutor struct {
	quote       Quote
	placeLimitErr error
	statuses    []OrderStatusResult
	statusIdx   int
	cancelled   []string
}

func (s *stubRawExecutor) Name() string { return "stub" }
func (s *stubRawExecutor) PlaceMarket(ctx context.Context, symbol string, side Side, qty int64) (string, OrderStatusResult, error) {
	return "mkt-1", OrderStatusResult{Status: OrderFilled, FilledQuantity: qty, AvgFillPrice: s.quote.Last}, nil
}
func (s *stubRawExecutor) PlaceLimit(ctx context.Context, symbol string, side Side, qty int64, limitPrice Money) (string, error) {
	if s.placeLimitErr != nil {
		return "", s.placeLimitErr
	}
	return "lim-1", nil
}
func (s *stubRawExecutor) GetOrderStatus(ctx context.Context, orderID string) (OrderStatusResult, error) {
	if s.statusIdx >= len(s.statuses) {
		return s.statuses[len(s.statuses)-1], nil
	}
	st := s.statuses[s.statusIdx]
	s.statusIdx++
	return st, nil
}
func (s *stubRawExecutor) CancelOrder(ctx context.Context, orderID string) error {
	s.cancelled = append(s.cancelled, orderID)
	return nil
}
func (s *stubRawExecutor) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	return s.quote, nil
}

func TestSubmitLimitFillsBeforeTimeout(t *testing.T) {
	t.Parallel()
	stub := &stubRawExecutor{
		quote:    Quote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(101), HasBid: true, HasAsk: true},
		statuses: []OrderStatusResult{{Status: OrderFilled, FilledQuantity: 100}},
	}
	e, _ := newTestOrderExecutor(stub)

	res, err := e.SubmitLimit(context.Background(), "AAPL", SideBuy, 100, Alert{Price: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("SubmitLimit: %v", err)
	}
	if !res.Filled || res.FilledQty != 100 {
		t.Errorf("expected a full fill, got %+v", res)
	}
}

func TestSubmitLimitTimeoutPolicyMarket(t *testing.T) {
	t.Parallel()
	stub := &stubRawExecutor{
		quote:    Quote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(101), Last: decimal.NewFromInt(100), HasBid: true, HasAsk: true, HasLast: true},
		statuses: []OrderStatusResult{{Status: OrderPending, FilledQuantity: 0}},
	}
	e, _ := newTestOrderExecutor(stub)

	res, err := e.SubmitLimit(context.Background(), "AAPL", SideBuy, 100, Alert{Price: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("SubmitLimit: %v", err)
	}
	if !res.Filled {
		t.Fatalf("MARKET timeout policy should complete the remainder via market order, got %+v", res)
	}
	if len(stub.cancelled) != 1 {
		t.Errorf("expected the stale limit order to be cancelled, cancelled=%v", stub.cancelled)
	}
}

func TestSubmitLimitTimeoutPolicyAbandon(t *testing.T) {
	t.Parallel()
	stub := &stubRawExecutor{
		quote:    Quote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(101), HasBid: true, HasAsk: true},
		statuses: []OrderStatusResult{{Status: OrderPartiallyFilled, FilledQuantity: 40}},
	}
	e, _ := newTestOrderExecutor(stub)
	e.cfg.LiveLimitTimeoutPolicy = TimeoutPolicyAbandon

	res, err := e.SubmitLimit(context.Background(), "AAPL", SideBuy, 100, Alert{Price: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("SubmitLimit: %v", err)
	}
	if res.Filled {
		t.Fatal("ABANDON policy must not report the order as filled")
	}
	if res.FilledQty != 40 {
		t.Errorf("FilledQty = %d, want 40 (the partial fill)", res.FilledQty)
	}
	if res.OutstandingLimit == nil || res.OutstandingLimit.Qty != 60 {
		t.Errorf("expected an outstanding limit for the remaining 60, got %+v", res.OutstandingLimit)
	}
}

func TestSubmitLimitUntracksFilledOrder(t *testing.T) {
	t.Parallel()
	stub := &stubRawExecutor{
		quote:    Quote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(101), HasBid: true, HasAsk: true},
		statuses: []OrderStatusResult{{Status: OrderFilled, FilledQuantity: 100}},
	}
	e, _ := newTestOrderExecutor(stub)

	if _, err := e.SubmitLimit(context.Background(), "AAPL", SideBuy, 100, Alert{Price: decimal.NewFromInt(100)}); err != nil {
		t.Fatalf("SubmitLimit: %v", err)
	}
	if len(e.openOrderIDs) != 0 {
		t.Errorf("a filled order must be untracked, still open: %v", e.openOrderIDs)
	}
}

func TestCancelAllOrdersCancelsTrackedLimitOrder(t *testing.T) {
	t.Parallel()
	stub := &stubRawExecutor{}
	e, _ := newTestOrderExecutor(stub)

	// Simulate two limit orders still outstanding at the broker, as
	// SubmitLimit leaves them under the REPRICE/ABANDON timeout policies.
	e.trackOpen("lim-1")
	e.trackOpen("lim-2")

	if err := e.CancelAllOrders(context.Background()); err != nil {
		t.Fatalf("CancelAllOrders: %v", err)
	}
	if len(stub.cancelled) != 2 {
		t.Errorf("expected both tracked orders cancelled, cancelled=%v", stub.cancelled)
	}
	if len(e.openOrderIDs) != 0 {
		t.Errorf("openOrderIDs should be empty after CancelAllOrders, got %v", e.openOrderIDs)
	}
}

func TestReferencePriceFallsBackToAlertPrice(t *testing.T) {
	t.Parallel()
	stub := &stubRawExecutor{quote: Quote{}} // no bid/ask/last
	e, _ := newTestOrderExecutor(stub)

	price, err := e.referencePrice(context.Background(), "AAPL", SideBuy, Alert{Price: decimal.NewFromInt(55)})
	if err != nil {
		t.Fatalf("referencePrice: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(55)) {
		t.Errorf("price = %s, want 55 (alert fallback)", price)
	}
}
