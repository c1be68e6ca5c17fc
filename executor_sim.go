// FILE: executor_sim.go
// Package main – in-memory simulator satisfying RawExecutor, used for
// dry runs. Limit orders fill with a fixed probability on each status
// read; market orders fill at once at the last set price. No latency and
// no slippage are modelled.
//
// Grounded on the reference repo's broker_paper.go (single mutable price,
// uuid-tagged simulated fills, instant market execution).
package main

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SimExecutor is a deterministic-enough in-memory brokerage stand-in.
type SimExecutor struct {
	mu      sync.Mutex
	prices  map[string]Money
	orders  map[string]*simOrder
	fillProb float64
}

type simOrder struct {
	symbol     string
	side       Side
	qty        int64
	limitPrice Money
	filled     int64
	status     OrderStatus
	placedAt   time.Time
}

func newSimExecutor() *SimExecutor {
	return &SimExecutor{
		prices:   make(map[string]Money),
		orders:   make(map[string]*simOrder),
		fillProb: 0.6,
	}
}

func (s *SimExecutor) Name() string { return "simulator" }

// SetPrice lets the Supervisor feed the simulator the last observed
// price for a symbol so market fills are plausible.
func (s *SimExecutor) SetPrice(symbol string, price Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

func (s *SimExecutor) priceFor(symbol string) Money {
	if p, ok := s.prices[symbol]; ok {
		return p
	}
	return decimal.NewFromInt(100)
}

func (s *SimExecutor) PlaceMarket(ctx context.Context, symbol string, side Side, qty int64) (string, OrderStatusResult, error) {
	if qty <= 0 {
		return "", OrderStatusResult{}, errors.New("qty must be > 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	price := s.priceFor(symbol)
	id := uuid.New().String()
	return id, OrderStatusResult{Status: OrderFilled, FilledQuantity: qty, AvgFillPrice: price}, nil
}

func (s *SimExecutor) PlaceLimit(ctx context.Context, symbol string, side Side, qty int64, limitPrice Money) (string, error) {
	if qty <= 0 {
		return "", errors.New("qty must be > 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	s.orders[id] = &simOrder{
		symbol: symbol, side: side, qty: qty, limitPrice: limitPrice,
		status: OrderPending, placedAt: time.Now(),
	}
	return id, nil
}

func (s *SimExecutor) GetOrderStatus(ctx context.Context, orderID string) (OrderStatusResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ord, ok := s.orders[orderID]
	if !ok {
		return OrderStatusResult{}, errors.New("unknown order")
	}
	if ord.status == OrderPending && rand.Float64() < s.fillProb {
		ord.filled = ord.qty
		ord.status = OrderFilled
	}
	return OrderStatusResult{Status: ord.status, FilledQuantity: ord.filled, AvgFillPrice: ord.limitPrice}, nil
}

func (s *SimExecutor) CancelOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ord, ok := s.orders[orderID]
	if !ok {
		return errors.New("unknown order")
	}
	if ord.status == OrderPending {
		ord.status = OrderCancelled
	}
	return nil
}

func (s *SimExecutor) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	price := s.priceFor(symbol)
	spread := decimal.NewFromFloat(0.01)
	return Quote{
		Bid: price.Sub(spread), Ask: price.Add(spread), Last: price,
		HasBid: true, HasAsk: true, HasLast: true,
	}, nil
}
