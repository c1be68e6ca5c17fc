// FILE: broker.go
// Package main – Executor abstractions shared by all execution backends.
//
// This file defines the minimal interface the Trade Decision Engine needs
// to talk to a brokerage (simulated or real):
//   - Executor interface: submit market/limit, fetch status, cancel, quote
//   - Common result types: OrderResult, Quote
//
// OrderExecutor (executor.go) implements Executor on top of a RawExecutor
// backend; two backends live in separate files:
//   - executor_sim.go   – in-memory simulator (instant market fills, probabilistic limit fills)
//   - executor_http.go  – HTTPS client for the brokerage order API
package main

import (
	"context"
)

// Quote is the bid/ask/last snapshot fetch_quote returns; each price is
// meaningful only when its Has flag is set.
type Quote struct {
	Bid, Ask, Last Money
	HasBid, HasAsk, HasLast bool
}

// OrderResult is the normalized outcome of a submit_market or
// submit_limit call.
type OrderResult struct {
	OrderID          string
	StatusCode       int
	Filled           bool
	FilledQty        int64
	AvgFillPrice     Money
	OutstandingLimit *OutstandingLimit // non-nil while a limit order is still working
	Raw              string
}

// OrderStatusResult is the normalized response of fetch_order_status.
type OrderStatusResult struct {
	Status         OrderStatus
	FilledQuantity int64
	AvgFillPrice   Money
	Raw            string
}

// Executor is the capability interface the Trade Decision Engine drives.
// OrderExecutor satisfies it for both backends (the simulator and the
// real brokerage client), which themselves implement RawExecutor.
type Executor interface {
	Name() string
	SubmitMarket(ctx context.Context, symbol string, side Side, qty int64) (*OrderResult, error)
	SubmitLimit(ctx context.Context, symbol string, side Side, qty int64, alert Alert) (*OrderResult, error)
	FetchOrderStatus(ctx context.Context, orderID string) (*OrderStatusResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	CancelAllOrders(ctx context.Context) error
	FetchQuote(ctx context.Context, symbol string) (*Quote, error)
}
