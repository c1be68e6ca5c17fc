// FILE: metrics.go
// Package main – Prometheus metrics for observability.
//
// Exposes the metrics that matter for this pipeline:
//   • pi_alerts_emitted_total{symbol,direction}   – alerts emitted by the detector
//   • pi_orders_submitted_total{side,kind}        – order submissions by side and market/limit
//   • pi_orders_filled_total{side}                – confirmed fills by side
//   • pi_limit_timeouts_total{policy}             – limit timeouts by applied policy
//   • pi_positions                                – current signed position per symbol (gauge)
//   • pi_risk_guard_trips_total{reason}           – emergency shutdowns by reason
//   • pi_feed_reconnects_total                    – feed reconnect attempts
//
// Registered in init() and served by the HTTP handler started in main.go
// at /metrics (Prometheus text exposition format), alongside /healthz.
package main

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxAlertsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pi_alerts_emitted_total",
			Help: "Alerts emitted by the imbalance detector",
		},
		[]string{"symbol", "direction"},
	)

	mtxOrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pi_orders_submitted_total",
			Help: "Orders submitted to the executor",
		},
		[]string{"side", "kind"}, // kind: market|limit
	)

	mtxOrdersFilled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pi_orders_filled_total",
			Help: "Orders confirmed filled",
		},
		[]string{"side"},
	)

	mtxLimitTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pi_limit_timeouts_total",
			Help: "Limit orders that hit the fill-timeout policy",
		},
		[]string{"policy"},
	)

	mtxPositions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pi_positions",
			Help: "Current signed position per symbol",
		},
		[]string{"symbol"},
	)

	mtxRiskGuardTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pi_risk_guard_trips_total",
			Help: "Emergency shutdowns engaged by the risk guard",
		},
		[]string{"reason"},
	)

	mtxFeedReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pi_feed_reconnects_total",
			Help: "Feed reconnect attempts",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxAlertsEmitted, mtxOrdersSubmitted, mtxOrdersFilled)
	prometheus.MustRegister(mtxLimitTimeouts, mtxPositions, mtxRiskGuardTrips, mtxFeedReconnects)
}

func recordAlertEmitted(symbol string, direction Direction) {
	mtxAlertsEmitted.WithLabelValues(symbol, string(direction)).Inc()
}

func recordOrderSubmitted(side Side, kind string) {
	mtxOrdersSubmitted.WithLabelValues(string(side), kind).Inc()
}

func recordOrderFilled(side Side) {
	mtxOrdersFilled.WithLabelValues(string(side)).Inc()
}

func recordLimitTimeout(policy TimeoutPolicy) {
	mtxLimitTimeouts.WithLabelValues(string(policy)).Inc()
}

func setPositionGauge(symbol string, qty int64) {
	mtxPositions.WithLabelValues(symbol).Set(float64(qty))
}

func recordRiskGuardTrip(reason string) {
	mtxRiskGuardTrips.WithLabelValues(reason).Inc()
}

func recordFeedReconnect() {
	mtxFeedReconnects.Inc()
}
