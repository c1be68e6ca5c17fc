// FILE: detector.go
// Package main – Imbalance Detector: per-symbol rolling state, venue
// counting, spread filtering, volume gating, dwell-time gating, and
// throttled alert emission.
//
// Grounded on the imbalance-detector reference file's Detect() shape:
// aggregate per venue, validate by spread, score direction, gate on
// volume/duration/throttle, emit.
package main

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const imbalanceRingCap = 200

// L1Quote is the last observed top-of-book for a symbol, used for alert
// price resolution.
type L1Quote struct {
	LastPrice Money
	Bid       Money
	Ask       Money
	Close     Money
	HasLast   bool
	HasBid    bool
	HasAsk    bool
	HasClose  bool
}

// symbolState is the detector's exclusively-owned per-symbol state, per
// the design note that global mutable dicts become fields on an owned
// struct.
type symbolState struct {
	ring       []ImbalanceEvent
	lastAlert  time.Time
	hasAlert   bool
	l1         L1Quote
	window     *RollingWindow
}

// AlertSink receives each emitted alert, reserves its id, and
// appends/dispatches it.
type AlertSink interface {
	Emit(alert Alert) error
}

// Detector runs the imbalance detection algorithm for a fixed set of
// symbols. It is single-threaded per symbol by construction: callers
// must serialize OnBook calls for the same symbol (the Supervisor's feed
// reader does this naturally since it dispatches one message at a time).
type Detector struct {
	mu     sync.Mutex
	cfg    Config
	log    zerolog.Logger
	norm   *Normalizer
	states map[string]*symbolState
	sink   AlertSink
	allowBidHeavy bool
}

func newDetector(cfg Config, log zerolog.Logger, sink AlertSink) *Detector {
	d := &Detector{
		cfg:           cfg,
		log:           component(log, "detector"),
		norm:          newNormalizer(log),
		states:        make(map[string]*symbolState),
		sink:          sink,
		allowBidHeavy: true,
	}
	for _, sym := range cfg.Symbols {
		d.states[sym] = &symbolState{window: newRollingWindow(cfg.WindowSeconds)}
	}
	return d
}

func (d *Detector) stateFor(symbol string) *symbolState {
	st, ok := d.states[symbol]
	if !ok {
		st = &symbolState{window: newRollingWindow(d.cfg.WindowSeconds)}
		d.states[symbol] = st
	}
	return st
}

// OnTrade feeds a time-and-sale print into the symbol's rolling window.
func (d *Detector) OnTrade(symbol string, ts time.Time, price Money, size int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateFor(symbol).window.Append(ts, price, size)
}

// OnChartBar feeds a cumulative-volume fallback bar into the window.
func (d *Detector) OnChartBar(symbol string, ts time.Time, price Money, cumVolume int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateFor(symbol).window.AppendChartBar(symbol, ts, price, cumVolume)
}

// OnL1 records the latest top-of-book quote used for alert price
// resolution.
func (d *Detector) OnL1(symbol string, q L1Quote) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateFor(symbol).l1 = q
}

// OnBook runs one pass of the detection algorithm for a raw L2 payload
// arriving at wall-clock now. Returns the alert emitted, if any.
func (d *Detector) OnBook(raw RawBook, now time.Time) (*Alert, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	book, _ := d.norm.Normalize(raw)
	st := d.stateFor(raw.Symbol)

	metrics := d.aggregate(raw.Symbol, book)
	st.window.MaybeSynthesizeFallback(now, d.resolvePrice(st, book), metrics.TotalBids, metrics.TotalAsks)

	direction, hasCandidate := d.candidateDirection(metrics)
	if hasCandidate {
		st.ring = append(st.ring, ImbalanceEvent{TS: now, Direction: direction, Metrics: metrics})
		if len(st.ring) > imbalanceRingCap {
			st.ring = st.ring[len(st.ring)-imbalanceRingCap:]
		}
	}
	if !hasCandidate {
		return nil, nil
	}

	dwell := d.dwellTime(st.ring, direction, now)
	summary := st.window.Summarize(now)

	if dwell < time.Duration(d.cfg.MinImbalanceDurationSec)*time.Second {
		return nil, nil
	}
	minValid := d.cfg.MinAskHeavy
	if d.cfg.MinBidHeavy > minValid {
		minValid = d.cfg.MinBidHeavy
	}
	if metrics.ValidExchanges < minValid {
		return nil, nil
	}
	if summary.VolPerMin < d.cfg.MinVolume {
		return nil, nil
	}
	throttle := time.Duration(d.cfg.AlertThrottleSec) * time.Second
	if st.hasAlert && now.Sub(st.lastAlert) < throttle {
		return nil, nil
	}

	price := d.resolvePrice(st, book)
	alert := Alert{
		Timestamp:   now,
		Symbol:      raw.Symbol,
		Direction:   direction,
		Ratio:       ratioFor(direction, metrics),
		TotalBids:   metrics.TotalBids,
		TotalAsks:   metrics.TotalAsks,
		HeavyVenues: heavyVenuesFor(direction, metrics),
		Price:       price,
		Exchanges:   metrics.ValidExchanges,
	}

	if err := d.sink.Emit(alert); err != nil {
		return nil, err
	}
	recordAlertEmitted(alert.Symbol, alert.Direction)
	st.lastAlert = now
	st.hasAlert = true
	return &alert, nil
}

func ratioFor(dir Direction, m BookMetrics) float64 {
	if dir == DirectionAskHeavy {
		return m.AskToBidRatio
	}
	return m.BidToAskRatio
}

func heavyVenuesFor(dir Direction, m BookMetrics) int {
	if dir == DirectionAskHeavy {
		return m.AskHeavyVenues
	}
	return m.BidHeavyVenues
}

// aggregate sums per-venue sizes and prices, then composes BookMetrics
// from venues that pass the spread-validity test.
func (d *Detector) aggregate(symbol string, book Book) BookMetrics {
	cells := make(map[VenueCode]VenueCell)
	for _, r := range book.Bids {
		c := cells[r.Venue]
		c.Venue = r.Venue
		c.BidVolume += r.Size
		c.BidPrices = append(c.BidPrices, r.Price)
		cells[r.Venue] = c
	}
	for _, r := range book.Asks {
		c := cells[r.Venue]
		c.Venue = r.Venue
		c.AskVolume += r.Size
		c.AskPrices = append(c.AskPrices, r.Price)
		cells[r.Venue] = c
	}

	maxRangeCents := decimal.NewFromInt(int64(d.cfg.MaxRangeCents))
	m := BookMetrics{Symbol: symbol, PerVenue: make(map[VenueCode]VenueCell)}
	for venue, c := range cells {
		if !c.Valid(maxRangeCents) {
			continue
		}
		m.PerVenue[venue] = c
		m.ValidExchanges++
		m.TotalBids += c.BidVolume
		m.TotalAsks += c.AskVolume
		if c.AskHeavy() {
			m.AskHeavyVenues++
		} else if c.BidHeavy() {
			m.BidHeavyVenues++
		}
	}
	if m.TotalBids > 0 {
		m.AskToBidRatio = float64(m.TotalAsks) / float64(m.TotalBids)
	}
	if m.TotalAsks > 0 {
		m.BidToAskRatio = float64(m.TotalBids) / float64(m.TotalAsks)
	}
	return m
}

// candidateDirection applies the ≥+4 venue-gap rule; ask-heavy wins the
// (impossible) simultaneous case by evaluation order.
func (d *Detector) candidateDirection(m BookMetrics) (Direction, bool) {
	if m.AskHeavyVenues >= m.BidHeavyVenues+4 {
		return DirectionAskHeavy, true
	}
	if d.allowBidHeavy && m.BidHeavyVenues >= m.AskHeavyVenues+4 {
		return DirectionBidHeavy, true
	}
	return "", false
}

// dwellTime scans the ring from newest backwards while direction
// matches, returning the duration of the uninterrupted streak.
func (d *Detector) dwellTime(ring []ImbalanceEvent, direction Direction, now time.Time) time.Duration {
	if len(ring) == 0 {
		return 0
	}
	first := ring[len(ring)-1].TS
	for i := len(ring) - 1; i >= 0; i-- {
		if ring[i].Direction != direction {
			break
		}
		first = ring[i].TS
	}
	return now.Sub(first)
}

// resolvePrice applies the price-resolution order: last price, then
// L1 bid/ask/close, then book midpoint.
func (d *Detector) resolvePrice(st *symbolState, book Book) Money {
	if st.l1.HasLast {
		return st.l1.LastPrice
	}
	if st.l1.HasBid {
		return st.l1.Bid
	}
	if st.l1.HasAsk {
		return st.l1.Ask
	}
	if st.l1.HasClose {
		return st.l1.Close
	}
	topBid, haveBid := topOf(book.Bids, true)
	topAsk, haveAsk := topOf(book.Asks, false)
	if haveBid && haveAsk {
		return topBid.Add(topAsk).Div(decimal.NewFromInt(2))
	}
	return decimal.Zero
}

func topOf(rows []BookRow, wantMax bool) (Money, bool) {
	if len(rows) == 0 {
		return decimal.Zero, false
	}
	best := rows[0].Price
	for _, r := range rows[1:] {
		if wantMax && r.Price.GreaterThan(best) {
			best = r.Price
		} else if !wantMax && r.Price.LessThan(best) {
			best = r.Price
		}
	}
	return best, true
}
