// Package main – core data model shared by every component in the pipeline.
//
// These types mirror the entities laid out in the data model: Symbol,
// VenueCode, BookRow, Book, VenueCell, BookMetrics, TradePrint,
// VolumeWindow, ImbalanceEvent, Alert, Position, OutstandingLimit,
// OrderRecord and TraderState. Money values use shopspring/decimal so
// cent-level comparisons (spread filters, bad-fill guard) never suffer
// float rounding noise.
package main

import (
	"time"

	"github.com/shopspring/decimal"
)

// Money is a decimal quantity rounded to 4 places wherever the spec calls
// for "rounded to 4 decimals".
type Money = decimal.Decimal

func round4(m Money) Money {
	return m.Round(4)
}

// VenueCode is a normalized, closed-enum exchange identifier.
type VenueCode string

const (
	VenueNYSE          VenueCode = "NYSE"
	VenueNASDAQ        VenueCode = "NASDAQ"
	VenueMEMX          VenueCode = "MEMX"
	VenueIEX           VenueCode = "IEX"
	VenueNYSEArca      VenueCode = "NYSE_ARCA"
	VenueCboeEDGX      VenueCode = "CBOE_EDGX"
	VenueMIAX          VenueCode = "MIAX"
	VenueCboeBZX       VenueCode = "CBOE_BZX"
	VenueCboeBYX       VenueCode = "CBOE_BYX"
	VenueMIAXSapphire  VenueCode = "MIAX_SAPPHIRE"
	VenueCboeEDGA      VenueCode = "CBOE_EDGA"
	VenueNYSEAmex      VenueCode = "NYSE_AMEX"
	VenueCincinnati    VenueCode = "CINCINNATI"
	VenueBOX           VenueCode = "BOX"
	VenueNASDAQPhlx    VenueCode = "NASDAQ_PHLX"
)

// validVenues is the closed enum; unknown codes are discarded at
// normalization time.
var validVenues = map[VenueCode]bool{
	VenueNYSE: true, VenueNASDAQ: true, VenueMEMX: true, VenueIEX: true,
	VenueNYSEArca: true, VenueCboeEDGX: true, VenueMIAX: true,
	VenueCboeBZX: true, VenueCboeBYX: true, VenueMIAXSapphire: true,
	VenueCboeEDGA: true, VenueNYSEAmex: true, VenueCincinnati: true,
	VenueBOX: true, VenueNASDAQPhlx: true,
}

// venueAliases maps feed-specific wire codes onto the closed enum.
var venueAliases = map[string]VenueCode{
	"NSDQ": VenueNASDAQ,
	"IEXG": VenueIEX,
	"ARCX": VenueNYSEArca,
	"EDGX": VenueCboeEDGX,
	"BATX": VenueCboeBZX,
	"BATY": VenueCboeBYX,
	"MWSE": VenueMIAXSapphire,
	"EDGA": VenueCboeEDGA,
	"AMEX": VenueNYSEAmex,
	"CINN": VenueCincinnati,
	"BOSX": VenueBOX,
	"PHLX": VenueNASDAQPhlx,
}

// normalizeVenue uppercases and resolves aliases; returns ("", false) for
// anything outside the closed enum.
func normalizeVenue(raw string) (VenueCode, bool) {
	code := VenueCode(upperASCII(raw))
	if alias, ok := venueAliases[string(code)]; ok {
		code = alias
	}
	if validVenues[code] {
		return code, true
	}
	return "", false
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// BookRow is one validated level on one side of the book for one venue.
type BookRow struct {
	Venue VenueCode
	Price Money
	Size  int64
}

// Book is the normalized output of the Book Normalizer for one symbol.
type Book struct {
	Symbol string
	Bids   []BookRow
	Asks   []BookRow
}

// BookSummary is the observability-only rollup the normalizer emits
// alongside a Book.
type BookSummary struct {
	TopBid      Money
	TopAsk      Money
	TotalBidVol int64
	TotalAskVol int64
	SpreadCents Money
}

// VenueCell is the per-venue aggregate used to decide heaviness and
// validity.
type VenueCell struct {
	Venue      VenueCode
	BidVolume  int64
	AskVolume  int64
	BidPrices  []Money
	AskPrices  []Money
}

// Valid reports whether this venue has both sides and its spread is
// within MAX_RANGE_CENTS.
func (c VenueCell) Valid(maxRangeCents Money) bool {
	if len(c.BidPrices) == 0 || len(c.AskPrices) == 0 {
		return false
	}
	minAsk := c.AskPrices[0]
	for _, p := range c.AskPrices[1:] {
		if p.LessThan(minAsk) {
			minAsk = p
		}
	}
	maxBid := c.BidPrices[0]
	for _, p := range c.BidPrices[1:] {
		if p.GreaterThan(maxBid) {
			maxBid = p
		}
	}
	spreadCents := minAsk.Sub(maxBid).Mul(decimal.NewFromInt(100))
	return spreadCents.LessThanOrEqual(maxRangeCents)
}

// AskHeavy reports strict ask>bid; BidHeavy reports strict bid>ask.
func (c VenueCell) AskHeavy() bool { return c.AskVolume > c.BidVolume }
func (c VenueCell) BidHeavy() bool { return c.BidVolume > c.AskVolume }

// BookMetrics is the per-symbol aggregate the Imbalance Detector computes
// from valid venues.
type BookMetrics struct {
	Symbol          string
	TotalBids       int64
	TotalAsks       int64
	AskToBidRatio   float64
	BidToAskRatio   float64
	AskHeavyVenues  int
	BidHeavyVenues  int
	PerVenue        map[VenueCode]VenueCell
	ValidExchanges  int
}

// Direction is the candidate/alert imbalance direction.
type Direction string

const (
	DirectionAskHeavy Direction = "ask-heavy"
	DirectionBidHeavy Direction = "bid-heavy"
)

// TradePrint is one time-ordered trade observation feeding the Rolling
// Window.
type TradePrint struct {
	TS    time.Time
	Price Money
	Size  int64
}

// VolumeWindow retains the last N rolling-window volumes for smoothing.
type VolumeWindow struct {
	Samples []int64
	Cap     int
}

func (w *VolumeWindow) Push(v int64) {
	w.Samples = append(w.Samples, v)
	if len(w.Samples) > w.Cap {
		w.Samples = w.Samples[len(w.Samples)-w.Cap:]
	}
}

func (w *VolumeWindow) Mean() float64 {
	if len(w.Samples) == 0 {
		return 0
	}
	var sum int64
	for _, s := range w.Samples {
		sum += s
	}
	return float64(sum) / float64(len(w.Samples))
}

// ImbalanceEvent is one ring-buffer entry recording a candidate direction
// observed at a point in time.
type ImbalanceEvent struct {
	TS        time.Time
	Direction Direction
	Metrics   BookMetrics
}

// Alert is the immutable record emitted once all gating conditions hold.
type Alert struct {
	ID          int64
	Timestamp   time.Time
	Symbol      string
	Direction   Direction
	Ratio       float64
	TotalBids   int64
	TotalAsks   int64
	HeavyVenues int
	Price       Money
	Exchanges   int
}

// Side is an order side as understood by the Order Executor.
type Side string

const (
	SideBuy   Side = "BUY"
	SideSell  Side = "SELL"
	SideShort Side = "SHORT"
	SideCover Side = "COVER"
)

// PositionDelta reports the signed qty contribution of a side.
func (s Side) PositionDelta(qty int64) int64 {
	switch s {
	case SideBuy, SideCover:
		return qty
	case SideSell, SideShort:
		return -qty
	default:
		return 0
	}
}

// Position is the signed open quantity for one symbol. Flat symbols are
// absent from the owning map entirely.
type Position struct {
	Symbol string
	Qty    int64
}

func (p Position) IsFlat() bool  { return p.Qty == 0 }
func (p Position) IsLong() bool  { return p.Qty > 0 }
func (p Position) IsShort() bool { return p.Qty < 0 }

// OutstandingLimit tracks at most one working limit order per symbol.
type OutstandingLimit struct {
	Symbol    string
	OrderID   string
	Side      Side
	Qty       int64
	FilledSeen int64
	SinceTS   time.Time
}

// OrderStatus is the fill state machine for limit orders.
type OrderStatus string

const (
	OrderPending         OrderStatus = "PENDING"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderRejected        OrderStatus = "REJECTED"
	OrderExpired         OrderStatus = "EXPIRED"
	OrderTimeout         OrderStatus = "TIMEOUT"
	OrderFailed          OrderStatus = "FAILED"
)

// OrderRecord is an append-only audit row for one submission attempt.
type OrderRecord struct {
	AlertID      int64
	Symbol       string
	Direction    Direction
	Side         Side
	Qty          int64
	Price        Money
	BrokerOrderID string
	StatusCode   int
	Location     string
	Error        string
	RawResponse  string
	CreatedAt    time.Time
}

// TraderState is the atomically persisted snapshot of positions and the
// last-processed alert id.
type TraderState struct {
	Positions   map[string]int64 `json:"positions"`
	LastAlertID int64            `json:"last_alert_id"`
}
