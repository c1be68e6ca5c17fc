// FILE: normalizer.go
// Package main – Book Normalizer: turns one raw L2 payload into a
// validated Book of BookRows.
//
// Normalization never fails the whole payload; it drops individual
// levels/orders and returns whatever remains, logging a single
// aggregated warning per side per payload.
package main

import (
	"math"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RawLevel is one book level as it arrives off the feed: a price string
// plus a list of per-venue orders at that price.
type RawLevel struct {
	Price  string
	Orders []RawVenueOrder
}

// RawVenueOrder is one venue's contribution to a RawLevel.
type RawVenueOrder struct {
	Venue string
	Size  string
}

// RawBook is the heterogeneous payload shape the feed hands the
// normalizer for one symbol.
type RawBook struct {
	Symbol string
	Bids   []RawLevel
	Asks   []RawLevel
}

// Normalizer parses RawBook payloads into validated Books.
type Normalizer struct {
	log zerolog.Logger
}

func newNormalizer(log zerolog.Logger) *Normalizer {
	return &Normalizer{log: component(log, "normalizer")}
}

// Normalize validates every level/order in raw, dropping anything
// malformed, and returns the surviving rows plus an observability
// summary.
func (n *Normalizer) Normalize(raw RawBook) (Book, BookSummary) {
	bids, bidDrops := n.normalizeSide(raw.Bids)
	asks, askDrops := n.normalizeSide(raw.Asks)
	if bidDrops > 0 {
		n.log.Warn().Str("symbol", raw.Symbol).Int("dropped", bidDrops).Str("side", "bid").Msg("normalize.drop")
	}
	if askDrops > 0 {
		n.log.Warn().Str("symbol", raw.Symbol).Int("dropped", askDrops).Str("side", "ask").Msg("normalize.drop")
	}
	book := Book{Symbol: raw.Symbol, Bids: bids, Asks: asks}
	return book, summarize(book)
}

func (n *Normalizer) normalizeSide(levels []RawLevel) ([]BookRow, int) {
	var rows []BookRow
	dropped := 0
	for _, lvl := range levels {
		price, err := parsePositivePrice(lvl.Price)
		if err != nil {
			dropped += len(lvl.Orders)
			if len(lvl.Orders) == 0 {
				dropped++
			}
			continue
		}
		for _, ord := range lvl.Orders {
			venue, ok := normalizeVenue(ord.Venue)
			if !ok {
				dropped++
				continue
			}
			size, err := strconv.ParseInt(ord.Size, 10, 64)
			if err != nil || size <= 0 {
				dropped++
				continue
			}
			rows = append(rows, BookRow{Venue: venue, Price: price, Size: size})
		}
	}
	return rows, dropped
}

func parsePositivePrice(s string) (Money, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return Money{}, errParsePrice
	}
	return decimal.NewFromFloat(f), nil
}

var errParsePrice = ErrParse

// summarize computes the observability rollup: top of book on each side,
// total volumes, and spread in cents.
func summarize(b Book) BookSummary {
	var s BookSummary
	var haveBid, haveAsk bool
	for _, r := range b.Bids {
		s.TotalBidVol += r.Size
		if !haveBid || r.Price.GreaterThan(s.TopBid) {
			s.TopBid = r.Price
			haveBid = true
		}
	}
	for _, r := range b.Asks {
		s.TotalAskVol += r.Size
		if !haveAsk || r.Price.LessThan(s.TopAsk) {
			s.TopAsk = r.Price
			haveAsk = true
		}
	}
	if haveBid && haveAsk {
		s.SpreadCents = s.TopAsk.Sub(s.TopBid).Mul(decimal.NewFromInt(100))
	}
	return s
}
