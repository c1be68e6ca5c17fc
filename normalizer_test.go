package main

import (
	"testing"

	"github.com/rs/zerolog"
)

func newTestNormalizer() *Normalizer {
	return newNormalizer(zerolog.Nop())
}

func TestNormalizeDropsMalformedLevels(t *testing.T) {
	t.Parallel()
	n := newTestNormalizer()

	raw := RawBook{
		Symbol: "AAPL",
		Bids: []RawLevel{
			{Price: "100.01", Orders: []RawVenueOrder{{Venue: "NASDAQ", Size: "100"}}},
			{Price: "not-a-number", Orders: []RawVenueOrder{{Venue: "NYSE", Size: "100"}}},
			{Price: "100.00", Orders: []RawVenueOrder{{Venue: "FAKE", Size: "100"}, {Venue: "IEX", Size: "-5"}}},
		},
		Asks: []RawLevel{
			{Price: "100.05", Orders: []RawVenueOrder{{Venue: "NASDAQ", Size: "200"}}},
		},
	}

	book, summary := n.Normalize(raw)
	if len(book.Bids) != 1 {
		t.Fatalf("expected 1 surviving bid row, got %d", len(book.Bids))
	}
	if book.Bids[0].Venue != VenueNASDAQ {
		t.Errorf("surviving bid venue = %q, want NASDAQ", book.Bids[0].Venue)
	}
	if len(book.Asks) != 1 {
		t.Fatalf("expected 1 ask row, got %d", len(book.Asks))
	}
	if !summary.TopBid.Equal(book.Bids[0].Price) {
		t.Errorf("summary top bid %s != book bid price %s", summary.TopBid, book.Bids[0].Price)
	}
}

func TestNormalizeRejectsZeroAndNegativePrice(t *testing.T) {
	t.Parallel()
	n := newTestNormalizer()
	raw := RawBook{
		Symbol: "MSFT",
		Bids: []RawLevel{
			{Price: "0", Orders: []RawVenueOrder{{Venue: "NASDAQ", Size: "10"}}},
			{Price: "-1.5", Orders: []RawVenueOrder{{Venue: "NASDAQ", Size: "10"}}},
		},
	}
	book, _ := n.Normalize(raw)
	if len(book.Bids) != 0 {
		t.Fatalf("zero/negative prices must be dropped, got %d rows", len(book.Bids))
	}
}

func TestSummarizeSpreadCents(t *testing.T) {
	t.Parallel()
	n := newTestNormalizer()
	raw := RawBook{
		Symbol: "AAPL",
		Bids:   []RawLevel{{Price: "100.00", Orders: []RawVenueOrder{{Venue: "NYSE", Size: "100"}}}},
		Asks:   []RawLevel{{Price: "100.03", Orders: []RawVenueOrder{{Venue: "NYSE", Size: "100"}}}},
	}
	_, summary := n.Normalize(raw)
	got, _ := summary.SpreadCents.Float64()
	if got < 2.99 || got > 3.01 {
		t.Errorf("spread cents = %v, want ~3", got)
	}
}
