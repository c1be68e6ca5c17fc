package main

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeSink struct {
	alerts []Alert
}

func (f *fakeSink) Emit(alert Alert) error {
	alert.ID = int64(len(f.alerts) + 1)
	f.alerts = append(f.alerts, alert)
	return nil
}

func testDetectorConfig() Config {
	return Config{
		Symbols:                 []string{"AAPL"},
		WindowSeconds:           120,
		MinAskHeavy:             4,
		MinBidHeavy:             4,
		MaxRangeCents:           5,
		AlertThrottleSec:        60,
		MinVolume:               0,
		MinImbalanceDurationSec: 0,
	}
}

// askHeavyBook builds a book with n venues, each ask-heavy (ask volume >
// bid volume), all within the spread tolerance.
func askHeavyBook(symbol string, n int) RawBook {
	venues := []string{"NASDAQ", "NYSE", "MEMX", "IEX", "NYSE_ARCA", "CBOE_EDGX"}
	raw := RawBook{Symbol: symbol}
	for i := 0; i < n; i++ {
		v := venues[i%len(venues)]
		raw.Bids = append(raw.Bids, RawLevel{
			Price:  "100.00",
			Orders: []RawVenueOrder{{Venue: v, Size: "100"}},
		})
		raw.Asks = append(raw.Asks, RawLevel{
			Price:  "100.02",
			Orders: []RawVenueOrder{{Venue: v, Size: "500"}},
		})
	}
	return raw
}

func TestOnBookEmitsAskHeavyAlert(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	d := newDetector(testDetectorConfig(), zerolog.Nop(), sink)

	now := time.Now()
	alert, err := d.OnBook(askHeavyBook("AAPL", 4), now)
	if err != nil {
		t.Fatalf("OnBook error: %v", err)
	}
	if alert == nil {
		t.Fatal("expected an alert, got nil")
	}
	if alert.Direction != DirectionAskHeavy {
		t.Errorf("direction = %q, want ask-heavy", alert.Direction)
	}
	if len(sink.alerts) != 1 {
		t.Fatalf("expected 1 emitted alert, got %d", len(sink.alerts))
	}
}

func TestOnBookNoAlertBelowVenueGap(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	d := newDetector(testDetectorConfig(), zerolog.Nop(), sink)

	// 3 ask-heavy venues is below the +4 gap rule (3 >= 0+4 is false).
	alert, err := d.OnBook(askHeavyBook("AAPL", 3), time.Now())
	if err != nil {
		t.Fatalf("OnBook error: %v", err)
	}
	if alert != nil {
		t.Fatal("expected no alert below the venue-gap threshold")
	}
}

func TestOnBookThrottlesRepeatAlerts(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	d := newDetector(testDetectorConfig(), zerolog.Nop(), sink)

	now := time.Now()
	book := askHeavyBook("AAPL", 4)
	if _, err := d.OnBook(book, now); err != nil {
		t.Fatalf("first OnBook error: %v", err)
	}
	second, err := d.OnBook(book, now.Add(5*time.Second))
	if err != nil {
		t.Fatalf("second OnBook error: %v", err)
	}
	if second != nil {
		t.Fatal("second alert within the throttle window should be suppressed")
	}
	third, err := d.OnBook(book, now.Add(61*time.Second))
	if err != nil {
		t.Fatalf("third OnBook error: %v", err)
	}
	if third == nil {
		t.Fatal("expected a new alert once the throttle window elapses")
	}
}

func TestOnBookDwellGating(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	cfg := testDetectorConfig()
	cfg.MinImbalanceDurationSec = 10
	d := newDetector(cfg, zerolog.Nop(), sink)

	now := time.Now()
	book := askHeavyBook("AAPL", 4)
	if alert, err := d.OnBook(book, now); err != nil || alert != nil {
		t.Fatalf("alert should be withheld until dwell elapses, got alert=%v err=%v", alert, err)
	}
	alert, err := d.OnBook(book, now.Add(11*time.Second))
	if err != nil {
		t.Fatalf("OnBook error: %v", err)
	}
	if alert == nil {
		t.Fatal("expected an alert once dwell time is satisfied")
	}
}

func TestOnBookMinVolumeGating(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	cfg := testDetectorConfig()
	cfg.MinVolume = 1e9 // unreachable via synthesized fallback volume
	d := newDetector(cfg, zerolog.Nop(), sink)

	alert, err := d.OnBook(askHeavyBook("AAPL", 4), time.Now())
	if err != nil {
		t.Fatalf("OnBook error: %v", err)
	}
	if alert != nil {
		t.Fatal("expected no alert below MIN_VOLUME")
	}
}

func TestResolvePriceUsesL1LastFirst(t *testing.T) {
	t.Parallel()
	sink := &fakeSink{}
	d := newDetector(testDetectorConfig(), zerolog.Nop(), sink)
	d.OnL1("AAPL", L1Quote{HasLast: true, LastPrice: mustDecimal("123.45")})

	st := d.stateFor("AAPL")
	price := d.resolvePrice(st, Book{})
	if price.String() != "123.45" {
		t.Errorf("resolvePrice = %s, want 123.45", price)
	}
}

func mustDecimal(s string) Money {
	m, err := parsePositivePrice(s)
	if err != nil {
		panic(err)
	}
	return m
}
