package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRollingWindowSummarize(t *testing.T) {
	t.Parallel()
	w := newRollingWindow(60)
	base := time.Now()
	w.Append(base, decimal.NewFromInt(100), 10)
	w.Append(base.Add(time.Second), decimal.NewFromInt(101), 20)
	w.Append(base.Add(2*time.Second), decimal.NewFromInt(99), 5)

	summary := w.Summarize(base.Add(3 * time.Second))
	if summary.Volume != 35 {
		t.Errorf("volume = %d, want 35", summary.Volume)
	}
	if !summary.Hi.Equal(decimal.NewFromInt(101)) {
		t.Errorf("hi = %s, want 101", summary.Hi)
	}
	if !summary.Lo.Equal(decimal.NewFromInt(99)) {
		t.Errorf("lo = %s, want 99", summary.Lo)
	}
}

func TestRollingWindowPrunesOldPrints(t *testing.T) {
	t.Parallel()
	w := newRollingWindow(10)
	base := time.Now()
	w.Append(base, decimal.NewFromInt(100), 10)
	summary := w.Summarize(base.Add(30 * time.Second))
	if summary.Volume != 0 {
		t.Errorf("volume after window expiry = %d, want 0", summary.Volume)
	}
}

func TestAppendChartBarResetOnDecreasingCumVolume(t *testing.T) {
	t.Parallel()
	w := newRollingWindow(60)
	base := time.Now()
	w.AppendChartBar("AAPL", base, decimal.NewFromInt(100), 1000)
	w.AppendChartBar("AAPL", base.Add(time.Second), decimal.NewFromInt(101), 1200)
	if len(w.prints) != 1 {
		t.Fatalf("expected 1 print from the +200 delta, got %d", len(w.prints))
	}

	// Cumulative volume drop (broker reset) must clear history.
	w.AppendChartBar("AAPL", base.Add(2*time.Second), decimal.NewFromInt(102), 50)
	if len(w.prints) != 0 {
		t.Fatalf("expected prints cleared after cum-volume reset, got %d", len(w.prints))
	}
}

func TestMaybeSynthesizeFallbackThrottled(t *testing.T) {
	t.Parallel()
	w := newRollingWindow(60)
	now := time.Now()
	w.MaybeSynthesizeFallback(now, decimal.NewFromInt(50), 100, 200)
	if len(w.prints) != 1 {
		t.Fatalf("expected 1 synthesized print, got %d", len(w.prints))
	}
	// Within 10s throttle: no second synthesis.
	w.MaybeSynthesizeFallback(now.Add(5*time.Second), decimal.NewFromInt(50), 100, 200)
	if len(w.prints) != 1 {
		t.Fatalf("throttle window should suppress a second synthetic print, got %d", len(w.prints))
	}
}

func TestMaybeSynthesizeFallbackSuppressedByRecentTrade(t *testing.T) {
	t.Parallel()
	w := newRollingWindow(60)
	now := time.Now()
	w.Append(now, decimal.NewFromInt(50), 10)
	w.MaybeSynthesizeFallback(now.Add(5*time.Second), decimal.NewFromInt(50), 100, 200)
	if len(w.prints) != 1 {
		t.Fatalf("a recent real print should suppress synthesis, got %d prints", len(w.prints))
	}
}
