// FILE: window.go
// Package main – Rolling Window: per-symbol time-ordered trade prints
// with prune-by-time and smoothed volume-per-minute summarization.
package main

import (
	"time"
)

const volumeSmoothingSamples = 10

// RollingWindow maintains TradePrints for one symbol and the rolling
// volume samples used to smooth vol_per_min.
type RollingWindow struct {
	windowSeconds int
	prints        []TradePrint
	volumes       VolumeWindow

	lastCumVolume    map[string]int64
	lastPrintTS      time.Time
	lastFallbackTS   time.Time
}

func newRollingWindow(windowSeconds int) *RollingWindow {
	return &RollingWindow{
		windowSeconds: windowSeconds,
		volumes:       VolumeWindow{Cap: volumeSmoothingSamples},
		lastCumVolume: make(map[string]int64),
	}
}

// Append records a trade print observed at ts.
func (w *RollingWindow) Append(ts time.Time, price Money, size int64) {
	w.prints = append(w.prints, TradePrint{TS: ts, Price: price, Size: size})
	w.lastPrintTS = ts
}

// AppendChartBar folds in a cumulative-volume chart-equity bar for
// symbol, applying the broker-reset-detection rule: if the new
// cumulative volume is lower than the last seen value, the window and
// volume history are cleared and the baseline is reset.
func (w *RollingWindow) AppendChartBar(symbol string, ts time.Time, price Money, cumVolume int64) {
	last, ok := w.lastCumVolume[symbol]
	if !ok {
		w.lastCumVolume[symbol] = cumVolume
		return
	}
	delta := cumVolume - last
	if delta < 0 {
		w.prints = nil
		w.volumes = VolumeWindow{Cap: volumeSmoothingSamples}
		w.lastCumVolume[symbol] = cumVolume
		return
	}
	w.lastCumVolume[symbol] = cumVolume
	if delta > 0 {
		w.Append(ts, price, delta)
	}
}

// MaybeSynthesizeFallback emits at most one synthetic print every 10s
// using (total_bids+total_asks)/2 as size, when no trade/chart data has
// arrived for 30s.
func (w *RollingWindow) MaybeSynthesizeFallback(now time.Time, price Money, totalBids, totalAsks int64) {
	if !w.lastPrintTS.IsZero() && now.Sub(w.lastPrintTS) < 30*time.Second {
		return
	}
	if !w.lastFallbackTS.IsZero() && now.Sub(w.lastFallbackTS) < 10*time.Second {
		return
	}
	size := (totalBids + totalAsks) / 2
	if size <= 0 {
		return
	}
	w.prints = append(w.prints, TradePrint{TS: now, Price: price, Size: size})
	w.lastFallbackTS = now
}

// Prune drops prints older than windowSeconds relative to now.
func (w *RollingWindow) Prune(now time.Time) {
	cutoff := now.Add(-time.Duration(w.windowSeconds) * time.Second)
	i := 0
	for i < len(w.prints) && w.prints[i].TS.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.prints = w.prints[i:]
	}
}

// WindowSummary is the result of Summarize.
type WindowSummary struct {
	Hi             Money
	Lo             Money
	Volume         int64
	WindowDuration time.Duration
	VolPerMin      float64
}

// Summarize returns the current window's hi/lo/volume and a smoothed
// volume-per-minute, clamping the window duration to 1 second minimum.
func (w *RollingWindow) Summarize(now time.Time) WindowSummary {
	w.Prune(now)
	var out WindowSummary
	if len(w.prints) == 0 {
		w.volumes.Push(0)
		return out
	}
	out.Hi = w.prints[0].Price
	out.Lo = w.prints[0].Price
	var vol int64
	oldest := w.prints[0].TS
	for _, p := range w.prints {
		if p.Price.GreaterThan(out.Hi) {
			out.Hi = p.Price
		}
		if p.Price.LessThan(out.Lo) {
			out.Lo = p.Price
		}
		vol += p.Size
		if p.TS.Before(oldest) {
			oldest = p.TS
		}
	}
	out.Volume = vol
	w.volumes.Push(vol)

	dur := now.Sub(oldest)
	if dur < time.Second {
		dur = time.Second
	}
	out.WindowDuration = dur

	meanVol := w.volumes.Mean()
	out.VolPerMin = meanVol / dur.Minutes()
	return out
}
