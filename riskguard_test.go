package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestRiskGuardTripsAboveMaxPerHour(t *testing.T) {
	t.Parallel()
	cfg := Config{LiveMaxTradesPerHour: 2}
	r := newRiskGuard(cfg, zerolog.Nop())

	if r.RecordTrade() {
		t.Fatal("1st trade should not trip the guard")
	}
	if r.RecordTrade() {
		t.Fatal("2nd trade should not trip the guard")
	}
	if !r.RecordTrade() {
		t.Fatal("3rd trade should trip the guard (cap is 2)")
	}
}

func TestRiskGuardZeroMeansUnlimited(t *testing.T) {
	t.Parallel()
	cfg := Config{LiveMaxTradesPerHour: 0}
	r := newRiskGuard(cfg, zerolog.Nop())
	for i := 0; i < 50; i++ {
		if r.RecordTrade() {
			t.Fatal("LiveMaxTradesPerHour=0 must never trip")
		}
	}
}

func TestKillSwitchTripped(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "kill")
	cfg := Config{LiveKillSwitchFile: path}
	r := newRiskGuard(cfg, zerolog.Nop())

	if r.KillSwitchTripped() {
		t.Fatal("kill switch should not be tripped before the file exists")
	}
	if err := os.WriteFile(path, []byte("stop"), 0644); err != nil {
		t.Fatalf("write kill file: %v", err)
	}
	if !r.KillSwitchTripped() {
		t.Fatal("kill switch should be tripped once the file exists")
	}
}

func TestKillSwitchUnconfigured(t *testing.T) {
	t.Parallel()
	r := newRiskGuard(Config{}, zerolog.Nop())
	if r.KillSwitchTripped() {
		t.Fatal("an unconfigured kill switch path must never trip")
	}
}
