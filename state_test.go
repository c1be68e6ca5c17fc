package main

import (
	"path/filepath"
	"testing"
)

func TestSaveAndLoadTraderState(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.json")

	st := TraderState{Positions: map[string]int64{"AAPL": 1000, "MSFT": -500}, LastAlertID: 42}
	if err := saveTraderState(path, st); err != nil {
		t.Fatalf("saveTraderState: %v", err)
	}

	loaded, err := loadTraderState(path)
	if err != nil {
		t.Fatalf("loadTraderState: %v", err)
	}
	if loaded.LastAlertID != 42 {
		t.Errorf("LastAlertID = %d, want 42", loaded.LastAlertID)
	}
	if loaded.Positions["AAPL"] != 1000 || loaded.Positions["MSFT"] != -500 {
		t.Errorf("positions mismatch: %+v", loaded.Positions)
	}
}

func TestLoadTraderStateMissingFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	st, err := loadTraderState(path)
	if err != nil {
		t.Fatalf("loadTraderState on missing file should not error: %v", err)
	}
	if st.LastAlertID != 0 || len(st.Positions) != 0 {
		t.Errorf("expected empty state, got %+v", st)
	}
}

func TestSaveTraderStateEmptyPathNoop(t *testing.T) {
	t.Parallel()
	if err := saveTraderState("", TraderState{}); err != nil {
		t.Fatalf("saveTraderState with empty path should be a no-op, got %v", err)
	}
}
