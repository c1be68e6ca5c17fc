// FILE: state.go
// Package main – State Persistence: TraderState snapshot, written
// atomically (temp file + rename), exactly the pattern the reference
// repo's trader.go uses for its BotState snapshot.
package main

import (
	"encoding/json"
	"os"
)

// saveTraderState writes st to path via a temp-file-then-rename so a
// crash mid-write never corrupts the last good snapshot.
func saveTraderState(path string, st TraderState) error {
	if path == "" {
		return nil
	}
	bs, err := json.MarshalIndent(st, "", " ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, bs, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// loadTraderState reads a previously persisted snapshot; a missing file
// is not an error, it simply yields an empty state.
func loadTraderState(path string) (TraderState, error) {
	st := TraderState{Positions: make(map[string]int64)}
	if path == "" {
		return st, nil
	}
	bs, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(bs, &st); err != nil {
		return st, err
	}
	if st.Positions == nil {
		st.Positions = make(map[string]int64)
	}
	return st, nil
}
