// FILE: env.go
// Package main – safe .env loading.
//
// loadBotEnv is a dependency-free .env loader that reads ./.env (and
// ../.env) and injects ONLY the keys this process needs into the
// environment. It intentionally ignores keys it doesn't recognize
// (credentials meant for other processes, stray local overrides) to
// avoid shell-export issues. Viper (config.go) layers defaults and
// type coercion on top of whatever this loader and the OS environment
// already populated.
package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// --------- Lightweight .env loader (no external deps) ---------

// envNeeded is the allowlist of keys loadBotEnv will import from a local
// .env file. Anything else present in the file (credentials meant for a
// sidecar, scratch notes) is left alone.
var envNeeded = map[string]struct{}{
	"SCHWAB_CLIENT_ID": {}, "SCHWAB_APP_SECRET": {}, "SCHWAB_REDIRECT_URI": {},
	"SCHWAB_TOKEN_PATH": {}, "SCHWAB_ACCOUNT_ID": {}, "DB_PATH": {}, "SYMBOLS": {},
	"MARKET_FEED_URL": {}, "EXECUTOR_MODE": {}, "BROKERAGE_URL": {}, "BROKERAGE_TOKEN": {},
	"WINDOW_SECONDS": {}, "HEARTBEAT_SEC": {}, "MIN_ASK_HEAVY": {}, "MIN_BID_HEAVY": {},
	"MAX_RANGE_CENTS": {}, "ALERT_THROTTLE_SEC": {}, "MIN_VOLUME": {},
	"MIN_IMBALANCE_DURATION_SEC": {}, "LIVE_POSITION_SIZE": {}, "LIVE_SHORT_SIZE": {},
	"LIVE_FLIP_SIZE": {}, "LIVE_POLL_INTERVAL": {}, "LIVE_STATE_FILE": {},
	"LIVE_PREFER_LIMIT_ORDERS": {}, "LIVE_LIMIT_SLIPPAGE_BPS": {}, "LIVE_LIMIT_FILL_TIMEOUT": {},
	"LIVE_LIMIT_FILL_POLL_INTERVAL": {}, "LIVE_LIMIT_TIMEOUT_POLICY": {},
	"LIVE_KILL_SWITCH_FILE": {}, "LIVE_MAX_TRADES_PER_HOUR": {}, "INLINE_DISPATCH_ONLY": {},
	"INLINE_LIVE_DRY_RUN": {}, "LOG_LEVEL": {}, "METRICS_ADDR": {},
}

// loadBotEnv reads .env from "." and ".." and sets ONLY allowlisted keys.
// It won't override variables already present in the environment.
func loadBotEnv() {
	try := func(path string) {
		f, err := os.Open(path)
		if err != nil {
			return
		}
		defer f.Close()
		s := bufio.NewScanner(f)
		for s.Scan() {
			line := strings.TrimSpace(s.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if strings.HasPrefix(line, "export ") {
				line = strings.TrimSpace(line[len("export "):])
			}
			eq := strings.Index(line, "=")
			if eq <= 0 {
				continue
			}
			key := strings.TrimSpace(line[:eq])
			if _, ok := envNeeded[key]; !ok {
				continue
			}
			val := strings.TrimSpace(line[eq+1:])
			if len(val) >= 2 && ((val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'')) {
				val = val[1 : len(val)-1]
			}
			if idx := strings.IndexAny(val, "#"); idx >= 0 {
				val = strings.TrimSpace(val[:idx])
			}
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, val)
			}
		}
	}
	for _, base := range []string{".", ".."} {
		try(filepath.Join(base, ".env"))
	}
}
