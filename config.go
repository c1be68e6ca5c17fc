// FILE: config.go
// Package main – Runtime configuration model and loader.
//
// Config holds every knob this process uses. loadBotEnv() (env.go)
// hydrates the process environment from a local .env first; viper then
// binds the same keys with defaults and type coercion, so a value can
// come from either source without the rest of the codebase caring which.
//
// Typical flow (see main.go):
//   loadBotEnv()
//   cfg, err := loadConfigFromEnv()
package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TimeoutPolicy is the Order Executor's behavior when a limit order does
// not fill within LIVE_LIMIT_FILL_TIMEOUT.
type TimeoutPolicy string

const (
	TimeoutPolicyMarket  TimeoutPolicy = "MARKET"
	TimeoutPolicyReprice TimeoutPolicy = "REPRICE"
	TimeoutPolicyAbandon TimeoutPolicy = "ABANDON"
)

// Config holds all runtime knobs for the detector, decision engine,
// executor and risk guard.
type Config struct {
	// Credential provider (external collaborator; only paths/ids live here)
	SchwabClientID    string
	SchwabAppSecret   string
	SchwabRedirectURI string
	SchwabTokenPath   string
	SchwabAccountID   string

	MarketFeedURL  string
	ExecutorMode   string
	BrokerageURL   string
	BrokerageToken string

	DBPath  string
	Symbols []string

	WindowSeconds int
	HeartbeatSec  int

	MinAskHeavy             int
	MinBidHeavy             int
	MaxRangeCents           int
	AlertThrottleSec        int
	MinVolume               float64
	MinImbalanceDurationSec int

	LivePositionSize int64
	LiveShortSize    int64

	LivePollInterval          time.Duration
	LiveStateFile             string
	LivePreferLimitOrders     bool
	LiveLimitSlippageBps      int
	LiveLimitFillTimeout      time.Duration
	LiveLimitFillPollInterval time.Duration
	LiveLimitTimeoutPolicy    TimeoutPolicy
	LiveKillSwitchFile        string
	LiveMaxTradesPerHour      int

	InlineDispatchOnly bool
	InlineLiveDryRun   bool

	LogLevel    string
	MetricsAddr string
}

// loadConfigFromEnv binds Config to the process environment via viper,
// validates the fields called out explicitly in the external interfaces,
// and returns the error validate chose: ErrInvalidURL for a malformed
// redirect URI or account id, an ErrConfig-wrapped error otherwise.
func loadConfigFromEnv() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("MARKET_FEED_URL", "")
	v.SetDefault("EXECUTOR_MODE", "simulator")
	v.SetDefault("BROKERAGE_URL", "")
	v.SetDefault("BROKERAGE_TOKEN", "")
	v.SetDefault("DB_PATH", "./state/alerts.db")
	v.SetDefault("SYMBOLS", "")
	v.SetDefault("WINDOW_SECONDS", 120)
	v.SetDefault("HEARTBEAT_SEC", 15)
	v.SetDefault("MIN_ASK_HEAVY", 4)
	v.SetDefault("MIN_BID_HEAVY", 4)
	v.SetDefault("MAX_RANGE_CENTS", 5)
	v.SetDefault("ALERT_THROTTLE_SEC", 60)
	v.SetDefault("MIN_VOLUME", 100000.0)
	v.SetDefault("MIN_IMBALANCE_DURATION_SEC", 10)
	v.SetDefault("LIVE_POSITION_SIZE", 1000)
	v.SetDefault("LIVE_SHORT_SIZE", 0)
	v.SetDefault("LIVE_FLIP_SIZE", 0)
	v.SetDefault("LIVE_POLL_INTERVAL", 1)
	v.SetDefault("LIVE_STATE_FILE", "./state/trader_state.json")
	v.SetDefault("LIVE_PREFER_LIMIT_ORDERS", true)
	v.SetDefault("LIVE_LIMIT_SLIPPAGE_BPS", 5)
	v.SetDefault("LIVE_LIMIT_FILL_TIMEOUT", 20)
	v.SetDefault("LIVE_LIMIT_FILL_POLL_INTERVAL", 1)
	v.SetDefault("LIVE_LIMIT_TIMEOUT_POLICY", "MARKET")
	v.SetDefault("LIVE_KILL_SWITCH_FILE", "")
	v.SetDefault("LIVE_MAX_TRADES_PER_HOUR", 60)
	v.SetDefault("INLINE_DISPATCH_ONLY", false)
	v.SetDefault("INLINE_LIVE_DRY_RUN", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("METRICS_ADDR", ":9090")

	shortSize := v.GetInt64("LIVE_SHORT_SIZE")
	if flip := v.GetInt64("LIVE_FLIP_SIZE"); shortSize == 0 && flip != 0 {
		shortSize = flip
	}

	cfg := Config{
		SchwabClientID:    v.GetString("SCHWAB_CLIENT_ID"),
		SchwabAppSecret:   v.GetString("SCHWAB_APP_SECRET"),
		SchwabRedirectURI: v.GetString("SCHWAB_REDIRECT_URI"),
		SchwabTokenPath:   v.GetString("SCHWAB_TOKEN_PATH"),
		SchwabAccountID:   v.GetString("SCHWAB_ACCOUNT_ID"),

		MarketFeedURL:  v.GetString("MARKET_FEED_URL"),
		ExecutorMode:   strings.ToLower(v.GetString("EXECUTOR_MODE")),
		BrokerageURL:   v.GetString("BROKERAGE_URL"),
		BrokerageToken: v.GetString("BROKERAGE_TOKEN"),

		DBPath:  v.GetString("DB_PATH"),
		Symbols: splitSymbols(v.GetString("SYMBOLS")),

		WindowSeconds: v.GetInt("WINDOW_SECONDS"),
		HeartbeatSec:  v.GetInt("HEARTBEAT_SEC"),

		MinAskHeavy:             v.GetInt("MIN_ASK_HEAVY"),
		MinBidHeavy:             v.GetInt("MIN_BID_HEAVY"),
		MaxRangeCents:           v.GetInt("MAX_RANGE_CENTS"),
		AlertThrottleSec:        v.GetInt("ALERT_THROTTLE_SEC"),
		MinVolume:               v.GetFloat64("MIN_VOLUME"),
		MinImbalanceDurationSec: v.GetInt("MIN_IMBALANCE_DURATION_SEC"),

		LivePositionSize: v.GetInt64("LIVE_POSITION_SIZE"),
		LiveShortSize:    shortSize,

		LivePollInterval:          time.Duration(v.GetInt64("LIVE_POLL_INTERVAL")) * time.Second,
		LiveStateFile:             v.GetString("LIVE_STATE_FILE"),
		LivePreferLimitOrders:     v.GetBool("LIVE_PREFER_LIMIT_ORDERS"),
		LiveLimitSlippageBps:      v.GetInt("LIVE_LIMIT_SLIPPAGE_BPS"),
		LiveLimitFillTimeout:      time.Duration(v.GetInt64("LIVE_LIMIT_FILL_TIMEOUT")) * time.Second,
		LiveLimitFillPollInterval: time.Duration(v.GetInt64("LIVE_LIMIT_FILL_POLL_INTERVAL")) * time.Second,
		LiveLimitTimeoutPolicy:    TimeoutPolicy(strings.ToUpper(v.GetString("LIVE_LIMIT_TIMEOUT_POLICY"))),
		LiveKillSwitchFile:        v.GetString("LIVE_KILL_SWITCH_FILE"),
		LiveMaxTradesPerHour:      v.GetInt("LIVE_MAX_TRADES_PER_HOUR"),

		InlineDispatchOnly: v.GetBool("INLINE_DISPATCH_ONLY"),
		InlineLiveDryRun:   v.GetBool("INLINE_LIVE_DRY_RUN"),

		LogLevel:    v.GetString("LOG_LEVEL"),
		MetricsAddr: v.GetString("METRICS_ADDR"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func splitSymbols(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// validate checks every field called out in the external interfaces.
// URL/account-id malformation is reported through ErrInvalidURL (exit
// code 2); every other failure is a generic ErrConfig (exit code 1) —
// mirrors grok.py's _normalize_and_validate_callback/account-id int
// parse both landing on sys.exit(2) while a missing-var check lands on
// sys.exit(1).
func (c *Config) validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("%w: SYMBOLS must name at least one ticker", ErrConfig)
	}
	if err := c.validateURLAndAccount(); err != nil {
		return err
	}
	switch c.LiveLimitTimeoutPolicy {
	case TimeoutPolicyMarket, TimeoutPolicyReprice, TimeoutPolicyAbandon:
	default:
		return fmt.Errorf("%w: LIVE_LIMIT_TIMEOUT_POLICY must be MARKET, REPRICE or ABANDON, got %q", ErrConfig, c.LiveLimitTimeoutPolicy)
	}
	if c.MaxRangeCents < 0 {
		return fmt.Errorf("%w: MAX_RANGE_CENTS must be >= 0", ErrConfig)
	}
	return nil
}

// validateURLAndAccount normalizes SCHWAB_REDIRECT_URI and checks
// SCHWAB_ACCOUNT_ID is a plain integer, the way a real brokerage
// account id is shaped. Either failure is the spec's "invalid URL or
// account id" exit-code-2 class, distinct from a generic config error.
func (c *Config) validateURLAndAccount() error {
	if c.SchwabRedirectURI != "" {
		u, err := url.Parse(c.SchwabRedirectURI)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: SCHWAB_REDIRECT_URI must be http(s)://host[:port]/: %q", ErrInvalidURL, c.SchwabRedirectURI)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
			c.SchwabRedirectURI = u.String()
		}
	}
	if c.SchwabAccountID != "" {
		if _, err := strconv.ParseInt(c.SchwabAccountID, 10, 64); err != nil {
			return fmt.Errorf("%w: SCHWAB_ACCOUNT_ID must be an integer: %q", ErrInvalidURL, c.SchwabAccountID)
		}
	}
	return nil
}
