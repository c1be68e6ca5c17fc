package main

import "errors"

// Error kinds per the error handling design. ParseError, DataGap and
// FeedTimeout recover locally; RateExceeded, KillSwitch and BadFill
// engage emergency shutdown; ConfigError refuses to start.
var (
	ErrParse          = errors.New("parse_error")
	ErrDataGap        = errors.New("data_gap")
	ErrFeedTimeout    = errors.New("feed_timeout")
	ErrExecutorReject = errors.New("executor_reject")
	ErrLimitTimeout   = errors.New("limit_timeout")
	ErrRateExceeded   = errors.New("rate_exceeded")
	ErrKillSwitch     = errors.New("kill_switch")
	ErrBadFill        = errors.New("bad_fill")
	ErrConfig         = errors.New("config_error")
	ErrInvalidURL     = errors.New("invalid_url_or_account_id")

	ErrEmergencyShutdown = errors.New("emergency_shutdown")
)

// ExitCode maps a top-level failure onto the process exit codes.
type ExitCode int

const (
	ExitOK              ExitCode = 0
	ExitConfigError     ExitCode = 1
	ExitInvalidURL      ExitCode = 2
	ExitExecutorInit    ExitCode = 3
	ExitFeedInit        ExitCode = 4
	ExitFatalRuntime    ExitCode = 5
)
