package main

import (
	"errors"
	"testing"
)

func baseValidConfig() Config {
	return Config{
		Symbols:                []string{"AAPL"},
		LiveLimitTimeoutPolicy: TimeoutPolicyMarket,
		MaxRangeCents:          5,
	}
}

func TestValidateMissingSymbolsIsGenericConfigError(t *testing.T) {
	t.Parallel()
	cfg := baseValidConfig()
	cfg.Symbols = nil

	err := cfg.validate()
	if err == nil {
		t.Fatal("expected an error for empty Symbols")
	}
	if !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
	if errors.Is(err, ErrInvalidURL) {
		t.Errorf("missing SYMBOLS must not be classified as ErrInvalidURL: %v", err)
	}
}

func TestValidateBadRedirectURIIsInvalidURL(t *testing.T) {
	t.Parallel()
	cfg := baseValidConfig()
	cfg.SchwabRedirectURI = "not a url"

	err := cfg.validate()
	if err == nil {
		t.Fatal("expected an error for a malformed redirect URI")
	}
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got %v", err)
	}
}

func TestValidateNonIntegerAccountIDIsInvalidURL(t *testing.T) {
	t.Parallel()
	cfg := baseValidConfig()
	cfg.SchwabAccountID = "not-an-int"

	err := cfg.validate()
	if err == nil {
		t.Fatal("expected an error for a non-integer account id")
	}
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got %v", err)
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	t.Parallel()
	cfg := baseValidConfig()
	cfg.SchwabRedirectURI = "https://example.com/callback"
	cfg.SchwabAccountID = "123456"

	if err := cfg.validate(); err != nil {
		t.Fatalf("validate: unexpected error %v", err)
	}
}
