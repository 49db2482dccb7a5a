package core

import (
	"errors"
	"fmt"
	"time"
)

// Kind is a stable, machine-readable error classification so callers can
// branch programmatically on failure payloads.
type Kind string

const (
	KindRateLimited       Kind = "rate_limited"
	KindNoMarkets         Kind = "no_markets"
	KindSourceUnavailable Kind = "source_unavailable"
	KindInternal          Kind = "internal"
)

// ErrNoMarkets is returned when the catalog yields nothing to analyze.
var ErrNoMarkets = errors.New("no markets available")

// RateLimitedError signals that the outbound call budget is exhausted.
// Completed results may still accompany it on batch analysis.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// SourceUnavailableError marks one provider as unreachable or malformed
// for the current request. It reduces source count, never aborts a market.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// KindOf classifies an error into its stable kind.
func KindOf(err error) Kind {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return KindRateLimited
	}
	if errors.Is(err, ErrNoMarkets) {
		return KindNoMarkets
	}
	var su *SourceUnavailableError
	if errors.As(err, &su) {
		return KindSourceUnavailable
	}
	return KindInternal
}
