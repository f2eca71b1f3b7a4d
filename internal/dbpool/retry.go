package dbpool

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// ErrorKind classifies a pool error for the retry executor. Only Pool
// errors carry retryability; every other taxonomy kind is handled at the
// transport layer instead.
type ErrorKind string

const (
	ErrConnectionFailed       ErrorKind = "ConnectionFailed"
	ErrAuthenticationFailed   ErrorKind = "AuthenticationFailed"
	ErrTemporarilyUnavailable ErrorKind = "TemporarilyUnavailable"
	ErrTooManyConnections     ErrorKind = "TooManyConnections"
	ErrDatabaseNotFound       ErrorKind = "DatabaseNotFound"
	ErrOther                  ErrorKind = "Other"
)

var retryable = map[ErrorKind]bool{
	ErrConnectionFailed:       true,
	ErrTemporarilyUnavailable: true,
	ErrTooManyConnections:     true,
	ErrAuthenticationFailed:   false,
	ErrDatabaseNotFound:       false,
	ErrOther:                  false,
}

// Retryable reports whether an error of the given kind should be retried.
func Retryable(kind ErrorKind) bool {
	return retryable[kind]
}

// ClassifiedError pairs an underlying error with its retry classification.
type ClassifiedError struct {
	Kind ErrorKind
	Err  error
}

func (e *ClassifiedError) Error() string { return e.Err.Error() }
func (e *ClassifiedError) Unwrap() error { return e.Err }

// Classifier classifies an error returned from attempting to open or use
// the pool into a Pool error kind.
type Classifier func(error) ErrorKind

// RetryConfig controls the startup retry executor. Values are
// loaded from DB_RETRY_* environment variables.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultRetryConfig returns reasonable defaults for the startup retry loop.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// LoadRetryConfigFromEnv loads DB_RETRY_MAX_ATTEMPTS, DB_RETRY_INITIAL_DELAY,
// DB_RETRY_MAX_DELAY, DB_RETRY_MULTIPLIER, DB_RETRY_JITTER.
func LoadRetryConfigFromEnv() (RetryConfig, error) {
	cfg := DefaultRetryConfig()
	if v, err := envInt("DB_RETRY_MAX_ATTEMPTS"); err != nil {
		return cfg, err
	} else if v != nil {
		cfg.MaxAttempts = *v
	}
	if v, err := envDuration("DB_RETRY_INITIAL_DELAY"); err != nil {
		return cfg, err
	} else if v != nil {
		cfg.InitialDelay = *v
	}
	if v, err := envDuration("DB_RETRY_MAX_DELAY"); err != nil {
		return cfg, err
	} else if v != nil {
		cfg.MaxDelay = *v
	}
	if v, err := envFloat("DB_RETRY_MULTIPLIER"); err != nil {
		return cfg, err
	} else if v != nil {
		cfg.Multiplier = *v
	}
	if v, err := envBool("DB_RETRY_JITTER"); err != nil {
		return cfg, err
	} else if v != nil {
		cfg.Jitter = *v
	}
	return cfg, nil
}

// Executor runs an operation with exponential-backoff-with-jitter retry,
// aborting immediately on a non-retryable classified error. It logs each
// attempt at warn level and the final failure at error level, matching the
// operator-visible behavior.
type Executor struct {
	Config     RetryConfig
	Classifier Classifier
}

// Do runs fn, retrying on retryable classified errors until Config.MaxAttempts
// is exhausted or ctx is cancelled.
func (e *Executor) Do(ctx context.Context, opLabel string, fn func(context.Context) error) error {
	attempts := e.Config.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := e.Config.InitialDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		kind := e.classify(err)
		lastErr = &ClassifiedError{Kind: kind, Err: err}

		if !Retryable(kind) {
			slog.Error("non-retryable error, aborting retry loop", "op", opLabel, "kind", kind, "error", err)
			return lastErr
		}
		if attempt == attempts {
			break
		}

		sleep := computeBackoff(delay, e.Config.Multiplier, e.Config.MaxDelay, attempt-1, e.Config.Jitter)
		slog.Warn("retrying after transient error", "op", opLabel, "attempt", attempt, "sleep", sleep, "kind", kind, "error", err)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	slog.Error("retry loop exhausted", "op", opLabel, "attempts", attempts, "error", lastErr)
	return lastErr
}

func (e *Executor) classify(err error) ErrorKind {
	if e.Classifier == nil {
		return ErrOther
	}
	return e.Classifier(err)
}

// computeBackoff returns min(initial * multiplier^exp, max), optionally
// jittered to a value in [half the computed delay, the computed delay).
func computeBackoff(initial time.Duration, multiplier float64, max time.Duration, exp int, jitter bool) time.Duration {
	if multiplier <= 0 {
		multiplier = 2.0
	}
	backoff := float64(initial)
	for i := 0; i < exp; i++ {
		backoff *= multiplier
	}
	d := time.Duration(backoff)
	if max > 0 && d > max {
		d = max
	}
	if !jitter {
		return d
	}
	half := float64(d) / 2
	return time.Duration(half + rand.Float64()*half)
}

func envInt(name string) (*int, error) {
	v := getenv(name)
	if v == "" {
		return nil, nil
	}
	n, err := parseInt(v)
	if err != nil {
		return nil, errInvalid(name, err)
	}
	return &n, nil
}

func envDuration(name string) (*time.Duration, error) {
	v := getenv(name)
	if v == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil, errInvalid(name, err)
	}
	return &d, nil
}

func envFloat(name string) (*float64, error) {
	v := getenv(name)
	if v == "" {
		return nil, nil
	}
	f, err := parseFloat(v)
	if err != nil {
		return nil, errInvalid(name, err)
	}
	return &f, nil
}

func envBool(name string) (*bool, error) {
	v := getenv(name)
	if v == "" {
		return nil, nil
	}
	b, err := parseBool(v)
	if err != nil {
		return nil, errInvalid(name, err)
	}
	return &b, nil
}
