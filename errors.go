// Package uid - errors.go provides the error kinds surfaced by the ID engine.
//
// Fatal conditions are typed sentinels (usable with errors.Is) wrapped by rich
// error structs carrying the timing and configuration context needed to debug
// them. Soft conditions (a full or empty ring) are absorbed by the buffer
// handlers and never escape as anything other than these kinds.

package uid

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by the generator.
var (
	// ErrInvalidLayout is returned when the bit triple is unusable: a
	// component is not positive, or sign + time + worker + sequence bits
	// exceed 64. Raised at construction and fatal.
	ErrInvalidLayout = errors.New("invalid bit layout")

	// ErrInvalidConfig is returned when Properties or Config validation
	// fails. Raised at construction and fatal.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTimestampExhausted is returned when the current time has outrun the
	// layout's delta-seconds capacity. The service cannot recover without a
	// new layout.
	ErrTimestampExhausted = errors.New("timestamp bits exhausted")

	// ErrClockRegression is returned from the mint path when the wall clock
	// moved backwards further than the policy tolerates. The caller may
	// retry once the clock has caught up.
	ErrClockRegression = errors.New("clock moved backwards")

	// ErrRingExhausted is returned by the cached variant when a consumer
	// outruns the padding producer and the ring is empty. The caller may
	// retry; the padding executor has already been asked for a refill.
	ErrRingExhausted = errors.New("ring buffer exhausted")

	// ErrGeneratorClosed is returned when an ID is requested after Close.
	ErrGeneratorClosed = errors.New("generator closed")

	// ErrGeneratorDisabled is returned by Properties.Build when the
	// subsystem is switched off.
	ErrGeneratorDisabled = errors.New("generator disabled")
)

// ClockError reports a clock regression with the timing details needed to
// debug NTP steps, VM migrations or manual time changes.
//
// Match it with errors.As, or check the kind with errors.Is(err,
// ErrClockRegression):
//
//	var clockErr *uid.ClockError
//	if errors.As(err, &clockErr) {
//	    log.Warn("clock regressed",
//	        zap.Int64("drift_s", clockErr.DriftSeconds),
//	        zap.Int64("worker", clockErr.WorkerID))
//	}
type ClockError struct {
	// CurrentSecond is the wall-clock second observed by the failing mint.
	CurrentSecond int64

	// LastSecond is the second of the last successful mint.
	LastSecond int64

	// DriftSeconds is LastSecond - CurrentSecond, always positive.
	DriftSeconds int64

	// ToleranceSeconds is the configured spin-wait window. Zero under the
	// strict policy.
	ToleranceSeconds int64

	// WorkerID identifies the minter that hit the regression.
	WorkerID int64
}

// Error implements the error interface.
func (e *ClockError) Error() string {
	return fmt.Sprintf("clock moved backwards: drift=%ds tolerance=%ds current=%d last=%d worker=%d",
		e.DriftSeconds, e.ToleranceSeconds, e.CurrentSecond, e.LastSecond, e.WorkerID)
}

// Unwrap makes errors.Is(err, ErrClockRegression) work.
func (e *ClockError) Unwrap() error {
	return ErrClockRegression
}

// DriftDuration returns the regression as a time.Duration.
func (e *ClockError) DriftDuration() time.Duration {
	return time.Duration(e.DriftSeconds) * time.Second
}

// ConfigError reports which configuration field failed validation and why.
type ConfigError struct {
	// Field is the name of the offending configuration key.
	Field string

	// Value is the rejected value, rendered as a string.
	Value string

	// Reason explains why the value is invalid.
	Reason string

	// Constraint describes the valid range, e.g. "must be in (0, 100)".
	Constraint string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%s (%s) - %s",
		e.Field, e.Value, e.Reason, e.Constraint)
}

// Unwrap makes errors.Is(err, ErrInvalidConfig) work.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// IsClockError reports whether err is or wraps a ClockError.
func IsClockError(err error) bool {
	var clockErr *ClockError
	return errors.As(err, &clockErr)
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// GetClockError extracts the ClockError from an error chain.
func GetClockError(err error) (*ClockError, bool) {
	var clockErr *ClockError
	if errors.As(err, &clockErr) {
		return clockErr, true
	}
	return nil, false
}

// GetConfigError extracts the ConfigError from an error chain.
func GetConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// newClockError builds a ClockError from the minter's view of the clock.
func newClockError(currentSecond, lastSecond, toleranceSeconds, workerID int64) *ClockError {
	return &ClockError{
		CurrentSecond:    currentSecond,
		LastSecond:       lastSecond,
		DriftSeconds:     lastSecond - currentSecond,
		ToleranceSeconds: toleranceSeconds,
		WorkerID:         workerID,
	}
}

// newConfigError builds a ConfigError for a single rejected field.
func newConfigError(field, value, reason, constraint string) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Reason:     reason,
		Constraint: constraint,
	}
}
