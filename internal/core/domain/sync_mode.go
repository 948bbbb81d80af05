package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SyncModeKind distinguishes the two scheduling modes
type SyncModeKind string

const (
	SyncModeRealtime SyncModeKind = "realtime"
	SyncModeInterval SyncModeKind = "interval"
)

const (
	// RealtimePeriod is the trigger period used in realtime mode
	RealtimePeriod = time.Minute

	// MaxIntervalMinutes caps interval mode at one sweep per day
	MaxIntervalMinutes = 24 * 60
)

// SyncMode is the process-wide scheduling configuration.
// It only affects the scheduler trigger period, never the rate limiter.
type SyncMode struct {
	Kind    SyncModeKind `json:"kind"`
	Minutes int          `json:"minutes,omitempty"`
}

// RealtimeMode returns the realtime sync mode
func RealtimeMode() SyncMode {
	return SyncMode{Kind: SyncModeRealtime}
}

// IntervalMode returns an interval mode of the given minutes
func IntervalMode(minutes int) SyncMode {
	return SyncMode{Kind: SyncModeInterval, Minutes: minutes}
}

// ParseSyncMode parses "realtime" or a positive integer number of minutes
func ParseSyncMode(raw string) (SyncMode, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == string(SyncModeRealtime) {
		return RealtimeMode(), nil
	}

	minutes, err := strconv.Atoi(value)
	if err != nil {
		return SyncMode{}, fmt.Errorf("%w: %q", ErrInvalidSyncMode, raw)
	}
	mode := IntervalMode(minutes)
	if err := mode.Validate(); err != nil {
		return SyncMode{}, err
	}
	return mode, nil
}

// Validate checks the mode is well formed
func (m SyncMode) Validate() error {
	switch m.Kind {
	case SyncModeRealtime:
		return nil
	case SyncModeInterval:
		if m.Minutes < 1 || m.Minutes > MaxIntervalMinutes {
			return fmt.Errorf("%w: interval must be between 1 and %d minutes, got %d",
				ErrInvalidSyncMode, MaxIntervalMinutes, m.Minutes)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSyncMode, m.Kind)
	}
}

// Period returns the scheduler trigger period for the mode
func (m SyncMode) Period() time.Duration {
	if m.Kind == SyncModeInterval && m.Minutes > 0 {
		return time.Duration(m.Minutes) * time.Minute
	}
	return RealtimePeriod
}

// String renders the mode in the same form ParseSyncMode accepts
func (m SyncMode) String() string {
	if m.Kind == SyncModeInterval {
		return strconv.Itoa(m.Minutes)
	}
	return string(SyncModeRealtime)
}
