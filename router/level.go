package router

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidLevel indicates a severity value that could not be recognized,
// such as an unknown level name in a rule file. It is detected at the call
// boundary before any rule lookup or mutation takes place.
var ErrInvalidLevel = errors.New("invalid severity level")

// Level is a totally ordered, integer-valued message severity.
//
// The canonical reference points below follow the usual debug/info/warn/error
// ordering, but any integer is a legal Level. This allows fine-grained
// thresholds between the named points, e.g. Info+250 suppresses plain Info
// messages while still passing anything more severe.
type Level int

// Canonical severity reference points. Info is the baseline "enabled" value;
// SetEnabled relies on Info being exactly zero.
const (
	// LevelDebug enables detailed diagnostic output. Most verbose named point.
	LevelDebug Level = -1000

	// LevelInfo is the baseline severity for routine operational messages.
	LevelInfo Level = 0

	// LevelWarn marks potentially harmful conditions that do not halt execution.
	LevelWarn Level = 1000

	// LevelError marks failure conditions that require attention.
	LevelError Level = 2000
)

// String returns the canonical name for the named reference points and a
// numeric rendering for everything in between.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
}

// ParseLevel converts a severity string to a Level.
//
// It accepts the canonical names ("debug", "info", "warn", "error") with
// case-insensitive matching, the "warning" alias, and decimal integer
// strings for fine-grained thresholds. Unrecognized values return
// ErrInvalidLevel.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return Level(n), nil
	}
	return 0, fmt.Errorf("%w: %q, must be one of debug, info, warn, error, or an integer", ErrInvalidLevel, s)
}

// normalizeLevel converts a rule-file severity value (integer, integral
// float, or string) to a Level. It is the single conversion point for all
// external rule-set inputs.
func normalizeLevel(v any) (Level, error) {
	switch value := v.(type) {
	case int:
		return Level(value), nil
	case int64:
		return Level(value), nil
	case float64:
		if value != float64(int(value)) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidLevel, value)
		}
		return Level(int(value)), nil
	case string:
		return ParseLevel(value)
	case Level:
		return value, nil
	default:
		return 0, fmt.Errorf("%w: unsupported severity type %T", ErrInvalidLevel, v)
	}
}
