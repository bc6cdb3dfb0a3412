package logging

import (
	"errors"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
)

// Logging level. Higher values indicate more verbosity.
type Level int

const (
	Error Level = iota - 2
	Warn
	Info
	Verbose

	// Allow numeric logging levels up to 9.
	MaxLevel Level = 9
)

// Process-wide level, consulted by every logger that has not been pinned to a
// level of its own. Stored atomically so SetLevel may be called at any time.
var globalLevel = int32(Info)

// SetLevel changes the process-wide logging level.
func SetLevel(level Level) {
	if level < Error {
		level = Error
	} else if level > MaxLevel {
		level = MaxLevel
	}
	atomic.StoreInt32(&globalLevel, int32(level))
}

// GetLevel returns the process-wide logging level.
func GetLevel() Level {
	return Level(atomic.LoadInt32(&globalLevel))
}

// ParseLevel accepts a level name, its first letter, or a number.
func ParseLevel(s string) (level Level, err error) {
	// First check for well-known level names or abbreviations.
	switch strings.ToUpper(s) {
	case "E", "ERROR":
		return Error, nil
	case "W", "WARN", "WARNING":
		return Warn, nil
	case "I", "INFO":
		return Info, nil
	case "V", "VERBOSE", "D", "DEBUG":
		return Verbose, nil
	case "T", "TRACE":
		return MaxLevel, nil
	}

	// Otherwise expect an explicit numeric level.
	if n, ierr := strconv.Atoi(s); ierr != nil {
		err = errors.New("Invalid logging level: " + s)
	} else {
		level = Level(n)
		if level < Error || level > MaxLevel {
			err = errors.New("Numeric level out of range: " + s)
		}
	}
	return
}

func (l Level) String() string {
	switch l {
	case Error:
		return "Error"
	case Warn:
		return "Warn"
	case Info:
		return "Info"
	case Verbose:
		return "Verbose"
	default:
		return strconv.Itoa(int(l))
	}
}

func (l Level) letter() byte {
	if l <= Verbose {
		return "EWIV"[l-Error]
	}
	// Numeric values up to 9 are allowed.
	return byte('0' + l)
}

var (
	colorError   = color.New(color.FgRed, color.Bold)
	colorWarn    = color.New(color.FgRed)
	colorInfo    = color.New(color.Reset)
	colorVerbose = color.New(color.FgGreen)
	colorTrace   = color.New(color.FgYellow)
	colorHeader  = color.New(color.FgWhite)
)

func (l Level) color() *color.Color {
	switch l {
	case Error:
		return colorError
	case Warn:
		return colorWarn
	case Info:
		return colorInfo
	case Verbose:
		return colorVerbose
	default:
		return colorTrace
	}
}
