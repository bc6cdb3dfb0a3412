// Package fault is the process-wide error reporting channel. Recoverable
// faults (device, negotiation, decode and conversion failures) are logged and
// handed to an optional callback registered by the application.
package fault

import (
	"fmt"
	"sync"

	"github.com/lanikai/alohacap/internal/logging"
)

var log = logging.DefaultLogger.WithTag("fault")

// Code identifies a class of recoverable fault.
type Code int

const (
	NoDeviceFound     Code = 0x1001
	InvalidDevice     Code = 0x1002
	DeviceOpenFailed  Code = 0x1003
	DeviceStartFailed Code = 0x1004
	DeviceStopFailed  Code = 0x1005

	UnsupportedResolution  Code = 0x2001
	UnsupportedPixelFormat Code = 0x2002
	FrameRateSetFailed     Code = 0x2003
	PropertySetFailed      Code = 0x2004
	UnsupportedConversion  Code = 0x2005

	FrameCaptureTimeout Code = 0x3001
	FrameCaptureFailed  Code = 0x3002

	MemoryAllocationFailed Code = 0x4001

	FileOpenFailed Code = 0x5001
	SeekFailed     Code = 0x5002

	InternalError Code = 0x9999
)

var codeNames = map[Code]string{
	NoDeviceFound:          "NoDeviceFound",
	InvalidDevice:          "InvalidDevice",
	DeviceOpenFailed:       "DeviceOpenFailed",
	DeviceStartFailed:      "DeviceStartFailed",
	DeviceStopFailed:       "DeviceStopFailed",
	UnsupportedResolution:  "UnsupportedResolution",
	UnsupportedPixelFormat: "UnsupportedPixelFormat",
	FrameRateSetFailed:     "FrameRateSetFailed",
	PropertySetFailed:      "PropertySetFailed",
	UnsupportedConversion:  "UnsupportedConversion",
	FrameCaptureTimeout:    "FrameCaptureTimeout",
	FrameCaptureFailed:     "FrameCaptureFailed",
	MemoryAllocationFailed: "MemoryAllocationFailed",
	FileOpenFailed:         "FileOpenFailed",
	SeekFailed:             "SeekFailed",
	InternalError:          "InternalError",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%#x)", int(c))
}

// Callback receives every reported fault.
type Callback func(code Code, description string)

var (
	mu       sync.RWMutex
	callback Callback
)

// SetCallback registers the process-wide fault callback. Passing nil removes it.
func SetCallback(cb Callback) {
	mu.Lock()
	callback = cb
	mu.Unlock()
}

// Report logs a fault and forwards it to the registered callback, if any.
// The callback runs on the reporting goroutine.
func Report(code Code, description string) {
	log.Log(logging.Error, 1, "%v: %s", code, description)

	mu.RLock()
	cb := callback
	mu.RUnlock()

	if cb != nil {
		cb(code, description)
	}
}

// Reportf is Report with a formatted description.
func Reportf(code Code, format string, a ...interface{}) {
	Report(code, fmt.Sprintf(format, a...))
}
