package alohacap

import (
	"github.com/lanikai/alohacap/internal/fault"
	"github.com/lanikai/alohacap/internal/media"
)

var (
	ErrNotOpened     = media.ErrNotOpened
	ErrAlreadyOpened = media.ErrAlreadyOpened
	ErrNotFound      = media.ErrNotFound
	ErrNotSupported  = media.ErrNotSupported
)

// ErrorCode identifies a class of recoverable fault passed to the error
// callback.
type ErrorCode = fault.Code

const (
	ErrorNoDeviceFound     = fault.NoDeviceFound
	ErrorInvalidDevice     = fault.InvalidDevice
	ErrorDeviceOpenFailed  = fault.DeviceOpenFailed
	ErrorDeviceStartFailed = fault.DeviceStartFailed
	ErrorDeviceStopFailed  = fault.DeviceStopFailed

	ErrorUnsupportedResolution  = fault.UnsupportedResolution
	ErrorUnsupportedPixelFormat = fault.UnsupportedPixelFormat
	ErrorFrameRateSetFailed     = fault.FrameRateSetFailed
	ErrorPropertySetFailed      = fault.PropertySetFailed
	ErrorUnsupportedConversion  = fault.UnsupportedConversion

	ErrorFrameCaptureTimeout = fault.FrameCaptureTimeout
	ErrorFrameCaptureFailed  = fault.FrameCaptureFailed

	ErrorMemoryAllocationFailed = fault.MemoryAllocationFailed

	ErrorFileOpenFailed = fault.FileOpenFailed
	ErrorSeekFailed     = fault.SeekFailed

	ErrorInternal = fault.InternalError
)

// SetErrorCallback registers a process-wide function receiving every
// recoverable fault, from any provider. nil removes it. Grab timeouts are
// never reported.
func SetErrorCallback(cb func(code ErrorCode, description string)) {
	if cb == nil {
		fault.SetCallback(nil)
		return
	}
	fault.SetCallback(fault.Callback(cb))
}
