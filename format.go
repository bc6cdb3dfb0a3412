package alohacap

import (
	"github.com/lanikai/alohacap/internal/color"
	"github.com/lanikai/alohacap/internal/frame"
	"github.com/lanikai/alohacap/internal/logging"
	"github.com/lanikai/alohacap/internal/media"
)

type (
	Frame       = frame.Frame
	Allocator   = frame.Allocator
	PixelFormat = color.PixelFormat
	Orientation = color.Orientation
	ConvertFlag = color.ConvertFlag
	DeviceInfo  = media.DeviceInfo
	Resolution  = media.Resolution
)

const (
	Unknown = color.Unknown
	NV12    = color.NV12
	NV12F   = color.NV12F
	I420    = color.I420
	I420F   = color.I420F
	YUYV    = color.YUYV
	YUYVF   = color.YUYVF
	UYVY    = color.UYVY
	UYVYF   = color.UYVYF
	RGB24   = color.RGB24
	BGR24   = color.BGR24
	RGBA32  = color.RGBA32
	BGRA32  = color.BGRA32

	TopToBottom = color.TopToBottom
	BottomToTop = color.BottomToTop

	BT601      = color.BT601
	BT709      = color.BT709
	VideoRange = color.VideoRange
	FullRange  = color.FullRange
)

// ParsePixelFormat looks up a format by name, e.g. "BGRA32" or "nv12f".
func ParsePixelFormat(name string) (PixelFormat, bool) {
	return color.ParseFormat(name)
}

// LogLevel gates diagnostic output.
type LogLevel = logging.Level

const (
	LogError   = logging.Error
	LogWarn    = logging.Warn
	LogInfo    = logging.Info
	LogVerbose = logging.Verbose
)

// SetLogLevel sets the process-wide logging level. Levels pinned per tag in
// the LOGLEVEL environment variable still apply.
func SetLogLevel(level LogLevel) {
	logging.SetLevel(level)
}
