// Package media implements the capture backends: live cameras, decoded video
// files and synthetic test sources. Backends fill frames obtained from a
// Sink and hand them back through Sink.Deliver.
package media

import (
	"sort"
	"time"

	"github.com/lanikai/alohacap/internal/color"
	"github.com/lanikai/alohacap/internal/fault"
	"github.com/lanikai/alohacap/internal/frame"
	"github.com/lanikai/alohacap/internal/logging"
)

var log = logging.DefaultLogger.WithTag("media")

// Config is the capture shape requested from a backend. Zero values leave
// the choice to the backend.
type Config struct {
	Width     int
	Height    int
	FrameRate float64

	// Native format to request from the device.
	PixelFormat color.PixelFormat
}

// Resolution is a supported capture size.
type Resolution struct {
	Width  int
	Height int
}

// DeviceInfo describes what a device can produce.
type DeviceInfo struct {
	Name         string
	Resolutions  []Resolution
	PixelFormats []color.PixelFormat
}

// Normalize deduplicates the lists. Resolutions are sorted by ascending pixel
// count; pixel formats keep their first-seen order.
func (info *DeviceInfo) Normalize() {
	seen := make(map[Resolution]bool)
	res := info.Resolutions[:0]
	for _, r := range info.Resolutions {
		if !seen[r] {
			seen[r] = true
			res = append(res, r)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Width*res[i].Height < res[j].Width*res[j].Height
	})
	info.Resolutions = res

	seenFormat := make(map[color.PixelFormat]bool)
	formats := info.PixelFormats[:0]
	for _, f := range info.PixelFormats {
		if !seenFormat[f] {
			seenFormat[f] = true
			formats = append(formats, f)
		}
	}
	info.PixelFormats = formats
}

// A Sink consumes the frames a backend produces. The provider implements it.
type Sink interface {
	// AcquireFrame returns a reusable frame owned by the caller.
	AcquireFrame() *frame.Frame

	// Deliver takes over the caller's reference to f.
	Deliver(f *frame.Frame)

	// WaitForSpace blocks until a frame can be delivered without dropping
	// one. It returns false if quit is closed first.
	WaitForSpace(quit <-chan struct{}) bool

	// NotifyEndOfStream wakes consumers waiting for frames.
	NotifyEndOfStream()

	// Report surfaces a recoverable fault.
	Report(code fault.Code, err error)
}

// A Source is one capture backend instance.
type Source interface {
	// FindDeviceNames lists the devices this backend can open.
	FindDeviceNames() []string

	Open(name string, cfg Config, sink Sink) error
	Close() error
	IsOpened() bool

	Start() error
	Stop() error
	IsStarted() bool

	DeviceInfo() (DeviceInfo, bool)
}

// A FileSource decodes a video file. It never drops frames: delivery waits
// for the consumer.
type FileSource interface {
	Source

	Duration() time.Duration
	FrameCount() int64

	CurrentTime() time.Duration
	Seek(t time.Duration) error

	CurrentFrameIndex() int64
	SeekFrame(i int64) error

	// PlaybackSpeed is a multiple of the native frame rate; 0 means decode as
	// fast as the consumer allows.
	PlaybackSpeed() float64
	SetPlaybackSpeed(speed float64) error
}
