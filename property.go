package alohacap

import (
	"math"
	"time"

	"github.com/lanikai/alohacap/internal/color"
)

// PropertyName is a key of the numeric property interface.
type PropertyName int

const (
	PropertyWidth     PropertyName = 0x10001
	PropertyHeight    PropertyName = 0x10002
	PropertyFrameRate PropertyName = 0x20000

	PropertyPixelFormatInternal PropertyName = 0x30001
	PropertyPixelFormatOutput   PropertyName = 0x30002

	PropertyFrameOrientation PropertyName = 0x40000

	PropertyDisablePixelFormatConvert PropertyName = 0x50001

	// File sources only. Times are in seconds.
	PropertyDuration          PropertyName = 0x60001
	PropertyFrameCount        PropertyName = 0x60002
	PropertyCurrentTime       PropertyName = 0x60003
	PropertyCurrentFrameIndex PropertyName = 0x60004
	PropertyPlaybackSpeed     PropertyName = 0x60005
)

var propertyNames = map[PropertyName]string{
	PropertyWidth:                     "Width",
	PropertyHeight:                    "Height",
	PropertyFrameRate:                 "FrameRate",
	PropertyPixelFormatInternal:       "PixelFormatInternal",
	PropertyPixelFormatOutput:         "PixelFormatOutput",
	PropertyFrameOrientation:          "FrameOrientation",
	PropertyDisablePixelFormatConvert: "DisablePixelFormatConvert",
	PropertyDuration:                  "Duration",
	PropertyFrameCount:                "FrameCount",
	PropertyCurrentTime:               "CurrentTime",
	PropertyCurrentFrameIndex:         "CurrentFrameIndex",
	PropertyPlaybackSpeed:             "PlaybackSpeed",
}

func (name PropertyName) String() string {
	if s, ok := propertyNames[name]; ok {
		return s
	}
	return "Unknown"
}

func validFormat(f PixelFormat) bool {
	if f == Unknown {
		return true
	}
	for _, known := range color.Formats() {
		if f == known {
			return true
		}
	}
	return false
}

// Set changes a property. It returns false, changing nothing, for unknown
// keys, invalid values, read-only keys and file keys without an open file.
//
// Changing the capture shape while opened takes effect at the next Start,
// which reopens the source.
func (p *Provider) Set(name PropertyName, value float64) bool {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false
	}
	ok := p.set(name, value)
	if !ok {
		p.log.Warn("[%s] Set %v = %v rejected", p.id[:8], name, value)
	}
	return ok
}

func (p *Provider) set(name PropertyName, value float64) bool {
	switch name {
	case PropertyWidth, PropertyHeight:
		n := int(value)
		if n <= 0 {
			return false
		}
		p.mu.Lock()
		if name == PropertyWidth {
			p.width = n
		} else {
			p.height = n
		}
		p.markDirty()
		p.mu.Unlock()
		return true

	case PropertyFrameRate:
		if value <= 0 {
			return false
		}
		p.mu.Lock()
		p.frameRate = value
		p.markDirty()
		p.mu.Unlock()
		return true

	case PropertyPixelFormatInternal:
		f := PixelFormat(int(value))
		if !validFormat(f) {
			return false
		}
		p.mu.Lock()
		p.internal = f
		p.markDirty()
		p.mu.Unlock()
		return true

	case PropertyPixelFormatOutput:
		f := PixelFormat(int(value))
		if !validFormat(f) {
			return false
		}
		p.convMu.Lock()
		p.conv.output = f
		p.convMu.Unlock()
		p.mu.Lock()
		p.markDirty()
		p.mu.Unlock()
		return true

	case PropertyFrameOrientation:
		o := Orientation(int(value))
		if o != TopToBottom && o != BottomToTop {
			return false
		}
		p.convMu.Lock()
		p.conv.orientation = o
		p.convMu.Unlock()
		return true

	case PropertyDisablePixelFormatConvert:
		p.convMu.Lock()
		p.conv.disabled = value != 0
		p.convMu.Unlock()
		return true

	case PropertyCurrentTime:
		fs, ok := p.fileSource()
		return ok && fs.Seek(time.Duration(value*float64(time.Second))) == nil

	case PropertyCurrentFrameIndex:
		fs, ok := p.fileSource()
		return ok && fs.SeekFrame(int64(value)) == nil

	case PropertyPlaybackSpeed:
		fs, ok := p.fileSource()
		return ok && fs.SetPlaybackSpeed(value) == nil
	}

	// Unknown, or read-only.
	return false
}

func (p *Provider) markDirty() {
	if p.source != nil {
		p.dirty = true
	}
}

// Get reads a property. Unknown keys, and file keys without an open file,
// read as NaN.
func (p *Provider) Get(name PropertyName) float64 {
	switch name {
	case PropertyWidth, PropertyHeight, PropertyFrameRate, PropertyPixelFormatInternal:
		p.mu.Lock()
		defer p.mu.Unlock()
		switch name {
		case PropertyWidth:
			return float64(p.width)
		case PropertyHeight:
			return float64(p.height)
		case PropertyFrameRate:
			return p.frameRate
		default:
			return float64(p.internal)
		}

	case PropertyPixelFormatOutput:
		return float64(p.conversion().output)
	case PropertyFrameOrientation:
		return float64(p.conversion().orientation)
	case PropertyDisablePixelFormatConvert:
		if p.conversion().disabled {
			return 1
		}
		return 0
	}

	fs, ok := p.fileSource()
	if !ok {
		return math.NaN()
	}
	switch name {
	case PropertyDuration:
		return fs.Duration().Seconds()
	case PropertyFrameCount:
		return float64(fs.FrameCount())
	case PropertyCurrentTime:
		return fs.CurrentTime().Seconds()
	case PropertyCurrentFrameIndex:
		return float64(fs.CurrentFrameIndex())
	case PropertyPlaybackSpeed:
		return fs.PlaybackSpeed()
	}
	return math.NaN()
}
