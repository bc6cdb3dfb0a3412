//go:build gocam
// +build gocam

package media

import (
	"context"
	"sync"

	"github.com/lanikai/alohacap/internal/color"
	"github.com/lanikai/alohacap/internal/fault"
	"github.com/pkg/errors"
	"github.com/svanichkin/gocam"
)

const gocamTag = "gocam"

func init() {
	RegisterSourceType(gocamTag, Camera, 10, func() Source { return new(gocamSource) })
}

// gocamSource captures from the system camera through gocam, which delivers
// packed 4:4:4 YCbCr (full range, 3 bytes per pixel). Frames are subsampled
// to I420F on arrival.
type gocamSource struct {
	stream

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	// Shape of the most recent frame, for DeviceInfo.
	width, height int
}

func (s *gocamSource) FindDeviceNames() []string {
	return []string{Qualify(gocamTag, "default")}
}

func (s *gocamSource) Open(name string, cfg Config, sink Sink) error {
	if name != "" && name != "default" {
		return errors.Wrapf(ErrNotFound, "gocam device %q", name)
	}
	if cfg.Width > 0 || cfg.FrameRate > 0 {
		log.Info("gocam picks its own capture size and rate; ignoring %dx%d @ %.2f", cfg.Width, cfg.Height, cfg.FrameRate)
	}
	return s.stream.open(sink)
}

func (s *gocamSource) Close() error {
	s.Stop()
	s.stream.close()
	return nil
}

func (s *gocamSource) Start() error {
	if !s.IsOpened() {
		return ErrNotOpened
	}
	if s.IsStarted() {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	frames, err := gocam.StartStream(ctx)
	if err != nil {
		cancel()
		return errors.Wrap(err, "gocam")
	}
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()

	return s.startLoop(func(quit <-chan struct{}) {
		for {
			select {
			case <-quit:
				return
			case fr, ok := <-frames:
				if !ok {
					s.sink.Report(fault.FrameCaptureFailed, errors.New("gocam: stream closed"))
					s.sink.NotifyEndOfStream()
					return
				}
				s.deliver(fr)
			}
		}
	})
}

func (s *gocamSource) deliver(fr gocam.Frame) {
	w, h := fr.Width, fr.Height
	if w <= 0 || h <= 0 || len(fr.Data) < w*h*3 {
		log.Warn("gocam: dropping malformed %dx%d frame (%d bytes)", w, h, len(fr.Data))
		return
	}
	s.mu.Lock()
	s.width, s.height = w, h
	s.mu.Unlock()

	f := s.sink.AcquireFrame()
	f.Width, f.Height, f.Format = w, h, color.I420F
	_, sizes := f.Format.Layout(w, h)
	f.SetPlanes(f.RawBuffer(sizes[0] + sizes[1] + sizes[2]))
	ycbcr444ToI420(fr.Data, w, h, f.Data, f.Stride)
	s.stamp(f)
	s.sink.Deliver(f)
}

// ycbcr444ToI420 subsamples packed Y,Cb,Cr triples, taking chroma from the
// top-left pixel of each 2×2 block.
func ycbcr444ToI420(src []byte, w, h int, dst [3][]byte, stride [3]int) {
	for y := 0; y < h; y++ {
		row := src[y*w*3:]
		ys := dst[0][y*stride[0]:]
		for x := 0; x < w; x++ {
			ys[x] = row[x*3]
		}
		if y&1 != 0 {
			continue
		}
		us, vs := dst[1][y/2*stride[1]:], dst[2][y/2*stride[2]:]
		for x := 0; x < w; x += 2 {
			us[x/2] = row[x*3+1]
			vs[x/2] = row[x*3+2]
		}
	}
}

func (s *gocamSource) Stop() error {
	s.cancelMu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.cancelMu.Unlock()
	s.stopLoop()
	return nil
}

func (s *gocamSource) DeviceInfo() (DeviceInfo, bool) {
	if !s.IsOpened() {
		return DeviceInfo{}, false
	}
	info := DeviceInfo{
		Name:         Qualify(gocamTag, "default"),
		PixelFormats: []color.PixelFormat{color.I420F},
	}
	s.mu.Lock()
	if s.width > 0 {
		info.Resolutions = []Resolution{{s.width, s.height}}
	}
	s.mu.Unlock()
	return info, true
}
