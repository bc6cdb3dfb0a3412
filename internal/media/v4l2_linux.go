package media

import (
	"time"

	"github.com/lanikai/alohacap/internal/color"
	"github.com/lanikai/alohacap/internal/fault"
	"github.com/lanikai/alohacap/internal/v4l2"
	"github.com/pkg/errors"
)

const v4l2Tag = "v4l2"

// Default capture shape when the caller leaves it open.
const (
	v4l2Width  = 640
	v4l2Height = 480
)

// How long the read loop blocks in select before checking for quit.
const frameWait = 200 * time.Millisecond

func init() {
	RegisterSourceType(v4l2Tag, Camera, 0, func() Source { return new(v4l2Source) })
}

// Capturable fourccs in order of preference.
var v4l2Formats = []struct {
	fourcc uint32
	format color.PixelFormat
}{
	{v4l2.PixelFormatYUYV, color.YUYV},
	{v4l2.PixelFormatNV12, color.NV12},
	{v4l2.PixelFormatYU12, color.I420},
	{v4l2.PixelFormatUYVY, color.UYVY},
	{v4l2.PixelFormatBGR24, color.BGR24},
	{v4l2.PixelFormatRGB24, color.RGB24},
}

func formatOf(fourcc uint32) (color.PixelFormat, bool) {
	for _, e := range v4l2Formats {
		if e.fourcc == fourcc {
			return e.format, true
		}
	}
	return color.Unknown, false
}

// Frame sizes offered for stepwise devices, clipped to the device range.
var commonResolutions = []Resolution{
	{320, 240}, {640, 480}, {800, 600}, {1280, 720}, {1920, 1080}, {3840, 2160},
}

// v4l2Source is a live camera. Frames are copied out of the mmap buffers so
// the kernel buffer can be requeued immediately.
type v4l2Source struct {
	stream

	dev    *v4l2.Device
	format v4l2.Format
	pix    color.PixelFormat
}

func (s *v4l2Source) FindDeviceNames() []string {
	var names []string
	for _, path := range v4l2.ListDevices() {
		// Skip metadata nodes and other non-capture devices.
		dev, err := v4l2.Open(path)
		if err != nil {
			log.Trace(1, "skipping %s: %v", path, err)
			continue
		}
		dev.Close()
		names = append(names, Qualify(v4l2Tag, path))
	}
	return names
}

func (s *v4l2Source) Open(path string, cfg Config, sink Sink) error {
	if s.IsOpened() {
		return ErrAlreadyOpened
	}
	if path == "" {
		paths := v4l2.ListDevices()
		if len(paths) == 0 {
			return ErrNotFound
		}
		path = paths[0]
	}

	dev, err := v4l2.Open(path)
	if err != nil {
		return err
	}
	if err := s.configure(dev, cfg, sink); err != nil {
		dev.Close()
		return err
	}
	if err := s.stream.open(sink); err != nil {
		dev.Close()
		return err
	}
	s.dev = dev
	log.Info("Opened %s (%s): %dx%d %s", path, dev.Card(), s.format.Width, s.format.Height, v4l2.FourCC(s.format.PixelFormat))
	return nil
}

// configure negotiates format, size and rate. Mismatches are reported but not
// fatal: the camera delivers whatever it settled on.
func (s *v4l2Source) configure(dev *v4l2.Device, cfg Config, sink Sink) error {
	offered := dev.PixelFormats()
	fourcc, ok := pickFourCC(offered, cfg.PixelFormat)
	if !ok {
		return errors.Wrapf(ErrNotSupported, "%s: no raw pixel format among %d offered", dev.Path(), len(offered))
	}
	if cfg.PixelFormat != color.Unknown {
		if pf, _ := formatOf(fourcc); pf.Base() != cfg.PixelFormat.Base() {
			sink.Report(fault.UnsupportedPixelFormat, errors.Errorf("%s: %v not offered, using %v", dev.Path(), cfg.PixelFormat, pf))
		}
	}

	w, h := cfg.Width, cfg.Height
	if w <= 0 || h <= 0 {
		w, h = v4l2Width, v4l2Height
	}
	format, err := dev.SetFormat(w, h, fourcc)
	if err != nil {
		return err
	}
	if format.Width != w || format.Height != h {
		sink.Report(fault.UnsupportedResolution, errors.Errorf("%s: asked for %dx%d, got %dx%d", dev.Path(), w, h, format.Width, format.Height))
	}

	if cfg.FrameRate > 0 {
		if got, err := dev.SetFrameRate(cfg.FrameRate); err != nil {
			sink.Report(fault.FrameRateSetFailed, err)
		} else if got > 0 && (got < cfg.FrameRate*0.99 || got > cfg.FrameRate*1.01) {
			log.Warn("%s: asked for %.2f fps, got %.2f", dev.Path(), cfg.FrameRate, got)
		}
	}

	// Orientation is applied in software; clear any mirroring left behind.
	if err := dev.SetFlip(false, false); err != nil {
		log.Trace(1, "%s: mirror controls unavailable: %v", dev.Path(), err)
	}

	s.format = format
	s.pix, _ = formatOf(format.PixelFormat)
	return nil
}

// pickFourCC prefers the requested format, then the preference order.
func pickFourCC(offered []uint32, want color.PixelFormat) (uint32, bool) {
	has := make(map[uint32]bool, len(offered))
	for _, f := range offered {
		has[f] = true
	}
	for _, e := range v4l2Formats {
		if has[e.fourcc] && want != color.Unknown && e.format == want.Base() {
			return e.fourcc, true
		}
	}
	for _, e := range v4l2Formats {
		if has[e.fourcc] {
			return e.fourcc, true
		}
	}
	return 0, false
}

func (s *v4l2Source) Close() error {
	s.stream.close()
	if s.dev == nil {
		return nil
	}
	s.dev.Stop()
	err := s.dev.Close()
	s.dev = nil
	return err
}

func (s *v4l2Source) Start() error {
	if s.IsStarted() {
		return nil
	}
	if s.dev == nil {
		return ErrNotOpened
	}
	if err := s.dev.Start(v4l2.DefaultBuffers); err != nil {
		return err
	}
	return s.startLoop(s.run)
}

func (s *v4l2Source) Stop() error {
	s.stopLoop()
	if s.dev == nil {
		return nil
	}
	return s.dev.Stop()
}

func (s *v4l2Source) run(quit <-chan struct{}) {
	for {
		select {
		case <-quit:
			return
		default:
		}

		err := s.dev.ReadFrame(frameWait, s.deliver)
		switch {
		case err == nil:
		case errors.Cause(err) == v4l2.ErrTimeout:
			log.Trace(2, "%s: no frame within %v", s.dev.Path(), frameWait)
		default:
			s.sink.Report(fault.FrameCaptureFailed, err)
			s.sink.NotifyEndOfStream()
			return
		}
	}
}

// deliver copies one mmap buffer into a pool frame.
func (s *v4l2Source) deliver(data []byte) {
	w, h, bpl := s.format.Width, s.format.Height, s.format.BytesPerLine
	f := s.sink.AcquireFrame()
	f.Width, f.Height, f.Format = w, h, s.pix
	_, sizes := f.Format.Layout(w, h)
	f.SetPlanes(f.RawBuffer(sizes[0] + sizes[1] + sizes[2]))

	if err := copyPadded(f.Data, f.Stride, data, bpl, s.pix, h); err != nil {
		f.Release()
		s.sink.Report(fault.FrameCaptureFailed, errors.Wrapf(err, "%s", s.dev.Path()))
		return
	}
	s.stamp(f)
	s.sink.Deliver(f)
}

// copyPadded copies planes whose rows are bpl bytes apart (the driver may pad
// rows) into tightly packed destination planes.
func copyPadded(dst [3][]byte, stride [3]int, src []byte, bpl int, pf color.PixelFormat, h int) error {
	if bpl < stride[0] {
		bpl = stride[0]
	}
	ch := (h + 1) / 2
	srcStride := [3]int{bpl}
	rows := [3]int{h}
	switch pf.Base() {
	case color.NV12:
		srcStride[1], rows[1] = bpl, ch
	case color.I420:
		srcStride[1], srcStride[2] = bpl/2, bpl/2
		rows[1], rows[2] = ch, ch
	}

	off := 0
	for i := 0; i < 3 && dst[i] != nil; i++ {
		n := (rows[i]-1)*srcStride[i] + stride[i]
		if off+n > len(src) {
			return errors.Errorf("short buffer: %d bytes, plane %d needs %d at %d", len(src), i, n, off)
		}
		err := color.CopyRows(color.Plane{Data: src[off:], Stride: srcStride[i]},
			color.Plane{Data: dst[i], Stride: stride[i]}, stride[i], rows[i])
		if err != nil {
			return err
		}
		off += rows[i] * srcStride[i]
	}
	return nil
}

func (s *v4l2Source) DeviceInfo() (DeviceInfo, bool) {
	if s.dev == nil {
		return DeviceInfo{}, false
	}
	v, err := cached(Qualify(v4l2Tag, s.dev.Path()), func() (interface{}, error) {
		return s.probe(), nil
	})
	if err != nil {
		return DeviceInfo{}, false
	}
	return v.(DeviceInfo), true
}

func (s *v4l2Source) probe() DeviceInfo {
	info := DeviceInfo{Name: s.dev.Card()}
	for _, fourcc := range s.dev.PixelFormats() {
		pf, ok := formatOf(fourcc)
		if !ok {
			log.Verbose("%s: skipping %s", s.dev.Path(), v4l2.FourCC(fourcc))
			continue
		}
		info.PixelFormats = append(info.PixelFormats, pf)
		for _, fs := range s.dev.FrameSizes(fourcc) {
			if fs.StepWidth == 0 {
				info.Resolutions = append(info.Resolutions, Resolution{int(fs.MinWidth), int(fs.MinHeight)})
				continue
			}
			for _, r := range commonResolutions {
				if uint32(r.Width) >= fs.MinWidth && uint32(r.Width) <= fs.MaxWidth &&
					uint32(r.Height) >= fs.MinHeight && uint32(r.Height) <= fs.MaxHeight {
					info.Resolutions = append(info.Resolutions, r)
				}
			}
		}
	}
	info.Normalize()
	return info
}
