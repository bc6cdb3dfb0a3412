package media

import (
	"time"

	"github.com/lanikai/alohacap/internal/color"
	"github.com/lanikai/alohacap/internal/frame"
	"github.com/pkg/errors"
)

const testTag = "test"

// Default shape of synthetic devices.
const (
	testWidth     = 640
	testHeight    = 480
	testFrameRate = 30
)

// Synthetic patterns, in enumeration order. Animated patterns are repainted
// for every frame.
var testPatterns = []struct {
	name     string
	animated bool
}{
	{"bars", false},
	{"gradient", true},
	{"black", false},
}

func init() {
	RegisterSourceType(testTag, Virtual, 0, func() Source { return new(testSource) })
}

// testSource is a live virtual camera producing a synthetic pattern at a
// fixed frame rate. Like a real camera, it drops frames when the consumer
// falls behind.
type testSource struct {
	stream

	pattern  string
	animated bool

	width, height int
	format        color.PixelFormat
	interval      time.Duration

	// Pre-rendered frame for static patterns.
	template *frame.Frame
}

func (s *testSource) FindDeviceNames() []string {
	names := make([]string, len(testPatterns))
	for i, p := range testPatterns {
		names[i] = Qualify(testTag, p.name)
	}
	return names
}

func (s *testSource) Open(name string, cfg Config, sink Sink) error {
	if s.IsOpened() {
		return ErrAlreadyOpened
	}
	if name == "" {
		name = testPatterns[0].name
	}
	found := false
	for _, p := range testPatterns {
		if p.name == name {
			s.animated = p.animated
			found = true
		}
	}
	if !found {
		return errors.Wrapf(ErrNotFound, "test pattern %q", name)
	}

	s.pattern = name
	s.width, s.height = cfg.Width, cfg.Height
	if s.width <= 0 || s.height <= 0 {
		s.width, s.height = testWidth, testHeight
	}
	s.format = cfg.PixelFormat
	if s.format == color.Unknown {
		s.format = color.YUYV
	}
	fps := cfg.FrameRate
	if fps <= 0 {
		fps = testFrameRate
	}
	s.interval = time.Duration(float64(time.Second) / fps)

	if err := s.stream.open(sink); err != nil {
		return err
	}
	if !s.animated {
		s.template = frame.NewPool(1).Get()
		s.render(s.template, 0)
	}
	log.Info("Opened test pattern %q: %dx%d %v @ %.2f fps", name, s.width, s.height, s.format, fps)
	return nil
}

func (s *testSource) render(f *frame.Frame, index uint64) {
	f.Width, f.Height, f.Format = s.width, s.height, s.format
	switch s.pattern {
	case "gradient":
		paint(f, gradient(s.width, s.height, index))
	case "black":
		paint(f, solid([3]byte{0, 0, 0}))
	default:
		paint(f, colorBars(s.width))
	}
}

func (s *testSource) Close() error {
	s.stream.close()
	if s.template != nil {
		s.template.Release()
		s.template = nil
	}
	return nil
}

func (s *testSource) Start() error {
	return s.startLoop(s.run)
}

func (s *testSource) Stop() error {
	s.stopLoop()
	return nil
}

func (s *testSource) run(quit <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
		}

		f := s.sink.AcquireFrame()
		s.stamp(f)
		if s.animated {
			s.render(f, f.Index)
		} else {
			f.Width, f.Height, f.Format = s.width, s.height, s.format
			f.SetPlanes(f.RawBuffer(s.template.SizeInBytes))
			for i := range f.Data {
				copy(f.Data[i], s.template.Data[i])
			}
		}
		s.sink.Deliver(f)
	}
}

func (s *testSource) DeviceInfo() (DeviceInfo, bool) {
	if !s.IsOpened() {
		return DeviceInfo{}, false
	}
	info := DeviceInfo{
		Name: Qualify(testTag, s.pattern),
		Resolutions: []Resolution{
			{1920, 1080}, {1280, 720}, {640, 480}, {320, 240},
			{s.width, s.height},
		},
		PixelFormats: append([]color.PixelFormat{s.format}, color.Formats()...),
	}
	info.Normalize()
	return info, true
}
