package media

import (
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lanikai/alohacap/internal/color"
	"github.com/lanikai/alohacap/internal/fault"
	"github.com/lanikai/alohacap/internal/frame"
	"github.com/pkg/errors"
)

const fileTag = "file"

// Frame rate assumed for containers that do not declare one.
const defaultFileFrameRate = 30

func init() {
	RegisterSourceType(fileTag, File, 0, func() Source { return new(fileSource) })
}

// streamInfo describes the video stream of a container.
type streamInfo struct {
	Width, Height int
	Format        color.PixelFormat
	FrameRate     float64

	// Number of frames, or -1 if unknown.
	Frames int64
}

// A decoder produces raw frames from one container format. Decoders are not
// safe for concurrent use.
type decoder interface {
	info() streamInfo

	// decode fills f with the next frame, returning io.EOF at the end of the
	// stream.
	decode(f *frame.Frame) error

	// seekFrame positions the decoder so the next frame decoded is frame i.
	seekFrame(i int64) error

	// position is the index of the next frame decode returns.
	position() int64

	close() error
}

type openDecoderFunc func(path string) (decoder, error)

// Decoders by lowercase file suffix. The empty suffix is the fallback.
var decoders = map[string]openDecoderFunc{}

func registerDecoder(open openDecoderFunc, suffixes ...string) {
	for _, s := range suffixes {
		decoders[s] = open
	}
}

// decoderFor picks the decoder registered for the longest matching suffix.
func decoderFor(path string) (openDecoderFunc, bool) {
	lower := strings.ToLower(path)
	var suffixes []string
	for s := range decoders {
		if s != "" && strings.HasSuffix(lower, s) {
			suffixes = append(suffixes, s)
		}
	}
	if len(suffixes) > 0 {
		sort.Slice(suffixes, func(i, j int) bool { return len(suffixes[i]) > len(suffixes[j]) })
		return decoders[suffixes[0]], true
	}
	open, ok := decoders[""]
	return open, ok
}

// fileSource plays a video file. Frames are never dropped: before decoding,
// the read loop waits until the consumer has room, so frame indices are
// gapless. Playback is paced at the file's frame rate times the playback
// speed, or as fast as the consumer allows when the speed is 0.
type fileSource struct {
	stream

	path string
	info streamInfo

	// Guards dec between the read loop and seeks.
	decMu sync.Mutex
	dec   decoder

	speed float64
}

func (s *fileSource) FindDeviceNames() []string {
	return nil
}

func (s *fileSource) Open(path string, cfg Config, sink Sink) error {
	if s.IsOpened() {
		return ErrAlreadyOpened
	}
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(ErrNotFound, "%s", path)
	}
	open, ok := decoderFor(path)
	if !ok {
		return s.unsupported(path)
	}
	dec, err := open(path)
	if err != nil {
		return errors.Wrapf(err, "%s", path)
	}

	info := dec.info()
	if info.FrameRate <= 0 {
		log.Warn("%s: no frame rate, assuming %d fps", path, defaultFileFrameRate)
		info.FrameRate = defaultFileFrameRate
	}
	if cfg.Width > 0 && cfg.Height > 0 && (cfg.Width != info.Width || cfg.Height != info.Height) {
		log.Info("%s: requested %dx%d, file is %dx%d", path, cfg.Width, cfg.Height, info.Width, info.Height)
	}

	if err := s.stream.open(sink); err != nil {
		dec.close()
		return err
	}
	s.path = path
	s.info = info
	s.dec = dec
	s.speed = 0
	log.Info("Opened %s: %dx%d %v @ %.3f fps, %d frames", path, info.Width, info.Height, info.Format, info.FrameRate, info.Frames)
	return nil
}

// No decoder is built in for this file type. For MP4 files, say what the
// file contains.
func (s *fileSource) unsupported(path string) error {
	if isMP4(path) {
		if info, err := probeMP4(path); err == nil {
			return errors.Wrapf(ErrNotSupported, "%s (%s %dx%d): no decoder built in, rebuild with -tags ffmpeg or gst",
				path, info.Codec, info.Width, info.Height)
		}
	}
	return errors.Wrapf(ErrNotSupported, "%s: no decoder for this file type", path)
}

func (s *fileSource) Close() error {
	s.stream.close()
	s.decMu.Lock()
	defer s.decMu.Unlock()
	if s.dec == nil {
		return nil
	}
	err := s.dec.close()
	s.dec = nil
	return err
}

func (s *fileSource) Start() error {
	return s.startLoop(s.run)
}

func (s *fileSource) Stop() error {
	s.stopLoop()
	return nil
}

func (s *fileSource) run(quit <-chan struct{}) {
	var due time.Time
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		if !s.sink.WaitForSpace(quit) {
			return
		}

		if period := s.period(); period > 0 {
			now := time.Now()
			// Do not try to catch up after the consumer stalled.
			if due.IsZero() || now.Sub(due) > period {
				due = now
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(time.Until(due))
			select {
			case <-quit:
				return
			case <-timer.C:
			}
			due = due.Add(period)
		}

		f := s.sink.AcquireFrame()
		s.decMu.Lock()
		if s.dec == nil {
			s.decMu.Unlock()
			f.Release()
			return
		}
		index := s.dec.position()
		err := s.dec.decode(f)
		s.decMu.Unlock()

		if err != nil {
			f.Release()
			if err != io.EOF {
				s.sink.Report(fault.FrameCaptureFailed, errors.Wrapf(err, "%s: frame %d", s.path, index))
			}
			log.Info("%s: end of stream at frame %d", s.path, index)
			s.sink.NotifyEndOfStream()
			return
		}
		f.Index = uint64(index)
		f.Timestamp = s.timeOf(index)
		s.sink.Deliver(f)
	}
}

// Wall clock time between frames, or 0 for unpaced playback.
func (s *fileSource) period() time.Duration {
	s.mu.Lock()
	speed := s.speed
	s.mu.Unlock()
	if speed <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / (s.info.FrameRate * speed))
}

func (s *fileSource) timeOf(index int64) time.Duration {
	return time.Duration(float64(index) * float64(time.Second) / s.info.FrameRate)
}

func (s *fileSource) Duration() time.Duration {
	if !s.IsOpened() || s.info.Frames < 0 {
		return 0
	}
	return s.timeOf(s.info.Frames)
}

func (s *fileSource) FrameCount() int64 {
	if !s.IsOpened() {
		return 0
	}
	return s.info.Frames
}

func (s *fileSource) CurrentFrameIndex() int64 {
	s.decMu.Lock()
	defer s.decMu.Unlock()
	if s.dec == nil {
		return 0
	}
	return s.dec.position()
}

func (s *fileSource) CurrentTime() time.Duration {
	return s.timeOf(s.CurrentFrameIndex())
}

// Seek moves to the frame displayed at time t, clamped to [0, duration].
func (s *fileSource) Seek(t time.Duration) error {
	if t < 0 {
		t = 0
	}
	if d := s.Duration(); d > 0 && t > d {
		t = d
	}
	// Nudge up so exact frame times do not round down to the previous frame.
	i := int64(math.Floor(t.Seconds()*s.info.FrameRate + 1e-6))
	return s.SeekFrame(i)
}

// SeekFrame moves to frame i, clamped to [0, frame count]. Seeking to the
// frame count positions at the end of the stream.
func (s *fileSource) SeekFrame(i int64) error {
	if !s.IsOpened() {
		return ErrNotOpened
	}
	if i < 0 {
		i = 0
	}
	if n := s.info.Frames; n >= 0 && i > n {
		i = n
	}

	s.decMu.Lock()
	defer s.decMu.Unlock()
	if err := s.dec.seekFrame(i); err != nil {
		err = errors.Wrapf(err, "%s: seek to frame %d", s.path, i)
		s.sink.Report(fault.SeekFailed, err)
		return err
	}
	log.Verbose("%s: seek to frame %d", s.path, i)
	return nil
}

func (s *fileSource) PlaybackSpeed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

func (s *fileSource) SetPlaybackSpeed(speed float64) error {
	if speed < 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return errors.Wrapf(ErrBadSpeed, "%v", speed)
	}
	s.mu.Lock()
	s.speed = speed
	s.mu.Unlock()
	return nil
}

func (s *fileSource) DeviceInfo() (DeviceInfo, bool) {
	if !s.IsOpened() {
		return DeviceInfo{}, false
	}
	return DeviceInfo{
		Name:         s.path,
		Resolutions:  []Resolution{{s.info.Width, s.info.Height}},
		PixelFormats: []color.PixelFormat{s.info.Format},
	}, true
}
