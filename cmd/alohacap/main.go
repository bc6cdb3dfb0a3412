package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/lanikai/alohacap"
	convert "github.com/lanikai/alohacap/internal/color"
	"github.com/lanikai/alohacap/internal/logging"
	"github.com/lanikai/alohacap/internal/relay"
	"github.com/lanikai/alohacap/internal/y4m"
)

// Populated via -ldflags="-X main.GitTag=... -X main.GitRevisionId=...".
var GitRevisionId string
var GitTag string

var log = logging.DefaultLogger.WithTag("alohacap")

func main() {
	flag.Usage = help
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}
	if flagVersion {
		version()
		os.Exit(0)
	}

	if flagLogLevel != "" {
		level, err := logging.ParseLevel(flagLogLevel)
		if err != nil {
			log.Fatal(err)
		}
		alohacap.SetLogLevel(level)
	}

	backend, ok := convert.ParseBackend(flagBackend)
	if !ok {
		log.Fatalf("Unknown conversion backend: %s", flagBackend)
	}
	convert.SetBackend(backend)

	alohacap.SetErrorCallback(func(code alohacap.ErrorCode, desc string) {
		log.Verbose("%v: %s", code, desc)
	})

	if flagList {
		listDevices(alohacap.NewProvider(alohacap.DefaultConfig()).FindDeviceNames())
		return
	}

	config, err := configFromFlags()
	if err != nil {
		log.Fatal(err)
	}
	p := alohacap.NewProvider(config)
	if err := p.Open(flagInput); err != nil {
		log.Fatalf("Failed to open %q: %v", flagInput, err)
	}
	defer p.Close()

	if flagInfo {
		info, ok := p.DeviceInfo()
		if !ok {
			log.Fatal("No device information")
		}
		printDeviceInfo(info)
		return
	}

	if p.IsFileMode() {
		if flag.CommandLine.Changed("speed") && !p.Set(alohacap.PropertyPlaybackSpeed, flagSpeed) {
			log.Fatalf("Invalid playback speed: %v", flagSpeed)
		}
		if flagSeek != 0 && !p.Set(alohacap.PropertyCurrentTime, flagSeek) {
			log.Fatalf("Failed to seek to %vs", flagSeek)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var outputs []output
	if flagOutput != "" {
		outputs = append(outputs, &recorder{path: flagOutput, rate: flagFrameRate})
	}
	if flagServe != "" {
		server, err := relay.NewServer(flagCompress)
		if err != nil {
			log.Fatal(err)
		}
		go func() {
			if err := server.ListenAndServe(flagServe); err != nil {
				log.Error("Relay stopped: %v", err)
				cancel()
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			server.Shutdown(shutdownCtx)
		}()
		outputs = append(outputs, publisher{server})
	}

	if err := p.Start(); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	if flagTUI {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			log.Fatal("--tui needs a terminal")
		}
		// Log lines would tear the dashboard.
		alohacap.SetLogLevel(alohacap.LogError)
		grabbed := make(chan summary, 1)
		go func() {
			grabbed <- grabLoop(ctx, p, outputs)
			cancel()
		}()
		if err := runDashboard(ctx, p); err != nil {
			log.Error("Dashboard: %v", err)
		}
		cancel()
		s := <-grabbed
		closeOutputs(outputs)
		s.print(p.Stats())
		return
	}

	s := grabLoop(ctx, p, outputs)
	closeOutputs(outputs)
	s.print(p.Stats())
}

func configFromFlags() (alohacap.Config, error) {
	config := alohacap.DefaultConfig()
	config.Width = flagWidth
	config.Height = flagHeight
	config.FrameRate = flagFrameRate

	format, ok := alohacap.ParsePixelFormat(flagFormat)
	if !ok {
		return config, errors.Errorf("unknown pixel format: %s", flagFormat)
	}
	config.OutputFormat = format
	if flagOutput != "" {
		// The recorder writes planar 4:2:0.
		config.OutputFormat = alohacap.I420
		if flagFullRange {
			config.OutputFormat = alohacap.I420F
		}
	}

	if flagInternalFormat != "" {
		internal, ok := alohacap.ParsePixelFormat(flagInternalFormat)
		if !ok {
			return config, errors.Errorf("unknown pixel format: %s", flagInternalFormat)
		}
		config.InternalFormat = internal
	}

	switch strings.ToLower(flagMatrix) {
	case "bt601":
		config.ConvertFlag = alohacap.BT601
	case "bt709":
		config.ConvertFlag = alohacap.BT709
	default:
		return config, errors.Errorf("unknown matrix: %s", flagMatrix)
	}
	if flagFullRange {
		config.ConvertFlag |= alohacap.FullRange
	} else {
		config.ConvertFlag |= alohacap.VideoRange
	}

	if flagFlip {
		config.Orientation = alohacap.BottomToTop
	}
	if flagNoConvert {
		config.OutputFormat = alohacap.Unknown
	}
	return config, nil
}

// An output receives every grabbed frame. It must not keep the frame.
type output interface {
	write(f *alohacap.Frame) error
	close() error
}

type recorder struct {
	path string
	rate float64
	w    *y4m.Writer
}

// The header is written with the first frame, once the size is known.
func (r *recorder) write(f *alohacap.Frame) error {
	if f.Format != alohacap.I420 && f.Format != alohacap.I420F {
		return errors.Errorf("cannot record %v frames", f.Format)
	}
	if r.w == nil {
		rate := r.rate
		if rate <= 0 {
			rate = 30
		}
		num, den := y4m.RateFromFPS(rate)
		w, err := y4m.Create(r.path, y4m.Header{
			Width:      f.Width,
			Height:     f.Height,
			RateNum:    num,
			RateDen:    den,
			Colorspace: "420jpeg",
			FullRange:  f.Format == alohacap.I420F,
		})
		if err != nil {
			return errors.Wrapf(err, "create %s", r.path)
		}
		r.w = w
		log.Info("Recording %dx%d to %s", f.Width, f.Height, r.path)
	}
	if f.Width != r.w.Width || f.Height != r.w.Height {
		return errors.Errorf("frame size changed to %dx%d", f.Width, f.Height)
	}
	return r.w.WriteFrame(f.Data, f.Stride)
}

func (r *recorder) close() error {
	if r.w == nil {
		return nil
	}
	log.Info("Recorded %d frames to %s", r.w.Frames(), r.path)
	return r.w.Close()
}

type publisher struct {
	server *relay.Server
}

func (pub publisher) write(f *alohacap.Frame) error {
	return pub.server.Publish(f)
}

func (pub publisher) close() error {
	return nil
}

func closeOutputs(outputs []output) {
	for _, o := range outputs {
		if err := o.close(); err != nil {
			log.Error("%v", err)
		}
	}
}

type summary struct {
	frames   uint64
	gaps     uint64
	timeouts uint64
	elapsed  time.Duration

	width, height int
	format        alohacap.PixelFormat
}

func grabLoop(ctx context.Context, p *alohacap.Provider, outputs []output) (s summary) {
	var next uint64
	timeout := time.Duration(flagTimeout) * time.Millisecond
	start := time.Now()
	defer func() { s.elapsed = time.Since(start) }()

	for ctx.Err() == nil {
		if flagFrames > 0 && s.frames >= uint64(flagFrames) {
			break
		}

		f := p.Grab(timeout)
		if f == nil {
			if !p.IsStarted() {
				log.Info("End of stream")
				break
			}
			s.timeouts++
			log.Warn("No frame within %v", timeout)
			continue
		}

		if s.frames > 0 && f.Index > next {
			s.gaps += f.Index - next
		}
		next = f.Index + 1
		s.frames++
		s.width, s.height, s.format = f.Width, f.Height, f.Format

		for _, o := range outputs {
			if err := o.write(f); err != nil {
				f.Release()
				log.Error("%v", err)
				return s
			}
		}
		log.Trace(1, "Frame %d %dx%d %v at %v", f.Index, f.Width, f.Height, f.Format, f.Timestamp)
		f.Release()
	}
	return s
}

func (s summary) print(stats alohacap.Stats) {
	fps := 0.0
	if s.elapsed > 0 {
		fps = float64(s.frames) / s.elapsed.Seconds()
	}
	fmt.Printf("session:   %s\n", stats.Session)
	fmt.Printf("frames:    %d (%dx%d %v)\n", s.frames, s.width, s.height, s.format)
	fmt.Printf("rate:      %.2f fps over %v\n", fps, s.elapsed.Round(time.Millisecond))
	fmt.Printf("gaps:      %d frames skipped\n", s.gaps)
	fmt.Printf("timeouts:  %d\n", s.timeouts)
	fmt.Printf("dropped:   %d\n", stats.Dropped)
	fmt.Printf("evictions: %d\n", stats.Evictions)
	if stats.ConversionFailures > 0 {
		fmt.Printf("unconverted: %d\n", stats.ConversionFailures)
	}
}
