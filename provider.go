//////////////////////////////////////////////////////////////////////////////
//
// Provider is the capture session: it opens a device, file or test source,
// converts frames to the requested format and delivers them through Grab or
// a callback.
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

// Package alohacap acquires video frames from cameras, video files and
// synthetic sources behind one API.
//
//	p := alohacap.NewProvider(alohacap.DefaultConfig())
//	if err := p.Open(""); err != nil {
//		return err
//	}
//	defer p.Close()
//	p.Start()
//	for {
//		f := p.Grab(time.Second)
//		if f == nil {
//			break
//		}
//		process(f)
//		f.Release()
//	}
package alohacap

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lanikai/alohacap/internal/fault"
	"github.com/lanikai/alohacap/internal/frame"
	"github.com/lanikai/alohacap/internal/logging"
	"github.com/lanikai/alohacap/internal/media"
	"github.com/lanikai/alohacap/internal/queue"
)

// Stats summarizes a provider's traffic since creation.
type Stats struct {
	// Session identifier, prefixed to every log line of the session.
	Session string

	queue.Stats

	// Frames evicted from the pool while still referenced.
	Evictions uint64

	// Frames delivered unconverted because conversion failed.
	ConversionFailures uint64
}

// Conversion settings read by the producer goroutine for every frame.
type conversion struct {
	output      PixelFormat
	orientation Orientation
	flag        ConvertFlag
	disabled    bool
}

type Provider struct {
	// Serializes Open, Start, Stop and Close, which may wait for the capture
	// goroutine. Never taken on the delivery path.
	opMu sync.Mutex

	// Guards the session state below. Held only briefly, and never while
	// waiting on the capture goroutine.
	mu sync.Mutex

	id  string
	log *logging.Logger

	// Requested capture shape.
	width, height int
	frameRate     float64
	internal      PixelFormat

	name    string
	source  media.Source
	started bool

	// Shape the current source was opened with.
	opened media.Config

	// Capture shape changed while opened; Start reopens the source.
	dirty bool

	pool  *frame.Pool
	queue *queue.Queue

	convMu sync.Mutex
	conv   conversion

	// Format pairs already reported as unsupported.
	reportedMu sync.Mutex
	reported   map[[2]PixelFormat]bool
	convFailed uint64
}

func NewProvider(config Config) *Provider {
	id := uuid.New().String()
	p := &Provider{
		id:        id,
		log:       logging.DefaultLogger.WithTag("alohacap"),
		width:     config.Width,
		height:    config.Height,
		frameRate: config.FrameRate,
		internal:  config.InternalFormat,
		pool:      frame.NewPool(config.PoolCapacity),
		queue:     queue.New(config.QueueCapacity),
		conv: conversion{
			output:      config.OutputFormat,
			orientation: config.Orientation,
			flag:        config.ConvertFlag,
		},
		reported: make(map[[2]PixelFormat]bool),
	}
	p.log.Verbose("New session %s", id)
	return p
}

// SessionID uniquely identifies this provider in logs and Stats.
func (p *Provider) SessionID() string {
	return p.id
}

// FindDeviceNames lists every openable device. Physical cameras come first,
// virtual devices last.
func (p *Provider) FindDeviceNames() []string {
	return media.FindDeviceNames()
}

// Open binds the provider to a device, a video file or a test source. The
// empty name opens the first device.
func (p *Provider) Open(name string) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if p.current() != nil {
		return ErrAlreadyOpened
	}
	config := p.mediaConfig()
	src, err := media.OpenSource(name, config, sinkOf(p))
	if err != nil {
		fault.Report(openFault(name, err), err.Error())
		return err
	}

	p.mu.Lock()
	p.source = src
	p.opened = config
	p.name = name
	p.dirty = false
	p.started = false
	p.mu.Unlock()
	p.log.Info("[%s] Opened %q", p.id[:8], name)
	return nil
}

// OpenIndex opens the i-th entry of FindDeviceNames. A negative index opens
// the default device.
func (p *Provider) OpenIndex(i int) error {
	if i < 0 {
		return p.Open("")
	}
	names := p.FindDeviceNames()
	if i >= len(names) {
		err := errors.Wrapf(ErrNotFound, "device index %d of %d", i, len(names))
		fault.Report(fault.InvalidDevice, err.Error())
		return err
	}
	return p.Open(names[i])
}

func openFault(name string, err error) fault.Code {
	switch {
	case media.IsFile(name):
		return fault.FileOpenFailed
	case errors.Cause(err) == media.ErrNotFound && name == "":
		return fault.NoDeviceFound
	case errors.Cause(err) == media.ErrNotFound:
		return fault.InvalidDevice
	}
	return fault.DeviceOpenFailed
}

func (p *Provider) mediaConfig() media.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return media.Config{
		Width:       p.width,
		Height:      p.height,
		FrameRate:   p.frameRate,
		PixelFormat: p.internal,
	}
}

func (p *Provider) current() media.Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

func (p *Provider) IsOpened() bool {
	return p.current() != nil
}

// Start begins delivering frames. A file source that reached the end of the
// stream may be started again after seeking.
func (p *Provider) Start() error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	src, started, dirty := p.source, p.started, p.dirty
	p.mu.Unlock()

	if src == nil {
		return ErrNotOpened
	}
	if started && src.IsStarted() {
		return nil
	}
	if dirty {
		next, err := p.renegotiate(src)
		if err != nil {
			fault.Report(fault.DeviceStartFailed, err.Error())
			return err
		}
		src = next
	}

	p.queue.SetStarted(true)
	if err := src.Start(); err != nil {
		p.queue.SetStarted(false)
		fault.Report(fault.DeviceStartFailed, err.Error())
		return err
	}
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()
	return nil
}

// Reopen the source with the current capture shape. File sources keep their
// position and playback speed. On failure the session stays opened and
// dirty, holding either the previous source or one reopened with the
// previous shape, so Start may be retried.
func (p *Provider) renegotiate(old media.Source) (media.Source, error) {
	config := p.mediaConfig()
	p.mu.Lock()
	name, previous := p.name, p.opened
	p.mu.Unlock()
	p.log.Info("[%s] Reopening %q with %dx%d @ %.2f fps, %v", p.id[:8], name, config.Width, config.Height, config.FrameRate, config.PixelFormat)

	var position int64 = -1
	var speed float64
	if fs, ok := old.(media.FileSource); ok {
		position, speed = fs.CurrentFrameIndex(), fs.PlaybackSpeed()
	}

	// Files and virtual sources can be opened twice. Devices usually cannot,
	// so the old one is released before trying again.
	src, err := media.OpenSource(name, config, sinkOf(p))
	old.Close()
	if err != nil {
		if src, err = media.OpenSource(name, config, sinkOf(p)); err != nil {
			err = errors.Wrapf(err, "reopen %q", name)
			restored, rerr := media.OpenSource(name, previous, sinkOf(p))
			if rerr != nil {
				p.log.Warn("[%s] Could not restore %q: %v", p.id[:8], name, rerr)
				return nil, err
			}
			p.restore(restored, position, speed)
			p.mu.Lock()
			p.source = restored
			p.mu.Unlock()
			return nil, err
		}
	}

	p.restore(src, position, speed)
	p.mu.Lock()
	p.source = src
	p.opened = config
	// A Set racing with the reopen leaves the session dirty for next time.
	p.dirty = p.width != config.Width || p.height != config.Height ||
		p.frameRate != config.FrameRate || p.internal != config.PixelFormat
	p.mu.Unlock()
	return src, nil
}

func (p *Provider) restore(src media.Source, position int64, speed float64) {
	fs, ok := src.(media.FileSource)
	if !ok || position < 0 {
		return
	}
	fs.SetPlaybackSpeed(speed)
	if err := fs.SeekFrame(position); err != nil {
		p.log.Warn("[%s] Could not restore position %d: %v", p.id[:8], position, err)
	}
}

// Stop pauses delivery. Blocked Grab calls are not woken; they return on
// their own timeout.
func (p *Provider) Stop() {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.stop()
}

// The source is stopped without holding mu, so frame and error callbacks
// running on the capture goroutine may still query the provider.
func (p *Provider) stop() {
	p.mu.Lock()
	src, started := p.source, p.started
	p.started = false
	p.mu.Unlock()

	if src == nil || !started {
		return
	}
	p.queue.SetStarted(false)
	if err := src.Stop(); err != nil {
		fault.Report(fault.DeviceStopFailed, err.Error())
	}
}

// IsStarted is false after Stop, and once a file source reaches the end of
// the stream.
func (p *Provider) IsStarted() bool {
	p.mu.Lock()
	src, started := p.source, p.started
	p.mu.Unlock()
	return started && src != nil && src.IsStarted()
}

// Close stops and releases the source and drops every queued frame.
func (p *Provider) Close() {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.stop()
	p.mu.Lock()
	src, name := p.source, p.name
	p.source = nil
	p.dirty = false
	p.mu.Unlock()

	if src == nil {
		return
	}
	if err := src.Close(); err != nil {
		p.log.Warn("[%s] Close %q: %v", p.id[:8], name, err)
	}
	p.queue.Clear()
	p.log.Info("[%s] Closed %q", p.id[:8], name)
}

// Grab returns the oldest queued frame, waiting up to timeout for one to
// arrive. It returns nil on timeout, when not started, and at the end of a
// file. The caller must Release the frame.
func (p *Provider) Grab(timeout time.Duration) *Frame {
	return p.queue.Grab(timeout)
}

// SetNewFrameCallback registers a function called on the capture goroutine
// for every frame. Returning true consumes the frame, which is then not
// queued for Grab; to keep it past the callback, Hold it. nil unregisters.
//
// The callback may query and set properties. It must not call Open, Start,
// Stop or Close: Stop and Close wait for the goroutine the callback runs on.
func (p *Provider) SetNewFrameCallback(cb func(f *Frame) bool) {
	if cb == nil {
		p.queue.SetCallback(nil)
		return
	}
	p.queue.SetCallback(queue.Callback(cb))
}

// SetFrameAllocator replaces the allocator of pooled frames. Frames already
// handed out keep their buffers.
func (p *Provider) SetFrameAllocator(factory frame.AllocatorFactory) {
	p.pool.SetAllocatorFactory(factory)
}

// SetMaxAvailableFrameSize bounds the frames kept for Grab.
func (p *Provider) SetMaxAvailableFrameSize(n int) {
	p.queue.SetCapacity(n)
}

// SetMaxCacheFrameSize bounds the frames kept in the pool.
func (p *Provider) SetMaxCacheFrameSize(n int) {
	p.pool.SetCapacity(n)
}

func (p *Provider) DeviceInfo() (DeviceInfo, bool) {
	src := p.current()
	if src == nil {
		return DeviceInfo{}, false
	}
	return src.DeviceInfo()
}

// IsFileMode reports whether the open source is a video file.
func (p *Provider) IsFileMode() bool {
	_, ok := p.fileSource()
	return ok
}

func (p *Provider) fileSource() (media.FileSource, bool) {
	fs, ok := p.current().(media.FileSource)
	return fs, ok
}

func (p *Provider) Stats() Stats {
	return Stats{
		Session:            p.id,
		Stats:              p.queue.Stats(),
		Evictions:          p.pool.Evictions(),
		ConversionFailures: atomic.LoadUint64(&p.convFailed),
	}
}

// SetConvertFlag selects the YUV to RGB matrix and range.
func (p *Provider) SetConvertFlag(flag ConvertFlag) {
	p.convMu.Lock()
	p.conv.flag = flag
	p.convMu.Unlock()
}

func (p *Provider) conversion() conversion {
	p.convMu.Lock()
	defer p.convMu.Unlock()
	return p.conv
}

// deliver converts f to the requested format and orientation and queues it.
// A frame that cannot be converted is delivered as captured.
func (p *Provider) deliver(f *Frame) {
	c := p.conversion()
	if !c.disabled {
		to := c.output
		if to == Unknown {
			to = f.Format
		}
		// YUV output is always top to bottom.
		flip := to.IsRGB() && f.Orientation != c.orientation
		if to != f.Format || flip {
			if err := frame.Convert(f, to, flip, c.flag); err != nil {
				p.conversionFailed(f.Format, to, err)
			}
		}
	}
	p.queue.Push(f)
}

// Report an unsupported pair once; repeats only count.
func (p *Provider) conversionFailed(from, to PixelFormat, err error) {
	atomic.AddUint64(&p.convFailed, 1)

	key := [2]PixelFormat{from, to}
	p.reportedMu.Lock()
	seen := p.reported[key]
	p.reported[key] = true
	p.reportedMu.Unlock()

	if seen {
		p.log.Trace(1, "[%s] conversion %v -> %v failed again", p.id[:8], from, to)
		return
	}
	fault.Report(fault.UnsupportedConversion, fmt.Sprintf("%v; delivering %v frames unconverted", err, from))
}

// sink adapts a Provider to the media.Sink interface without exporting the
// backend-facing methods.
type sink struct {
	p *Provider
}

func sinkOf(p *Provider) media.Sink {
	return sink{p}
}

func (s sink) AcquireFrame() *frame.Frame {
	return s.p.pool.Get()
}

func (s sink) Deliver(f *frame.Frame) {
	s.p.deliver(f)
}

func (s sink) WaitForSpace(quit <-chan struct{}) bool {
	return s.p.queue.WaitForSpace(quit)
}

// End of stream: Grab stops waiting once the queue drains.
func (s sink) NotifyEndOfStream() {
	s.p.queue.SetStarted(false)
	s.p.queue.NotifyWaiters()
}

func (s sink) Report(code fault.Code, err error) {
	fault.Report(code, err.Error())
}
