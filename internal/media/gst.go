//go:build gst
// +build gst

package media

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lanikai/alohacap/internal/color"
	"github.com/lanikai/alohacap/internal/frame"
	"github.com/pkg/errors"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Longest wait for the pipeline to produce a sample before giving up.
const gstSampleTimeout = 5 * time.Second

func init() {
	// Fallback for every container without a native decoder.
	registerDecoder(openGst, "")
}

// gstDecoder decodes any container GStreamer understands into I420:
//
//	filesrc ! decodebin ! videoconvert ! video/x-raw,format=I420 ! appsink
//
// Samples are not copied. Frames keep the buffer mapped until they return
// to the pool.
type gstDecoder struct {
	pipeline *gst.Pipeline
	sink     *app.Sink

	si  streamInfo
	pos int64
}

func openGst(path string) (decoder, error) {
	gst.Init(nil)

	launch := fmt.Sprintf("filesrc location=%q ! decodebin ! videoconvert ! video/x-raw,format=I420 "+
		"! appsink name=sink sync=false max-buffers=4 drop=false", path)
	pipeline, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return nil, errors.Wrap(err, "gstreamer pipeline")
	}
	elem, err := pipeline.GetElementByName("sink")
	if err != nil {
		return nil, errors.Wrap(err, "gstreamer appsink")
	}
	d := &gstDecoder{pipeline: pipeline, sink: app.SinkFromElement(elem)}

	if err := pipeline.SetState(gst.StatePaused); err != nil {
		return nil, errors.Wrap(err, "gstreamer preroll")
	}
	preroll := d.sink.PullPreroll()
	if preroll == nil {
		pipeline.SetState(gst.StateNull)
		if err := d.busError(); err != nil {
			return nil, err
		}
		return nil, errors.Wrapf(ErrNotSupported, "%s: no video stream", path)
	}
	if err := d.parseCaps(preroll.GetCaps()); err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, err
	}

	d.si.Frames = -1
	if ok, ns := pipeline.QueryDuration(gst.FormatTime); ok && ns > 0 && d.si.FrameRate > 0 {
		d.si.Frames = int64(math.Round(time.Duration(ns).Seconds() * d.si.FrameRate))
	}
	if isMP4(path) {
		// Container metadata is more exact than the duration estimate.
		if probe, err := probeMP4(path); err == nil {
			d.si.Frames = probe.Frames
			if d.si.FrameRate <= 0 {
				d.si.FrameRate = probe.FrameRate
			}
		}
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, errors.Wrap(err, "gstreamer play")
	}
	return d, nil
}

func (d *gstDecoder) parseCaps(caps *gst.Caps) error {
	s := caps.GetStructureAt(0)
	for _, field := range []struct {
		name string
		dst  *int
	}{{"width", &d.si.Width}, {"height", &d.si.Height}} {
		v, err := s.GetValue(field.name)
		if err != nil {
			return errors.Wrapf(err, "caps %s", field.name)
		}
		n, ok := v.(int)
		if !ok {
			return errors.Errorf("caps %s: unexpected %T", field.name, v)
		}
		*field.dst = n
	}
	d.si.Format = color.I420
	d.si.FrameRate = parseFramerate(caps.String())
	return nil
}

// parseFramerate extracts "framerate=(fraction)30000/1001" from a caps
// string. It returns 0 if absent or variable.
func parseFramerate(caps string) float64 {
	i := strings.Index(caps, "framerate=")
	if i < 0 {
		return 0
	}
	v := caps[i+len("framerate="):]
	v = strings.TrimPrefix(v, "(fraction)")
	if j := strings.IndexAny(v, ",;"); j >= 0 {
		v = v[:j]
	}
	parts := strings.SplitN(strings.TrimSpace(v), "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.Atoi(parts[0])
	den, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || num <= 0 || den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// busError drains the bus and returns the first pipeline error, if any.
func (d *gstDecoder) busError() error {
	bus := d.pipeline.GetPipelineBus()
	for {
		msg := bus.TimedPop(0)
		if msg == nil {
			return nil
		}
		if msg.Type() == gst.MessageError {
			return errors.Errorf("gstreamer: %s", msg.ParseError().Error())
		}
	}
}

func (d *gstDecoder) info() streamInfo { return d.si }

func (d *gstDecoder) decode(f *frame.Frame) error {
	deadline := time.Now().Add(gstSampleTimeout)
	var sample *gst.Sample
	for sample == nil {
		if d.sink.IsEOS() {
			return io.EOF
		}
		if err := d.busError(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return errors.Errorf("gstreamer: no sample within %v", gstSampleTimeout)
		}
		sample = d.sink.TryPullSample(100 * time.Millisecond)
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return errors.New("gstreamer: sample without buffer")
	}
	data := buffer.Map(gst.MapRead).Bytes()

	// GStreamer rounds I420 strides up to a multiple of 4.
	w, h := d.si.Width, d.si.Height
	cw, ch := (w+1)/2, (h+1)/2
	ys, cs := (w+3)&^3, (cw+3)&^3
	usize := cs * ch
	if len(data) < ys*h+2*usize {
		buffer.Unmap()
		return errors.Errorf("gstreamer: short buffer, %d bytes for %dx%d", len(data), w, h)
	}

	f.Width, f.Height, f.Format = w, h, color.I420
	f.Data = [3][]byte{data[:ys*h], data[ys*h : ys*h+usize], data[ys*h+usize : ys*h+2*usize]}
	f.Stride = [3]int{ys, cs, cs}
	f.SizeInBytes = ys*h + 2*usize
	f.NativeHandle = sample
	f.SetReleaseHook(buffer.Unmap)
	d.pos++
	return nil
}

func (d *gstDecoder) seekFrame(i int64) error {
	t := time.Duration(float64(i) / d.si.FrameRate * float64(time.Second))
	if !d.pipeline.SeekTime(t, gst.SeekFlagFlush|gst.SeekFlagAccurate) {
		return errors.Errorf("gstreamer: seek to %v rejected", t)
	}
	d.pos = i
	return nil
}

func (d *gstDecoder) position() int64 { return d.pos }

func (d *gstDecoder) close() error {
	return d.pipeline.SetState(gst.StateNull)
}
