package media

import (
	"sync"
	"time"

	"github.com/lanikai/alohacap/internal/fault"
	"github.com/lanikai/alohacap/internal/frame"
)

// stream is the state shared by all backends: the sink, the open flag, the
// read loop and the frame counter.
type stream struct {
	mu     sync.Mutex
	sink   Sink
	opened bool
	loop   readLoop

	// Next frame index, and the wall clock time of Start.
	index uint64
	epoch time.Time
}

func (s *stream) open(sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return ErrAlreadyOpened
	}
	s.sink = sink
	s.opened = true
	s.index = 0
	s.loop.onPanic = func(v interface{}) {
		sink.Report(fault.FrameCaptureFailed, panicError(v))
	}
	return nil
}

func (s *stream) IsOpened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

func (s *stream) IsStarted() bool {
	return s.loop.running()
}

func (s *stream) startLoop(fn loopFunc) error {
	s.mu.Lock()
	opened := s.opened
	s.epoch = time.Now()
	s.mu.Unlock()

	if !opened {
		return ErrNotOpened
	}
	s.loop.start(fn)
	return nil
}

func (s *stream) stopLoop() {
	s.loop.stop()
}

func (s *stream) close() {
	s.loop.stop()
	s.mu.Lock()
	s.opened = false
	s.mu.Unlock()
}

// Assign the next index and a timestamp relative to Start.
func (s *stream) stamp(f *frame.Frame) {
	s.mu.Lock()
	f.Index = s.index
	s.index++
	f.Timestamp = time.Since(s.epoch)
	s.mu.Unlock()
}
