package media

import (
	"sync"

	"github.com/lanikai/alohacap/internal/fault"
	"github.com/lanikai/alohacap/internal/frame"
	"github.com/lanikai/alohacap/internal/queue"
)

// recordingSink delivers into a queue without conversion and records faults.
type recordingSink struct {
	pool *frame.Pool
	q    *queue.Queue

	mu     sync.Mutex
	faults []fault.Code
	eos    chan struct{}
	once   sync.Once
}

func newRecordingSink(capacity int) *recordingSink {
	q := queue.New(capacity)
	q.SetStarted(true)
	return &recordingSink{
		pool: frame.NewPool(capacity + 4),
		q:    q,
		eos:  make(chan struct{}),
	}
}

func (s *recordingSink) AcquireFrame() *frame.Frame { return s.pool.Get() }
func (s *recordingSink) Deliver(f *frame.Frame)     { s.q.Push(f) }

func (s *recordingSink) WaitForSpace(quit <-chan struct{}) bool {
	return s.q.WaitForSpace(quit)
}

func (s *recordingSink) NotifyEndOfStream() {
	s.once.Do(func() { close(s.eos) })
	s.q.SetStarted(false)
	s.q.NotifyWaiters()
}

func (s *recordingSink) Report(code fault.Code, err error) {
	s.mu.Lock()
	s.faults = append(s.faults, code)
	s.mu.Unlock()
}

func (s *recordingSink) reported() []fault.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fault.Code(nil), s.faults...)
}
