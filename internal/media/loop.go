package media

import (
	"sync"

	"github.com/pkg/errors"
)

// A loopFunc is a long-running function, e.g. a read loop. It should terminate
// promptly when the quit channel is closed.
type loopFunc func(quit <-chan struct{})

// A readLoop runs one backend read loop in its own goroutine. The loop may
// end by itself (end of stream, device error) or be stopped. A panic inside
// the loop is contained and passed to onPanic.
type readLoop struct {
	onPanic func(v interface{})

	// Closed when stop() is requested, to trigger run loop exit.
	quit chan struct{}

	// Closed when run loop actually terminates.
	terminated chan struct{}

	sync.Mutex
}

// start runs fn unless a loop is already running.
func (loop *readLoop) start(fn loopFunc) bool {
	loop.Lock()
	defer loop.Unlock()

	if loop.isRunning() {
		return false
	}
	quit := make(chan struct{})
	terminated := make(chan struct{})
	loop.quit, loop.terminated = quit, terminated

	go func() {
		// Close terminated channel to unblock stop().
		defer close(terminated)
		defer func() {
			if v := recover(); v != nil {
				log.Error("read loop panic: %v", v)
				if loop.onPanic != nil {
					loop.onPanic(v)
				}
			}
		}()
		log.Verbose("Starting read loop")
		fn(quit)
	}()
	return true
}

// stop requests termination and waits for it. It must not be called from the
// loop goroutine itself. The mutex is not held while waiting, so the loop may
// still ask whether it is running.
func (loop *readLoop) stop() {
	loop.Lock()
	if loop.quit == nil {
		loop.Unlock()
		return
	}
	quit, terminated := loop.quit, loop.terminated
	select {
	case <-quit:
	default:
		log.Verbose("Stopping read loop")
		close(quit)
	}
	loop.Unlock()

	<-terminated

	loop.Lock()
	if loop.terminated == terminated {
		loop.quit = nil
		loop.terminated = nil
	}
	loop.Unlock()
}

func (loop *readLoop) running() bool {
	loop.Lock()
	defer loop.Unlock()
	return loop.isRunning()
}

func (loop *readLoop) isRunning() bool {
	if loop.terminated == nil {
		return false
	}
	select {
	case <-loop.terminated:
		return false
	default:
		return true
	}
}

func panicError(v interface{}) error {
	if err, ok := v.(error); ok {
		return err
	}
	return errors.Errorf("panic: %v", v)
}
