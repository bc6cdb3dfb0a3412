package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohacap/internal/fault"
)

func TestReadLoopStartStop(t *testing.T) {
	var loop readLoop
	started := make(chan struct{})

	require.True(t, loop.start(func(quit <-chan struct{}) {
		close(started)
		<-quit
	}))
	<-started
	assert.True(t, loop.running())
	assert.False(t, loop.start(func(quit <-chan struct{}) {}), "second loop started")

	loop.stop()
	assert.False(t, loop.running())

	// Stopping twice is harmless.
	loop.stop()
}

func TestReadLoopEndsByItself(t *testing.T) {
	var loop readLoop
	require.True(t, loop.start(func(quit <-chan struct{}) {}))
	assert.Eventually(t, func() bool { return !loop.running() }, time.Second, time.Millisecond)
	loop.stop()
}

func TestReadLoopContainsPanic(t *testing.T) {
	var s stream
	sink := newRecordingSink(1)
	require.NoError(t, s.open(sink))

	require.NoError(t, s.startLoop(func(quit <-chan struct{}) {
		panic("native call failed")
	}))
	assert.Eventually(t, func() bool { return !s.IsStarted() }, time.Second, time.Millisecond)
	assert.Equal(t, []fault.Code{fault.FrameCaptureFailed}, sink.reported())
	s.close()
}

func TestReadLoopQueriedWhileStopping(t *testing.T) {
	var loop readLoop
	started := make(chan struct{})
	queried := make(chan bool, 1)

	require.True(t, loop.start(func(quit <-chan struct{}) {
		close(started)
		<-quit
		// stop is waiting for this goroutine now.
		queried <- loop.running()
	}))
	<-started

	done := make(chan struct{})
	go func() {
		loop.stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop blocked while the loop asked whether it is running")
	}
	assert.True(t, <-queried)
	assert.False(t, loop.running())
}
