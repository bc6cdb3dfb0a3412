package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05.000"

type Logger struct {
	// Tag used to filter and classify log messages.
	Tag string

	// Level pinned to this logger, offset by pinBias so that the zero value
	// means unpinned and the process-wide level applies. Accessed atomically.
	pin int32

	out io.Writer

	// Mutex to prevent messages from different goroutines from interleaving.
	// Shared by all derived loggers.
	mu *sync.Mutex
}

// Write to stderr by default.
var DefaultLogger = &Logger{out: os.Stderr, mu: new(sync.Mutex)}

// Override the destination for this logger.
func (log *Logger) SetDestination(out io.Writer) {
	log.mu.Lock()
	log.out = out
	log.mu.Unlock()
}

// Derive a new logger with the given tag. A level configured for the tag in
// the environment pins the derived logger to that level.
func (log *Logger) WithTag(tag string) *Logger {
	l := &Logger{Tag: tag, pin: atomic.LoadInt32(&log.pin), out: log.out, mu: log.mu}
	if level, ok := pinnedLevel(tag); ok {
		l.SetLevel(level)
	}
	return l
}

const pinBias = 16

// Pin this logger to a level, ignoring the process-wide level. Safe to call
// while other goroutines log.
func (log *Logger) SetLevel(level Level) {
	if level < Error {
		level = Error
	} else if level > MaxLevel {
		level = MaxLevel
	}
	atomic.StoreInt32(&log.pin, int32(level)+pinBias)
}

// Level at which this logger logs. Any log messages intended for a higher
// (more verbose) level are ignored.
func (log *Logger) Level() Level {
	if pin := atomic.LoadInt32(&log.pin); pin != 0 {
		return Level(pin - pinBias)
	}
	return GetLevel()
}

// Enabled reports whether a message at the given level would be written.
func (log *Logger) Enabled(level Level) bool {
	return level <= log.Level()
}

// Wrapper for []byte that implements io.Writer. Simpler and cheaper than
// bytes.Buffer.
type buffer []byte

func (b *buffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

func (b *buffer) writeString(s string) {
	*b = append(*b, s...)
}

func (b *buffer) writeByte(c byte) {
	*b = append(*b, c)
}

// A global buffer pool, shared across all loggers. Initial capacity is 256 to
// accommodate *most* log lines.
var bufPool = sync.Pool{
	New: func() interface{} {
		return make(buffer, 0, 256)
	},
}

// Log a message at the given level. Include the file and line number from
// 'calldepth' steps up the call stack.
func (log *Logger) Log(level Level, calldepth int, format string, a ...interface{}) {
	if !log.Enabled(level) {
		// Message is too verbose for this logger.
		return
	}

	// Grab an empty buffer from the pool.
	buf := bufPool.Get().(buffer)
	// When we're done, reset the buffer and return it to the pool.
	defer func() { bufPool.Put(buf[:0]) }()

	// Write the current timestamp.
	buf.writeString(colorHeader.Sprint(time.Now().Format(timestampFormat)))

	// Write level and tag.
	buf.writeByte(' ')
	buf.writeString(level.color().Sprintf("%c/%s", level.letter(), log.Tag))

	// Get the caller of Error()/Warn()/Info()/etc.
	_, file, line, ok := runtime.Caller(calldepth + 1)
	if !ok {
		file = "?"
	}

	// Write file and line number.
	fmt.Fprintf(&buf, "[%s:%d] ", filepath.Base(file), line)

	// Write formatted log message.
	fmt.Fprintf(&buf, format, a...)

	// Append newline if necessary.
	if n := len(buf); n == 0 || buf[n-1] != '\n' {
		buf.writeByte('\n')
	}

	// Lock before writing to avoid interleaving of log messages.
	log.mu.Lock()
	_, err := log.out.Write(buf)
	log.mu.Unlock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to log to %v: %v\n", log.out, err)
	}
}

func (log *Logger) Error(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
}

func (log *Logger) Warn(format string, a ...interface{}) {
	log.Log(Warn, 1, format, a...)
}

func (log *Logger) Info(format string, a ...interface{}) {
	log.Log(Info, 1, format, a...)
}

func (log *Logger) Verbose(format string, a ...interface{}) {
	log.Log(Verbose, 1, format, a...)
}

func (log *Logger) Trace(n int, format string, a ...interface{}) {
	log.Log(Level(n), 1, format, a...)
}
