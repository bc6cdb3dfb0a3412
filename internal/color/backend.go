package color

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Backend selects how conversion kernels are scheduled.
type Backend int32

const (
	// Auto picks Parallel for large images on multi-core hosts, CPU otherwise.
	Auto Backend = iota
	// CPU runs every kernel on the calling goroutine.
	CPU
	// Parallel splits the output into row bands converted concurrently.
	Parallel
)

func (b Backend) String() string {
	switch b {
	case CPU:
		return "cpu"
	case Parallel:
		return "parallel"
	default:
		return "auto"
	}
}

// ParseBackend accepts "auto", "cpu" or "parallel".
func ParseBackend(s string) (Backend, bool) {
	for _, b := range []Backend{Auto, CPU, Parallel} {
		if b.String() == s {
			return b, true
		}
	}
	return Auto, false
}

var backend int32 = int32(Auto)

// SetBackend changes the process-wide kernel scheduling. It returns false for
// an unknown backend.
func SetBackend(b Backend) bool {
	if b < Auto || b > Parallel {
		return false
	}
	atomic.StoreInt32(&backend, int32(b))
	return true
}

// GetBackend returns the configured backend, which may be Auto.
func GetBackend() Backend {
	return Backend(atomic.LoadInt32(&backend))
}

// Smallest image worth splitting across goroutines when Auto is selected.
const autoParallelPixels = 640 * 480

// Fewest rows handed to a single goroutine.
const minBandRows = 16

// resolve turns Auto into a concrete backend for a w×h image.
func resolve(b Backend, w, h int) Backend {
	if b != Auto {
		return b
	}
	if runtime.NumCPU() > 1 && w*h >= autoParallelPixels {
		return Parallel
	}
	return CPU
}

// rows runs kernel over [0, h) using the process-wide backend.
func rows(w, h int, kernel func(y0, y1 int)) {
	rowsWith(resolve(GetBackend(), w, h), h, kernel)
}

func rowsWith(b Backend, h int, kernel func(y0, y1 int)) {
	bands := runtime.NumCPU()
	if limit := h / minBandRows; bands > limit {
		bands = limit
	}
	if b != Parallel || bands < 2 {
		kernel(0, h)
		return
	}

	// Keep bands on even rows so 4:2:0 chroma rows are never split.
	step := ((h+bands-1)/bands + 1) &^ 1
	var g errgroup.Group
	for y0 := 0; y0 < h; y0 += step {
		y0, y1 := y0, y0+step
		if y1 > h {
			y1 = h
		}
		g.Go(func() error {
			kernel(y0, y1)
			return nil
		})
	}
	g.Wait()
}
