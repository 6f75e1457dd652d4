package encoding

import (
	"math"
	"sync/atomic"
)

// Controller owns the run-wide cancellation flag. It is safe for concurrent
// use; the runner polls it and consumers flip it.
type Controller struct {
	running atomic.Bool
	skip    atomic.Bool
}

// NewController returns a controller in the running state.
func NewController() *Controller {
	c := &Controller{}
	c.running.Store(true)
	return c
}

// Cancel stops the run. The current encode is terminated, no further files
// start and the completion event is suppressed. It reports whether this call
// was the one that cancelled.
func (c *Controller) Cancel() bool {
	return c.running.CompareAndSwap(true, false)
}

// Running reports whether Cancel has not been called.
func (c *Controller) Running() bool {
	return c.running.Load()
}

// SkipCurrent terminates only the file being encoded. The run continues with
// the next file.
func (c *Controller) SkipCurrent() {
	c.skip.Store(true)
}

func (c *Controller) stopRequested() bool {
	return !c.Running() || c.skip.Load()
}

func (c *Controller) clearSkip() {
	c.skip.Store(false)
}

// OverallPercent maps a position in the queue to 0..100. index is the 0-based
// file being processed and fraction its completion.
func OverallPercent(index int, fraction float64, total int) int {
	if total < 1 {
		total = 1
	}
	if math.IsNaN(fraction) {
		fraction = 0
	}
	pct := (float64(index) + fraction) / float64(total) * 100
	return int(clamp(pct, 0, 100))
}
