// Package control carries cooperative pause/resume/skip/stop signals from a
// driver (terminal UI, signal handler) to the batch and search loops.
//
// The Controller is the only state shared between the driver goroutine and
// the worker goroutine. All fields are atomics; the worker polls them at
// suspension points via Checkpoint.
package control

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Signal is the outcome of a suspension point.
type Signal int

const (
	Continue Signal = iota
	Stop
	Skip
)

func (s Signal) String() string {
	switch s {
	case Stop:
		return "stop"
	case Skip:
		return "skip"
	default:
		return "continue"
	}
}

// PollInterval is how often BlockWhilePaused re-checks its flags.
const PollInterval = 100 * time.Millisecond

// Controller holds the per-run control flags. The zero value is ready to
// use and a nil *Controller always reports Continue.
type Controller struct {
	paused atomic.Bool
	stop   atomic.Bool
	skip   atomic.Bool
}

// New returns a Controller with every flag cleared.
func New() *Controller {
	return &Controller{}
}

// Pause makes the next checkpoint block until Resume or RequestStop.
func (c *Controller) Pause() {
	c.paused.Store(true)
}

// Resume releases a paused checkpoint.
func (c *Controller) Resume() {
	c.paused.Store(false)
}

// RequestStop asks the batch to halt after the current suspension point.
func (c *Controller) RequestStop() {
	c.stop.Store(true)
}

// RequestSkip asks the worker to abandon the file in flight.
func (c *Controller) RequestSkip() {
	c.skip.Store(true)
}

// Paused reports the pause flag, for display.
func (c *Controller) Paused() bool {
	if c == nil {
		return false
	}
	return c.paused.Load()
}

// BlockWhilePaused waits while paused, returning early on stop or when ctx
// is done.
func (c *Controller) BlockWhilePaused(ctx context.Context) {
	if c == nil {
		return
	}
	if !c.paused.Load() {
		return
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for c.paused.Load() && !c.stop.Load() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// StopRequested reports whether a stop was requested. It does not clear the
// flag: stop applies to the rest of the run.
func (c *Controller) StopRequested() bool {
	if c == nil {
		return false
	}
	return c.stop.Load()
}

// ConsumeSkip reports and clears a pending skip request.
func (c *Controller) ConsumeSkip() bool {
	if c == nil {
		return false
	}
	return c.skip.Swap(false)
}

// Checkpoint is the suspension point used before every trial encode and
// before every file: wait while paused, then check stop, then skip. A done
// context counts as a stop.
func (c *Controller) Checkpoint(ctx context.Context) Signal {
	c.BlockWhilePaused(ctx)
	if ctx.Err() != nil || c.StopRequested() {
		return Stop
	}
	if c.ConsumeSkip() {
		return Skip
	}
	return Continue
}

// Interrupt is returned by search operations that ended on a Stop or Skip
// signal. It is an outcome, not a failure.
type Interrupt struct {
	Signal Signal
}

func (e *Interrupt) Error() string {
	return fmt.Sprintf("interrupted: %s requested", e.Signal)
}

// Check runs Checkpoint and converts a non-Continue signal into an
// *Interrupt error.
func (c *Controller) Check(ctx context.Context) error {
	if sig := c.Checkpoint(ctx); sig != Continue {
		return &Interrupt{Signal: sig}
	}
	return nil
}
