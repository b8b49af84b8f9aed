package scan

import (
	"image"
	"sync"
	"sync/atomic"
)

// AbortReason explains why a run was interrupted.
type AbortReason int32

const (
	AbortNone AbortReason = iota
	AbortFailSafe
	AbortSignal
)

func (r AbortReason) String() string {
	switch r {
	case AbortFailSafe:
		return "failsafe"
	case AbortSignal:
		return "signal"
	default:
		return "none"
	}
}

// SessionContext carries the only state shared between the background input
// listener and the sequential scan loop: the write-once anchor coordinate and
// the toggled pause flag. Abort is set by the fail-safe watcher or signal
// handling.
type SessionContext struct {
	mu        sync.Mutex
	anchor    image.Point
	anchorSet bool
	armed     chan struct{}

	paused atomic.Bool
	abort  atomic.Int32

	abortOnce sync.Once
	aborted   chan struct{}
}

// NewSessionContext returns a ready context.
func NewSessionContext() *SessionContext {
	return &SessionContext{
		armed:   make(chan struct{}),
		aborted: make(chan struct{}),
	}
}

// SetAnchor records the anchor exactly once. The first write wins and arms
// the session; later calls report false and change nothing.
func (c *SessionContext) SetAnchor(p image.Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.anchorSet {
		return false
	}
	c.anchor = p
	c.anchorSet = true
	close(c.armed)
	return true
}

// Anchor returns the captured anchor, if set.
func (c *SessionContext) Anchor() (image.Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anchor, c.anchorSet
}

// Armed returns a channel closed once the anchor has been captured.
func (c *SessionContext) Armed() <-chan struct{} { return c.armed }

// TogglePause flips the pause flag and returns the new state.
func (c *SessionContext) TogglePause() bool {
	for {
		old := c.paused.Load()
		if c.paused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Paused reports the pause flag.
func (c *SessionContext) Paused() bool { return c.paused.Load() }

// Abort requests interruption. The first reason wins.
func (c *SessionContext) Abort(reason AbortReason) {
	c.abortOnce.Do(func() {
		c.abort.Store(int32(reason))
		close(c.aborted)
	})
}

// AbortReason returns the recorded reason, AbortNone when still running.
func (c *SessionContext) AbortReason() AbortReason {
	return AbortReason(c.abort.Load())
}

// Aborted returns a channel closed once an abort has been requested.
func (c *SessionContext) Aborted() <-chan struct{} { return c.aborted }
