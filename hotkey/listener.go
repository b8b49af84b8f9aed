// Package hotkey binds the global F8/F10 keys to the session context using
// the gohook event loop.
package hotkey

import (
	"image"
	"log/slog"

	hook "github.com/robotn/gohook"

	"github.com/mbeaufort/archi-scan-go/domain/scan"
)

const (
	armKey   = "f8"
	pauseKey = "f10"
)

// Listener owns the global hook loop for the lifetime of a session.
type Listener struct {
	ctx      *scan.SessionContext
	logger   *slog.Logger
	location func() (int, int)
}

// NewListener builds a listener. location reports the current pointer
// position and is read when the arm key fires.
func NewListener(ctx *scan.SessionContext, location func() (int, int), logger *slog.Logger) *Listener {
	return &Listener{ctx: ctx, logger: logger, location: location}
}

// Start registers the key bindings and runs the hook loop in a goroutine.
// Call Stop to unwind it.
func (l *Listener) Start() {
	hook.Register(hook.KeyDown, []string{armKey}, func(hook.Event) {
		l.safely(l.HandleArm)
	})
	hook.Register(hook.KeyDown, []string{pauseKey}, func(hook.Event) {
		l.safely(l.HandleTogglePause)
	})
	events := hook.Start()
	go func() {
		<-hook.Process(events)
	}()
}

// Stop terminates the hook loop. Idempotent.
func (l *Listener) Stop() { hook.End() }

// HandleArm captures the pointer position as the search-field anchor. Only
// the first press counts.
func (l *Listener) HandleArm() {
	x, y := l.location()
	if l.ctx.SetAnchor(image.Pt(x, y)) {
		if l.logger != nil {
			l.logger.Info("search field anchored", "x", x, "y", y)
		}
		return
	}
	if l.logger != nil {
		l.logger.Debug("anchor already set, ignoring arm key")
	}
}

// HandleTogglePause flips the pause flag.
func (l *Listener) HandleTogglePause() {
	if l.ctx.TogglePause() {
		if l.logger != nil {
			l.logger.Info("scan paused, press F10 to resume")
		}
		return
	}
	if l.logger != nil {
		l.logger.Info("scan resumed")
	}
}

// safely isolates a handler panic so one bad event cannot kill the hook
// loop or the process.
func (l *Listener) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil && l.logger != nil {
			l.logger.Error("hotkey handler panicked", "recovered", r)
		}
	}()
	fn()
}
