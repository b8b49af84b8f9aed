// Package scan runs the hotkey-driven capture session: wait for the anchor,
// iterate the target catalog, drive the search field, count surviving icons
// and persist checkpointed results.
package scan

import (
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mbeaufort/archi-scan-go/catalog"
	"github.com/mbeaufort/archi-scan-go/config"
	"github.com/mbeaufort/archi-scan-go/domain/match"
	"github.com/mbeaufort/archi-scan-go/store"
)

// State enumerates the session lifecycle.
type State int

const (
	StateWaitingForAnchor State = iota
	StateArmed
	StateScanning
	StateCompleted
	StateInterrupted
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateWaitingForAnchor:
		return "waiting-for-anchor"
	case StateArmed:
		return "armed"
	case StateScanning:
		return "scanning"
	case StateCompleted:
		return "completed"
	case StateInterrupted:
		return "interrupted"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// StateListener is called on each state transition.
type StateListener func(prev, next State)

// Counter matches the cached template against a frame.
type Counter interface {
	Count(frame *image.RGBA, origin image.Point) ([]match.Box, error)
	Mode() string
	Grayscale() bool
}

// FrameGrabber captures the fixed search region.
type FrameGrabber interface {
	Grab() (*image.RGBA, error)
	Region() image.Rectangle
}

// FieldDriver replaces the search field content.
type FieldDriver interface {
	ReplaceField(name string, anchor image.Point)
	HighlightFirstMatch(left, top, width, height int)
}

// ResultSink persists checkpointed and final results.
type ResultSink interface {
	Upsert(profile string, result store.ScanResult) error
}

// Session coordinates one scan run.
type Session struct {
	cfg     *config.Config
	logger  *slog.Logger
	ctx     *SessionContext
	targets []catalog.Target
	counter Counter
	grabber FrameGrabber
	driver  FieldDriver
	sink    ResultSink
	settler *Settler
	profile string

	state     atomic.Int32
	listeners []StateListener
	sleep     func(time.Duration)
	now       func() time.Time
}

// NewSession assembles a session. ctx is shared with the hotkey listener and
// the fail-safe watcher.
func NewSession(cfg *config.Config, logger *slog.Logger, ctx *SessionContext, targets []catalog.Target, counter Counter, grabber FrameGrabber, driver FieldDriver, sink ResultSink, settler *Settler, profile string) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	_ = cfg.Validate()
	return &Session{
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
		targets: targets,
		counter: counter,
		grabber: grabber,
		driver:  driver,
		sink:    sink,
		settler: settler,
		profile: profile,
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// AddListener registers a transition listener. Call before Run.
func (s *Session) AddListener(l StateListener) { s.listeners = append(s.listeners, l) }

// Current returns the session state.
func (s *Session) Current() State { return State(s.state.Load()) }

func (s *Session) transition(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev == next {
		return
	}
	if s.logger != nil {
		s.logger.Debug("session state transition", "from", prev.String(), "to", next.String())
	}
	for _, l := range s.listeners {
		l(prev, next)
	}
}

// Run executes the scan cycle and returns the terminal state. The final
// persistence step always runs, whether the loop completed, a name failed,
// or an abort arrived.
func (s *Session) Run() State {
	// A session without its collaborators cannot scan or persist anything;
	// that is a wiring failure, not an interruption.
	if s.ctx == nil || s.counter == nil || s.grabber == nil || s.driver == nil {
		if s.logger != nil {
			s.logger.Error("session misassembled, refusing to run")
		}
		s.transition(StateFatal)
		return StateFatal
	}

	names := catalog.Names(s.targets)
	counts := make(map[string]int, len(names))
	scanned := 0

	defer func() {
		s.persist(names, counts, scanned, "final")
		if g, ok := s.grabber.(interface{ LogStats() }); ok && g != nil {
			g.LogStats()
		}
	}()

	s.transition(StateWaitingForAnchor)
	if s.logger != nil {
		s.logger.Info("hover the search bar, then press F8 to capture its position")
		s.logger.Info("F10 pauses/resumes; move the pointer to a screen corner to abort")
	}

	select {
	case <-s.ctx.Armed():
	case <-s.ctx.Aborted():
		s.transition(StateInterrupted)
		return StateInterrupted
	}
	anchor, _ := s.ctx.Anchor()
	s.transition(StateArmed)
	if s.logger != nil {
		s.logger.Info("anchor captured", "x", anchor.X, "y", anchor.Y)
	}

	s.transition(StateScanning)
	pausePoll := time.Duration(s.cfg.PausePollMs) * time.Millisecond

loop:
	for _, target := range s.targets {
		for s.ctx.Paused() {
			if s.aborted() {
				break loop
			}
			s.sleep(pausePoll)
		}
		if s.aborted() {
			break loop
		}

		s.driver.ReplaceField(target.Name, anchor)
		if s.settler != nil {
			s.settler.Wait()
		}

		counts[target.Name] = s.countName(target.Name)
		scanned++

		if scanned%s.cfg.SaveEvery == 0 {
			s.persist(names, counts, scanned, "checkpoint")
		}
	}

	if s.aborted() {
		if s.logger != nil {
			s.logger.Info("scan interrupted", "reason", s.ctx.AbortReason().String(), "scanned", scanned)
		}
		s.transition(StateInterrupted)
		return StateInterrupted
	}
	if s.logger != nil {
		s.logger.Info("scan complete", "scanned", scanned, "total", len(names))
	}
	s.transition(StateCompleted)
	return StateCompleted
}

func (s *Session) aborted() bool { return s.ctx.AbortReason() != AbortNone }

// countName runs one detection attempt. Failures are recoverable: they are
// logged and recorded as zero, never aborting the run.
func (s *Session) countName(name string) int {
	frame, err := s.grabber.Grab()
	if err != nil {
		if s.logger != nil {
			s.logger.Error("capture failed", "name", name, "error", err)
		}
		return 0
	}
	boxes, err := s.counter.Count(frame, s.grabber.Region().Min)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("match failed", "name", name, "error", err)
		}
		return 0
	}
	if s.cfg.PackMode && len(boxes) > 0 {
		b := boxes[0]
		s.driver.HighlightFirstMatch(b.Left, b.Top, b.Width, b.Height)
	}
	if s.logger != nil {
		s.logger.Info("scanned", "name", name, "count", len(boxes))
	}
	return len(boxes)
}

func (s *Session) persist(names []string, counts map[string]int, scanned int, kind string) {
	if s.sink == nil {
		return
	}
	result := store.BuildResult(names, counts, scanned, s.counter.Mode(), s.counter.Grayscale(), s.now())
	if err := s.sink.Upsert(s.profile, result); err != nil {
		if s.logger != nil {
			s.logger.Error("persist failed", "kind", kind, "error", err)
		}
		return
	}
	if s.logger != nil {
		s.logger.Info("progress saved", "kind", kind, "scanned", scanned, "profile", s.profile)
	}
}

// WatchFailSafe polls the pointer position and aborts the session when it
// reaches any screen corner (within margin pixels). It returns when the
// session aborts or stop closes.
func WatchFailSafe(c *SessionContext, location func() (int, int), screen image.Rectangle, stop <-chan struct{}) {
	const margin = 2
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.Aborted():
			return
		case <-stop:
			return
		case <-ticker.C:
			x, y := location()
			nearX := x <= screen.Min.X+margin || x >= screen.Max.X-1-margin
			nearY := y <= screen.Min.Y+margin || y >= screen.Max.Y-1-margin
			if nearX && nearY {
				c.Abort(AbortFailSafe)
				return
			}
		}
	}
}
