package scan

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/mbeaufort/archi-scan-go/catalog"
	"github.com/mbeaufort/archi-scan-go/config"
	"github.com/mbeaufort/archi-scan-go/domain/match"
	"github.com/mbeaufort/archi-scan-go/store"
)

type fakeCounter struct {
	mu      sync.Mutex
	calls   int
	counts  []int
	errAt   map[int]error
	lastBox match.Box
}

func (f *fakeCounter) Count(frame *image.RGBA, origin image.Point) ([]match.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	if err, ok := f.errAt[idx]; ok {
		return nil, err
	}
	n := 1
	if idx < len(f.counts) {
		n = f.counts[idx]
	}
	boxes := make([]match.Box, 0, n)
	for i := 0; i < n; i++ {
		b := match.Box{Left: origin.X + i*20, Top: origin.Y, Width: 16, Height: 16}
		boxes = append(boxes, b)
		if i == 0 {
			f.lastBox = b
		}
	}
	return boxes, nil
}

func (f *fakeCounter) Mode() string    { return match.ModeMultiScale }
func (f *fakeCounter) Grayscale() bool { return true }

type fakeGrabber struct {
	err error
}

func (g *fakeGrabber) Grab() (*image.RGBA, error) {
	if g.err != nil {
		return nil, g.err
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}
func (g *fakeGrabber) Region() image.Rectangle { return image.Rect(0, 0, 960, 1080) }

type fakeDriver struct {
	mu         sync.Mutex
	typed      []string
	highlights []image.Point
	onReplace  func(name string)
}

func (d *fakeDriver) ReplaceField(name string, anchor image.Point) {
	d.mu.Lock()
	d.typed = append(d.typed, name)
	d.mu.Unlock()
	if d.onReplace != nil {
		d.onReplace(name)
	}
}

func (d *fakeDriver) HighlightFirstMatch(left, top, width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.highlights = append(d.highlights, image.Pt(left+width/2, top+height/2))
}

type fakeSink struct {
	mu      sync.Mutex
	upserts []store.ScanResult
	profile string
	err     error
}

func (s *fakeSink) Upsert(profile string, result store.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.profile = profile
	s.upserts = append(s.upserts, result)
	return nil
}

func makeTargets(n int) []catalog.Target {
	targets := make([]catalog.Target, 0, n)
	for i := 0; i < n; i++ {
		targets = append(targets, catalog.Target{ID: i, Name: fmt.Sprintf("Creature-%02d", i)})
	}
	return targets
}

func testSessionConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.PausePollMs = 1
	return cfg
}

func armedContext() *SessionContext {
	ctx := NewSessionContext()
	ctx.SetAnchor(image.Pt(400, 300))
	return ctx
}

func newTestSession(cfg *config.Config, ctx *SessionContext, targets []catalog.Target, counter *fakeCounter, driver *fakeDriver, sink *fakeSink) *Session {
	s := NewSession(cfg, nil, ctx, targets, counter, &fakeGrabber{}, driver, sink, nil, "tester")
	s.sleep = func(time.Duration) {}
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func TestRunCheckpointsEveryKAndOnceAtEnd(t *testing.T) {
	cfg := testSessionConfig()
	cfg.SaveEvery = 12
	sink := &fakeSink{}
	s := newTestSession(cfg, armedContext(), makeTargets(30), &fakeCounter{}, &fakeDriver{}, sink)

	if got := s.Run(); got != StateCompleted {
		t.Fatalf("terminal state = %v", got)
	}
	if len(sink.upserts) != 3 {
		t.Fatalf("expected 2 checkpoints + 1 final write, got %d", len(sink.upserts))
	}
	wantScanned := []int{12, 24, 30}
	for i, res := range sink.upserts {
		if res.Scanned != wantScanned[i] {
			t.Fatalf("write %d scanned = %d, want %d", i, res.Scanned, wantScanned[i])
		}
		if res.Total != 30 {
			t.Fatalf("write %d total = %d", i, res.Total)
		}
		if len(res.Counts) != wantScanned[i] {
			t.Fatalf("write %d snapshot holds %d counts, want %d", i, len(res.Counts), wantScanned[i])
		}
	}
	if sink.profile != "tester" {
		t.Fatalf("profile = %q", sink.profile)
	}
}

func TestRunRecordsZeroOnMatchErrorAndContinues(t *testing.T) {
	cfg := testSessionConfig()
	counter := &fakeCounter{errAt: map[int]error{1: errors.New("boom")}}
	sink := &fakeSink{}
	s := newTestSession(cfg, armedContext(), makeTargets(3), counter, &fakeDriver{}, sink)

	if got := s.Run(); got != StateCompleted {
		t.Fatalf("terminal state = %v", got)
	}
	final := sink.upserts[len(sink.upserts)-1]
	if final.Scanned != 3 {
		t.Fatalf("scanned = %d, want 3", final.Scanned)
	}
	if final.Counts["Creature-01"] != 0 {
		t.Fatalf("failed name should record 0, got %d", final.Counts["Creature-01"])
	}
	if final.Counts["Creature-00"] != 1 || final.Counts["Creature-02"] != 1 {
		t.Fatalf("other names affected: %v", final.Counts)
	}
}

func TestRunRecordsZeroOnCaptureError(t *testing.T) {
	cfg := testSessionConfig()
	sink := &fakeSink{}
	s := NewSession(cfg, nil, armedContext(), makeTargets(1), &fakeCounter{}, &fakeGrabber{err: errors.New("no screen")}, &fakeDriver{}, sink, nil, "p")
	s.sleep = func(time.Duration) {}
	s.now = time.Now

	if got := s.Run(); got != StateCompleted {
		t.Fatalf("terminal state = %v", got)
	}
	final := sink.upserts[len(sink.upserts)-1]
	if final.Counts["Creature-00"] != 0 {
		t.Fatalf("capture failure should record 0, got %v", final.Counts)
	}
}

func TestRunAbortBeforeAnchorStillPersists(t *testing.T) {
	ctx := NewSessionContext()
	ctx.Abort(AbortSignal)
	sink := &fakeSink{}
	s := newTestSession(testSessionConfig(), ctx, makeTargets(5), &fakeCounter{}, &fakeDriver{}, sink)

	if got := s.Run(); got != StateInterrupted {
		t.Fatalf("terminal state = %v", got)
	}
	if len(sink.upserts) != 1 {
		t.Fatalf("final persist must run on interruption, got %d writes", len(sink.upserts))
	}
	if sink.upserts[0].Scanned != 0 {
		t.Fatalf("scanned = %d", sink.upserts[0].Scanned)
	}
}

func TestRunAbortMidLoopInterrupts(t *testing.T) {
	ctx := armedContext()
	driver := &fakeDriver{}
	driver.onReplace = func(name string) {
		if name == "Creature-02" {
			ctx.Abort(AbortFailSafe)
		}
	}
	sink := &fakeSink{}
	s := newTestSession(testSessionConfig(), ctx, makeTargets(10), &fakeCounter{}, driver, sink)

	if got := s.Run(); got != StateInterrupted {
		t.Fatalf("terminal state = %v", got)
	}
	final := sink.upserts[len(sink.upserts)-1]
	if final.Scanned != 3 {
		t.Fatalf("scanned = %d, want 3 (abort lands after the third name)", final.Scanned)
	}
}

func TestRunWaitsWhilePaused(t *testing.T) {
	ctx := armedContext()
	ctx.TogglePause()
	polls := 0
	sink := &fakeSink{}
	s := newTestSession(testSessionConfig(), ctx, makeTargets(2), &fakeCounter{}, &fakeDriver{}, sink)
	s.sleep = func(time.Duration) {
		polls++
		if polls == 5 {
			ctx.TogglePause()
		}
	}

	if got := s.Run(); got != StateCompleted {
		t.Fatalf("terminal state = %v", got)
	}
	if polls < 5 {
		t.Fatalf("expected pause polling, got %d polls", polls)
	}
	final := sink.upserts[len(sink.upserts)-1]
	if final.Scanned != 2 {
		t.Fatalf("scanned = %d after resume", final.Scanned)
	}
}

func TestRunPackModeHighlightsFirstBox(t *testing.T) {
	cfg := testSessionConfig()
	cfg.PackMode = true
	driver := &fakeDriver{}
	sink := &fakeSink{}
	s := newTestSession(cfg, armedContext(), makeTargets(1), &fakeCounter{counts: []int{2}}, driver, sink)

	if got := s.Run(); got != StateCompleted {
		t.Fatalf("terminal state = %v", got)
	}
	if len(driver.highlights) != 1 {
		t.Fatalf("expected one highlight, got %v", driver.highlights)
	}
	// First box sits at the region origin (0,0) with a 16x16 template.
	if driver.highlights[0] != image.Pt(8, 8) {
		t.Fatalf("highlight at %v, want center of first box", driver.highlights[0])
	}
}

func TestRunWithoutCollaboratorsIsFatal(t *testing.T) {
	sink := &fakeSink{}
	s := NewSession(testSessionConfig(), nil, armedContext(), makeTargets(3), nil, &fakeGrabber{}, &fakeDriver{}, sink, nil, "p")

	if got := s.Run(); got != StateFatal {
		t.Fatalf("terminal state = %v, want %v", got, StateFatal)
	}
	if len(sink.upserts) != 0 {
		t.Fatalf("misassembled session must not persist, got %d writes", len(sink.upserts))
	}
}

func TestRunEmitsStateTransitions(t *testing.T) {
	sink := &fakeSink{}
	s := newTestSession(testSessionConfig(), armedContext(), makeTargets(1), &fakeCounter{}, &fakeDriver{}, sink)
	var seq []State
	s.AddListener(func(prev, next State) { seq = append(seq, next) })

	s.Run()
	want := []State{StateArmed, StateScanning, StateCompleted}
	// The initial WaitingForAnchor transition is a self-transition from the
	// zero state and is not reported.
	if len(seq) != len(want) {
		t.Fatalf("transitions = %v", seq)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("transition %d = %v, want %v", i, seq[i], want[i])
		}
	}
}

func TestWatchFailSafeAbortsInCorner(t *testing.T) {
	ctx := NewSessionContext()
	screen := image.Rect(0, 0, 1920, 1080)
	go WatchFailSafe(ctx, func() (int, int) { return 0, 0 }, screen, nil)

	select {
	case <-ctx.Aborted():
	case <-time.After(2 * time.Second):
		t.Fatal("fail-safe did not trigger")
	}
	if ctx.AbortReason() != AbortFailSafe {
		t.Fatalf("reason = %v", ctx.AbortReason())
	}
}

func TestWatchFailSafeIgnoresCenter(t *testing.T) {
	ctx := NewSessionContext()
	screen := image.Rect(0, 0, 1920, 1080)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		WatchFailSafe(ctx, func() (int, int) { return 960, 540 }, screen, stop)
		close(done)
	}()
	time.Sleep(250 * time.Millisecond)
	if ctx.AbortReason() != AbortNone {
		t.Fatal("fail-safe triggered away from corners")
	}
	close(stop)
	<-done
}
