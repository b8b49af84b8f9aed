// Package capture grabs screen regions for template matching.
package capture

import (
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vova616/screenshot"
)

// ScreenRect returns the bounds of the active screen.
func ScreenRect() (image.Rectangle, error) {
	r, err := screenshot.ScreenRect()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("capture: screen rect: %w", err)
	}
	return r, nil
}

// Grab captures the whole active screen.
func Grab() (*image.RGBA, error) {
	r, err := ScreenRect()
	if err != nil {
		return nil, err
	}
	return GrabRegion(r)
}

// GrabRegion captures one screen rectangle.
func GrabRegion(rect image.Rectangle) (*image.RGBA, error) {
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, fmt.Errorf("capture: rect %v: %w", rect, err)
	}
	return img, nil
}

// SearchRegion returns the half of the screen holding the filtered result
// list: the left half. Restricting the capture cuts correlation cost and
// avoids mirrored false positives on the right side of the game window.
func SearchRegion(screen image.Rectangle) image.Rectangle {
	return image.Rect(screen.Min.X, screen.Min.Y, screen.Min.X+screen.Dx()/2, screen.Max.Y)
}

// Grabber captures a fixed screen region on demand and keeps lightweight
// instrumentation counters.
type Grabber struct {
	region    image.Rectangle
	logger    *slog.Logger
	captures  atomic.Uint64
	failures  atomic.Uint64
	grabNanos atomic.Uint64
}

// Stats summarises grab behaviour for instrumentation.
type Stats struct {
	Captures uint64
	Failures uint64
	AvgGrab  time.Duration
}

// NewGrabber returns a grabber for region.
func NewGrabber(region image.Rectangle, logger *slog.Logger) *Grabber {
	return &Grabber{region: region, logger: logger}
}

// Region returns the fixed capture region.
func (g *Grabber) Region() image.Rectangle { return g.region }

// Grab captures the configured region and returns a freshly allocated RGBA
// image.
func (g *Grabber) Grab() (*image.RGBA, error) {
	start := time.Now()
	img, err := GrabRegion(g.region)
	if err != nil {
		g.failures.Add(1)
		return nil, err
	}
	g.captures.Add(1)
	g.grabNanos.Add(uint64(time.Since(start).Nanoseconds()))
	return img, nil
}

// Stats returns accumulated grab counters.
func (g *Grabber) Stats() Stats {
	captures := g.captures.Load()
	total := g.grabNanos.Load()
	var avg time.Duration
	if captures > 0 {
		avg = time.Duration(total / captures)
	}
	return Stats{Captures: captures, Failures: g.failures.Load(), AvgGrab: avg}
}

// LogStats emits the counters at debug level.
func (g *Grabber) LogStats() {
	if g.logger == nil {
		return
	}
	s := g.Stats()
	g.logger.Debug("capture.stats",
		"captures", s.Captures,
		"failures", s.Failures,
		"avg_grab", s.AvgGrab,
	)
}
