package scan

import (
	"image"
	"log/slog"
	"time"

	"github.com/corona10/goimagehash"
)

// settleProbeBits is the maximum perception-hash distance between two
// successive captures still considered "unchanged".
const settleProbeBits = 1

// Settler waits for the game UI to re-render the filtered result list after
// the field content changed. The wait is bounded by a fixed delay; when a
// grab function is available, successive captures are compared by perceptual
// hash and the wait ends early once the region stops changing.
type Settler struct {
	Delay  time.Duration
	Grab   func() (*image.RGBA, error)
	Sleep  func(time.Duration)
	Logger *slog.Logger
}

// Wait blocks for at most s.Delay.
func (s *Settler) Wait() {
	sleep := s.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	if s.Grab == nil || s.Delay < 200*time.Millisecond {
		sleep(s.Delay)
		return
	}

	interval := s.Delay / 4
	var prev *goimagehash.ImageHash
	for elapsed := time.Duration(0); elapsed < s.Delay; elapsed += interval {
		sleep(interval)
		frame, err := s.Grab()
		if err != nil {
			// No early exit without a frame; fall back to the fixed delay.
			prev = nil
			continue
		}
		hash, err := goimagehash.PerceptionHash(frame)
		if err != nil {
			prev = nil
			continue
		}
		if prev != nil {
			if dist, err := prev.Distance(hash); err == nil && dist <= settleProbeBits {
				if s.Logger != nil {
					s.Logger.Debug("ui settled early", "elapsed", elapsed+interval, "distance", dist)
				}
				return
			}
		}
		prev = hash
	}
}
