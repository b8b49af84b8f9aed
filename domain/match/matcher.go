// Package match counts template occurrences in captured frames using
// normalized cross-correlation at multiple template scales, then merges
// near-duplicate detections by overlap suppression.
package match

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/mbeaufort/archi-scan-go/config"
)

// Match modes recorded in persisted results.
const (
	ModeMultiScale = "ncc_multiscale"
	ModeExact      = "ncc_exact"
)

// Matcher holds the cached grayscale reference image and detection
// parameters. It is safe for use from a single scan goroutine; the internal
// scale cache tolerates concurrent per-scale workers.
type Matcher struct {
	logger *slog.Logger

	base       *templatePrecomp
	cacheMu    sync.RWMutex
	scaleCache map[[2]int]*templatePrecomp

	multiScale     bool
	scales         []float64
	threshold      float64
	stride         int
	exactThreshold float64
	exactStride    int
	minPx          int
	iouThreshold   float64
	grayscale      bool
}

// NewMatcher loads the reference image at templatePath and prepares the
// matcher according to cfg. A missing or undecodable template is an error;
// callers treat it as fatal at startup.
func NewMatcher(templatePath string, cfg *config.Config, logger *slog.Logger) (*Matcher, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	_ = cfg.Validate()
	img, err := imaging.Open(templatePath)
	if err != nil {
		return nil, fmt.Errorf("match: load template %s: %w", templatePath, err)
	}
	if cfg.Grayscale {
		img = imaging.Grayscale(img)
	}
	base := newTemplatePrecomp(img)
	if base == nil {
		return nil, fmt.Errorf("match: template %s is empty", templatePath)
	}
	return &Matcher{
		logger:         logger,
		base:           base,
		scaleCache:     map[[2]int]*templatePrecomp{},
		multiScale:     cfg.UseMultiScale,
		scales:         cfg.ScaleFactors,
		threshold:      cfg.Threshold,
		stride:         cfg.Stride,
		exactThreshold: cfg.ExactThreshold,
		exactStride:    cfg.ExactStride,
		minPx:          cfg.MinTemplatePx,
		iouThreshold:   cfg.IoUThreshold,
		grayscale:      cfg.Grayscale,
	}, nil
}

// Mode reports the match mode string recorded in results.
func (m *Matcher) Mode() string {
	if m.multiScale {
		return ModeMultiScale
	}
	return ModeExact
}

// Grayscale reports whether the template was converted before correlation.
func (m *Matcher) Grayscale() bool { return m.grayscale }

// TemplateSize returns the unscaled template dimensions.
func (m *Matcher) TemplateSize() (w, h int) { return m.base.W, m.base.H }

// Count matches the template against frame and returns the de-duplicated
// detection boxes. origin is the frame's top-left corner in screen
// coordinates, so returned boxes are screen-absolute.
func (m *Matcher) Count(frame *image.RGBA, origin image.Point) ([]Box, error) {
	if frame == nil {
		return nil, errors.New("match: nil frame")
	}
	pre := buildGrayPrecomp(frame)
	if pre == nil || pre.W == 0 || pre.H == 0 {
		return nil, errors.New("match: empty frame")
	}

	var candidates []Box
	if m.multiScale {
		candidates = m.multiScaleCandidates(pre, origin)
	} else {
		// Exact mode: single scale at a stricter threshold with coarser
		// striding. Same output shape, reduced precision/speed trade-off.
		candidates = collectCandidates(pre, m.base, m.exactThreshold, m.exactStride, origin, 1.0)
	}

	kept := DedupOverlaps(candidates, m.iouThreshold)
	if m.logger != nil {
		m.logger.Debug("template match",
			"mode", m.Mode(),
			"candidates", len(candidates),
			"kept", len(kept),
		)
	}
	return kept, nil
}
