package match

import (
	"image"
	"runtime"
	"sync"
)

// multiScaleCandidates evaluates every scale factor in parallel and
// accumulates candidate boxes across scales into one list. Scales whose
// resized template falls below minPx in either dimension, or no longer fits
// inside the frame, are skipped.
func (m *Matcher) multiScaleCandidates(pre *grayPrecomp, origin image.Point) []Box {
	type scaleHit struct{ boxes []Box }
	results := make(chan scaleHit, len(m.scales))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	// Small templates can round two factors to the same pixel dimensions;
	// evaluating both would duplicate every candidate with a different
	// Scale tag. The first factor producing a [w,h] wins.
	evaluated := make(map[[2]int]struct{}, len(m.scales))

	for _, s := range m.scales {
		factor := s
		if factor <= 0 {
			continue
		}
		key := m.scaledDims(factor)
		if _, dup := evaluated[key]; dup {
			continue
		}
		evaluated[key] = struct{}{}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			pc := m.scaledTemplate(factor)
			if pc == nil {
				return
			}
			if pc.W < m.minPx || pc.H < m.minPx {
				return
			}
			if pc.W > pre.W || pc.H > pre.H {
				return
			}
			boxes := collectCandidates(pre, pc, m.threshold, m.stride, origin, factor)
			if len(boxes) > 0 {
				results <- scaleHit{boxes: boxes}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var all []Box
	for r := range results {
		all = append(all, r.boxes...)
	}
	return all
}

// scaledDims returns the pixel dimensions factor resolves to, matching the
// rounding in scaledTemplate.
func (m *Matcher) scaledDims(factor float64) [2]int {
	if factor == 1.0 {
		return [2]int{m.base.W, m.base.H}
	}
	return [2]int{int(float64(m.base.W) * factor), int(float64(m.base.H) * factor)}
}

// scaledTemplate returns the cached precomp for factor, building it on first
// use. The cache is keyed by scaled dimensions so factors that collapse to
// the same pixel size share one entry.
func (m *Matcher) scaledTemplate(factor float64) *templatePrecomp {
	if factor == 1.0 {
		return m.base
	}
	w := int(float64(m.base.W) * factor)
	h := int(float64(m.base.H) * factor)
	if w < 2 || h < 2 {
		return nil
	}
	key := [2]int{w, h}
	m.cacheMu.RLock()
	pc := m.scaleCache[key]
	m.cacheMu.RUnlock()
	if pc != nil {
		return pc
	}
	pc = scaleTemplatePrecomp(m.base, factor)
	if pc == nil {
		return nil
	}
	m.cacheMu.Lock()
	// Keep the first insert so concurrent builders share one slice.
	if existing := m.scaleCache[key]; existing != nil {
		pc = existing
	} else {
		m.scaleCache[key] = pc
	}
	m.cacheMu.Unlock()
	return pc
}
