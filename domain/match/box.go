package match

import "sort"

// Box is a candidate detection in screen coordinates. Scale and Score record
// the template scale and NCC score that produced it.
type Box struct {
	Left   int
	Top    int
	Width  int
	Height int
	Scale  float64
	Score  float64
}

// IoU returns intersection area over union area of a and b, in [0,1].
// Degenerate boxes yield 0.
func IoU(a, b Box) float64 {
	ax2, ay2 := a.Left+a.Width, a.Top+a.Height
	bx2, by2 := b.Left+b.Width, b.Top+b.Height
	interW := min(ax2, bx2) - max(a.Left, b.Left)
	interH := min(ay2, by2) - max(a.Top, b.Top)
	if interW <= 0 || interH <= 0 {
		return 0
	}
	inter := interW * interH
	union := a.Width*a.Height + b.Width*b.Height - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// DedupOverlaps merges near-duplicate candidates: boxes are ordered by
// (Left, Top) for determinism, then kept greedily only while their overlap
// ratio with every previously kept box stays below threshold. Adjacent
// touching icons above the threshold merge into one detection; that
// conservative under-count is accepted behavior.
func DedupOverlaps(boxes []Box, threshold float64) []Box {
	if len(boxes) == 0 {
		return boxes
	}
	sorted := make([]Box, len(boxes))
	copy(sorted, boxes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Left != sorted[j].Left {
			return sorted[i].Left < sorted[j].Left
		}
		if sorted[i].Top != sorted[j].Top {
			return sorted[i].Top < sorted[j].Top
		}
		// Full ordering keeps the kept set stable under input permutation.
		if sorted[i].Width != sorted[j].Width {
			return sorted[i].Width < sorted[j].Width
		}
		return sorted[i].Height < sorted[j].Height
	})
	kept := make([]Box, 0, len(sorted))
	for _, b := range sorted {
		overlaps := false
		for _, k := range kept {
			if IoU(b, k) >= threshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, b)
		}
	}
	return kept
}
