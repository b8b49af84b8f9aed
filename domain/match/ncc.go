package match

import (
	"image"
	"math"
)

// grayPrecomp stores per-frame grayscale values and their summed-area tables
// (integral images). The integrals allow O(1) window sum and variance queries.
type grayPrecomp struct {
	gray       []float64 // per pixel grayscale (length W*H)
	integral   []float64 // summed-area table of grayscale
	integralSq []float64 // summed-area table of grayscale squared
	W, H       int
}

// templatePrecomp caches grayscale pixels and summary statistics for the
// reference image (or a scaled version of it).
type templatePrecomp struct {
	gray  []float32
	sumT  float64
	sumT2 float64
	W, H  int
	meanT float64
	stdT  float64
}

// newTemplatePrecomp builds grayscale pixels and stats for tmpl. Pixels with
// alpha==0 are ignored when computing stats.
func newTemplatePrecomp(tmpl image.Image) *templatePrecomp {
	if tmpl == nil {
		return nil
	}
	b := tmpl.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	gray := make([]float32, w*h)
	var sumT, sumT2 float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bb, a := tmpl.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if a == 0 { // transparent ignored
				continue
			}
			gval := 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(bb)
			gray[y*w+x] = float32(gval)
			sumT += gval
			sumT2 += gval * gval
		}
	}
	return finishPrecomp(gray, sumT, sumT2, w, h)
}

// scaleTemplatePrecomp returns a scaled copy of base built by bilinear
// interpolation on the base grayscale data, avoiding repeated color
// conversions. Returns nil when the scaled dimensions degenerate.
func scaleTemplatePrecomp(base *templatePrecomp, factor float64) *templatePrecomp {
	if base == nil || factor <= 0 {
		return nil
	}
	if factor == 1.0 {
		return base
	}
	w := int(float64(base.W) * factor)
	h := int(float64(base.H) * factor)
	if w < 2 || h < 2 {
		return nil
	}
	gray := make([]float32, w*h)
	var sumT, sumT2 float64
	fx := float64(base.W) / float64(w)
	fy := float64(base.H) / float64(h)
	bw, bh := base.W, base.H
	src := base.gray
	for y := 0; y < h; y++ {
		ys := (float64(y)+0.5)*fy - 0.5
		if ys < 0 {
			ys = 0
		} else if ys > float64(bh-1) {
			ys = float64(bh - 1)
		}
		y0 := int(math.Floor(ys))
		y1 := y0 + 1
		if y1 >= bh {
			y1 = bh - 1
		}
		dy := ys - float64(y0)
		for x := 0; x < w; x++ {
			xs := (float64(x)+0.5)*fx - 0.5
			if xs < 0 {
				xs = 0
			} else if xs > float64(bw-1) {
				xs = float64(bw - 1)
			}
			x0 := int(math.Floor(xs))
			x1 := x0 + 1
			if x1 >= bw {
				x1 = bw - 1
			}
			dx := xs - float64(x0)
			g00 := src[y0*bw+x0]
			g10 := src[y0*bw+x1]
			g01 := src[y1*bw+x0]
			g11 := src[y1*bw+x1]
			top := float64(g00)*(1-dx) + float64(g10)*dx
			bottom := float64(g01)*(1-dx) + float64(g11)*dx
			gval := float32(top*(1-dy) + bottom*dy)
			gray[y*w+x] = gval
			fv := float64(gval)
			sumT += fv
			sumT2 += fv * fv
		}
	}
	return finishPrecomp(gray, sumT, sumT2, w, h)
}

func finishPrecomp(gray []float32, sumT, sumT2 float64, w, h int) *templatePrecomp {
	n := float64(w * h)
	meanT := sumT / n
	varT := (sumT2 - sumT*sumT/n) / n
	stdT := 0.0
	if varT > 0 {
		stdT = math.Sqrt(varT)
	}
	return &templatePrecomp{gray: gray, sumT: sumT, sumT2: sumT2, W: w, H: h, meanT: meanT, stdT: stdT}
}

// collectCandidates slides pc over the precomputed frame with the given
// stride and returns every window whose normalized cross-correlation score
// reaches threshold, as boxes offset by origin (the capture region's top-left
// in screen coordinates). A zero-variance template correlates with
// everything, so it yields no candidates.
func collectCandidates(pre *grayPrecomp, pc *templatePrecomp, threshold float64, stride int, origin image.Point, scale float64) []Box {
	if pre == nil || pc == nil {
		return nil
	}
	W, H := pre.W, pre.H
	w, h := pc.W, pc.H
	if w == 0 || h == 0 || W < w || H < h {
		return nil
	}
	if pc.stdT <= 1e-9 {
		return nil
	}
	if stride <= 0 {
		stride = 1
	}
	n := float64(w * h)
	var out []Box
	for y := 0; y <= H-h; y += stride {
		for x := 0; x <= W-w; x += stride {
			sumF := integralSum(pre.integral, pre.W, x, y, x+w-1, y+h-1)
			sumF2 := integralSum(pre.integralSq, pre.W, x, y, x+w-1, y+h-1)
			meanF := sumF / n
			varF := (sumF2 - sumF*sumF/n) / n
			if varF <= 1e-9 {
				continue
			}
			stdF := math.Sqrt(varF)
			var sumFT float64
			for i := 0; i < len(pc.gray); i++ {
				py := i / w
				px := i % w
				sumFT += pre.gray[(y+py)*W+(x+px)] * float64(pc.gray[i])
			}
			numer := sumFT - n*meanF*pc.meanT
			denom := n * stdF * pc.stdT
			if denom <= 0 {
				continue
			}
			score := numer / denom
			if score >= threshold {
				out = append(out, Box{
					Left:   origin.X + x,
					Top:    origin.Y + y,
					Width:  w,
					Height: h,
					Scale:  scale,
					Score:  score,
				})
			}
		}
	}
	return out
}

// buildGrayPrecomp computes per-pixel grayscale values and their summed-area
// tables for a frame. Alpha==0 pixels contribute zero.
func buildGrayPrecomp(frame *image.RGBA) *grayPrecomp {
	if frame == nil {
		return nil
	}
	b := frame.Bounds()
	W, H := b.Dx(), b.Dy()
	need := W * H
	p := &grayPrecomp{
		gray:       make([]float64, need),
		integral:   make([]float64, need),
		integralSq: make([]float64, need),
		W:          W,
		H:          H,
	}
	for y := 0; y < H; y++ {
		var rowSum, rowSum2 float64
		for x := 0; x < W; x++ {
			r, gg, bb, a := frame.At(b.Min.X+x, b.Min.Y+y).RGBA()
			var gray float64
			if a != 0 {
				gray = 0.2126*float64(r) + 0.7152*float64(gg) + 0.0722*float64(bb)
			}
			off := y*W + x
			p.gray[off] = gray
			rowSum += gray
			rowSum2 += gray * gray
			if y == 0 {
				p.integral[off] = rowSum
				p.integralSq[off] = rowSum2
			} else {
				p.integral[off] = p.integral[(y-1)*W+x] + rowSum
				p.integralSq[off] = p.integralSq[(y-1)*W+x] + rowSum2
			}
		}
	}
	return p
}

// integralSum returns the inclusive sum over rectangle [x0..x1] x [y0..y1]
// from an integral image stored in row-major order with width W.
func integralSum(I []float64, W int, x0, y0, x1, y1 int) float64 {
	if x0 > x1 || y0 > y1 {
		return 0
	}
	A := func(x, y int) float64 {
		if x < 0 || y < 0 {
			return 0
		}
		return I[y*W+x]
	}
	return A(x1, y1) - A(x0-1, y1) - A(x1, y0-1) + A(x0-1, y0-1)
}
