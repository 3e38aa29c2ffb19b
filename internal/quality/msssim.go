package quality

import "math"

// MSSSIMWeights are the five per-scale weights used by the pooled SSIM calculation.
var MSSSIMWeights = [5]float64{0.0448, 0.2856, 0.3001, 0.2363, 0.1333}

// MSSSIM computes multi-scale SSIM between two equal-sized planes.
// At each of the five scales the plane is halved via Lanczos downsampling
// before computing SSIM; scales whose downsampled size would fall below
// the SSIM window are skipped and the remaining weights are renormalized.
// Returns (score, true) normally, or (0, false) if every scale (including
// full resolution) is below the window: an image this small cannot be
// measured at all, so it reports unmeasurable rather than a fabricated
// score.
func MSSSIM(ref, dist Plane) (float64, bool) {
	if !SameDimensions(ref, dist) {
		return 0, false
	}

	curRef, curDist := ref, dist
	var logSum float64
	var weightSum float64
	any := false

	for scale := 0; scale < len(MSSSIMWeights); scale++ {
		if curRef.Width < WindowSize || curRef.Height < WindowSize {
			break
		}

		s, ok := SSIM(curRef, curDist)
		if !ok {
			break
		}
		w := MSSSIMWeights[scale]
		// Geometric mean in log-space to avoid repeated pow() calls and
		// to tolerate s==0 without producing NaN via 0^w.
		logSum += w * math.Log(math.Max(s, 1e-12))
		weightSum += w
		any = true

		if scale == len(MSSSIMWeights)-1 {
			break
		}
		nextRef, ok1 := DownsampleHalfLanczos(curRef)
		nextDist, ok2 := DownsampleHalfLanczos(curDist)
		if !ok1 || !ok2 {
			break
		}
		curRef, curDist = nextRef, nextDist
	}

	if !any || weightSum == 0 {
		return 0, false
	}
	return math.Exp(logSum / weightSum), true
}

// lanczosA is the Lanczos kernel support radius (a=3, a common default).
const lanczosA = 3

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func lanczosWeight(x float64) float64 {
	if x <= -lanczosA || x >= lanczosA {
		return 0
	}
	return sinc(x) * sinc(x/lanczosA)
}

// DownsampleHalfLanczos halves a plane's dimensions using a separable
// Lanczos-3 filter. Returns (plane, false) if either resulting dimension
// would be zero.
func DownsampleHalfLanczos(p Plane) (Plane, bool) {
	newW := p.Width / 2
	newH := p.Height / 2
	if newW == 0 || newH == 0 {
		return Plane{}, false
	}

	// Horizontal pass.
	tmp := make([]float64, newW*p.Height)
	scale := float64(p.Width) / float64(newW)
	for y := 0; y < p.Height; y++ {
		for nx := 0; nx < newW; nx++ {
			srcX := (float64(nx) + 0.5) * scale - 0.5
			tmp[y*newW+nx] = lanczosSample1D(p, srcX, y, true)
		}
	}

	// Vertical pass.
	out := make([]uint8, newW*newH)
	vscale := float64(p.Height) / float64(newH)
	for ny := 0; ny < newH; ny++ {
		srcY := (float64(ny) + 0.5) * vscale - 0.5
		for nx := 0; nx < newW; nx++ {
			v := lanczosSampleColumn(tmp, newW, p.Height, srcY, nx)
			out[ny*newW+nx] = clampToU8(v)
		}
	}

	return Plane{Width: newW, Height: newH, Pix: out}, true
}

func lanczosSample1D(p Plane, srcX float64, y int, horizontal bool) float64 {
	base := int(math.Floor(srcX))
	var sum, wsum float64
	for k := base - lanczosA + 1; k <= base+lanczosA; k++ {
		w := lanczosWeight(srcX - float64(k))
		if w == 0 {
			continue
		}
		x := clampInt(k, 0, p.Width-1)
		sum += w * float64(p.At(x, y))
		wsum += w
	}
	if wsum == 0 {
		return float64(p.At(clampInt(base, 0, p.Width-1), y))
	}
	return sum / wsum
}

func lanczosSampleColumn(tmp []float64, width, height int, srcY float64, x int) float64 {
	base := int(math.Floor(srcY))
	var sum, wsum float64
	for k := base - lanczosA + 1; k <= base+lanczosA; k++ {
		w := lanczosWeight(srcY - float64(k))
		if w == 0 {
			continue
		}
		y := clampInt(k, 0, height-1)
		sum += w * tmp[y*width+x]
		wsum += w
	}
	if wsum == 0 {
		y := clampInt(base, 0, height-1)
		return tmp[y*width+x]
	}
	return sum / wsum
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampToU8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
