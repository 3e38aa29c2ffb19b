package quality

import (
	"math"
	"testing"
)

func solidPlane(w, h int, v uint8) Plane {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = v
	}
	return Plane{Width: w, Height: h, Pix: pix}
}

func TestSSIMIdenticalIsOne(t *testing.T) {
	p := solidPlane(32, 32, 128)
	score, ok := SSIM(p, p)
	if !ok {
		t.Fatal("expected measurable")
	}
	if math.Abs(score-1.0) > 1e-9 {
		t.Errorf("expected SSIM 1.0 for identical planes, got %v", score)
	}
}

func TestSSIMDimensionMismatchUnmeasurable(t *testing.T) {
	a := solidPlane(32, 32, 10)
	b := solidPlane(16, 16, 10)
	_, ok := SSIM(a, b)
	if ok {
		t.Errorf("expected unmeasurable for dimension mismatch")
	}
}

func TestSSIMSmallImageFallback(t *testing.T) {
	a := solidPlane(1, 1, 200)
	b := solidPlane(1, 1, 200)
	score, ok := SSIM(a, b)
	if !ok {
		t.Fatal("expected measurable via fallback")
	}
	if math.Abs(score-1.0) > 1e-9 {
		t.Errorf("expected SSIM 1.0 for identical 1x1 planes, got %v", score)
	}
}

func TestSSIMSmallImageUsesSimplePath(t *testing.T) {
	// 5x5 is below the 11x11 window, so SSIM must route through SimpleSSIM.
	a := solidPlane(5, 5, 100)
	b := solidPlane(5, 5, 150)
	score, ok := SSIM(a, b)
	if !ok {
		t.Fatal("expected measurable")
	}
	if score < 0 || score > 1 {
		t.Errorf("SSIM out of range: %v", score)
	}
}

func TestSSIMLowerForDegradedImage(t *testing.T) {
	ref := solidPlane(32, 32, 128)
	degraded := solidPlane(32, 32, 128)
	// Introduce a checkerboard disturbance.
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if (x+y)%2 == 0 {
				degraded.Pix[y*32+x] = 50
			}
		}
	}
	same, _ := SSIM(ref, ref)
	diff, _ := SSIM(ref, degraded)
	if diff >= same {
		t.Errorf("expected degraded SSIM (%v) < identical SSIM (%v)", diff, same)
	}
}

func TestPSNRIdenticalIsInfinite(t *testing.T) {
	p := solidPlane(16, 16, 64)
	v, ok := PSNR(p, p)
	if !ok || !math.IsInf(v, 1) {
		t.Errorf("expected +Inf PSNR for identical planes, got %v ok=%v", v, ok)
	}
}

func TestPSNRDecreasesWithError(t *testing.T) {
	ref := solidPlane(16, 16, 100)
	small := solidPlane(16, 16, 105)
	big := solidPlane(16, 16, 150)
	pSmall, _ := PSNR(ref, small)
	pBig, _ := PSNR(ref, big)
	if pSmall <= pBig {
		t.Errorf("expected smaller error to have higher PSNR: small=%v big=%v", pSmall, pBig)
	}
}
