package quality

import "math"

// WindowSize is the side length of the Gaussian SSIM window.
const WindowSize = 11

// gaussianSigma is the window's standard deviation.
const gaussianSigma = 1.5

// ssimC1/ssimC2 are the stability constants for 8-bit imagery:
// C1 = (0.01*255)^2, C2 = (0.03*255)^2.
var (
	ssimC1 = math.Pow(0.01*255, 2)
	ssimC2 = math.Pow(0.03*255, 2)
)

// gaussianKernel returns an 11x11 kernel normalized to sum to 1.
func gaussianKernel() [WindowSize][WindowSize]float64 {
	var k [WindowSize][WindowSize]float64
	radius := WindowSize / 2
	sum := 0.0
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			v := math.Exp(-(float64(x*x) + float64(y*y)) / (2 * gaussianSigma * gaussianSigma))
			k[y+radius][x+radius] = v
			sum += v
		}
	}
	for y := 0; y < WindowSize; y++ {
		for x := 0; x < WindowSize; x++ {
			k[y][x] /= sum
		}
	}
	return k
}

var kernel = gaussianKernel()

// SSIM computes the mean structural similarity between two same-sized
// planes. Dimensions must match exactly, or the second return value is
// false ("unmeasurable"). Images smaller than the
// 11x11 window in either dimension fall back to SimpleSSIM.
func SSIM(ref, dist Plane) (float64, bool) {
	if !SameDimensions(ref, dist) {
		return 0, false
	}
	if ref.Width < WindowSize || ref.Height < WindowSize {
		return SimpleSSIM(ref, dist), true
	}

	radius := WindowSize / 2
	var sum float64
	var count int

	for cy := radius; cy < ref.Height-radius; cy++ {
		for cx := radius; cx < ref.Width-radius; cx++ {
			sum += windowSSIM(ref, dist, cx, cy, radius)
			count++
		}
	}
	if count == 0 {
		return SimpleSSIM(ref, dist), true
	}
	return sum / float64(count), true
}

// windowSSIM computes the SSIM value for the window centered at (cx, cy).
func windowSSIM(ref, dist Plane, cx, cy, radius int) float64 {
	var muX, muY float64
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			w := kernel[dy+radius][dx+radius]
			muX += w * float64(ref.At(cx+dx, cy+dy))
			muY += w * float64(dist.At(cx+dx, cy+dy))
		}
	}

	var varX, varY, covXY float64
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			w := kernel[dy+radius][dx+radius]
			ex := float64(ref.At(cx+dx, cy+dy)) - muX
			ey := float64(dist.At(cx+dx, cy+dy)) - muY
			varX += w * ex * ex
			varY += w * ey * ey
			covXY += w * ex * ey
		}
	}

	numerator := (2*muX*muY + ssimC1) * (2*covXY + ssimC2)
	denominator := (muX*muX + muY*muY + ssimC1) * (varX + varY + ssimC2)
	if denominator == 0 {
		return 1
	}
	return numerator / denominator
}

// SimpleSSIM computes a single-window SSIM over the whole plane using
// unbiased variance, the fallback formula for images smaller than the
// Gaussian window in either dimension.
func SimpleSSIM(ref, dist Plane) float64 {
	n := ref.Width * ref.Height
	if n == 0 {
		return 1
	}
	if n == 1 {
		if ref.Pix[0] == dist.Pix[0] {
			return 1
		}
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += float64(ref.Pix[i])
		sumY += float64(dist.Pix[i])
	}
	muX := sumX / float64(n)
	muY := sumY / float64(n)

	var varX, varY, covXY float64
	for i := 0; i < n; i++ {
		ex := float64(ref.Pix[i]) - muX
		ey := float64(dist.Pix[i]) - muY
		varX += ex * ex
		varY += ey * ey
		covXY += ex * ey
	}
	if n > 1 {
		varX /= float64(n - 1)
		varY /= float64(n - 1)
		covXY /= float64(n - 1)
	}

	numerator := (2*muX*muY + ssimC1) * (2*covXY + ssimC2)
	denominator := (muX*muX + muY*muY + ssimC1) * (varX + varY + ssimC2)
	if denominator == 0 {
		return 1
	}
	return numerator / denominator
}

// PSNR computes Peak Signal-to-Noise Ratio in dB between two same-sized
// planes. Returns +Inf for identical planes (zero MSE).
func PSNR(ref, dist Plane) (float64, bool) {
	if !SameDimensions(ref, dist) {
		return 0, false
	}
	n := ref.Width * ref.Height
	if n == 0 {
		return 0, false
	}

	var se float64
	for i := 0; i < n; i++ {
		d := float64(ref.Pix[i]) - float64(dist.Pix[i])
		se += d * d
	}
	mse := se / float64(n)
	if mse == 0 {
		return math.Inf(1), true
	}
	return 10 * math.Log10(255*255/mse), true
}
