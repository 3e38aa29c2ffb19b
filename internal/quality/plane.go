// Package quality implements the quality metric engine (C3): windowed
// SSIM, multi-scale SSIM, channel parallelism, temporal sampling for
// video, and the advisory PSNR→SSIM mapping.
package quality

// Plane is a single 8-bit grayscale image channel (one of Y, U, or V).
type Plane struct {
	Width  int
	Height int
	Pix    []uint8 // row-major, len == Width*Height
}

// At returns the pixel at (x, y). Callers are expected to stay in bounds;
// this is an internal hot-path type, not a public API surface.
func (p Plane) At(x, y int) uint8 {
	return p.Pix[y*p.Width+x]
}

// SameDimensions reports whether two planes have identical width/height.
func SameDimensions(a, b Plane) bool {
	return a.Width == b.Width && a.Height == b.Height
}
