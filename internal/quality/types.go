package quality

// Thresholds are the minimum acceptable quality scores and which of them
// the caller wants validated.
type Thresholds struct {
	MinSSIM        float64
	MinMSSSIM      float64
	MinPSNR        float64
	ValidateSSIM   bool
	ValidateMSSSIM bool
	ValidatePSNR   bool
}

// DefaultThresholds returns the standard SSIM/MS-SSIM/PSNR quality floor.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSSIM:   0.95,
		MinMSSSIM: 0.90,
		MinPSNR:   35,
	}
}

// Scores is the result of a Compute call. Individual fields are nil when
// not requested or when that channel was unmeasurable.
type Scores struct {
	SSIMY   *float64
	SSIMAll *float64
	MSSSIM  *float64
	PSNR    *float64
	// Unmeasurable is true when the engine could not produce any score at
	// all (dimension mismatch, palette format, every channel panicked).
	Unmeasurable bool
}

// Options configures a single Compute call.
type Options struct {
	ComputeMSSSIM bool
	ComputeAll    bool // compute the Y/U/V "All" aggregate, not just Y
	ComputePSNR   bool
	DurationSecs  float64 // drives temporal sampling for video
	PaletteFormat bool    // GIF and similar: MS-SSIM path is incompatible
	ProgressEvery float64 // minimum percent delta between progress callbacks; 0 = default to 10
}

// ProgressFunc receives aggregated progress percentage updates, emitted
// no more often than every 10 percentage points.
type ProgressFunc func(percent float64)
