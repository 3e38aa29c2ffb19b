package quality

// SampleStride returns N such that frames whose index is ≡ 0 mod N are
// measured, adapting to video duration.
// durationSecs <= 60: every frame (stride 1).
// 60-300s: 1 in 3.
// 300-1800s: 1 in 10.
// > 1800s: MS-SSIM is skipped entirely (stride 0 signals "do not sample").
func SampleStride(durationSecs float64) int {
	switch {
	case durationSecs <= 60:
		return 1
	case durationSecs <= 300:
		return 3
	case durationSecs <= 1800:
		return 10
	default:
		return 0
	}
}

// SkipMSSSIM reports whether MS-SSIM should be skipped entirely in favor
// of SSIM-only measurement, per the >1800s boundary.
func SkipMSSSIM(durationSecs float64) bool {
	return SampleStride(durationSecs) == 0
}

// SampledFrameIndices returns the indices (out of totalFrames) selected
// by the stride, i.e. those whose index is congruent to 0 mod stride.
// A stride <= 0 is treated as "every frame" to keep the function total.
func SampledFrameIndices(totalFrames int, stride int) []int {
	if stride <= 0 {
		stride = 1
	}
	var out []int
	for i := 0; i < totalFrames; i += stride {
		out = append(out, i)
	}
	return out
}
