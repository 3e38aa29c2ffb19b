package probe

import (
	"fmt"

	"github.com/five82/mfboost/internal/quality"
	"github.com/five82/mfboost/internal/verify"
)

// QualityStep mirrors reporter.QualityStep without importing the
// reporter package, keeping probe a leaf dependency.
type QualityStep struct {
	Name    string
	Passed  bool
	Details string
}

// DimensionCheck reports whether output dimensions match the input.
func DimensionCheck(inW, inH, outW, outH uint32) QualityStep {
	if inW == outW && inH == outH {
		return QualityStep{Name: "Dimensions", Passed: true, Details: fmt.Sprintf("%dx%d", outW, outH)}
	}
	return QualityStep{
		Name:    "Dimensions",
		Passed:  false,
		Details: fmt.Sprintf("mismatch: got %dx%d, expected %dx%d", outW, outH, inW, inH),
	}
}

// DurationCheck reports whether output duration stayed within a
// 1-second tolerance of the input.
func DurationCheck(inSecs, outSecs float64) QualityStep {
	const toleranceSecs = 1.0
	diff := inSecs - outSecs
	if diff < 0 {
		diff = -diff
	}
	if diff <= toleranceSecs {
		return QualityStep{Name: "Duration", Passed: true, Details: fmt.Sprintf("%.1fs", outSecs)}
	}
	return QualityStep{
		Name:    "Duration",
		Passed:  false,
		Details: fmt.Sprintf("mismatch: got %.1fs, expected %.1fs (diff %.1fs)", outSecs, inSecs, diff),
	}
}

// ThresholdSteps turns a quality.Scores/Thresholds pair into one step per
// validated metric.
func ThresholdSteps(scores quality.Scores, thresholds quality.Thresholds) []QualityStep {
	var steps []QualityStep
	if thresholds.ValidateSSIM && scores.SSIMAll != nil {
		steps = append(steps, thresholdStep("SSIM", *scores.SSIMAll, thresholds.MinSSIM))
	} else if thresholds.ValidateSSIM && scores.SSIMY != nil {
		steps = append(steps, thresholdStep("SSIM", *scores.SSIMY, thresholds.MinSSIM))
	}
	if thresholds.ValidateMSSSIM && scores.MSSSIM != nil {
		steps = append(steps, thresholdStep("MS-SSIM", *scores.MSSSIM, thresholds.MinMSSSIM))
	}
	if thresholds.ValidatePSNR && scores.PSNR != nil {
		steps = append(steps, thresholdStep("PSNR", *scores.PSNR, thresholds.MinPSNR))
	}
	return steps
}

func thresholdStep(name string, value, min float64) QualityStep {
	passed := value >= min
	return QualityStep{
		Name:    name,
		Passed:  passed,
		Details: fmt.Sprintf("%.4f (min %.4f)", value, min),
	}
}

// CompressionStep converts a verify.Verdict into a reporter step.
func CompressionStep(verdict verify.Verdict) QualityStep {
	policy := "pure-stream"
	if verdict.PolicyUsed == verify.TotalSize {
		policy = "total-size"
	}
	details := fmt.Sprintf("policy=%s", policy)
	if verdict.ContainerOverheadIssue {
		details += ", container overhead advisory: pure stream shrank but total size did not"
	}
	return QualityStep{Name: "Compression", Passed: verdict.Passed, Details: details}
}
