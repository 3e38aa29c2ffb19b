package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/five82/mfboost/internal/cache"
	"github.com/five82/mfboost/internal/fingerprint"
	"github.com/five82/mfboost/internal/guard"
	"github.com/five82/mfboost/internal/quality"
	"github.com/five82/mfboost/internal/streamsize"
)

func TestModeNeedsQualityAndCompression(t *testing.T) {
	cases := []struct {
		mode            Mode
		wantQuality     bool
		wantCompression bool
	}{
		{ModeSizeOnly, false, false},
		{ModeQualityMatch, true, false},
		{ModePreciseQualityMatch, true, false},
		{ModePreciseQualityMatchCompression, true, true},
		{ModeCompressOnly, false, true},
		{ModeCompressWithQuality, true, true},
	}
	for _, c := range cases {
		if got := c.mode.needsQuality(); got != c.wantQuality {
			t.Errorf("mode %v needsQuality() = %v, want %v", c.mode, got, c.wantQuality)
		}
		if got := c.mode.needsCompression(); got != c.wantCompression {
			t.Errorf("mode %v needsCompression() = %v, want %v", c.mode, got, c.wantCompression)
		}
	}
}

func TestPhaseStepSizesAndOrder(t *testing.T) {
	want := map[PhaseID]float64{
		GpuCoarse:    4.0,
		GpuMedium:    1.0,
		GpuFine:      0.5,
		GpuUltraFine: 0.25,
		CpuFinest:    0.1,
	}
	for phase, step := range want {
		if got := phase.StepSize(); got != step {
			t.Errorf("%v.StepSize() = %v, want %v", phase, got, step)
		}
	}

	order := []PhaseID{GpuCoarse, GpuMedium, GpuFine, GpuUltraFine, CpuFinest}
	for i := 0; i < len(order)-1; i++ {
		next, more := order[i].Next()
		if !more || next != order[i+1] {
			t.Errorf("expected %v.Next() = %v, got %v (more=%v)", order[i], order[i+1], next, more)
		}
	}
	if _, more := CpuFinest.Next(); more {
		t.Errorf("expected CpuFinest to be the last phase")
	}
}

func TestRunSizeOnlyModeConverges(t *testing.T) {
	cfg := Config{
		Mode:             ModeSizeOnly,
		Fingerprint:      fingerprint.Fingerprint{Path: "/in.mov", Size: 1000},
		GPUKind:          fingerprint.HevcGPU,
		CPUKind:          fingerprint.HevcCPU,
		InputStreamInfo:  streamsize.StreamSizeInfo{TotalFileBytes: 1_000_000},
		InitialAnchorCRF: 20,
	}
	deps := Deps{
		Cache: cache.New(100),
		Guard: guard.New(500, "test"),
		Encode: func(ctx context.Context, kind fingerprint.EncoderKind, crf float64) (string, uint64, float64, error) {
			// Extract size shrinks with CRF; "pure bytes" tracked via a
			// custom Extract that reads from the path's encoded size.
			size := uint64(1_000_000 * (1 - crf/kind.MaxCRF()))
			if size < 1 {
				size = 1
			}
			return fmt.Sprintf("/tmp/p-%.2f.mp4", crf), size, 0.5, nil
		},
		Extract: func(path string) (streamsize.StreamSizeInfo, error) {
			return streamsize.StreamSizeInfo{VideoStreamBytes: 500_000, TotalFileBytes: 500_000}, nil
		},
	}

	result, err := Run(context.Background(), cfg, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Iterations == 0 {
		t.Error("expected at least one iteration")
	}
	if result.PhaseReached != CpuFinest {
		t.Errorf("expected search to reach the final phase, got %v", result.PhaseReached)
	}
}

func TestRunRespectsIterationGuardExhaustion(t *testing.T) {
	cfg := Config{
		Mode:             ModePreciseQualityMatch,
		Fingerprint:      fingerprint.Fingerprint{Path: "/in.mov", Size: 1000},
		GPUKind:          fingerprint.HevcGPU,
		CPUKind:          fingerprint.HevcCPU,
		InputStreamInfo:  streamsize.StreamSizeInfo{TotalFileBytes: 1_000_000},
		Thresholds:       quality.DefaultThresholds(),
		InitialAnchorCRF: 20,
	}
	deps := Deps{
		Cache: cache.New(100),
		Guard: guard.New(1, "test"), // exhausts immediately
		Encode: func(ctx context.Context, kind fingerprint.EncoderKind, crf float64) (string, uint64, float64, error) {
			return "/tmp/p.mp4", 500_000, 0.5, nil
		},
		Extract: func(path string) (streamsize.StreamSizeInfo, error) {
			return streamsize.StreamSizeInfo{VideoStreamBytes: 500_000}, nil
		},
		Quality: func(ctx context.Context, probePath string, wantMSSSIM bool) (quality.Scores, error) {
			v := 0.96
			return quality.Scores{SSIMY: &v}, nil
		},
	}

	_, err := Run(context.Background(), cfg, deps)
	if err == nil {
		t.Fatal("expected an error once the iteration guard is exhausted")
	}
}

func TestEvaluateConstraintsQualityOnly(t *testing.T) {
	s := &controllerState{cfg: Config{Mode: ModePreciseQualityMatch, Thresholds: quality.DefaultThresholds()}}
	ssimHigh := 0.96
	ssimLow := 0.80
	if !s.evaluateConstraints(probeOutcome{ssim: &ssimHigh}) {
		t.Error("expected a high SSIM to pass the quality constraint")
	}
	if s.evaluateConstraints(probeOutcome{ssim: &ssimLow}) {
		t.Error("expected a low SSIM to fail the quality constraint")
	}
}

func TestEvaluateConstraintsCompressionOnly(t *testing.T) {
	s := &controllerState{cfg: Config{Mode: ModeCompressOnly}, target: 1000}
	if !s.evaluateConstraints(probeOutcome{pureBytes: 500}) {
		t.Error("expected bytes under target to pass")
	}
	if s.evaluateConstraints(probeOutcome{pureBytes: 1500}) {
		t.Error("expected bytes over target to fail")
	}
}

func TestTrackConsecutiveResetsOnFailure(t *testing.T) {
	s := &controllerState{}
	s.trackConsecutive(GpuCoarse, probeOutcome{crf: 20, passes: true})
	s.trackConsecutive(GpuCoarse, probeOutcome{crf: 24, passes: true})
	if s.consecutive != 2 {
		t.Fatalf("expected consecutive=2, got %d", s.consecutive)
	}
	s.trackConsecutive(GpuCoarse, probeOutcome{crf: 28, passes: false})
	if s.consecutive != 0 {
		t.Errorf("expected a failing probe to reset the counter, got %d", s.consecutive)
	}
}

func TestTrackConsecutiveRequiresAdjacentStep(t *testing.T) {
	s := &controllerState{}
	s.trackConsecutive(GpuCoarse, probeOutcome{crf: 20, passes: true})
	s.trackConsecutive(GpuCoarse, probeOutcome{crf: 30, passes: true}) // not adjacent (step=4)
	if s.consecutive != 1 {
		t.Errorf("expected non-adjacent probe to restart the counter at 1, got %d", s.consecutive)
	}
}
