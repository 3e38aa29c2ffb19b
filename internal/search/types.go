// Package search implements the phase search controller (C6): the
// five-phase progressive CRF refinement that drives the encoder driver,
// stream size extractor, quality engine, and compression verifier toward
// a chosen CRF under one of six search modes.
package search

import "github.com/five82/mfboost/internal/fingerprint"

// Mode selects what the search optimizes for.
type Mode int

const (
	// ModeSizeOnly picks the smallest output with no quality check.
	ModeSizeOnly Mode = iota
	// ModeQualityMatch takes one or a few probes to roughly match input
	// perceptual quality.
	ModeQualityMatch
	// ModePreciseQualityMatch binary-searches for the highest CRF whose
	// SSIM stays at or above threshold.
	ModePreciseQualityMatch
	// ModePreciseQualityMatchCompression is ModePreciseQualityMatch with
	// the added constraint that output size beats the input.
	ModePreciseQualityMatchCompression
	// ModeCompressOnly finds the smallest output smaller than the input,
	// without any quality constraint.
	ModeCompressOnly
	// ModeCompressWithQuality requires both the quality threshold and the
	// size constraint to hold.
	ModeCompressWithQuality
)

// String returns a human-readable mode name, used by reporters.
func (m Mode) String() string {
	switch m {
	case ModeSizeOnly:
		return "size-only"
	case ModeQualityMatch:
		return "quality-match"
	case ModePreciseQualityMatch:
		return "precise-quality-match"
	case ModePreciseQualityMatchCompression:
		return "precise-quality-match-compression"
	case ModeCompressOnly:
		return "compress-only"
	case ModeCompressWithQuality:
		return "compress-with-quality"
	default:
		return "unknown"
	}
}

func (m Mode) needsQuality() bool {
	switch m {
	case ModePreciseQualityMatch, ModePreciseQualityMatchCompression, ModeCompressWithQuality, ModeQualityMatch:
		return true
	default:
		return false
	}
}

func (m Mode) needsCompression() bool {
	switch m {
	case ModePreciseQualityMatchCompression, ModeCompressOnly, ModeCompressWithQuality:
		return true
	default:
		return false
	}
}

// PhaseID enumerates the five search phases, always run in this order.
type PhaseID int

const (
	GpuCoarse PhaseID = iota
	GpuMedium
	GpuFine
	GpuUltraFine
	CpuFinest
)

func (p PhaseID) String() string {
	switch p {
	case GpuCoarse:
		return "gpu-coarse"
	case GpuMedium:
		return "gpu-medium"
	case GpuFine:
		return "gpu-fine"
	case GpuUltraFine:
		return "gpu-ultra-fine"
	case CpuFinest:
		return "cpu-finest"
	default:
		return "unknown"
	}
}

// StepSize returns this phase's CRF step size.
func (p PhaseID) StepSize() float64 {
	switch p {
	case GpuCoarse:
		return 4.0
	case GpuMedium:
		return 1.0
	case GpuFine:
		return 0.5
	case GpuUltraFine:
		return 0.25
	case CpuFinest:
		return 0.1
	default:
		return 0.1
	}
}

// EncoderKind returns which encoder this phase probes against. Phases 1-4
// use the fast GPU encoder; phase 5 uses the slow reference CPU encoder.
func (p PhaseID) EncoderKind(gpu, cpu fingerprint.EncoderKind) fingerprint.EncoderKind {
	if p == CpuFinest {
		return cpu
	}
	return gpu
}

// Next returns the phase that follows p, and false if p is the last phase.
func (p PhaseID) Next() (PhaseID, bool) {
	if p == CpuFinest {
		return p, false
	}
	return p + 1, true
}

// PhaseState tracks one phase's search window.
type PhaseState struct {
	Phase     PhaseID
	LoCRF     float64
	HiCRF     float64
	BestSoFar float64
	HaveBest  bool
}

// Done reports whether the phase's window has narrowed to its step size.
func (s PhaseState) Done() bool {
	return (s.HiCRF - s.LoCRF) <= s.Phase.StepSize()
}

// Result is the search's final record.
type Result struct {
	ChosenCRF        float64
	OutputPath       string
	InputBytes       uint64
	OutputPureBytes  uint64
	OutputTotalBytes uint64
	SSIM             *float64
	MSSSIM           *float64
	Iterations       int
	PhaseReached     PhaseID
	CompressionOK    bool
	Confidence       float64
}
