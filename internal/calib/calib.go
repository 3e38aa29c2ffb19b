// Package calib implements the calibration mapper (C5): it learns the
// GPU→CPU CRF offset from one to three anchor encodes and predicts a CPU
// CRF for any GPU CRF thereafter.
package calib

import "sort"

// AnchorCRFs are tried in order until one succeeds on both the GPU and CPU
// paths.
var AnchorCRFs = []float64{20, 18, 22}

// StaticFallbackOffset is used when calibration fails outright.
const StaticFallbackOffset = 3.0

// Anchor records one successful GPU/CPU calibration pair.
type Anchor struct {
	CRF             float64
	GPUBytes        uint64
	CPUBytes        uint64
	CPUGPUSizeRatio float64 // CPUBytes / GPUBytes
}

// NewAnchor builds an Anchor from measured byte counts.
func NewAnchor(crf float64, gpuBytes, cpuBytes uint64) Anchor {
	ratio := 1.0
	if gpuBytes > 0 {
		ratio = float64(cpuBytes) / float64(gpuBytes)
	}
	return Anchor{CRF: crf, GPUBytes: gpuBytes, CPUBytes: cpuBytes, CPUGPUSizeRatio: ratio}
}

// OffsetTable is the piecewise-constant function of size ratio used to seed
// the CPU anchor from the GPU anchor. These are tunable constants, so
// they are exposed as a configurable table rather than hard-coded
// branches.
type OffsetTable struct {
	// Breakpoints must be sorted ascending; Offsets has len(Breakpoints)+1
	// entries, with Offsets[i] applying when ratio < Breakpoints[i], and
	// the final entry applying when ratio is >= the last breakpoint.
	Breakpoints []float64
	Offsets     []float64
}

// DefaultOffsetTable returns the standard GPU/CPU CRF offset curve:
// ratio < 0.70 -> +4.0, < 0.80 -> +3.5, < 0.90 -> +3.0, else +2.5.
func DefaultOffsetTable() OffsetTable {
	return OffsetTable{
		Breakpoints: []float64{0.70, 0.80, 0.90},
		Offsets:     []float64{4.0, 3.5, 3.0, 2.5},
	}
}

// Lookup returns the static offset for a size ratio.
func (t OffsetTable) Lookup(ratio float64) float64 {
	for i, bp := range t.Breakpoints {
		if ratio < bp {
			return t.Offsets[i]
		}
	}
	return t.Offsets[len(t.Offsets)-1]
}

// Mapper holds 0-3 anchors for a single file's search and predicts CPU
// CRFs from GPU CRFs. A Mapper is created per-file at search start and
// discarded when the file's search ends.
type Mapper struct {
	anchors []Anchor
	table   OffsetTable
}

// New creates an empty mapper using the default offset table.
func New() *Mapper {
	return &Mapper{table: DefaultOffsetTable()}
}

// NewWithTable creates a mapper with a custom offset table (Open Question
// #1 in SPEC_FULL.md: these constants are tunable).
func NewWithTable(table OffsetTable) *Mapper {
	return &Mapper{table: table}
}

// AddAnchor records a successful calibration anchor. At most 3 are kept;
// once 3 are present further anchors are rejected (the caller should stop
// calibrating).
func (m *Mapper) AddAnchor(a Anchor) bool {
	if len(m.anchors) >= 3 {
		return false
	}
	m.anchors = append(m.anchors, a)
	sort.Slice(m.anchors, func(i, j int) bool { return m.anchors[i].CRF < m.anchors[j].CRF })
	return true
}

// AnchorCount returns how many anchors have been recorded.
func (m *Mapper) AnchorCount() int { return len(m.anchors) }

// Confidence rises from 0.5 (no anchors) through 0.75 (one anchor) to
// 0.85 (two or more anchors).
func (m *Mapper) Confidence() float64 {
	switch len(m.anchors) {
	case 0:
		return 0.5
	case 1:
		return 0.75
	default:
		return 0.85
	}
}

// PredictCPUCRF predicts the CPU CRF that should yield comparable quality
// to the given GPU CRF, plus the mapper's current confidence. With zero
// anchors it falls back to StaticFallbackOffset. With one anchor it uses
// that anchor's static-offset lookup. With two or more anchors it
// linearly interpolates the offset between the two anchors nearest
// gpuCRF (extrapolating flatly beyond the anchor range).
func (m *Mapper) PredictCPUCRF(gpuCRF float64) (cpuCRF float64, confidence float64) {
	confidence = m.Confidence()

	switch len(m.anchors) {
	case 0:
		return gpuCRF + StaticFallbackOffset, confidence
	case 1:
		offset := m.table.Lookup(m.anchors[0].CPUGPUSizeRatio)
		return gpuCRF + offset, confidence
	default:
		return gpuCRF + m.interpolatedOffset(gpuCRF), confidence
	}
}

// interpolatedOffset linearly interpolates the per-anchor static offset
// between the two bracketing anchors (by CRF), clamping to the endpoints
// outside the anchor range.
func (m *Mapper) interpolatedOffset(gpuCRF float64) float64 {
	offsets := make([]float64, len(m.anchors))
	for i, a := range m.anchors {
		offsets[i] = m.table.Lookup(a.CPUGPUSizeRatio)
	}

	if gpuCRF <= m.anchors[0].CRF {
		return offsets[0]
	}
	last := len(m.anchors) - 1
	if gpuCRF >= m.anchors[last].CRF {
		return offsets[last]
	}

	for i := 0; i < last; i++ {
		lo, hi := m.anchors[i], m.anchors[i+1]
		if gpuCRF >= lo.CRF && gpuCRF <= hi.CRF {
			if hi.CRF == lo.CRF {
				return offsets[i]
			}
			t := (gpuCRF - lo.CRF) / (hi.CRF - lo.CRF)
			return offsets[i] + t*(offsets[i+1]-offsets[i])
		}
	}
	return offsets[last]
}
