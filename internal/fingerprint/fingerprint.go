// Package fingerprint identifies input files for caching and provides the
// encoder-kind and CRF value primitives shared across the search engine.
package fingerprint

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Fingerprint identifies an input file for cache and checkpoint purposes.
// Two files with the same path, modification time, and byte length are
// treated as identical input; collisions are accepted as a tradeoff for
// avoiding an expensive content hash on every run.
type Fingerprint struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Of builds a Fingerprint from a file on disk.
func Of(path string) (Fingerprint, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Fingerprint{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: stat %s: %w", abs, err)
	}
	return Fingerprint{
		Path:    abs,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, nil
}

// String renders a stable textual key, used as part of cache keys and
// checkpoint log lines.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%s@%d:%d", f.Path, f.ModTime.UnixNano(), f.Size)
}

// EncoderKind is a tagged variant over the supported encoder back ends.
// The set is small and known at compile time, so dispatch is a switch
// rather than an interface hierarchy.
type EncoderKind int

const (
	HevcCPU EncoderKind = iota
	HevcGPU
	AV1CPU
	H264CPU
	H264GPU
)

// String returns a human-readable encoder name.
func (k EncoderKind) String() string {
	switch k {
	case HevcCPU:
		return "hevc-cpu"
	case HevcGPU:
		return "hevc-gpu"
	case AV1CPU:
		return "av1-cpu"
	case H264CPU:
		return "h264-cpu"
	case H264GPU:
		return "h264-gpu"
	default:
		return "unknown"
	}
}

// ContainerExt returns the canonical file extension for this encoder's output.
func (k EncoderKind) ContainerExt() string {
	return "mp4"
}

// MaxCRF returns the inclusive upper bound of the encoder's CRF range.
// Every encoder's range starts at 0.
func (k EncoderKind) MaxCRF() float64 {
	switch k {
	case AV1CPU:
		return 63
	case HevcCPU, HevcGPU, H264CPU, H264GPU:
		return 51
	default:
		return 51
	}
}

// IsGPU reports whether this encoder kind uses the fast approximate
// (hardware-accelerated) path rather than the slow reference CPU path.
func (k EncoderKind) IsGPU() bool {
	return k == HevcGPU || k == H264GPU
}

// CPUCounterpart returns the CPU encoder kind corresponding to a GPU kind,
// used by the calibration mapper to pair anchors. Returns the kind itself
// if it is already a CPU encoder.
func (k EncoderKind) CPUCounterpart() EncoderKind {
	switch k {
	case HevcGPU:
		return HevcCPU
	case H264GPU:
		return H264CPU
	default:
		return k
	}
}

// InRange reports whether crf lies within [0, MaxCRF()] for this encoder.
func (k EncoderKind) InRange(crf float64) bool {
	return crf >= 0 && crf <= k.MaxCRF()
}

// CRFKeyMultiplier is the fixed-point scale used to derive integer cache
// keys from floating CRF values (hundredths are kept, so 20.55 -> 2055).
const CRFKeyMultiplier = 100

// CRFKey converts a CRF value to its integer cache-key representation.
// key = round(crf * 100). The round trip through CRFFromKey is guaranteed
// to be within 0.01 of the original value.
func CRFKey(crf float64) int64 {
	return int64(roundHalfAwayFromZero(crf * CRFKeyMultiplier))
}

// CRFFromKey converts an integer cache key back to a CRF value.
func CRFFromKey(key int64) float64 {
	return float64(key) / CRFKeyMultiplier
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}
