// Package verify implements the compression verifier (C7): given
// input/output stream-size measurements, it decides compression success
// under the strict pure-stream policy or the tolerant total-size policy.
package verify

// Policy selects which byte accounting the verifier trusts.
type Policy int

const (
	// PureStream succeeds iff the pure video-stream bytes shrank,
	// regardless of total-file comparison. Used for files below the
	// small-file threshold or whenever container overhead cannot be
	// trusted.
	PureStream Policy = iota
	// TotalSize succeeds iff the total file size shrank. Used for large
	// files with a reliable overhead estimate.
	TotalSize
)

// SmallFileThresholdBytes is the size below which PureStream is always
// used regardless of overhead confidence.
const SmallFileThresholdBytes uint64 = 10 * 1024 * 1024

// StreamSizes is the subset of StreamSizeInfo the verifier needs.
type StreamSizes struct {
	VideoStreamBytes       uint64
	TotalFileBytes         uint64
	ContainerOverheadBytes uint64
	OverheadTrustworthy    bool
}

// Verdict is the primary pass/fail result plus the auxiliary advisory.
type Verdict struct {
	Passed                 bool
	PolicyUsed             Policy
	ContainerOverheadIssue bool // pure stream succeeded but total size did not
}

// SelectPolicy chooses PureStream or TotalSize: small files, or files
// whose overhead estimate is untrustworthy, always use PureStream.
func SelectPolicy(input StreamSizes) Policy {
	if input.TotalFileBytes < SmallFileThresholdBytes || !input.OverheadTrustworthy {
		return PureStream
	}
	return TotalSize
}

// Verify decides compression success under the given policy and reports
// the container-overhead advisory when applicable.
func Verify(input, output StreamSizes, policy Policy) Verdict {
	pureWins := output.VideoStreamBytes < input.VideoStreamBytes
	totalWins := output.TotalFileBytes < input.TotalFileBytes

	var passed bool
	switch policy {
	case TotalSize:
		passed = totalWins
	default:
		passed = pureWins
	}

	return Verdict{
		Passed:                 passed,
		PolicyUsed:             policy,
		ContainerOverheadIssue: pureWins && !totalWins,
	}
}

// MetadataMargin computes the size-guard margin:
// clamp(inputSize * 0.005, 2 KiB, 100 KiB).
func MetadataMargin(inputSize uint64) uint64 {
	const (
		minMargin uint64 = 2 * 1024
		maxMargin uint64 = 100 * 1024
	)
	margin := uint64(float64(inputSize) * 0.005)
	if margin < minMargin {
		return minMargin
	}
	if margin > maxMargin {
		return maxMargin
	}
	return margin
}

// CompressionTarget returns inputSize minus its metadata margin, the
// byte count an output must beat to count as "compressed" under the
// pure-stream comparison when container overhead is untrustworthy.
func CompressionTarget(inputSize uint64) uint64 {
	margin := MetadataMargin(inputSize)
	if margin >= inputSize {
		return 0
	}
	return inputSize - margin
}
