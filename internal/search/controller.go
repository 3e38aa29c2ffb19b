package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/five82/mfboost/internal/cache"
	"github.com/five82/mfboost/internal/calib"
	"github.com/five82/mfboost/internal/fingerprint"
	"github.com/five82/mfboost/internal/guard"
	"github.com/five82/mfboost/internal/quality"
	"github.com/five82/mfboost/internal/streamsize"
	"github.com/five82/mfboost/internal/verify"
)

// EncodeFunc runs one probe encode at crf and returns the probe's output
// path and total byte size. Kept as an injected hook (rather than a
// direct call into the encoder package) so the controller's decision
// logic is testable without shelling out.
type EncodeFunc func(ctx context.Context, kind fingerprint.EncoderKind, crf float64) (path string, totalBytes uint64, wallSecs float64, err error)

// ExtractFunc measures the pure video-stream size of a probe's output.
type ExtractFunc func(path string) (streamsize.StreamSizeInfo, error)

// QualityFunc measures SSIM/MS-SSIM between the original input and a
// probe's output. Returns scores with nil fields when not requested.
type QualityFunc func(ctx context.Context, probePath string, wantMSSSIM bool) (quality.Scores, error)

// CleanupFunc removes a probe's temp file once it is no longer the
// current best candidate.
type CleanupFunc func(path string)

// Config parameterizes one file's search.
type Config struct {
	Mode             Mode
	Fingerprint      fingerprint.Fingerprint
	GPUKind          fingerprint.EncoderKind
	CPUKind          fingerprint.EncoderKind
	InputStreamInfo  streamsize.StreamSizeInfo
	Thresholds       quality.Thresholds
	UltimateMode     bool
	InitialAnchorCRF float64 // starting CRF for GpuCoarse, usually from Mapper or a default
}

// Deps bundles the controller's collaborators. Cache, Guard, and Mapper
// are used directly since they are already cheap, serialize their own
// state, and don't need to be faked in tests; Encode/Extract/Quality are
// func hooks since they perform real I/O.
type Deps struct {
	Cache   *cache.Cache
	Guard   *guard.Guard
	Mapper  *calib.Mapper
	Logger  *slog.Logger
	Encode  EncodeFunc
	Extract ExtractFunc
	Quality QualityFunc
	Cleanup CleanupFunc
}

// probeOutcome is what one phase iteration observes about a candidate CRF.
type probeOutcome struct {
	crf        float64
	path       string
	totalBytes uint64
	pureBytes  uint64
	ssim       *float64
	msssim     *float64
	passes     bool
}

// controllerState threads through the whole search: the current best
// confirmed-passing probe (retained on disk until superseded), plus
// bookkeeping for non-monotone detection and early termination.
type controllerState struct {
	cfg  Config
	deps Deps

	best         *probeOutcome
	target       uint64
	iterations   int
	lastCRF      float64
	haveLastCRF  bool
	consecutive  int
	lastStepSize float64
}

// Run executes the full five-phase search and returns the final result.
func Run(ctx context.Context, cfg Config, deps Deps) (Result, error) {
	s := &controllerState{cfg: cfg, deps: deps}
	// The compression target already nets out the metadata margin, so the
	// pure-stream comparison in evaluateConstraints doesn't need to apply
	// it a second time.
	s.target = verify.CompressionTarget(cfg.InputStreamInfo.TotalFileBytes)

	phase := GpuCoarse
	window := PhaseState{
		Phase:     phase,
		LoCRF:     0,
		HiCRF:     math.Min(cfg.GPUKind.MaxCRF(), cfg.InitialAnchorCRF+2*phase.StepSize()),
		BestSoFar: cfg.InitialAnchorCRF,
		HaveBest:  true,
	}
	if window.LoCRF < 0 {
		window.LoCRF = 0
	}

	for {
		var err error
		window, err = s.runPhase(ctx, window)
		if err != nil {
			return Result{}, err
		}

		next, more := window.Phase.Next()
		if !more {
			break
		}
		prevStep := window.Phase.StepSize()
		lo := window.BestSoFar - 2*prevStep
		hi := window.BestSoFar + 2*prevStep
		kind := next.EncoderKind(cfg.GPUKind, cfg.CPUKind)
		if lo < 0 {
			lo = 0
		}
		if hi > kind.MaxCRF() {
			hi = kind.MaxCRF()
		}
		window = PhaseState{Phase: next, LoCRF: lo, HiCRF: hi, BestSoFar: window.BestSoFar, HaveBest: true}
		s.consecutive = 0
	}

	if s.best == nil {
		return Result{}, fmt.Errorf("search: no probe ever passed for %s", cfg.Fingerprint)
	}

	return Result{
		ChosenCRF:        s.best.crf,
		OutputPath:       s.best.path,
		InputBytes:       cfg.InputStreamInfo.TotalFileBytes,
		OutputPureBytes:  s.best.pureBytes,
		OutputTotalBytes: s.best.totalBytes,
		SSIM:             s.best.ssim,
		MSSSIM:           s.best.msssim,
		Iterations:       s.iterations,
		PhaseReached:     window.Phase,
		CompressionOK:    s.best.totalBytes < cfg.InputStreamInfo.TotalFileBytes,
		Confidence:       s.confidence(),
	}, nil
}

func (s *controllerState) confidence() float64 {
	if s.deps.Mapper != nil {
		return s.deps.Mapper.Confidence()
	}
	return 1.0
}

// iterationBudget returns how many iterations this phase is allotted
// before its budget is considered spent. Only ultimate mode sets a
// per-phase cap: 200 iterations for phase 5, which in that mode also
// stops once SSIM saturates. Every other phase returns 0.
func (s *controllerState) iterationBudget(phase PhaseID) int {
	if phase == CpuFinest && s.cfg.UltimateMode {
		return 200
	}
	return 0 // 0 means "bounded only by the global guard and window narrowing"
}

// runPhase runs the binary-search loop for one phase until its window
// narrows to its step size, its iteration budget is spent, or (in
// ultimate mode on the last phase) SSIM saturates.
func (s *controllerState) runPhase(ctx context.Context, window PhaseState) (PhaseState, error) {
	budget := s.iterationBudget(window.Phase)
	phaseIterations := 0
	var lastSSIM *float64

	for !window.Done() {
		if budget > 0 && phaseIterations >= budget {
			break
		}
		if _, err := s.deps.Guard.Increment(); err != nil {
			return window, err
		}
		s.iterations++
		phaseIterations++

		mid := (window.LoCRF + window.HiCRF) / 2
		outcome, err := s.probe(ctx, window.Phase, mid)
		if err != nil {
			return window, err
		}

		s.checkMonotonicity(outcome)
		s.trackConsecutive(window.Phase, outcome)

		if outcome.passes {
			window.LoCRF = mid
			window.BestSoFar = mid
			window.HaveBest = true
			if s.best == nil || outcome.crf > s.best.crf {
				s.replaceBest(outcome)
			}
		} else {
			window.HiCRF = mid
		}

		if s.consecutive >= 3 {
			break
		}

		if window.Phase == CpuFinest && s.cfg.UltimateMode && outcome.ssim != nil && lastSSIM != nil {
			if math.Abs(*outcome.ssim-*lastSSIM) < 1e-4 {
				break
			}
		}
		lastSSIM = outcome.ssim
	}

	return window, nil
}

func (s *controllerState) replaceBest(o probeOutcome) {
	if s.best != nil && s.deps.Cleanup != nil && s.best.path != o.path {
		s.deps.Cleanup(s.best.path)
	}
	cp := o
	s.best = &cp
}

// probe runs one candidate CRF through cache → encoder → stream size →
// quality → decision, the per-phase loop every phase repeats.
func (s *controllerState) probe(ctx context.Context, phase PhaseID, crf float64) (probeOutcome, error) {
	kind := phase.EncoderKind(s.cfg.GPUKind, s.cfg.CPUKind)
	key := cache.NewKey(s.cfg.Fingerprint, kind, phase.String(), crf)

	if cached, ok := s.deps.Cache.Get(key); ok {
		return s.toOutcome(crf, cached), nil
	}

	path, totalBytes, wallSecs, err := s.deps.Encode(ctx, kind, crf)
	if err != nil {
		return probeOutcome{}, fmt.Errorf("search: probe encode at crf %.2f: %w", crf, err)
	}

	streamInfo, err := s.deps.Extract(path)
	if err != nil {
		return probeOutcome{}, fmt.Errorf("search: stream size extraction: %w", err)
	}

	var ssim, msssim *float64
	needQuality := s.cfg.Mode.needsQuality()
	if needQuality && s.deps.Quality != nil {
		scores, qErr := s.deps.Quality(ctx, path, false)
		if qErr != nil {
			if s.deps.Logger != nil {
				s.deps.Logger.Warn("quality probe failed, continuing without it", "error", qErr)
			}
		} else if !scores.Unmeasurable {
			ssim = scores.SSIMY
			msssim = scores.MSSSIM
		}
	}

	outcome := probeOutcome{
		crf:        crf,
		path:       path,
		totalBytes: totalBytes,
		pureBytes:  streamInfo.VideoStreamBytes,
		ssim:       ssim,
		msssim:     msssim,
	}
	outcome.passes = s.evaluateConstraints(outcome)

	s.deps.Cache.Put(key, cache.Outcome{
		CRF:                    crf,
		TotalBytes:             totalBytes,
		VideoStreamBytes:       streamInfo.VideoStreamBytes,
		ContainerOverheadBytes: streamInfo.ContainerOverheadBytes,
		SSIMY:                  ssim,
		MSSSIM:                 msssim,
		WallSecs:               wallSecs,
		Succeeded:              outcome.passes,
	})

	return outcome, nil
}

func (s *controllerState) toOutcome(crf float64, cached cache.Outcome) probeOutcome {
	o := probeOutcome{
		crf:        crf,
		totalBytes: cached.TotalBytes,
		pureBytes:  cached.VideoStreamBytes,
		ssim:       cached.SSIMY,
		msssim:     cached.MSSSIM,
	}
	o.passes = s.evaluateConstraints(o)
	return o
}

// evaluateConstraints compares a probe outcome to whichever constraints
// the mode requires, tightening on whichever is violated when both apply.
func (s *controllerState) evaluateConstraints(o probeOutcome) bool {
	qualityOK := true
	if s.cfg.Mode.needsQuality() {
		qualityOK = o.ssim != nil && *o.ssim >= s.cfg.Thresholds.MinSSIM
	}
	compressionOK := true
	if s.cfg.Mode.needsCompression() {
		compressionOK = o.pureBytes < s.target
	}
	return qualityOK && compressionOK
}

// checkMonotonicity flags (without halting) the case where a higher CRF
// produced a larger output or higher SSIM than the retained best. This
// is tolerated but logged, never treated as a hard failure.
func (s *controllerState) checkMonotonicity(o probeOutcome) {
	if s.best == nil {
		return
	}
	if o.crf > s.best.crf {
		if o.totalBytes > s.best.totalBytes {
			s.warnNonMonotone("size", o.crf, s.best.crf)
		}
		if o.ssim != nil && s.best.ssim != nil && *o.ssim > *s.best.ssim {
			s.warnNonMonotone("ssim", o.crf, s.best.crf)
		}
	}
}

func (s *controllerState) warnNonMonotone(dimension string, higherCRF, lowerCRF float64) {
	if s.deps.Logger != nil {
		s.deps.Logger.Warn("non-monotone search outcome, trusting cached best-so-far",
			"dimension", dimension, "higher_crf", higherCRF, "lower_crf", lowerCRF)
	}
}

// trackConsecutive maintains the "three consecutive adjacent-step passes"
// early-termination counter.
func (s *controllerState) trackConsecutive(phase PhaseID, o probeOutcome) {
	step := phase.StepSize()
	if !o.passes {
		s.consecutive = 0
		s.haveLastCRF = false
		return
	}
	if s.haveLastCRF && math.Abs(o.crf-s.lastCRF) <= step+1e-9 {
		s.consecutive++
	} else {
		s.consecutive = 1
	}
	s.lastCRF = o.crf
	s.haveLastCRF = true
	s.lastStepSize = step
}
