package quality

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Frame is one sampled instant of reference/distorted plane pairs for all
// three channels. U and V may be smaller than Y (4:2:0 subsampling); that
// is fine since each channel is measured independently.
type Frame struct {
	RefY, DistY Plane
	RefU, DistU Plane
	RefV, DistV Plane
}

// FrameSource yields sampled frame pairs in order. Next returns (frame,
// true, nil) while frames remain, (Frame{}, false, nil) at clean end of
// stream, or a non-nil error if decoding failed outright.
type FrameSource interface {
	// TotalFrames is the number of frames the source expects Next to
	// yield. Compute does not use it; it counts the frames it collects.
	TotalFrames() int
	Next(ctx context.Context) (Frame, bool, error)
	Close() error
}

// Compute measures reference/distorted quality over every frame a
// FrameSource yields. Y and (optionally) U/V are measured by independent
// goroutines ("channels"), MS-SSIM is computed
// only when requested and not skipped by the palette carve-out, and
// progress is reported at most once per 10 percentage points (and always
// at 100).
//
// A channel whose measurement task panics is reported as unmeasurable for
// that channel rather than silently degrading the aggregate score or
// crashing the whole search.
func Compute(ctx context.Context, src FrameSource, opts Options, onProgress ProgressFunc) (Scores, error) {
	if opts.PaletteFormat {
		return Scores{Unmeasurable: true}, nil
	}

	frames, err := collectFrames(ctx, src)
	if err != nil {
		return Scores{}, err
	}
	if len(frames) == 0 {
		return Scores{Unmeasurable: true}, nil
	}

	computeMSSSIM := opts.ComputeMSSSIM && !SkipMSSSIM(opts.DurationSecs)
	stride := SampleStride(opts.DurationSecs)
	sampled := sampleFrames(frames, stride)

	var g errgroup.Group
	var yResult, uResult, vResult channelResult
	var msResult channelResult
	var psnrResult channelResult

	channelCount := 1
	if opts.ComputeAll {
		channelCount += 2
	}
	if computeMSSSIM {
		channelCount++
	}
	if opts.ComputePSNR {
		channelCount++
	}
	progress := newProgressAggregator(onProgress, progressEvery(opts), len(sampled)*channelCount)

	g.Go(func() error {
		yResult = measureChannel(sampled, func(f Frame) (Plane, Plane) { return f.RefY, f.DistY }, SSIM, progress.report)
		return nil
	})
	if opts.ComputeAll {
		g.Go(func() error {
			uResult = measureChannel(sampled, func(f Frame) (Plane, Plane) { return f.RefU, f.DistU }, SSIM, progress.report)
			return nil
		})
		g.Go(func() error {
			vResult = measureChannel(sampled, func(f Frame) (Plane, Plane) { return f.RefV, f.DistV }, SSIM, progress.report)
			return nil
		})
	}
	if computeMSSSIM {
		g.Go(func() error {
			msResult = measureChannel(sampled, func(f Frame) (Plane, Plane) { return f.RefY, f.DistY }, MSSSIM, progress.report)
			return nil
		})
	}
	if opts.ComputePSNR {
		g.Go(func() error {
			psnrResult = measureChannel(sampled, func(f Frame) (Plane, Plane) { return f.RefY, f.DistY }, PSNR, progress.report)
			return nil
		})
	}

	// errgroup.Group.Go never returns an error here (tasks recover their
	// own panics into channelResult.unmeasurable), so Wait cannot fail.
	_ = g.Wait()

	var out Scores
	if !yResult.unmeasurable {
		v := yResult.mean
		out.SSIMY = &v
	}
	if opts.ComputeAll && !uResult.unmeasurable && !vResult.unmeasurable {
		all := (6*yResult.mean + uResult.mean + vResult.mean) / 8
		out.SSIMAll = &all
	}
	if computeMSSSIM && !msResult.unmeasurable {
		v := msResult.mean
		out.MSSSIM = &v
	}
	if opts.ComputePSNR && !psnrResult.unmeasurable {
		v := psnrResult.mean
		out.PSNR = &v
	}

	if out.SSIMY == nil && out.SSIMAll == nil && out.MSSSIM == nil && out.PSNR == nil {
		out.Unmeasurable = true
	}
	return out, nil
}

func collectFrames(ctx context.Context, src FrameSource) ([]Frame, error) {
	var frames []Frame
	for {
		f, ok, err := src.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("quality: reading frame: %w", err)
		}
		if !ok {
			break
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func sampleFrames(frames []Frame, stride int) []Frame {
	idx := SampledFrameIndices(len(frames), stride)
	out := make([]Frame, 0, len(idx))
	for _, i := range idx {
		out = append(out, frames[i])
	}
	return out
}

func progressEvery(opts Options) float64 {
	if opts.ProgressEvery > 0 {
		return opts.ProgressEvery
	}
	return 10
}

type channelResult struct {
	mean         float64
	unmeasurable bool
}

type metricFunc func(ref, dist Plane) (float64, bool)
type planePair func(Frame) (Plane, Plane)

// measureChannel runs metric over every frame's selected plane pair and
// averages the results. A panic anywhere in the loop (corrupt decode
// buffer, programmer error) is recovered and reported as unmeasurable
// rather than propagated, so one bad channel never sinks the others.
func measureChannel(frames []Frame, planes planePair, metric metricFunc, report func()) (result channelResult) {
	defer func() {
		if r := recover(); r != nil {
			result = channelResult{unmeasurable: true}
		}
	}()

	var sum float64
	var count int
	for _, f := range frames {
		ref, dist := planes(f)
		score, ok := metric(ref, dist)
		if !ok {
			continue
		}
		sum += score
		count++
		report()
	}
	if count == 0 {
		return channelResult{unmeasurable: true}
	}
	return channelResult{mean: sum / float64(count)}
}

// progressAggregator coalesces per-frame completions from every channel
// into a single percentage stream, calling back no more often than every
// stepPercent points.
type progressAggregator struct {
	onProgress ProgressFunc
	step       float64
	total      int

	mu       sync.Mutex
	done     int
	lastSent float64
}

func newProgressAggregator(onProgress ProgressFunc, step float64, total int) *progressAggregator {
	return &progressAggregator{onProgress: onProgress, step: step, total: total}
}

func (p *progressAggregator) report() {
	if p.onProgress == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	pct := 0.0
	if p.total > 0 {
		pct = 100 * float64(p.done) / float64(p.total)
	}
	if pct-p.lastSent >= p.step || pct >= 100 {
		p.lastSent = pct
		p.onProgress(pct)
	}
}
