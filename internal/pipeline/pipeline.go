// Package pipeline wires the search controller, encoder, quality engine,
// and compression verifier together into the single-file operation that
// the batch orchestrator dispatches.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/five82/mfboost/internal/cache"
	"github.com/five82/mfboost/internal/calib"
	"github.com/five82/mfboost/internal/config"
	"github.com/five82/mfboost/internal/encoder"
	"github.com/five82/mfboost/internal/fingerprint"
	"github.com/five82/mfboost/internal/guard"
	"github.com/five82/mfboost/internal/heartbeat"
	"github.com/five82/mfboost/internal/probe"
	"github.com/five82/mfboost/internal/quality"
	"github.com/five82/mfboost/internal/reporter"
	"github.com/five82/mfboost/internal/search"
	"github.com/five82/mfboost/internal/streamsize"
	"github.com/five82/mfboost/internal/verify"
)

// Env bundles the shared collaborators a single file's run needs. One Env
// is built per batch and reused across files; Cache accumulates state
// across files on purpose (warm CRF cache). Mapper is not handed to the
// searches: ProcessFile gives each file's search a fresh calib.Mapper.
type Env struct {
	Config   *config.Config
	Reporter reporter.Reporter
	Cache    *cache.Cache
	Mapper   *calib.Mapper
	Analyzer probe.MediaAnalyzer
	Logger   *slog.Logger
}

// NewEnv builds an Env from a config, defaulting the cache, mapper,
// analyzer, and reporter when the caller leaves them nil.
func NewEnv(cfg *config.Config, rep reporter.Reporter, logger *slog.Logger) *Env {
	if rep == nil {
		rep = reporter.NullReporter{}
	}
	return &Env{
		Config:   cfg,
		Reporter: rep,
		Cache:    cache.New(cfg.CacheCapacity),
		Mapper:   calib.New(),
		Analyzer: probe.NewDefaultAnalyzer(),
		Logger:   logger,
	}
}

func encoderKinds(cfg *config.Config) (gpu, cpu fingerprint.EncoderKind) {
	switch {
	case cfg.CPUOnly && cfg.AppleCompat:
		return fingerprint.H264CPU, fingerprint.H264CPU
	case cfg.CPUOnly:
		return fingerprint.HevcCPU, fingerprint.HevcCPU
	case cfg.AppleCompat:
		return fingerprint.H264GPU, fingerprint.H264CPU
	default:
		return fingerprint.HevcGPU, fingerprint.HevcCPU
	}
}

func searchMode(cfg *config.Config) search.Mode {
	switch {
	case cfg.Lossless:
		return search.ModeSizeOnly
	case cfg.MatchQuality && cfg.Compress:
		if cfg.Ultimate {
			return search.ModePreciseQualityMatchCompression
		}
		return search.ModeCompressWithQuality
	case cfg.MatchQuality:
		if cfg.Ultimate {
			return search.ModePreciseQualityMatch
		}
		return search.ModeQualityMatch
	case cfg.Compress:
		return search.ModeCompressOnly
	default:
		return search.ModeSizeOnly
	}
}

// ProcessFile runs the full search-and-encode pipeline for one input file
// and returns the chosen result plus the quality steps computed against
// it, ready for reporter.QualityComplete/SearchComplete.
func ProcessFile(ctx context.Context, env *Env, inputPath, outputPath string) (search.Result, []probe.QualityStep, error) {
	start := time.Now()

	inputInfo, err := streamsize.Extract(inputPath)
	if err != nil {
		return search.Result{}, nil, fmt.Errorf("pipeline: measuring input streams: %w", err)
	}

	videoProps, err := env.Analyzer.GetVideoProperties(inputPath)
	if err != nil {
		return search.Result{}, nil, fmt.Errorf("pipeline: probing video properties: %w", err)
	}

	hdr, _ := env.Analyzer.GetHDRInfo(inputPath)
	dynamicRange := "SDR"
	if hdr != nil && hdr.IsHDR {
		dynamicRange = "HDR"
	}

	audioDescription := "none"
	if streams, err := env.Analyzer.GetAudioStreams(inputPath); err == nil && len(streams) > 0 {
		audioDescription = fmt.Sprintf("%s, %d ch", streams[0].Codec, streams[0].Channels)
	}

	env.Reporter.FileStarted(reporter.FileSummary{
		InputFile:        inputPath,
		OutputFile:       outputPath,
		Duration:         fmt.Sprintf("%.1fs", videoProps.DurationSecs),
		Resolution:       fmt.Sprintf("%dx%d", videoProps.Width, videoProps.Height),
		DynamicRange:     dynamicRange,
		AudioDescription: audioDescription,
	})

	fp, err := fingerprint.Of(inputPath)
	if err != nil {
		return search.Result{}, nil, fmt.Errorf("pipeline: fingerprinting input: %w", err)
	}

	gpuKind, cpuKind := encoderKinds(env.Config)
	mode := searchMode(env.Config)

	anchorCRF := config.DefaultInitialAnchorCRF

	env.Reporter.SearchConfig(reporter.SearchConfigSummary{
		Mode:          mode.String(),
		GPUEncoder:    gpuKind.String(),
		CPUEncoder:    cpuKind.String(),
		MinSSIM:       env.Config.Thresholds.MinSSIM,
		MinMSSSIM:     env.Config.Thresholds.MinMSSSIM,
		Ultimate:      env.Config.Ultimate,
		InitialAnchor: anchorCRF,
	})

	tempDir := env.Config.GetTempDir()
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return search.Result{}, nil, fmt.Errorf("pipeline: creating temp dir: %w", err)
	}

	g := guard.New(config.IterationHardCeiling, inputPath)

	searchCfg := search.Config{
		Mode:             mode,
		Fingerprint:      fp,
		GPUKind:          gpuKind,
		CPUKind:          cpuKind,
		InputStreamInfo:  inputInfo,
		Thresholds:       env.Config.Thresholds,
		UltimateMode:     env.Config.Ultimate,
		InitialAnchorCRF: anchorCRF,
	}

	deps := search.Deps{
		Cache:  env.Cache,
		Guard:  g,
		Mapper: calib.New(), // calibration anchors belong to one input file
		Logger: env.Logger,
		Encode: func(ctx context.Context, kind fingerprint.EncoderKind, crf float64) (string, uint64, float64, error) {
			out, err := encoder.Encode(ctx, encoder.Request{
				Input:            inputPath,
				Kind:             kind,
				CRF:              crf,
				ChildThreadCount: 0,
				TempDir:          tempDir,
				IsGIF:            filepath.Ext(inputPath) == ".gif",
			})
			if err != nil {
				return "", 0, 0, err
			}
			return out.OutputPath, out.TotalBytes, out.WallSecs, nil
		},
		Extract: streamsize.Extract,
		Quality: func(ctx context.Context, probePath string, wantMSSSIM bool) (quality.Scores, error) {
			src, err := quality.NewFFmpegFrameSource(ctx, inputPath, probePath,
				int(videoProps.Width), int(videoProps.Height), 0)
			if err != nil {
				return quality.Scores{}, err
			}
			defer src.Close()
			return quality.Compute(ctx, src, quality.Options{
				ComputeMSSSIM: wantMSSSIM,
				ComputeAll:    true,
				ComputePSNR:   env.Config.Thresholds.ValidatePSNR,
				DurationSecs:  videoProps.DurationSecs,
				PaletteFormat: filepath.Ext(inputPath) == ".gif",
			}, nil)
		},
		Cleanup: func(path string) { _ = os.Remove(path) },
	}

	env.Reporter.SearchStarted(config.IterationHardCeiling)
	hb := heartbeat.Start(env.Logger, heartbeat.ClassMedium, filepath.Base(inputPath), false)
	result, err := search.Run(ctx, searchCfg, deps)
	hb.Stop()
	if err != nil {
		return search.Result{}, nil, err
	}

	if err := os.Rename(result.OutputPath, outputPath); err != nil {
		return result, nil, fmt.Errorf("pipeline: placing final output: %w", err)
	}
	result.OutputPath = outputPath

	outputProps, err := env.Analyzer.GetVideoProperties(outputPath)
	var steps []probe.QualityStep
	if err == nil {
		steps = append(steps, probe.DimensionCheck(videoProps.Width, videoProps.Height, outputProps.Width, outputProps.Height))
		steps = append(steps, probe.DurationCheck(videoProps.DurationSecs, outputProps.DurationSecs))
	}

	scores := quality.Scores{SSIMAll: result.SSIM, MSSSIM: result.MSSSIM}
	thresholds := env.Config.Thresholds
	if env.Config.MatchQuality {
		thresholds.ValidateSSIM = true
		thresholds.ValidateMSSSIM = true
	}
	steps = append(steps, probe.ThresholdSteps(scores, thresholds)...)

	outputInfo, err := streamsize.Extract(outputPath)
	if err == nil {
		policy := verify.SelectPolicy(verify.StreamSizes{
			VideoStreamBytes:       inputInfo.VideoStreamBytes,
			TotalFileBytes:         inputInfo.TotalFileBytes,
			ContainerOverheadBytes: inputInfo.ContainerOverheadBytes,
			OverheadTrustworthy:    !inputInfo.Unverifiable,
		})
		verdict := verify.Verify(
			verify.StreamSizes{VideoStreamBytes: inputInfo.VideoStreamBytes, TotalFileBytes: inputInfo.TotalFileBytes},
			verify.StreamSizes{VideoStreamBytes: outputInfo.VideoStreamBytes, TotalFileBytes: outputInfo.TotalFileBytes},
			policy,
		)
		steps = append(steps, probe.CompressionStep(verdict))
	}

	allPassed := true
	for _, s := range steps {
		if !s.Passed {
			allPassed = false
			break
		}
	}

	reporterSteps := make([]reporter.QualityStep, len(steps))
	for i, s := range steps {
		reporterSteps[i] = reporter.QualityStep{Name: s.Name, Passed: s.Passed, Details: s.Details}
	}
	env.Reporter.QualityComplete(reporter.QualitySummary{Passed: allPassed, Steps: reporterSteps})

	env.Reporter.SearchComplete(reporter.SearchOutcome{
		InputFile:    inputPath,
		OutputFile:   filepath.Base(outputPath),
		OriginalSize: inputInfo.TotalFileBytes,
		EncodedSize:  result.OutputTotalBytes,
		ChosenCRF:    result.ChosenCRF,
		Phase:        result.PhaseReached.String(),
		Iterations:   result.Iterations,
		TotalTime:    time.Since(start),
		SSIM:         result.SSIM,
		MSSSIM:       result.MSSSIM,
		OutputPath:   outputPath,
	})

	return result, steps, nil
}
