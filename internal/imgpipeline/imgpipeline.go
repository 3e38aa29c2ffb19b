// Package imgpipeline wires the format detector, strategy selector, and
// image converter together into the single-file operation the batch
// orchestrator dispatches for still and animated image inputs, mirroring
// internal/pipeline's role for video.
package imgpipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/five82/mfboost/internal/copier"
	"github.com/five82/mfboost/internal/heartbeat"
	"github.com/five82/mfboost/internal/imgencoder"
	"github.com/five82/mfboost/internal/imgstrategy"
	"github.com/five82/mfboost/internal/reporter"
	"github.com/five82/mfboost/internal/util"
)

// ProcessFile classifies inputPath, picks a conversion strategy, and runs
// it. NoConversion strategies copy the source verbatim into the mirrored
// output tree; everything else converts and places the result at dest
// with target's extension swapped in.
func ProcessFile(ctx context.Context, rep reporter.Reporter, logger *slog.Logger, inputPath, sourceRoot, outputRoot string) (string, error) {
	start := time.Now()

	originalSize, err := util.GetFileSize(inputPath)
	if err != nil {
		return "", fmt.Errorf("imgpipeline: stat %s: %w", inputPath, err)
	}

	rep.FileStarted(reporter.FileSummary{InputFile: inputPath, OutputFile: inputPath})

	detection, err := imgstrategy.Detect(inputPath)
	if err != nil {
		return "", fmt.Errorf("imgpipeline: %w", err)
	}
	strategy := imgstrategy.DetermineStrategy(detection)
	rep.Verbose(fmt.Sprintf("%s: %s -> %s", inputPath, detection.Format, strategy.Target))

	dest, err := copier.Destination(inputPath, sourceRoot, outputRoot)
	if err != nil {
		return "", fmt.Errorf("imgpipeline: computing destination for %s: %w", inputPath, err)
	}

	if strategy.Target == imgstrategy.NoConversion {
		out, err := copier.CopyUnsupported(inputPath, sourceRoot, outputRoot)
		if err != nil {
			return "", fmt.Errorf("imgpipeline: copying skipped file %s: %w", inputPath, err)
		}
		rep.SearchComplete(reporter.SearchOutcome{
			InputFile:    inputPath,
			OutputFile:   util.GetFilename(out),
			OriginalSize: originalSize,
			EncodedSize:  originalSize,
			Phase:        strategy.Reason,
			TotalTime:    time.Since(start),
			OutputPath:   out,
		})
		return out, nil
	}

	outPath := filepath.Join(filepath.Dir(dest), util.GetFileStem(dest)+"."+strategy.Target.Extension())
	if err := util.EnsureDirectory(filepath.Dir(outPath)); err != nil {
		return "", fmt.Errorf("imgpipeline: creating output directory for %s: %w", outPath, err)
	}

	hb := heartbeat.Start(logger, heartbeat.ClassFast, filepath.Base(inputPath), false)
	outcome, err := imgencoder.Encode(ctx, imgencoder.Request{
		Input:        inputPath,
		Output:       outPath,
		Target:       strategy.Target,
		SourceFormat: detection.Format,
		Quality:      detection.AVIFQuality(),
		FPS:          detection.AnimatedFPS(),
	})
	hb.Stop()
	if err != nil {
		return "", fmt.Errorf("imgpipeline: converting %s: %w", inputPath, err)
	}

	rep.SearchComplete(reporter.SearchOutcome{
		InputFile:    inputPath,
		OutputFile:   util.GetFilename(outPath),
		OriginalSize: originalSize,
		EncodedSize:  outcome.TotalBytes,
		Phase:        strategy.Reason,
		TotalTime:    time.Since(start),
		OutputPath:   outPath,
	})
	return outPath, nil
}
