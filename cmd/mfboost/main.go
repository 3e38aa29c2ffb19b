// Command mfboost batch-transcodes a directory of media files, searching
// each file's CRF for the smallest output that clears its quality bar.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/mfboost/internal/batch"
	"github.com/five82/mfboost/internal/config"
	"github.com/five82/mfboost/internal/copier"
	"github.com/five82/mfboost/internal/imgpipeline"
	"github.com/five82/mfboost/internal/logging"
	"github.com/five82/mfboost/internal/pipeline"
	"github.com/five82/mfboost/internal/reporter"
	"github.com/five82/mfboost/internal/util"
)

var (
	flagOutput         string
	flagRecursive      bool
	flagForce          bool
	flagDeleteOriginal bool
	flagExplore        bool
	flagMatchQuality   bool
	flagCompress       bool
	flagLossless       bool
	flagUltimate       bool
	flagAppleCompat    bool
	flagCPUOnly        bool
	flagVerbose        bool
	flagJSON           bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mfboost [input-dir]",
		Short: "Adaptive-quality media transcoder",
		Long: "mfboost walks a directory of media files and re-encodes each one, " +
			"searching CRF values until the output clears the configured quality bar.",
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}

	root.PersistentFlags().StringVar(&flagOutput, "output", "", "output directory (default: alongside input)")
	root.PersistentFlags().BoolVar(&flagRecursive, "recursive", true, "recurse into subdirectories")
	root.PersistentFlags().BoolVar(&flagForce, "force", false, "has no effect: files already recorded in the checkpoint are always skipped")
	root.PersistentFlags().BoolVar(&flagDeleteOriginal, "delete-original", false, "delete the source file once its output verifies")
	root.PersistentFlags().BoolVar(&flagExplore, "explore", true, "has no effect: every file runs the full five-phase CRF search")
	root.PersistentFlags().BoolVar(&flagMatchQuality, "match-quality", false, "require SSIM/MS-SSIM to clear the configured thresholds")
	root.PersistentFlags().BoolVar(&flagCompress, "compress", false, "require the output to be smaller than the input")
	root.PersistentFlags().BoolVar(&flagLossless, "lossless", false, "skip the quality search entirely; encode at the anchor CRF")
	root.PersistentFlags().BoolVar(&flagUltimate, "ultimate", false, "with --match-quality use the precise search; phase 5 also stops once SSIM saturates, within 200 iterations")
	root.PersistentFlags().BoolVar(&flagAppleCompat, "apple-compat", false, "prefer H.264 for broad playback compatibility")
	root.PersistentFlags().BoolVar(&flagCPUOnly, "cpu", false, "skip GPU phases; probe with the CPU encoder throughout")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit NDJSON progress events instead of terminal output")

	root.AddCommand(newSimpleCmd(), newStrategyCmd())
	return root
}

// newSimpleCmd is a convenience alias for the common "shrink with a
// quality floor" case.
func newSimpleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simple [input-dir]",
		Short: "Shorthand for --match-quality --compress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flagExplore = false
			flagMatchQuality = true
			flagCompress = true
			return runBatch(cmd, args)
		},
	}
	return cmd
}

// newStrategyCmd is a convenience alias for the most conservative mode.
func newStrategyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategy [input-dir]",
		Short: "Shorthand for --match-quality --compress --ultimate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flagExplore = false
			flagMatchQuality = true
			flagCompress = true
			flagUltimate = true
			return runBatch(cmd, args)
		},
	}
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	inputDir := args[0]
	outputDir := flagOutput
	if outputDir == "" {
		outputDir = inputDir
	}

	cfg := config.NewConfig(inputDir, outputDir, outputDir)
	cfg.Recursive = flagRecursive
	cfg.Force = flagForce
	cfg.DeleteOriginal = flagDeleteOriginal
	cfg.Explore = flagExplore
	cfg.MatchQuality = flagMatchQuality
	cfg.Compress = flagCompress
	cfg.Lossless = flagLossless
	cfg.Ultimate = flagUltimate
	cfg.AppleCompat = flagAppleCompat
	cfg.CPUOnly = flagCPUOnly
	cfg.Verbose = flagVerbose
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closeLog, err := logging.Setup(cfg.LogDir, cfg.Verbose, !flagJSON)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer closeLog()

	var rep reporter.Reporter
	if flagJSON {
		rep = reporter.NewJSONReporter()
	} else {
		rep = reporter.NewCompositeReporter(reporter.NewTerminalReporter(), reporter.NewJSONReporter())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		rep.Warning("received interrupt, cancelling in-flight encodes and stopping the batch")
		cancel()
	}()

	tempDir := cfg.GetTempDir()
	if err := util.EnsureDirectory(tempDir); err == nil {
		if cleaned, cleanupErr := util.CleanupStaleTempFiles(tempDir, "mfboost", 24); cleanupErr == nil && cleaned > 0 {
			logger.Info("removed stale temp files from a previous run", "count", cleaned)
		}
		util.CheckDiskSpace(tempDir, func(format string, args ...any) {
			rep.Warning(fmt.Sprintf(format, args...))
		})
	}

	env := pipeline.NewEnv(cfg, rep, logger)

	batchCfg := batch.Config{
		RootDir:       cfg.InputDir,
		OutputRoot:    cfg.OutputDir,
		Recursive:     cfg.Recursive,
		Parallel:      true,
		LowMemory:     cfg.LowMemory,
		MultiInstance: cfg.MultiInstance,
		CheckpointDir: cfg.GetCheckpointDir(),
		Logger:        logger,
	}

	videoFn := func(ctx context.Context, entry batch.Entry) (string, error) {
		outPath := outputPathFor(entry.Path, cfg.InputDir, cfg.OutputDir)
		searchResult, _, err := pipeline.ProcessFile(ctx, env, entry.Path, outPath)
		if err != nil {
			return "", err
		}
		if cfg.DeleteOriginal {
			_ = os.Remove(entry.Path)
		}
		return searchResult.OutputPath, nil
	}

	imageFn := func(ctx context.Context, entry batch.Entry) (string, error) {
		outPath, err := imgpipeline.ProcessFile(ctx, rep, logger, entry.Path, cfg.InputDir, cfg.OutputDir)
		if err != nil {
			return "", err
		}
		if cfg.DeleteOriginal {
			_ = os.Remove(entry.Path)
		}
		return outPath, nil
	}

	result, report, err := batch.Run(ctx, batchCfg, videoFn, imageFn)
	if err != nil {
		rep.Error(reporter.ReporterError{Title: "Batch failed", Message: err.Error()})
		return err
	}

	rep.BatchComplete(reporter.BatchSummary{
		SuccessfulCount:  result.Succeeded,
		TotalFiles:       result.Total,
		CompletenessNote: report.Note,
	})

	if result.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", result.Failed, result.Total)
	}
	return nil
}

func outputPathFor(sourcePath, sourceRoot, outputRoot string) string {
	dest, err := copier.Destination(sourcePath, sourceRoot, outputRoot)
	if err != nil {
		dest = filepath.Join(outputRoot, filepath.Base(sourcePath))
	}
	return filepath.Join(filepath.Dir(dest), util.GetFileStem(dest)+".mp4")
}
