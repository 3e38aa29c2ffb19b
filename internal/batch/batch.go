// Package batch implements the batch orchestrator (C9): walking an input
// tree, ordering files smallest-first, dispatching the per-file pipeline,
// and collecting a running result alongside an output-completeness report.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/five82/mfboost/internal/checkpoint"
	"github.com/five82/mfboost/internal/copier"
	"github.com/five82/mfboost/internal/util"
	"github.com/five82/mfboost/internal/xerrors"
)

// lowMemThresholdBytes and lowMemThresholdFraction define the memory
// pressure that forces the same 1-2 worker cap as an explicit --low-memory
// flag: available RAM under roughly 10% of total, or under 1 GiB outright.
const (
	lowMemThresholdBytes    = uint64(util.GiB)
	lowMemThresholdFraction = 0.10
)

// memoryPressured reports whether available system memory has dropped low
// enough to force the same worker cap as an explicit low-memory flag. Both
// AvailableMemoryBytes and TotalMemoryBytes return 0 when they can't read
// /proc/meminfo (e.g. non-Linux), in which case memory pressure is treated
// as unknown rather than assumed.
func memoryPressured() bool {
	available := util.AvailableMemoryBytes()
	total := util.TotalMemoryBytes()
	if available == 0 || total == 0 {
		return false
	}
	if available < lowMemThresholdBytes {
		return true
	}
	return float64(available)/float64(total) < lowMemThresholdFraction
}

// videoExtensions and imageExtensions are the recognized media whitelist.
// Sidecar files (metadata companions) are recognized but never dispatched
// to the pipeline; merging them back into the output tree is left to an
// external collaborator.
var (
	videoExtensions = map[string]bool{
		".mp4": true, ".mkv": true, ".mov": true, ".avi": true, ".webm": true,
		".m4v": true, ".wmv": true, ".flv": true,
	}
	// imageExtensions routes to the image conversion strategy rather than
	// the video CRF search, including GIF: animated GIFs become AV1 MP4
	// and static GIFs become JXL, neither of which is a CRF search.
	imageExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".tiff": true, ".tif": true, ".gif": true,
	}
	sidecarExtensions = map[string]bool{
		".xmp": true, ".json": true, ".thm": true,
	}
)

// FileKind classifies a discovered file for dispatch purposes.
type FileKind int

const (
	KindVideo FileKind = iota
	KindImage
	KindSidecar
	KindUnsupported
)

func classify(path string) FileKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case videoExtensions[ext]:
		return KindVideo
	case imageExtensions[ext]:
		return KindImage
	case sidecarExtensions[ext]:
		return KindSidecar
	default:
		return KindUnsupported
	}
}

// Entry is one discovered input file queued for processing.
type Entry struct {
	Path string
	Size int64
	Kind FileKind
}

// PipelineFunc processes one file and returns its output path. Kept as an
// injected hook so the orchestrator's walking, ordering, checkpointing,
// and concurrency logic is testable without real encodes. Run takes one
// PipelineFunc for video and a separate one for images, since the two
// pipelines share nothing beyond this signature.
type PipelineFunc func(ctx context.Context, entry Entry) (outputPath string, err error)

// Config parameterizes one batch run.
type Config struct {
	RootDir       string
	OutputRoot    string
	Recursive     bool
	Parallel      bool
	LowMemory     bool
	MultiInstance bool
	CheckpointDir string
	Logger        *slog.Logger
}

// Result accumulates the outcome of a batch run.
type Result struct {
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int
	Errors     []FileError
	OutputRoot string
}

// FileError records one file's failure without aborting the batch.
type FileError struct {
	Path    string
	Message string
}

// SuccessRate returns succeeded/total*100, or 100 when total is zero.
func (r Result) SuccessRate() float64 {
	if r.Total == 0 {
		return 100
	}
	return float64(r.Succeeded) / float64(r.Total) * 100
}

// CompletenessReport is computed at batch end.
type CompletenessReport struct {
	Expected int
	Actual   int
	Pass     bool
	Note     string
}

// Discover walks root, classifies each file against the video/image
// whitelist, drops sidecars, and returns every other file (unsupported ones
// included, so Run can copy them) sorted by ascending byte length so early
// progress is visible and early failures surface quickly.
func Discover(root string, recursive bool) ([]Entry, error) {
	if !util.DirectoryExists(root) {
		return nil, fmt.Errorf("batch: input directory does not exist: %s", root)
	}

	var entries []Entry
	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		kind := classify(path)
		if kind == KindSidecar {
			return nil
		}
		entries = append(entries, Entry{Path: path, Size: info.Size(), Kind: kind})
		return nil
	}

	if err := filepath.Walk(root, walkFn); err != nil {
		return nil, fmt.Errorf("batch: walking %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Size < entries[j].Size
	})
	return entries, nil
}

// concurrencyLimit returns the bounded worker count for kind. lowMemory
// caps everything to 1-2 regardless of CPU count, for constrained hosts
// sharing the machine with other work; the same cap applies automatically
// when memoryPressured reports available RAM has dropped below ~10% of
// total or under 1 GiB, even if the caller never set --low-memory.
func concurrencyLimit(kind FileKind, lowMemory bool) int {
	if lowMemory || memoryPressured() {
		if kind == KindVideo {
			return 1
		}
		return 2
	}
	cpu := runtime.NumCPU()
	switch kind {
	case KindVideo:
		limit := cpu / 2
		if limit > 4 {
			limit = 4
		}
		if limit < 1 {
			limit = 1
		}
		return limit
	default:
		limit := cpu - 2
		if limit > 8 {
			limit = 8
		}
		if limit < 1 {
			limit = 1
		}
		return limit
	}
}

// Run executes the batch: discovery, checkpoint-skip, dispatch, and the
// final completeness report. A per-file error is recorded and the batch
// continues; unsupported files are copied verbatim regardless of other
// files' outcomes. videoPipeline handles KindVideo entries and
// imagePipeline handles KindImage entries.
func Run(ctx context.Context, cfg Config, videoPipeline, imagePipeline PipelineFunc) (Result, CompletenessReport, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	entries, err := Discover(cfg.RootDir, cfg.Recursive)
	if err != nil {
		return Result{}, CompletenessReport{}, err
	}

	if err := checkWritable(cfg.OutputRoot); err != nil {
		return Result{}, CompletenessReport{}, xerrors.Wrap(xerrors.KindFileSystemError, xerrors.Fatal,
			"output directory is not writable", err)
	}

	if err := util.EnsureDirectory(cfg.CheckpointDir); err != nil {
		return Result{}, CompletenessReport{}, fmt.Errorf("batch: creating checkpoint directory: %w", err)
	}

	if !cfg.MultiInstance {
		lock, err := checkpoint.AcquireLock(cfg.CheckpointDir, checkpoint.DefaultStaleLockHorizon)
		if err != nil {
			return Result{}, CompletenessReport{}, xerrors.Wrap(xerrors.KindFileSystemError, xerrors.Fatal,
				"another instance appears to hold the checkpoint lock", err)
		}
		defer lock.Release()
	}

	store, err := checkpoint.Open(cfg.CheckpointDir)
	if err != nil {
		return Result{}, CompletenessReport{}, fmt.Errorf("batch: opening checkpoint: %w", err)
	}

	result := Result{Total: len(entries), OutputRoot: cfg.OutputRoot}
	var mu sync.Mutex

	dispatch := func(e Entry) {
		if store.IsCompleted(e.Path) {
			mu.Lock()
			result.Skipped++
			mu.Unlock()
			return
		}

		switch e.Kind {
		case KindVideo, KindImage:
			pipeline := videoPipeline
			if e.Kind == KindImage {
				pipeline = imagePipeline
			}
			_, err := pipeline(ctx, e)
			if err != nil {
				cfg.Logger.Error("file processing failed, copying original instead", "path", e.Path, "error", err)
				if _, copyErr := copier.CopyUnsupported(e.Path, cfg.RootDir, cfg.OutputRoot); copyErr != nil {
					cfg.Logger.Error("fallback copy also failed", "path", e.Path, "error", copyErr)
				}
				mu.Lock()
				result.Failed++
				result.Errors = append(result.Errors, FileError{Path: e.Path, Message: err.Error()})
				mu.Unlock()
				_ = store.MarkCompleted(e.Path)
				return
			}
			mu.Lock()
			result.Succeeded++
			mu.Unlock()
			_ = store.MarkCompleted(e.Path)
		default:
			if _, err := copier.CopyUnsupported(e.Path, cfg.RootDir, cfg.OutputRoot); err != nil {
				cfg.Logger.Error("copying unsupported file failed", "path", e.Path, "error", err)
				mu.Lock()
				result.Failed++
				result.Errors = append(result.Errors, FileError{Path: e.Path, Message: err.Error()})
				mu.Unlock()
				return
			}
			mu.Lock()
			result.Succeeded++
			mu.Unlock()
			_ = store.MarkCompleted(e.Path)
		}
	}

	if !cfg.Parallel {
		for _, e := range entries {
			if ctx.Err() != nil {
				break
			}
			dispatch(e)
		}
	} else {
		if err := runParallel(ctx, entries, cfg.LowMemory, dispatch); err != nil {
			return result, CompletenessReport{}, err
		}
	}

	if err := copier.AlignDirectoryMetadata(cfg.RootDir, cfg.OutputRoot); err != nil {
		cfg.Logger.Warn("directory metadata alignment failed", "error", err)
	}

	report := computeCompleteness(entries, cfg.OutputRoot)
	return result, report, nil
}

// runParallel dispatches entries through one bounded worker pool per kind;
// unsupported files use the same limit as images.
func runParallel(ctx context.Context, entries []Entry, lowMemory bool, dispatch func(Entry)) error {
	byKind := map[FileKind][]Entry{}
	for _, e := range entries {
		byKind[e.Kind] = append(byKind[e.Kind], e)
	}

	g, gctx := errgroup.WithContext(ctx)
	for kind, group := range byKind {
		kind, group := kind, group
		limit := concurrencyLimit(kind, lowMemory)
		sem := make(chan struct{}, limit)
		for _, e := range group {
			e := e
			g.Go(func() error {
				select {
				case sem <- struct{}{}:
				case <-gctx.Done():
					return nil
				}
				defer func() { <-sem }()
				if gctx.Err() != nil {
					return nil
				}
				dispatch(e)
				return nil
			})
		}
	}
	return g.Wait()
}

// computeCompleteness computes the completeness report: expected count
// is total input files minus sidecars (already excluded from entries),
// actual is the count of files under the output tree. Extra files (e.g.
// from animated-to-video expansion) are tolerated with a note rather than
// treated as a failure.
func computeCompleteness(entries []Entry, outputRoot string) CompletenessReport {
	expected := len(entries)
	actual := 0
	_ = filepath.Walk(outputRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		actual++
		return nil
	})

	report := CompletenessReport{Expected: expected, Actual: actual}
	switch {
	case actual == expected:
		report.Pass = true
	case actual > expected:
		report.Pass = true
		report.Note = fmt.Sprintf("output tree has %d more files than inputs (tolerated, e.g. animated-to-video expansion)", actual-expected)
	default:
		report.Pass = false
		report.Note = fmt.Sprintf("output tree is missing %d file(s) relative to input count", expected-actual)
	}
	return report
}

// checkWritable performs a lightweight systemic-failure check: the output
// directory must exist (or be creatable) and accept a probe file. This
// kind of failure aborts the batch loudly rather than being treated as a
// per-file error.
func checkWritable(dir string) error {
	if err := util.EnsureDirectory(dir); err != nil {
		return err
	}
	return util.EnsureDirectoryWritable(dir)
}
