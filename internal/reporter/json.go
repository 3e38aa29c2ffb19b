package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/five82/mfboost/internal/util"
)

// JSONReporter outputs NDJSON events suitable for machine consumption.
type JSONReporter struct {
	writer             io.Writer
	mu                 sync.Mutex
	lastProgressBucket int
	lastProgressTime   time.Time
}

// NewJSONReporter creates a new JSON reporter that writes to stdout.
func NewJSONReporter() *JSONReporter {
	return &JSONReporter{
		writer:             os.Stdout,
		lastProgressBucket: -1,
	}
}

// NewJSONReporterWithWriter creates a JSON reporter with a custom writer.
func NewJSONReporterWithWriter(w io.Writer) *JSONReporter {
	return &JSONReporter{
		writer:             w,
		lastProgressBucket: -1,
	}
}

func (r *JSONReporter) timestamp() int64 {
	return time.Now().Unix()
}

func (r *JSONReporter) write(v interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(r.writer, string(data))
}

func (r *JSONReporter) Hardware(summary HardwareSummary) {
	r.write(map[string]interface{}{
		"type":      "hardware",
		"hostname":  summary.Hostname,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) FileStarted(summary FileSummary) {
	r.write(map[string]interface{}{
		"type":              "file_started",
		"input_file":        summary.InputFile,
		"output_file":       summary.OutputFile,
		"duration":          summary.Duration,
		"resolution":        summary.Resolution,
		"dynamic_range":     summary.DynamicRange,
		"audio_description": summary.AudioDescription,
		"timestamp":         r.timestamp(),
	})
}

func (r *JSONReporter) StageProgress(update StageProgress) {
	event := map[string]interface{}{
		"type":      "stage_progress",
		"stage":     update.Stage,
		"percent":   update.Percent,
		"message":   update.Message,
		"timestamp": r.timestamp(),
	}
	if update.ETA != nil {
		event["eta_seconds"] = int64(update.ETA.Seconds())
	}
	r.write(event)
}

func (r *JSONReporter) Probe(summary ProbeSummary) {
	event := map[string]interface{}{
		"type":      "probe",
		"phase":     summary.Phase,
		"crf":       summary.CRF,
		"passes":    summary.Passes,
		"message":   summary.Message,
		"timestamp": r.timestamp(),
	}
	if summary.SSIM != nil {
		event["ssim"] = *summary.SSIM
	}
	if summary.MSSSIM != nil {
		event["ms_ssim"] = *summary.MSSSIM
	}
	r.write(event)
}

func (r *JSONReporter) SearchConfig(summary SearchConfigSummary) {
	r.write(map[string]interface{}{
		"type":           "search_config",
		"mode":           summary.Mode,
		"gpu_encoder":    summary.GPUEncoder,
		"cpu_encoder":    summary.CPUEncoder,
		"min_ssim":       summary.MinSSIM,
		"min_ms_ssim":    summary.MinMSSSIM,
		"ultimate":       summary.Ultimate,
		"initial_anchor": summary.InitialAnchor,
		"timestamp":      r.timestamp(),
	})
}

func (r *JSONReporter) SearchStarted(maxIterations int) {
	r.mu.Lock()
	r.lastProgressBucket = -1
	r.lastProgressTime = time.Time{}
	r.mu.Unlock()

	r.write(map[string]interface{}{
		"type":           "search_started",
		"max_iterations": maxIterations,
		"timestamp":      r.timestamp(),
	})
}

func (r *JSONReporter) SearchProgress(progress SearchProgress) {
	const progressBucketSize = 1
	const minInterval = 5 * time.Second

	bucket := int(progress.Percent) / progressBucketSize
	now := time.Now()

	r.mu.Lock()
	intervalElapsed := r.lastProgressTime.IsZero() || now.Sub(r.lastProgressTime) >= minInterval
	shouldEmit := bucket > r.lastProgressBucket || intervalElapsed || progress.Percent >= 99.0

	if !shouldEmit {
		r.mu.Unlock()
		return
	}

	if bucket > r.lastProgressBucket {
		r.lastProgressBucket = bucket
	}
	r.lastProgressTime = now
	r.mu.Unlock()

	r.write(map[string]interface{}{
		"type":        "search_progress",
		"phase":       progress.Phase,
		"iteration":   progress.Iteration,
		"max_iter":    progress.MaxIterations,
		"percent":     progress.Percent,
		"lo_crf":      progress.LoCRF,
		"hi_crf":      progress.HiCRF,
		"best_crf":    progress.BestCRF,
		"eta_seconds": int64(progress.ETA.Seconds()),
		"timestamp":   r.timestamp(),
	})
}

func (r *JSONReporter) QualityComplete(summary QualitySummary) {
	steps := make([]map[string]interface{}, len(summary.Steps))
	for i, step := range summary.Steps {
		steps[i] = map[string]interface{}{
			"step":    step.Name,
			"passed":  step.Passed,
			"details": step.Details,
		}
	}

	r.write(map[string]interface{}{
		"type":      "quality_complete",
		"passed":    summary.Passed,
		"steps":     steps,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) SearchComplete(summary SearchOutcome) {
	reduction := util.CalculateSizeReduction(summary.OriginalSize, summary.EncodedSize)

	event := map[string]interface{}{
		"type":                   "search_complete",
		"input_file":             summary.InputFile,
		"output_file":            summary.OutputFile,
		"original_size":          summary.OriginalSize,
		"encoded_size":           summary.EncodedSize,
		"chosen_crf":             summary.ChosenCRF,
		"phase":                  summary.Phase,
		"iterations":             summary.Iterations,
		"output_path":            summary.OutputPath,
		"duration_seconds":       int64(summary.TotalTime.Seconds()),
		"size_reduction_percent": reduction,
		"timestamp":              r.timestamp(),
	}
	if summary.SSIM != nil {
		event["ssim"] = *summary.SSIM
	}
	if summary.MSSSIM != nil {
		event["ms_ssim"] = *summary.MSSSIM
	}
	r.write(event)
}

func (r *JSONReporter) Warning(message string) {
	r.write(map[string]interface{}{
		"type":      "warning",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) Error(err ReporterError) {
	r.write(map[string]interface{}{
		"type":       "error",
		"title":      err.Title,
		"message":    err.Message,
		"context":    err.Context,
		"suggestion": err.Suggestion,
		"timestamp":  r.timestamp(),
	})
}

func (r *JSONReporter) OperationComplete(message string) {
	r.write(map[string]interface{}{
		"type":      "operation_complete",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) BatchStarted(info BatchStartInfo) {
	r.write(map[string]interface{}{
		"type":        "batch_started",
		"total_files": info.TotalFiles,
		"file_list":   info.FileList,
		"output_dir":  info.OutputDir,
		"timestamp":   r.timestamp(),
	})
}

func (r *JSONReporter) FileProgress(context FileProgressContext) {
	r.write(map[string]interface{}{
		"type":         "file_progress",
		"current_file": context.CurrentFile,
		"total_files":  context.TotalFiles,
		"timestamp":    r.timestamp(),
	})
}

func (r *JSONReporter) BatchComplete(summary BatchSummary) {
	reduction := util.CalculateSizeReduction(summary.TotalOriginalSize, summary.TotalEncodedSize)

	r.write(map[string]interface{}{
		"type":                         "batch_complete",
		"successful_count":             summary.SuccessfulCount,
		"total_files":                  summary.TotalFiles,
		"total_original_size":          summary.TotalOriginalSize,
		"total_encoded_size":           summary.TotalEncodedSize,
		"total_duration_seconds":       int64(summary.TotalDuration.Seconds()),
		"total_size_reduction_percent": reduction,
		"quality_passed":               summary.QualityPassed,
		"quality_failed":               summary.QualityFailed,
		"completeness_note":            summary.CompletenessNote,
		"timestamp":                    r.timestamp(),
	})
}

func (r *JSONReporter) Verbose(message string) {
	r.write(map[string]interface{}{
		"type":      "verbose",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}
