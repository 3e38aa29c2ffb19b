// Package reporter provides progress reporting interfaces and implementations.
package reporter

import "time"

// HardwareSummary contains hardware information.
type HardwareSummary struct {
	Hostname string
}

// FileSummary describes the current file before its search begins.
type FileSummary struct {
	InputFile        string
	OutputFile       string
	Duration         string
	Resolution       string
	DynamicRange     string
	AudioDescription string
}

// ProbeSummary reports one CRF probe's outcome. The phase search
// controller takes no reporter, so no code in this module emits it.
type ProbeSummary struct {
	Phase   string
	CRF     float64
	SSIM    *float64
	MSSSIM  *float64
	Passes  bool
	Message string
}

// SearchConfigSummary describes the search mode and thresholds chosen
// for a file before probing begins.
type SearchConfigSummary struct {
	Mode          string
	GPUEncoder    string
	CPUEncoder    string
	MinSSIM       float64
	MinMSSSIM     float64
	Ultimate      bool
	InitialAnchor float64
}

// SearchProgress contains search progress (phase, window, best CRF). No
// code in this module emits it; the search controller takes no reporter.
type SearchProgress struct {
	Phase         string
	Iteration     int
	MaxIterations int
	Percent       float32
	LoCRF         float64
	HiCRF         float64
	BestCRF       float64
	ETA           time.Duration
}

// QualitySummary contains the quality checks run against the chosen
// candidate (SSIM/MS-SSIM/PSNR thresholds, compression verifier verdict).
type QualitySummary struct {
	Passed bool
	Steps  []QualityStep
}

// QualityStep represents a single quality or compression check.
type QualityStep struct {
	Name    string
	Passed  bool
	Details string
}

// SearchOutcome contains one file's final search result.
type SearchOutcome struct {
	InputFile    string
	OutputFile   string
	OriginalSize uint64
	EncodedSize  uint64
	ChosenCRF    float64
	Phase        string
	Iterations   int
	TotalTime    time.Duration
	SSIM         *float64
	MSSSIM       *float64
	OutputPath   string
}

// ReporterError contains error information.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// BatchStartInfo contains batch start metadata.
type BatchStartInfo struct {
	TotalFiles int
	FileList   []string
	OutputDir  string
}

// FileProgressContext contains current file index within a batch.
type FileProgressContext struct {
	CurrentFile int
	TotalFiles  int
}

// BatchSummary contains batch completion information.
type BatchSummary struct {
	SuccessfulCount   int
	TotalFiles        int
	TotalOriginalSize uint64
	TotalEncodedSize  uint64
	TotalDuration     time.Duration
	FileResults       []FileResult
	QualityPassed     int
	QualityFailed     int
	CompletenessNote  string
}

// FileResult contains one file's search result within a batch summary.
type FileResult struct {
	Filename  string
	ChosenCRF float64
	Reduction float64
}

// StageProgress represents a generic stage update (discovery, checkpoint
// load, directory alignment) outside the per-file search loop.
type StageProgress struct {
	Stage   string
	Percent float32
	Message string
	ETA     *time.Duration
}
