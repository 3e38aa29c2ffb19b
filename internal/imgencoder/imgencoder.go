// Package imgencoder drives the external still/animated-image converters
// (cjxl, avifenc, ffmpeg's libsvtav1) chosen by imgstrategy, and classifies
// their failures. Mirrors the video encoder driver's process-draining
// pattern, since all three tools are unpredictable about how much stderr
// they write and a parent blocked on a full stdout pipe while the child
// blocks on stderr is a classic pipe deadlock.
package imgencoder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/five82/mfboost/internal/copier"
	"github.com/five82/mfboost/internal/imgstrategy"
	"github.com/five82/mfboost/internal/xerrors"
)

// FailureKind enumerates the ways a conversion attempt can fail.
type FailureKind int

const (
	FailureSpawn FailureKind = iota
	FailureNonZeroExit
	FailureOutputMissing
	FailureOutputEmpty
	FailureUnsupportedTarget
)

func (k FailureKind) String() string {
	switch k {
	case FailureSpawn:
		return "spawn"
	case FailureNonZeroExit:
		return "non-zero-exit"
	case FailureOutputMissing:
		return "output-missing"
	case FailureOutputEmpty:
		return "output-empty"
	case FailureUnsupportedTarget:
		return "unsupported-target"
	default:
		return "unknown"
	}
}

// Failure describes why a conversion attempt did not produce usable output.
type Failure struct {
	Kind       FailureKind
	ExitCode   int
	StderrTail string
	Suggestion string
}

func (f *Failure) Error() string {
	if f.Suggestion != "" {
		return fmt.Sprintf("image conversion failed (%s, exit %d): %s", f.Kind, f.ExitCode, f.Suggestion)
	}
	return fmt.Sprintf("image conversion failed (%s, exit %d)", f.Kind, f.ExitCode)
}

// Outcome is the successful result of one conversion attempt.
type Outcome struct {
	OutputPath string
	TotalBytes uint64
	WallSecs   float64
}

// Request parameterizes a single image conversion: input, output, target
// format, and the format-specific hints imgstrategy.Detect gathered.
type Request struct {
	Input        string
	Output       string
	Target       imgstrategy.TargetFormat
	SourceFormat copier.ContentFormat
	Quality      int
	FPS          float64
}

// stderrTailLines bounds how much stderr is retained for diagnostics.
const stderrTailLines = 40

// Encode runs a single conversion attempt for req.Target.
func Encode(ctx context.Context, req Request) (Outcome, error) {
	start := time.Now()

	cmd, err := buildCommand(ctx, req)
	if err != nil {
		return Outcome{}, err
	}

	if err := runAndDrain(cmd); err != nil {
		return Outcome{}, err
	}
	wall := time.Since(start).Seconds()

	info, err := os.Stat(req.Output)
	if err != nil {
		return Outcome{}, &Failure{Kind: FailureOutputMissing, Suggestion: "converter did not produce an output file"}
	}
	if info.Size() == 0 {
		return Outcome{}, &Failure{Kind: FailureOutputEmpty, Suggestion: "converter produced an empty output file"}
	}

	return Outcome{OutputPath: req.Output, TotalBytes: uint64(info.Size()), WallSecs: wall}, nil
}

func buildCommand(ctx context.Context, req Request) (*exec.Cmd, error) {
	switch req.Target {
	case imgstrategy.JXL:
		return exec.CommandContext(ctx, "cjxl", jxlArgs(req)...), nil
	case imgstrategy.AVIF:
		quality := req.Quality
		if quality <= 0 {
			quality = 85
		}
		return exec.CommandContext(ctx, "avifenc", req.Input, req.Output, "-q", fmt.Sprintf("%d", quality)), nil
	case imgstrategy.AV1MP4:
		fps := req.FPS
		if fps <= 0 {
			fps = 10.0
		}
		return exec.CommandContext(ctx, "ffmpeg", "-y",
			"-i", req.Input,
			"-c:v", "libsvtav1",
			"-crf", "0",
			"-preset", "6",
			"-r", fmt.Sprintf("%.2f", fps),
			req.Output,
		), nil
	default:
		return nil, &Failure{Kind: FailureUnsupportedTarget, Suggestion: fmt.Sprintf("no converter for target %s", req.Target)}
	}
}

// jxlArgs uses cjxl's lossless JPEG transcode mode when the source is a
// JPEG, preserving the original DCT coefficients instead of re-encoding
// pixels; every other lossless-still source goes through the general
// distance-0 (mathematically lossless) encode at effort 8.
func jxlArgs(req Request) []string {
	if req.SourceFormat == copier.FormatJPEG {
		return []string{"--lossless_jpeg=1", req.Input, req.Output}
	}
	return []string{req.Input, req.Output, "-d", "0.0", "-e", "8"}
}

// runAndDrain starts cmd and drains stdout/stderr on separate goroutines
// so a verbose converter cannot deadlock the parent waiting on a full
// pipe buffer.
func runAndDrain(cmd *exec.Cmd) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &Failure{Kind: FailureSpawn, Suggestion: "failed to create stdout pipe"}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &Failure{Kind: FailureSpawn, Suggestion: "failed to create stderr pipe"}
	}

	if err := cmd.Start(); err != nil {
		return &Failure{Kind: FailureSpawn, Suggestion: "failed to start converter process"}
	}

	var stderrBuf strings.Builder
	done := make(chan struct{}, 2)
	go func() { drain(stdout); done <- struct{}{} }()
	go func() { drainInto(stderr, &stderrBuf); done <- struct{}{} }()
	<-done
	<-done

	if err := cmd.Wait(); err != nil {
		return classifyExitErr(err, stderrBuf.String())
	}
	return nil
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, r)
}

func drainInto(r io.Reader, buf *strings.Builder) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > stderrTailLines {
			lines = lines[1:]
		}
	}
	buf.WriteString(strings.Join(lines, "\n"))
}

func classifyExitErr(err error, stderr string) *Failure {
	suggestion, recoverable := xerrors.ClassifyStderr(stderr)
	exitCode := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}
	if recoverable {
		suggestion = "recoverable: " + suggestion
	}
	return &Failure{
		Kind:       FailureNonZeroExit,
		ExitCode:   exitCode,
		StderrTail: stderr,
		Suggestion: suggestion,
	}
}
