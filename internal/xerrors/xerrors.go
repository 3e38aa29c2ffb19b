// Package xerrors provides the structured error taxonomy shared across the
// search engine, quality engine, and batch orchestrator.
package xerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for propagation and reporting policy.
type Kind int

const (
	KindUnsupportedFormat Kind = iota
	KindMediaReadFailed
	KindEncoderSpawnFailed
	KindEncoderFailed
	KindProbeFailed
	KindQualityUnmeasurable
	KindIterationBudgetExceeded
	KindCancelRequested
	KindFileSystemError
	KindIntegrityCheckFailed
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedFormat:
		return "UnsupportedFormat"
	case KindMediaReadFailed:
		return "MediaReadFailed"
	case KindEncoderSpawnFailed:
		return "EncoderSpawnFailed"
	case KindEncoderFailed:
		return "EncoderFailed"
	case KindProbeFailed:
		return "ProbeFailed"
	case KindQualityUnmeasurable:
		return "QualityUnmeasurable"
	case KindIterationBudgetExceeded:
		return "IterationBudgetExceeded"
	case KindCancelRequested:
		return "CancelRequested"
	case KindFileSystemError:
		return "FileSystemError"
	case KindIntegrityCheckFailed:
		return "IntegrityCheckFailed"
	default:
		return "Unknown"
	}
}

// Severity drives the reporting/propagation policy from section 4.11.
type Severity int

const (
	// Recoverable: log a warning with a suggestion, continue with a fallback.
	Recoverable Severity = iota
	// Fatal: log an error, abort the current file (never the whole batch).
	Fatal
	// Optional: log at info level, continue without the side effect.
	Optional
)

func (s Severity) String() string {
	switch s {
	case Recoverable:
		return "recoverable"
	case Fatal:
		return "fatal"
	case Optional:
		return "optional"
	default:
		return "unknown"
	}
}

// Error is the tagged-union error type used throughout the core.
type Error struct {
	Kind       Kind
	Severity   Severity
	Context    string
	Suggestion string
	ExitCode   int // populated for EncoderFailed
	StderrTail string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *Error) Unwrap() error { return e.Underlying }

// Is matches by Kind only; Underlying is ignored for comparison.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an Error with the given kind, severity, and context.
func New(kind Kind, severity Severity, context string) *Error {
	return &Error{Kind: kind, Severity: severity, Context: context}
}

// Wrap builds an Error that wraps an underlying cause.
func Wrap(kind Kind, severity Severity, context string, underlying error) *Error {
	return &Error{Kind: kind, Severity: severity, Context: context, Underlying: underlying}
}

// WithSuggestion attaches an actionable one-line suggestion.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// NewCancelled creates the sentinel cancellation error. Cancellation is
// reported out-of-band from the normal error severities: callers should
// treat it as neither a failure nor a success.
func NewCancelled() *Error {
	return &Error{Kind: KindCancelRequested, Severity: Optional, Context: "operation was cancelled"}
}

// IsCancelled reports whether err is (or wraps) a cancellation error.
func IsCancelled(err error) bool {
	return Is(err, KindCancelRequested)
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ClassifyStderr inspects a stderr fragment and returns an actionable
// suggestion plus whether the failure looks recoverable (worth retrying
// once). Patterns are matched literally against common ffmpeg/x265
// failure text.
func ClassifyStderr(stderr string) (suggestion string, recoverable bool) {
	switch {
	case containsAny(stderr, "No such encoder", "Unknown encoder"):
		return "install the missing codec and retry", false
	case containsAny(stderr, "moov atom not found"):
		return "input file looks truncated; re-copy it and retry", false
	case containsAny(stderr, "Resource temporarily unavailable"):
		return "transient resource contention; retrying once", true
	case containsAny(stderr, "No space left on device"):
		return "free up disk space in the temp/output directory", false
	default:
		return "", false
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
