package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenEmptyDirStartsWithNoCompletedFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected 0 completed, got %d", s.Len())
	}
}

func TestMarkCompletedPersistsAndReopens(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.MarkCompleted("/abs/path/a.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.IsCompleted("/abs/path/a.mp4") {
		t.Error("expected file to be marked completed")
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reopened.IsCompleted("/abs/path/a.mp4") {
		t.Error("expected completion to survive a reopen")
	}
}

func TestMarkCompletedIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, _ := Open(dir)
	if err := s.MarkCompleted("/a.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.MarkCompleted("/a.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected len 1 after duplicate mark, got %d", s.Len())
	}
}

func TestOpenToleratesCorruptCheckpointFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, recordFileName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("expected corrupt checkpoint to be tolerated, got error: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty completion set from corrupt file, got %d", s.Len())
	}
}

func TestSafeDeleteRefusesWhenReplacementMissing(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "original.mp4")
	os.WriteFile(original, []byte("data"), 0644)

	err := SafeDelete(original, filepath.Join(dir, "nope.mp4"))
	if err == nil {
		t.Fatal("expected an error when replacement is missing")
	}
	if _, statErr := os.Stat(original); statErr != nil {
		t.Error("expected original to survive a refused delete")
	}
}

func TestSafeDeleteRefusesWhenReplacementEmpty(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "original.mp4")
	replacement := filepath.Join(dir, "replacement.mp4")
	os.WriteFile(original, []byte("data"), 0644)
	os.WriteFile(replacement, []byte{}, 0644)

	if err := SafeDelete(original, replacement); err == nil {
		t.Fatal("expected an error for an empty replacement")
	}
}

func TestSafeDeleteSucceedsWithValidReplacement(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "original.mp4")
	replacement := filepath.Join(dir, "replacement.mp4")
	os.WriteFile(original, []byte("data"), 0644)
	os.WriteFile(replacement, []byte("some valid bytes here"), 0644)

	if err := SafeDelete(original, replacement); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(original); !os.IsNotExist(err) {
		t.Error("expected original to be removed")
	}
}

func TestAcquireAndReleaseLock(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir, DefaultStaleLockHorizon)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := AcquireLock(dir, DefaultStaleLockHorizon); err == nil {
		t.Error("expected second lock acquisition to fail while the first is held by this live process")
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("unexpected error releasing: %v", err)
	}
	lock2, err := AcquireLock(dir, DefaultStaleLockHorizon)
	if err != nil {
		t.Fatalf("expected lock to be reacquirable after release: %v", err)
	}
	lock2.Release()
}

func TestAcquireLockDetectsStaleLockFromDeadProcess(t *testing.T) {
	dir := t.TempDir()
	// A PID astronomically unlikely to be live, with a timestamp older
	// than the horizon: must be treated as stale and reclaimed.
	info := lockInfo{PID: 999999, StartedAt: time.Now().Add(-3 * time.Hour)}
	data, err := json.Marshal(info)
	if err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, lockFileName), data, 0644)

	lock, err := AcquireLock(dir, DefaultStaleLockHorizon)
	if err != nil {
		t.Fatalf("expected stale lock to be reclaimed, got error: %v", err)
	}
	lock.Release()
}
