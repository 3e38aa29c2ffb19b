// Package checkpoint implements the checkpoint store (C13): a per-directory
// record of completed files so an interrupted batch can resume, guarded by
// an atomic write/rename sequence and a stale-lock-aware lock file.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	recordFileName = "mfboost_checkpoint.json"
	lockFileName   = "mfboost_checkpoint.lock"

	// DefaultStaleLockHorizon is how old an unattached lock file must be
	// before it is treated as abandoned rather than actively held.
	DefaultStaleLockHorizon = 2 * time.Hour
)

// record is the on-disk shape of a checkpoint file.
type record struct {
	Completed []string `json:"completed"`
}

// Store tracks completed files for one output directory.
type Store struct {
	mu        sync.Mutex
	dir       string
	path      string
	completed map[string]struct{}
}

// Open loads (or initializes) the checkpoint for dir.
func Open(dir string) (*Store, error) {
	path := filepath.Join(dir, recordFileName)
	s := &Store{dir: dir, path: path, completed: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("checkpoint: reading %s: %w", path, err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt checkpoint must not block a resume; start fresh and
		// let the caller re-derive completion the slow way.
		return s, nil
	}
	for _, p := range rec.Completed {
		s.completed[p] = struct{}{}
	}
	return s, nil
}

// IsCompleted reports whether absPath has already been recorded done.
func (s *Store) IsCompleted(absPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.completed[absPath]
	return ok
}

// MarkCompleted appends absPath to the completed set (idempotent; the set
// is append-only within a batch run) and persists atomically.
func (s *Store) MarkCompleted(absPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.completed[absPath]; ok {
		return nil
	}
	s.completed[absPath] = struct{}{}
	return s.persistLocked()
}

// Len returns the number of completed files currently recorded.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed)
}

func (s *Store) persistLocked() error {
	paths := make([]string, 0, len(s.completed))
	for p := range s.completed {
		paths = append(paths, p)
	}
	rec := record{Completed: paths}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshaling: %w", err)
	}
	return atomicWrite(s.path, data)
}

// atomicWrite writes data to a temp file in the same directory as path,
// fsyncs it, and renames it into place, so a crash mid-write never leaves
// a torn checkpoint file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("checkpoint: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once rename succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("checkpoint: renaming into place: %w", err)
	}
	return nil
}

// SafeDelete unlinks original only after confirming replacement exists,
// is non-empty, and has at least 8 readable bytes, a positive integrity
// check run before any destructive cleanup. The bytes themselves are not
// matched against any container signature.
func SafeDelete(original, replacement string) error {
	info, err := os.Stat(replacement)
	if err != nil {
		return fmt.Errorf("checkpoint: replacement missing, refusing to delete original: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("checkpoint: replacement is empty, refusing to delete original %s", original)
	}
	if !hasPlausibleContainerHeader(replacement) {
		return fmt.Errorf("checkpoint: replacement %s does not look like a valid container, refusing to delete original", replacement)
	}
	return os.Remove(original)
}

func hasPlausibleContainerHeader(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, 12)
	n, err := f.Read(buf)
	return err == nil && n >= 8
}
