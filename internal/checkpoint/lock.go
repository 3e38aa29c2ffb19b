package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// lockInfo is the JSON body of a lock file: which process holds the
// output directory and when it started, so a stale lock can be
// distinguished from one actively held by a live process.
type lockInfo struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// Lock represents an acquired output-directory lock. Release removes the
// lock file.
type Lock struct {
	path string
}

// AcquireLock creates a lock file in dir, preventing two processes from
// sharing one output directory. If an existing lock is found and is
// either still held by a live process or younger than horizon, Acquire
// fails with a descriptive error naming the stale-lock warning threshold.
func AcquireLock(dir string, horizon time.Duration) (*Lock, error) {
	path := filepath.Join(dir, lockFileName)

	if existing, err := readLock(path); err == nil {
		if isLive(existing.PID) {
			return nil, fmt.Errorf("checkpoint: output directory %s is locked by running process %d", dir, existing.PID)
		}
		age := time.Since(existing.StartedAt)
		if age < horizon {
			return nil, fmt.Errorf("checkpoint: output directory %s has a lock from process %d, %s old (younger than the %s stale horizon); remove it manually if you are certain no process holds it", dir, existing.PID, age.Round(time.Second), horizon)
		}
		// Stale: process is gone and the lock predates the horizon.
		_ = os.Remove(path)
	}

	info := lockInfo{PID: os.Getpid(), StartedAt: time.Now()}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: marshaling lock: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: acquiring lock %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return nil, fmt.Errorf("checkpoint: writing lock %s: %w", path, err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: releasing lock %s: %w", l.path, err)
	}
	return nil
}

func readLock(path string) (lockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lockInfo{}, err
	}
	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return lockInfo{}, err
	}
	return info, nil
}

// isLive signals pid with signal 0, which performs no action but reports
// whether the process exists and is signalable; this is the conventional
// liveness probe on POSIX systems.
func isLive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return unix.Kill(pid, 0) == nil
}
