// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// lockFileName is the in-progress marker inside a run dir.
const lockFileName = "run.lock"

// lockStaleTTL bounds how long a lock from a dead or unreachable
// process is honored.
const lockStaleTTL = 2 * time.Hour

// lockInfo is the marker file's content, kept for diagnosability.
type lockInfo struct {
	RunID      string    `json:"run_id"`
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
}

func (i *lockInfo) expired() bool {
	return time.Since(i.AcquiredAt) > lockStaleTTL
}

// RunLock is the per-run in-progress marker. Two orchestrator
// invocations against the same run id are unsupported; the second one
// fails with ErrRunLocked while the marker's owner is alive.
type RunLock struct {
	path string
	held bool
}

// AcquireRunLock takes the marker for a run directory. A live marker
// from another process yields ErrRunLocked; a marker from a dead
// process or one past the stale TTL is replaced.
func AcquireRunLock(runDir, runID string) (*RunLock, error) {
	l := &RunLock{path: filepath.Join(runDir, lockFileName)}

	existing, err := readLockInfo(l.path)
	if err == nil && existing != nil {
		if !existing.expired() && processAlive(existing.PID) {
			return nil, fmt.Errorf("%w: run %s held by pid %d on %s since %s",
				ErrRunLocked, existing.RunID, existing.PID, existing.Hostname,
				existing.AcquiredAt.Format(time.RFC3339))
		}
		// Stale marker: the holder is gone.
		os.Remove(l.path)
	}

	hostname, _ := os.Hostname()
	info := lockInfo{
		RunID:      runID,
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(&info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal lock info: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: run %s", ErrRunLocked, runID)
		}
		return nil, fmt.Errorf("creating run lock: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(l.path)
		return nil, fmt.Errorf("writing run lock: %w", err)
	}
	l.held = true
	return l, nil
}

// Release removes the marker. Safe to call multiple times.
func (l *RunLock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("releasing run lock: %w", err)
	}
	return nil
}

func readLockInfo(path string) (*lockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// processAlive checks liveness with signal 0. Platforms where that
// probe is unsupported report dead, which falls back to the TTL check.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to another user.
	return errors.Is(err, syscall.EPERM)
}
