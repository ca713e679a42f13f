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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// StateVersion is the current run-record format version.
const StateVersion = "1.0.0"

// stateFileName is the machine-readable run-state file inside a run dir.
const stateFileName = "state.json"

var validRunIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ErrStateVersionMismatch indicates a run record written by an
// incompatible version.
var ErrStateVersionMismatch = errors.New("run state version mismatch")

// StageStatus is the lifecycle of one stage within a run.
type StageStatus string

const (
	StatusNotStarted StageStatus = "not-started"
	StatusRunning    StageStatus = "running"
	StatusSucceeded  StageStatus = "succeeded"
	StatusFailed     StageStatus = "failed"
)

// StageState is the per-stage slice of a run record.
type StageState struct {
	Status     StageStatus             `json:"status"`
	Reason     string                  `json:"reason,omitempty"`
	Artifacts  map[ArtifactKind]string `json:"artifacts,omitempty"`
	AttemptID  string                  `json:"attempt_id,omitempty"`
	StartedAt  *time.Time              `json:"started_at,omitempty"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
}

// RunRecord is the durable state of one run. It is created on first
// invocation for a run id, mutated only by the orchestrator, and never
// deleted by this subsystem.
type RunRecord struct {
	RunID      string `json:"run_id"`
	CorpusRoot string `json:"corpus_root"`
	OutputRoot string `json:"output_root"`

	// Stages is keyed by ordinal (1..9); absent means not-started.
	Stages map[int]*StageState `json:"stages"`

	// Artifacts is the run-wide kind -> path registry, including the
	// cobol_source pseudo-artifact.
	Artifacts map[ArtifactKind]string `json:"artifacts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   string    `json:"version"`
	Checksum  string    `json:"checksum"`
}

// StageState returns the state slice for an ordinal, never nil.
func (r *RunRecord) StageState(ordinal int) *StageState {
	if st, ok := r.Stages[ordinal]; ok {
		return st
	}
	st := &StageState{Status: StatusNotStarted}
	r.Stages[ordinal] = st
	return st
}

// Status returns the stage status without mutating the record.
func (r *RunRecord) Status(ordinal int) StageStatus {
	if st, ok := r.Stages[ordinal]; ok {
		return st.Status
	}
	return StatusNotStarted
}

// HasArtifact reports whether a kind is registered and present on disk.
func (r *RunRecord) HasArtifact(kind ArtifactKind) bool {
	path, ok := r.Artifacts[kind]
	if !ok || path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// RunDir is the per-run directory under the output root.
func (r *RunRecord) RunDir() string {
	return filepath.Join(r.OutputRoot, r.RunID)
}

// Store persists run records. One directory tree per run id; writes are
// atomic (temp file + rename) and synced before control returns, so a
// crash between stages never loses a completed stage's result.
//
// Runs are strictly partitioned by run id; the store never touches
// another run's tree.
type Store struct {
	outputRoot string
	logger     *slog.Logger
}

// NewStore creates a store rooted at outputRoot.
func NewStore(outputRoot string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{outputRoot: outputRoot, logger: logger}
}

// RunDir returns the directory for a run id.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.outputRoot, runID)
}

// Load reads and verifies the record for a run id.
//
// Returns ErrRunNotFound when no record exists and ErrStateCorrupted
// when the record fails its integrity check. Corruption is fatal for
// the run id and is never silently repaired.
func (s *Store) Load(runID string) (*RunRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.RunDir(runID), stateFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("reading run state for %s: %w", runID, err)
	}

	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStateCorrupted, runID, err)
	}
	if rec.Version != StateVersion {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrStateVersionMismatch, rec.Version, StateVersion)
	}

	expected, err := computeChecksum(&rec)
	if err != nil {
		return nil, fmt.Errorf("computing checksum for %s: %w", runID, err)
	}
	if rec.Checksum != expected {
		return nil, fmt.Errorf("%w: %s: checksum mismatch", ErrStateCorrupted, runID)
	}
	if rec.Stages == nil {
		rec.Stages = make(map[int]*StageState)
	}
	if rec.Artifacts == nil {
		rec.Artifacts = make(map[ArtifactKind]string)
	}
	return &rec, nil
}

// CreateOrResume loads the record for runID or creates a fresh one
// bound to the given corpus and output roots. On resume the corpus root
// is rebound so a relocated corpus keeps working, matching the original
// single-stage continuation behavior.
func (s *Store) CreateOrResume(runID, corpusRoot string) (*RunRecord, error) {
	if !validRunIDPattern.MatchString(runID) {
		return nil, fmt.Errorf("run id must match [a-zA-Z0-9_.-]+, got %q", runID)
	}
	absCorpus, err := filepath.Abs(corpusRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving corpus root: %w", err)
	}

	rec, err := s.Load(runID)
	switch {
	case err == nil:
		rec.CorpusRoot = absCorpus
		rec.Artifacts[KindCobolSource] = absCorpus
		if err := s.Save(rec); err != nil {
			return nil, err
		}
		s.logger.Info("resuming run", "run_id", runID)
		return rec, nil
	case errors.Is(err, ErrRunNotFound):
	default:
		return nil, err
	}

	absOut, err := filepath.Abs(s.outputRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving output root: %w", err)
	}
	now := time.Now().UTC()
	rec = &RunRecord{
		RunID:      runID,
		CorpusRoot: absCorpus,
		OutputRoot: absOut,
		Stages:     make(map[int]*StageState),
		Artifacts:  map[ArtifactKind]string{KindCobolSource: absCorpus},
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    StateVersion,
	}
	if err := os.MkdirAll(s.RunDir(runID), 0755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	if err := s.Save(rec); err != nil {
		return nil, err
	}
	s.logger.Info("created run", "run_id", runID, "corpus_root", absCorpus)
	return rec, nil
}

// Save persists the record synchronously. The whole record is replaced
// in one atomic rename; concurrent readers never observe a partially
// mutated record.
func (s *Store) Save(rec *RunRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	rec.Version = StateVersion

	checksum, err := computeChecksum(rec)
	if err != nil {
		return fmt.Errorf("compute checksum: %w", err)
	}
	rec.Checksum = checksum

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}

	dir := s.RunDir(rec.RunID)
	tempFile, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("write run state: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("sync run state: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close run state: %w", err)
	}
	if err := os.Rename(tempPath, filepath.Join(dir, stateFileName)); err != nil {
		return fmt.Errorf("rename run state: %w", err)
	}
	success = true
	return nil
}

// computeChecksum hashes the record with its checksum field blanked.
func computeChecksum(rec *RunRecord) (string, error) {
	clone := *rec
	clone.Checksum = ""
	data, err := json.Marshal(&clone)
	if err != nil {
		return "", fmt.Errorf("marshal for checksum: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
