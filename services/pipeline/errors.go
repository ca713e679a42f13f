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
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline control plane.
var (
	// ErrRunNotFound indicates no run record exists for the run id.
	ErrRunNotFound = errors.New("run not found")

	// ErrStateCorrupted indicates the persisted run record failed its
	// integrity check. Fatal for the run id; never silently repaired.
	ErrStateCorrupted = errors.New("run state corrupted")

	// ErrRunLocked indicates another orchestrator invocation holds the
	// same run id.
	ErrRunLocked = errors.New("run already in progress")

	// ErrUnknownStage indicates an ordinal outside 1..9.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrStageCompleted indicates a non-idempotent stage already
	// succeeded and re-execution was not forced. Actionable, not fatal.
	ErrStageCompleted = errors.New("stage already completed")

	// ErrPrerequisiteMissing indicates a stage's declared inputs are
	// absent from the run record. Reported before any external call.
	ErrPrerequisiteMissing = errors.New("stage prerequisites missing")

	// ErrMalformedOutput indicates a model response could not be parsed
	// into the stage's declared artifact kinds. Recoverable via resume.
	ErrMalformedOutput = errors.New("malformed stage output")
)

// PrerequisiteError reports which declared inputs are missing for a
// requested stage.
type PrerequisiteError struct {
	Ordinal int
	Name    string
	Missing []ArtifactKind
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("stage %d (%s) prerequisites missing: %v", e.Ordinal, e.Name, e.Missing)
}

func (e *PrerequisiteError) Unwrap() error {
	return ErrPrerequisiteMissing
}

// MalformedOutputError reports why a model response failed structured
// extraction. The whole stage fails; no partially-populated artifact is
// ever written.
type MalformedOutputError struct {
	Stage  string
	Detail string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("stage %s: malformed model output: %s", e.Stage, e.Detail)
}

func (e *MalformedOutputError) Unwrap() error {
	return ErrMalformedOutput
}
