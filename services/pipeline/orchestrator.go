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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/cobalt/services/llm"
)

var tracer = otel.Tracer("cobalt.pipeline")

// NextKind classifies the orchestrator's next-action report.
type NextKind string

const (
	// NextStage means a further stage is eligible to run.
	NextStage NextKind = "next"

	// NextComplete means all nine stages have succeeded.
	NextComplete NextKind = "complete"

	// NextBlocked means the run halted; Reason and Command explain the
	// exact resumption step.
	NextBlocked NextKind = "blocked"
)

// NextAction is what the orchestrator reports after a stage attempt.
type NextAction struct {
	Kind    NextKind
	Ordinal int    // next eligible stage when Kind == NextStage
	Reason  string // why the run is blocked, when it is
	Command string // exact command to take the reported action
}

// Orchestrator sequences the nine stages for a run: it verifies
// prerequisites, invokes stages, persists outcomes synchronously, and
// appends audit entries. Stages execute strictly in ascending ordinal
// order, one at a time; each depends on its predecessor's artifacts so
// there is no fan-out to exploit.
//
// The orchestrator owns all run-state mutation. Stages are pure with
// respect to the state store.
type Orchestrator struct {
	cfg      Config
	store    *Store
	stages   map[int]Stage
	registry *llm.ModelRegistry
	logger   *slog.Logger
}

// NewOrchestrator wires the control plane. The stages map must cover
// every ordinal in 1..9; the contract table is validated here so an
// ordering violation fails fast at startup.
func NewOrchestrator(cfg Config, store *Store, stages map[int]Stage, registry *llm.ModelRegistry, logger *slog.Logger) (*Orchestrator, error) {
	if err := ValidateSpecs(); err != nil {
		return nil, fmt.Errorf("stage contract table: %w", err)
	}
	for ordinal := 1; ordinal <= StageCount; ordinal++ {
		if _, ok := stages[ordinal]; !ok {
			return nil, fmt.Errorf("no implementation registered for stage %d", ordinal)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		stages:   stages,
		registry: registry,
		logger:   logger,
	}, nil
}

// RunStage executes one stage for a run and reports the next action.
//
// The returned error is non-nil when the attempt did not succeed; the
// NextAction is populated in either case so callers always know the
// follow-up command.
func (o *Orchestrator) RunStage(ctx context.Context, runID string, ordinal int, force bool) (*NextAction, error) {
	rec, err := o.store.Load(runID)
	if err != nil {
		return blockedAction(runID, ordinal, err.Error()), err
	}

	lock, err := AcquireRunLock(rec.RunDir(), runID)
	if err != nil {
		return blockedAction(runID, ordinal, err.Error()), err
	}
	defer lock.Release()

	return o.runStageLocked(ctx, rec, ordinal, force)
}

// RunFrom executes stages start..9 in order, stopping at the first
// failure. The run lock is held across the whole sweep. Scanner-only
// runs stop cleanly after discovery; the later stages need a model
// backend.
func (o *Orchestrator) RunFrom(ctx context.Context, runID string, start int, force bool) (*NextAction, error) {
	if start < 1 || start > StageCount {
		err := fmt.Errorf("%w: %d", ErrUnknownStage, start)
		return blockedAction(runID, start, err.Error()), err
	}
	end := StageCount
	if o.cfg.ScannerOnly {
		end = 1
		if start > end {
			err := fmt.Errorf("scanner-only mode: stage %d needs a model backend", start)
			return blockedAction(runID, start, err.Error()), err
		}
	}
	rec, err := o.store.Load(runID)
	if err != nil {
		return blockedAction(runID, start, err.Error()), err
	}

	lock, err := AcquireRunLock(rec.RunDir(), runID)
	if err != nil {
		return blockedAction(runID, start, err.Error()), err
	}
	defer lock.Release()

	action := &NextAction{Kind: NextComplete}
	for ordinal := start; ordinal <= end; ordinal++ {
		// Resume semantics: skip work that already succeeded instead of
		// failing the sweep on ErrStageCompleted.
		if rec.Status(ordinal) == StatusSucceeded && !force {
			continue
		}
		action, err = o.runStageLocked(ctx, rec, ordinal, force)
		if err != nil {
			return action, err
		}
	}
	if o.cfg.ScannerOnly {
		// Point at the first model-backed stage even when discovery was
		// skipped as already succeeded.
		action = o.nextAction(rec, end)
	}
	return action, nil
}

// RunAll executes the full pipeline from stage 1.
func (o *Orchestrator) RunAll(ctx context.Context, runID string) (*NextAction, error) {
	return o.RunFrom(ctx, runID, 1, false)
}

func (o *Orchestrator) runStageLocked(parent context.Context, rec *RunRecord, ordinal int, force bool) (*NextAction, error) {
	spec, err := Spec(ordinal)
	if err != nil {
		return blockedAction(rec.RunID, ordinal, err.Error()), err
	}

	ctx, span := tracer.Start(parent, "Orchestrator.RunStage")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", rec.RunID),
		attribute.Int("stage.ordinal", ordinal),
		attribute.String("stage.name", spec.Name),
	)

	// Completed-stage guard comes before prerequisite checks so the
	// caller gets the actionable message first.
	if rec.Status(ordinal) == StatusSucceeded && !force && !spec.Idempotent {
		err := fmt.Errorf("%w: stage %d (%s) for run %s (use --force to re-run)", ErrStageCompleted, ordinal, spec.Name, rec.RunID)
		return blockedAction(rec.RunID, ordinal, err.Error()), err
	}

	// Prerequisites must hold before any external call is attempted.
	if err := o.checkPrerequisites(rec, spec); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return blockedAction(rec.RunID, ordinal, err.Error()), err
	}

	attemptID := uuid.NewString()
	model := o.modelFor(spec)

	stageDir := filepath.Join(rec.RunDir(), spec.Dir())
	if err := os.MkdirAll(stageDir, 0755); err != nil {
		return blockedAction(rec.RunID, ordinal, err.Error()), fmt.Errorf("creating stage directory: %w", err)
	}

	inputs := o.resolveInputs(rec, spec)

	// Persist the running marker before invoking anything external.
	now := time.Now().UTC()
	st := rec.StageState(ordinal)
	st.Status = StatusRunning
	st.Reason = ""
	st.AttemptID = attemptID
	st.StartedAt = &now
	st.FinishedAt = nil
	if err := o.store.Save(rec); err != nil {
		return blockedAction(rec.RunID, ordinal, err.Error()), err
	}

	sc := &StageContext{
		RunID:       rec.RunID,
		CorpusRoot:  rec.CorpusRoot,
		RunDir:      rec.RunDir(),
		StageDir:    stageDir,
		Artifacts:   inputs,
		ScannerOnly: o.cfg.ScannerOnly,
		Logger:      o.logger.With("run_id", rec.RunID, "stage", spec.Name),
	}

	o.logger.Info("stage starting", "run_id", rec.RunID, "stage", ordinal, "name", spec.Name, "attempt_id", attemptID)

	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout.Std())
	start := time.Now()
	outputs, execErr := o.stages[ordinal].Execute(stageCtx, sc)
	duration := time.Since(start)
	cancel()

	entry := &AuditEntry{
		RunID:      rec.RunID,
		AttemptID:  attemptID,
		Stage:      ordinal,
		StageName:  spec.Name,
		Model:      model,
		Inputs:     auditRefs(inputs),
		DurationMS: duration.Milliseconds(),
	}

	finished := time.Now().UTC()
	st.FinishedAt = &finished

	if execErr != nil {
		reason := classifyFailure(stageCtx, execErr)
		st.Status = StatusFailed
		st.Reason = reason
		entry.Outcome = string(StatusFailed)
		entry.Reason = reason

		// Failure persistence order: state first, then audit. Nothing
		// about prior successful stages is touched.
		if err := o.store.Save(rec); err != nil {
			o.logger.Error("persisting failed stage state", "error", err)
		}
		o.appendAudit(rec, entry)

		span.RecordError(execErr)
		span.SetStatus(codes.Error, reason)
		o.logger.Error("stage failed", "run_id", rec.RunID, "stage", ordinal, "reason", reason, "duration_ms", duration.Milliseconds())

		action := blockedAction(rec.RunID, ordinal, fmt.Sprintf("stage %d (%s) failed: %s", ordinal, spec.Name, reason))
		return action, execErr
	}

	st.Status = StatusSucceeded
	st.Artifacts = outputs
	for kind, path := range outputs {
		rec.Artifacts[kind] = path
	}
	if err := o.store.Save(rec); err != nil {
		return blockedAction(rec.RunID, ordinal, err.Error()), err
	}

	entry.Outcome = string(StatusSucceeded)
	entry.Outputs = auditRefs(outputs)
	o.appendAudit(rec, entry)

	o.logger.Info("stage succeeded", "run_id", rec.RunID, "stage", ordinal, "name", spec.Name, "duration_ms", duration.Milliseconds())

	return o.nextAction(rec, ordinal), nil
}

// checkPrerequisites verifies every declared input is registered and
// present on disk.
func (o *Orchestrator) checkPrerequisites(rec *RunRecord, spec StageSpec) error {
	var missing []ArtifactKind
	for _, kind := range spec.RequiredInputs {
		if !rec.HasArtifact(kind) {
			missing = append(missing, kind)
		}
	}
	if len(missing) > 0 {
		return &PrerequisiteError{Ordinal: spec.Ordinal, Name: spec.Name, Missing: missing}
	}
	return nil
}

func (o *Orchestrator) resolveInputs(rec *RunRecord, spec StageSpec) map[ArtifactKind]string {
	inputs := make(map[ArtifactKind]string, len(spec.RequiredInputs))
	for _, kind := range spec.RequiredInputs {
		inputs[kind] = rec.Artifacts[kind]
	}
	return inputs
}

// modelFor resolves the stage's model for audit purposes. Scanner-only
// runs never touch a model; resolution errors surface when the stage
// actually asks for one.
func (o *Orchestrator) modelFor(spec StageSpec) string {
	if o.cfg.ScannerOnly || o.registry == nil {
		return ""
	}
	model, err := o.registry.ModelFor(spec.Name)
	if err != nil {
		return ""
	}
	return model
}

// nextAction scans ordinal+1..9 for the first stage that still needs to
// run and formats the exact follow-up command.
func (o *Orchestrator) nextAction(rec *RunRecord, ordinal int) *NextAction {
	for next := ordinal + 1; next <= StageCount; next++ {
		if rec.Status(next) != StatusSucceeded {
			return &NextAction{
				Kind:    NextStage,
				Ordinal: next,
				Command: resumeCommand(rec.RunID, next),
			}
		}
	}
	// A mid-pipeline re-run checks the earlier stages too before
	// declaring the run complete.
	for next := 1; next <= StageCount; next++ {
		if rec.Status(next) != StatusSucceeded {
			return &NextAction{
				Kind:    NextStage,
				Ordinal: next,
				Command: resumeCommand(rec.RunID, next),
			}
		}
	}
	return &NextAction{Kind: NextComplete}
}

func (o *Orchestrator) appendAudit(rec *RunRecord, entry *AuditEntry) {
	log, err := OpenAuditLog(rec.RunDir())
	if err != nil {
		o.logger.Error("opening audit log", "run_id", rec.RunID, "error", err)
		return
	}
	if err := log.Append(entry); err != nil {
		o.logger.Error("appending audit entry", "run_id", rec.RunID, "error", err)
	}
}

// auditRefs hashes artifacts for the audit trail. Hash failures degrade
// to an empty hash rather than failing the stage transition.
func auditRefs(artifacts map[ArtifactKind]string) []ArtifactRef {
	refs := make([]ArtifactRef, 0, len(artifacts))
	for kind, path := range artifacts {
		ref := ArtifactRef{Kind: kind, Path: path}
		if sum, err := HashArtifact(path); err == nil {
			ref.SHA256 = sum
		}
		refs = append(refs, ref)
	}
	sortRefs(refs)
	return refs
}

func sortRefs(refs []ArtifactRef) {
	for i := 1; i < len(refs); i++ {
		for j := i; j > 0 && refs[j].Kind < refs[j-1].Kind; j-- {
			refs[j], refs[j-1] = refs[j-1], refs[j]
		}
	}
}

// classifyFailure maps a stage error to the persisted failure reason.
// A timeout means the remote outcome is unknown; the stage is marked
// failed and nothing is retried automatically.
func classifyFailure(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, llm.ErrTimeout), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout: " + err.Error()
	case errors.Is(err, ErrMalformedOutput):
		return "malformed-output: " + err.Error()
	case errors.Is(err, llm.ErrUnavailable):
		return "backend-unavailable: " + err.Error()
	default:
		return err.Error()
	}
}

// resumeCommand is the exact CLI invocation that resumes a run at a
// stage.
func resumeCommand(runID string, ordinal int) string {
	return fmt.Sprintf("cobalt run --run-id %s --stage %d", runID, ordinal)
}

func blockedAction(runID string, ordinal int, reason string) *NextAction {
	return &NextAction{
		Kind:    NextBlocked,
		Ordinal: ordinal,
		Reason:  reason,
		Command: resumeCommand(runID, ordinal),
	}
}
