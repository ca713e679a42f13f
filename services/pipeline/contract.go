// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline is the control plane of the modernization pipeline:
// stage contracts, durable run state, the append-only audit log, and the
// orchestrator that sequences the nine stages.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// ArtifactKind identifies one kind of stage input or output. Kinds that
// name files double as the on-disk file name inside the stage directory.
type ArtifactKind string

// Artifact kinds. KindCobolSource is a pseudo-artifact bound to the
// corpus root when a run is created; KindTargetSource is a directory.
const (
	KindCobolSource     ArtifactKind = "cobol_source"
	KindInventory       ArtifactKind = "inventory.txt"
	KindOverviewDoc     ArtifactKind = "01_codebase_overview.md"
	KindDiscovery       ArtifactKind = "discovery.json"
	KindDepGraphDoc     ArtifactKind = "02_dependency_call_graph.md"
	KindDepGraph        ArtifactKind = "dependency_graph.json"
	KindBusinessDoc     ArtifactKind = "03_business_logic_specification.md"
	KindBusinessRules   ArtifactKind = "business_rules.json"
	KindTechDoc         ArtifactKind = "04_technical_design_cobol.md"
	KindTechAnalysis    ArtifactKind = "technical_analysis.json"
	KindPseudocodeDoc   ArtifactKind = "05_pseudocode.md"
	KindPseudocode      ArtifactKind = "pseudocode.json"
	KindDesignDoc       ArtifactKind = "06_target_design_specification.md"
	KindDesign          ArtifactKind = "target_design.json"
	KindTargetSource    ArtifactKind = "target_source_dir"
	KindParityDoc       ArtifactKind = "08_parity_validation_report.md"
	KindConsolidatedDoc ArtifactKind = "07_target_design_consolidated.md"
)

// Stage names, also the model-registry keys.
const (
	StageDiscovery         = "discovery"
	StageDependencyGraph   = "dependency_graph"
	StageBusinessLogic     = "business_logic"
	StageTechnicalAnalysis = "technical_analysis"
	StagePseudocode        = "pseudocode"
	StageTargetDesign      = "target_design"
	StageTargetCode        = "target_code"
	StageValidation        = "validation"
	StageDocumentation     = "documentation"
)

// StageCount is the fixed pipeline length.
const StageCount = 9

// StageSpec declares one stage's position and artifact contract.
//
// Stages form a strict total order: every required input other than the
// corpus itself must be produced by a stage with a lower ordinal. This
// is a standing invariant checked by ValidateSpecs, not a convention.
type StageSpec struct {
	Ordinal        int
	Name           string
	RequiredInputs []ArtifactKind
	Outputs        []ArtifactKind

	// Idempotent marks stages safe to re-run with identical inputs
	// without --force. Only the parser-driven discovery path qualifies;
	// model-backed stages do not.
	Idempotent bool
}

// Dir returns the stage's directory name inside the run directory.
func (s StageSpec) Dir() string {
	return fmt.Sprintf("%02d_%s", s.Ordinal, s.Name)
}

var stageSpecs = [StageCount]StageSpec{
	{
		Ordinal:        1,
		Name:           StageDiscovery,
		RequiredInputs: []ArtifactKind{KindCobolSource},
		Outputs:        []ArtifactKind{KindOverviewDoc, KindDiscovery, KindInventory},
		Idempotent:     true,
	},
	{
		Ordinal:        2,
		Name:           StageDependencyGraph,
		RequiredInputs: []ArtifactKind{KindCobolSource, KindOverviewDoc, KindDiscovery},
		Outputs:        []ArtifactKind{KindDepGraphDoc, KindDepGraph},
	},
	{
		Ordinal:        3,
		Name:           StageBusinessLogic,
		RequiredInputs: []ArtifactKind{KindCobolSource, KindOverviewDoc, KindDepGraphDoc, KindDepGraph},
		Outputs:        []ArtifactKind{KindBusinessDoc, KindBusinessRules},
	},
	{
		Ordinal:        4,
		Name:           StageTechnicalAnalysis,
		RequiredInputs: []ArtifactKind{KindCobolSource, KindBusinessDoc},
		Outputs:        []ArtifactKind{KindTechDoc, KindTechAnalysis},
	},
	{
		Ordinal:        5,
		Name:           StagePseudocode,
		RequiredInputs: []ArtifactKind{KindBusinessDoc, KindTechDoc},
		Outputs:        []ArtifactKind{KindPseudocodeDoc, KindPseudocode},
	},
	{
		Ordinal:        6,
		Name:           StageTargetDesign,
		RequiredInputs: []ArtifactKind{KindPseudocodeDoc},
		Outputs:        []ArtifactKind{KindDesignDoc, KindDesign},
	},
	{
		Ordinal:        7,
		Name:           StageTargetCode,
		RequiredInputs: []ArtifactKind{KindPseudocodeDoc, KindDesignDoc},
		Outputs:        []ArtifactKind{KindTargetSource},
	},
	{
		Ordinal:        8,
		Name:           StageValidation,
		RequiredInputs: []ArtifactKind{KindBusinessDoc, KindTargetSource},
		Outputs:        []ArtifactKind{KindParityDoc},
	},
	{
		Ordinal:        9,
		Name:           StageDocumentation,
		RequiredInputs: []ArtifactKind{
			KindOverviewDoc, KindDepGraphDoc, KindBusinessDoc, KindTechDoc,
			KindPseudocodeDoc, KindDesignDoc, KindParityDoc,
		},
		Outputs: []ArtifactKind{KindConsolidatedDoc},
	},
}

// Spec returns the declaration for an ordinal in 1..9.
func Spec(ordinal int) (StageSpec, error) {
	if ordinal < 1 || ordinal > StageCount {
		return StageSpec{}, fmt.Errorf("%w: %d", ErrUnknownStage, ordinal)
	}
	return stageSpecs[ordinal-1], nil
}

// Specs returns all stage declarations in ordinal order.
func Specs() []StageSpec {
	out := make([]StageSpec, StageCount)
	copy(out, stageSpecs[:])
	return out
}

// ValidateSpecs enforces the ordering invariant: every declared input is
// either the corpus or the output of a lower-ordinal stage. Called at
// startup; a violation is a programming error in the contract table.
func ValidateSpecs() error {
	produced := map[ArtifactKind]int{KindCobolSource: 0}
	for _, spec := range stageSpecs {
		for _, input := range spec.RequiredInputs {
			by, ok := produced[input]
			if !ok {
				return fmt.Errorf("stage %d (%s): input %q is not produced by any earlier stage", spec.Ordinal, spec.Name, input)
			}
			if by >= spec.Ordinal {
				return fmt.Errorf("stage %d (%s): input %q produced by stage %d violates ordering", spec.Ordinal, spec.Name, input, by)
			}
		}
		for _, output := range spec.Outputs {
			if prev, ok := produced[output]; ok {
				return fmt.Errorf("stage %d (%s): output %q already produced by stage %d", spec.Ordinal, spec.Name, output, prev)
			}
			produced[output] = spec.Ordinal
		}
	}
	return nil
}

// StageContext carries one stage invocation's resolved inputs. Stages
// are pure with respect to run state: they read artifacts, write files
// under StageDir, and return produced artifacts. All state transitions
// belong to the Orchestrator.
type StageContext struct {
	RunID      string
	CorpusRoot string
	RunDir     string
	StageDir   string

	// Artifacts maps every declared input kind to its resolved path.
	// The Orchestrator validates availability before invocation.
	Artifacts map[ArtifactKind]string

	// ScannerOnly bypasses model calls where a stage supports it.
	ScannerOnly bool

	Logger *slog.Logger
}

// InputPath resolves a declared input's path.
func (c *StageContext) InputPath(kind ArtifactKind) string {
	return c.Artifacts[kind]
}

// Stage is the shared contract all nine stage variants implement.
type Stage interface {
	Spec() StageSpec
	Execute(ctx context.Context, sc *StageContext) (map[ArtifactKind]string, error)
}
