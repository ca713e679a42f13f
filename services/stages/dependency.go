// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AleutianAI/cobalt/services/pipeline"
	"github.com/AleutianAI/cobalt/services/report"
	"github.com/AleutianAI/cobalt/services/scanner"
)

// dependencyGraph is the machine-readable stage 2 artifact. The graph
// itself comes from the scan; only the narrative document involves the
// model.
type dependencyGraph struct {
	CallHierarchy   []scanner.CallLinkage    `json:"call_hierarchy"`
	SharedCopybooks []scanner.SharedCopybook `json:"shared_copybooks"`
	MigrationOrder  []scanner.MigrationStep  `json:"migration_order"`
	DataFlowSummary string                   `json:"data_flow_summary"`
}

type dependencyGraphStage struct {
	deps
}

func (s *dependencyGraphStage) Spec() pipeline.StageSpec {
	spec, _ := pipeline.Spec(2)
	return spec
}

var dependencySections = []string{
	"Call Hierarchy",
	"Shared Components",
	"Data Flow Summary",
	"Migration Order Recommendation",
}

func (s *dependencyGraphStage) Execute(ctx context.Context, sc *pipeline.StageContext) (map[pipeline.ArtifactKind]string, error) {
	var discovery scanner.Discovery
	if err := readJSON(sc.InputPath(pipeline.KindDiscovery), &discovery); err != nil {
		return nil, err
	}
	overview, err := report.ReadText(sc.InputPath(pipeline.KindOverviewDoc))
	if err != nil {
		return nil, err
	}

	result, err := s.scan.Scan(ctx, sc.CorpusRoot)
	if err != nil {
		return nil, fmt.Errorf("scanning corpus: %w", err)
	}

	graph := dependencyGraph{
		CallHierarchy:   discovery.CallLinkages,
		SharedCopybooks: scanner.SharedCopybooks(result),
		MigrationOrder:  scanner.MigrationOrder(discovery),
		DataFlowSummary: "See the dependency document for the narrative; structure derived from the call hierarchy and shared copybooks.",
	}
	graphJSON, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding dependency graph: %w", err)
	}

	files, err := loadSources(sc.CorpusRoot)
	if err != nil {
		return nil, err
	}
	prompt := dependencyPrompt +
		"\n\n--- Overview ---\n" + overview +
		"\n\n--- Call linkage data (use this for accuracy) ---\n" + truncate(string(graphJSON), 8000) +
		"\n\n--- Source ---\n" + combineSources(files, 4000, 25000)

	response, err := s.generate(ctx, pipeline.StageDependencyGraph, prompt)
	if err != nil {
		return nil, err
	}
	sections, err := requireSections(pipeline.StageDependencyGraph, response, dependencySections)
	if err != nil {
		return nil, err
	}

	docPath := filepath.Join(sc.StageDir, string(pipeline.KindDepGraphDoc))
	if err := report.WriteMarkdown(docPath, "Dependency and Call Graph", sections); err != nil {
		return nil, err
	}
	graphPath := filepath.Join(sc.StageDir, string(pipeline.KindDepGraph))
	if err := os.WriteFile(graphPath, graphJSON, 0644); err != nil {
		return nil, fmt.Errorf("writing dependency graph: %w", err)
	}

	return map[pipeline.ArtifactKind]string{
		pipeline.KindDepGraphDoc: docPath,
		pipeline.KindDepGraph:    graphPath,
	}, nil
}

// readJSON loads a JSON artifact produced by an earlier stage.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
