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
	"strings"

	"github.com/AleutianAI/cobalt/services/pipeline"
	"github.com/AleutianAI/cobalt/services/report"
	"github.com/AleutianAI/cobalt/services/scanner"
)

// discoveryStage is the only parser-driven stage. The scan is the single
// source of truth for programs, copybooks, called programs, and call
// linkages; the model is consulted only for the three narrative
// classification fields, and never in scanner-only mode.
type discoveryStage struct {
	deps
}

func (s *discoveryStage) Spec() pipeline.StageSpec {
	spec, _ := pipeline.Spec(1)
	return spec
}

func (s *discoveryStage) Execute(ctx context.Context, sc *pipeline.StageContext) (map[pipeline.ArtifactKind]string, error) {
	result, err := s.scan.Scan(ctx, sc.CorpusRoot)
	if err != nil {
		return nil, fmt.Errorf("scanning corpus: %w", err)
	}
	for _, w := range result.Warnings {
		sc.Logger.Warn("scan warning", "path", w.Path, "message", w.Message)
	}

	inventory := scanner.BuildInventory(result.Units, s.budget)
	inventoryPath := filepath.Join(sc.StageDir, string(pipeline.KindInventory))
	if err := os.WriteFile(inventoryPath, []byte(inventory), 0644); err != nil {
		return nil, fmt.Errorf("writing inventory: %w", err)
	}

	class := scanner.ClassifyHeuristically(result)
	if !sc.ScannerOnly {
		class = s.classify(ctx, sc, inventory, class)
	}

	discovery := scanner.BuildDiscovery(result, class, sc.ScannerOnly)
	discoveryPath := filepath.Join(sc.StageDir, string(pipeline.KindDiscovery))
	data, err := json.MarshalIndent(discovery, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding discovery: %w", err)
	}
	if err := os.WriteFile(discoveryPath, data, 0644); err != nil {
		return nil, fmt.Errorf("writing discovery: %w", err)
	}

	overviewPath := filepath.Join(sc.StageDir, string(pipeline.KindOverviewDoc))
	if err := report.WriteMarkdown(overviewPath, "COBOL Codebase Overview", overviewSections(discovery)); err != nil {
		return nil, err
	}

	sc.Logger.Info("discovery complete",
		"programs", len(discovery.Programs),
		"copybooks", len(discovery.Copybooks),
		"called", len(discovery.CalledPrograms),
		"linkages", len(discovery.CallLinkages))

	return map[pipeline.ArtifactKind]string{
		pipeline.KindInventory:   inventoryPath,
		pipeline.KindDiscovery:   discoveryPath,
		pipeline.KindOverviewDoc: overviewPath,
	}, nil
}

// classify asks the model for the three narrative fields. A backend
// failure degrades to the heuristic answer with a warning rather than
// failing the stage.
func (s *discoveryStage) classify(ctx context.Context, sc *pipeline.StageContext, inventory string, fallback scanner.Classification) scanner.Classification {
	prompt := classificationPrompt + truncate(inventory, s.budget)
	response, err := s.generate(ctx, pipeline.StageDiscovery, prompt)
	if err != nil {
		sc.Logger.Warn("classification call failed, keeping heuristic answer", "error", err)
		return fallback
	}
	return parseClassification(response, fallback)
}

// parseClassification extracts the three expected lines. Absent or empty
// lines keep the fallback value.
func parseClassification(response string, fallback scanner.Classification) scanner.Classification {
	out := fallback
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "BATCH_OR_CICS:"):
			if v := lineValue(line); v != "" {
				out.BatchOrCICS = v
			}
		case strings.HasPrefix(upper, "IO_FILES:"):
			if v := lineValue(line); v != "" {
				out.IOFiles = v
			}
		case strings.HasPrefix(upper, "DB_TABLES:"):
			if v := lineValue(line); v != "" {
				out.DBTables = v
			}
		}
	}
	return out
}

func lineValue(line string) string {
	_, after, ok := strings.Cut(line, ":")
	if !ok {
		return ""
	}
	return strings.TrimSpace(after)
}

func overviewSections(d scanner.Discovery) []report.Section {
	return []report.Section{
		{Title: "Programs", Body: listPrograms(d.Programs)},
		{Title: "Batch vs CICS", Body: d.BatchOrCICS},
		{Title: "Copybooks Used", Body: bulletList(d.Copybooks)},
		{Title: "Input/Output Files", Body: d.IOFiles},
		{Title: "Database Tables", Body: d.DBTables},
		{Title: "Called Programs", Body: bulletList(d.CalledPrograms)},
		{Title: "Call Linkages", Body: listLinkages(d.CallLinkages)},
	}
}

func listPrograms(programs []scanner.Program) string {
	if len(programs) == 0 {
		return "None."
	}
	lines := make([]string, 0, len(programs))
	for _, p := range programs {
		lines = append(lines, fmt.Sprintf("- %s (%s)", p.Name, p.Path))
	}
	return strings.Join(lines, "\n")
}

func listLinkages(linkages []scanner.CallLinkage) string {
	if len(linkages) == 0 {
		return "None."
	}
	lines := make([]string, 0, len(linkages))
	for _, l := range linkages {
		lines = append(lines, fmt.Sprintf("- %s calls %s", l.From, l.To))
	}
	return strings.Join(lines, "\n")
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "None."
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}
