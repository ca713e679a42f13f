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
)

// technicalAnalysis is the machine-readable stage 4 artifact.
type technicalAnalysis struct {
	FilePatterns      []filePattern   `json:"file_patterns"`
	Loops             []loopBehavior  `json:"loops"`
	CursorLogic       []programDetail `json:"cursor_logic"`
	ErrorHandling     []errorHandling `json:"error_handling"`
	RestartCheckpoint []programDetail `json:"restart_checkpoint"`
}

type filePattern struct {
	Program        string `json:"program"`
	FileOrResource string `json:"file_or_resource"`
	Operation      string `json:"operation"`
	Description    string `json:"description"`
}

type loopBehavior struct {
	Program       string `json:"program"`
	Type          string `json:"type"`
	ExitCondition string `json:"exit_condition"`
	Description   string `json:"description"`
}

type programDetail struct {
	Program     string `json:"program"`
	Description string `json:"description"`
}

type errorHandling struct {
	Program     string `json:"program"`
	Mechanism   string `json:"mechanism"`
	Description string `json:"description"`
}

type technicalAnalysisStage struct {
	deps
}

func (s *technicalAnalysisStage) Spec() pipeline.StageSpec {
	spec, _ := pipeline.Spec(4)
	return spec
}

var technicalSections = []string{
	"File and I/O Patterns",
	"Looping Behavior",
	"Cursor and Position Logic",
	"Error Handling",
	"Restart and Checkpoint Logic",
}

func (s *technicalAnalysisStage) Execute(ctx context.Context, sc *pipeline.StageContext) (map[pipeline.ArtifactKind]string, error) {
	businessDoc, err := report.ReadText(sc.InputPath(pipeline.KindBusinessDoc))
	if err != nil {
		return nil, err
	}
	files, err := loadSources(sc.CorpusRoot)
	if err != nil {
		return nil, err
	}

	prompt := technicalPrompt +
		"\n\n--- Business Logic ---\n" + businessDoc +
		"\n\n--- COBOL Source ---\n" + combineSources(files, 35000, 35000)

	response, err := s.generate(ctx, pipeline.StageTechnicalAnalysis, prompt)
	if err != nil {
		return nil, err
	}
	sections, err := requireSections(pipeline.StageTechnicalAnalysis, response, technicalSections)
	if err != nil {
		return nil, err
	}
	var tech technicalAnalysis
	if err := parseJSONBlock(pipeline.StageTechnicalAnalysis, response, &tech); err != nil {
		return nil, err
	}

	// The document carries a structured summary that exactly mirrors the
	// JSON artifact so later stages can use either form.
	sections = append(sections, report.Section{
		Title: "Structured Summary",
		Body:  structuredSummary(tech),
	})

	docPath := filepath.Join(sc.StageDir, string(pipeline.KindTechDoc))
	if err := report.WriteMarkdown(docPath, "Technical Design (COBOL)", sections); err != nil {
		return nil, err
	}
	jsonPath := filepath.Join(sc.StageDir, string(pipeline.KindTechAnalysis))
	data, err := json.MarshalIndent(tech, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding technical analysis: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return nil, fmt.Errorf("writing technical analysis: %w", err)
	}

	return map[pipeline.ArtifactKind]string{
		pipeline.KindTechDoc:      docPath,
		pipeline.KindTechAnalysis: jsonPath,
	}, nil
}

func structuredSummary(tech technicalAnalysis) string {
	var lines []string
	if len(tech.FilePatterns) > 0 {
		lines = append(lines, "File and I/O patterns:")
		for _, f := range tech.FilePatterns {
			lines = append(lines, fmt.Sprintf("  Program: %s; File: %s; Operation: %s. %s", f.Program, f.FileOrResource, f.Operation, f.Description))
		}
		lines = append(lines, "")
	}
	if len(tech.Loops) > 0 {
		lines = append(lines, "Looping behavior:")
		for _, l := range tech.Loops {
			lines = append(lines, fmt.Sprintf("  Program: %s; Type: %s; Exit: %s. %s", l.Program, l.Type, l.ExitCondition, l.Description))
		}
		lines = append(lines, "")
	}
	if len(tech.CursorLogic) > 0 {
		lines = append(lines, "Cursor/position logic:")
		for _, c := range tech.CursorLogic {
			lines = append(lines, fmt.Sprintf("  %s: %s", c.Program, c.Description))
		}
		lines = append(lines, "")
	}
	if len(tech.ErrorHandling) > 0 {
		lines = append(lines, "Error handling:")
		for _, e := range tech.ErrorHandling {
			lines = append(lines, fmt.Sprintf("  %s; Mechanism: %s. %s", e.Program, e.Mechanism, e.Description))
		}
		lines = append(lines, "")
	}
	if len(tech.RestartCheckpoint) > 0 {
		lines = append(lines, "Restart/checkpoint logic:")
		for _, r := range tech.RestartCheckpoint {
			lines = append(lines, fmt.Sprintf("  %s: %s", r.Program, r.Description))
		}
	}
	if len(lines) == 0 {
		return "No structured technical data extracted; see the narrative sections above."
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
