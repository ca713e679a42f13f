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

// pseudocodeArtifact mirrors the document sections line by line so the
// JSON form never drifts from the narrative.
type pseudocodeArtifact struct {
	MainFlow            []string `json:"main_flow"`
	ControlFlow         []string `json:"control_flow"`
	DataTransformations []string `json:"data_transformations"`
}

type pseudocodeStage struct {
	deps
}

func (s *pseudocodeStage) Spec() pipeline.StageSpec {
	spec, _ := pipeline.Spec(5)
	return spec
}

var pseudocodeSections = []string{
	"Main Flow",
	"Control Flow",
	"Data Transformations",
}

func (s *pseudocodeStage) Execute(ctx context.Context, sc *pipeline.StageContext) (map[pipeline.ArtifactKind]string, error) {
	businessDoc, err := report.ReadText(sc.InputPath(pipeline.KindBusinessDoc))
	if err != nil {
		return nil, err
	}
	techDoc, err := report.ReadText(sc.InputPath(pipeline.KindTechDoc))
	if err != nil {
		return nil, err
	}

	prompt := pseudocodePrompt(s.language) +
		"\n\n--- Business Logic ---\n" + businessDoc +
		"\n\n--- Technical Design ---\n" + techDoc

	response, err := s.generate(ctx, pipeline.StagePseudocode, prompt)
	if err != nil {
		return nil, err
	}
	sections, err := requireSections(pipeline.StagePseudocode, response, pseudocodeSections)
	if err != nil {
		return nil, err
	}

	docPath := filepath.Join(sc.StageDir, string(pipeline.KindPseudocodeDoc))
	if err := report.WriteMarkdown(docPath, "Pseudocode (Language-Neutral)", sections); err != nil {
		return nil, err
	}

	artifact := pseudocodeArtifact{
		MainFlow:            sectionLines(sections, "Main Flow"),
		ControlFlow:         sectionLines(sections, "Control Flow"),
		DataTransformations: sectionLines(sections, "Data Transformations"),
	}
	jsonPath := filepath.Join(sc.StageDir, string(pipeline.KindPseudocode))
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding pseudocode: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return nil, fmt.Errorf("writing pseudocode: %w", err)
	}

	return map[pipeline.ArtifactKind]string{
		pipeline.KindPseudocodeDoc: docPath,
		pipeline.KindPseudocode:    jsonPath,
	}, nil
}

// sectionLines returns a section's non-empty lines.
func sectionLines(sections []report.Section, title string) []string {
	for _, s := range sections {
		if s.Title != title {
			continue
		}
		var lines []string
		for _, line := range strings.Split(s.Body, "\n") {
			if strings.TrimSpace(line) != "" {
				lines = append(lines, strings.TrimRight(line, " \t"))
			}
		}
		return lines
	}
	return nil
}
