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
)

// targetDesign mirrors the design document sections for machine use.
type targetDesign struct {
	Language  string   `json:"language"`
	Packages  []string `json:"packages"`
	DataTypes []string `json:"data_types"`
	Services  []string `json:"services"`
	Mapping   []string `json:"mapping"`
}

type targetDesignStage struct {
	deps
}

func (s *targetDesignStage) Spec() pipeline.StageSpec {
	spec, _ := pipeline.Spec(6)
	return spec
}

var designSections = []string{
	"Package Structure",
	"Data Types",
	"Services",
	"COBOL Mapping",
}

func (s *targetDesignStage) Execute(ctx context.Context, sc *pipeline.StageContext) (map[pipeline.ArtifactKind]string, error) {
	pseudoDoc, err := report.ReadText(sc.InputPath(pipeline.KindPseudocodeDoc))
	if err != nil {
		return nil, err
	}

	prompt := targetDesignPrompt(s.language) + "\n\n--- Pseudocode ---\n" + pseudoDoc
	response, err := s.generate(ctx, pipeline.StageTargetDesign, prompt)
	if err != nil {
		return nil, err
	}
	sections, err := requireSections(pipeline.StageTargetDesign, response, designSections)
	if err != nil {
		return nil, err
	}

	docPath := filepath.Join(sc.StageDir, string(pipeline.KindDesignDoc))
	title := s.language.Name + " Design Specification"
	if err := report.WriteMarkdown(docPath, title, sections); err != nil {
		return nil, err
	}

	design := targetDesign{
		Language:  s.language.Name,
		Packages:  sectionLines(sections, "Package Structure"),
		DataTypes: sectionLines(sections, "Data Types"),
		Services:  sectionLines(sections, "Services"),
		Mapping:   sectionLines(sections, "COBOL Mapping"),
	}
	jsonPath := filepath.Join(sc.StageDir, string(pipeline.KindDesign))
	data, err := json.MarshalIndent(design, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding target design: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return nil, fmt.Errorf("writing target design: %w", err)
	}

	return map[pipeline.ArtifactKind]string{
		pipeline.KindDesignDoc: docPath,
		pipeline.KindDesign:    jsonPath,
	}, nil
}
