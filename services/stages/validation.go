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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/cobalt/services/pipeline"
	"github.com/AleutianAI/cobalt/services/report"
)

type validationStage struct {
	deps
}

func (s *validationStage) Spec() pipeline.StageSpec {
	spec, _ := pipeline.Spec(8)
	return spec
}

var validationSections = []string{
	"Rule-by-Rule Comparison",
	"Deviations",
	"Risk Flags",
}

func (s *validationStage) Execute(ctx context.Context, sc *pipeline.StageContext) (map[pipeline.ArtifactKind]string, error) {
	businessDoc, err := report.ReadText(sc.InputPath(pipeline.KindBusinessDoc))
	if err != nil {
		return nil, err
	}
	source, err := readGeneratedSource(sc.InputPath(pipeline.KindTargetSource), s.language.Ext)
	if err != nil {
		return nil, err
	}

	prompt := validationPrompt(s.language) +
		"\n\n--- Business Logic ---\n" + businessDoc +
		"\n\n--- " + s.language.Name + " Source ---\n" + truncate(source, 30000)

	response, err := s.generate(ctx, pipeline.StageValidation, prompt)
	if err != nil {
		return nil, err
	}
	sections, err := requireSections(pipeline.StageValidation, response, validationSections)
	if err != nil {
		return nil, err
	}

	docPath := filepath.Join(sc.StageDir, string(pipeline.KindParityDoc))
	if err := report.WriteMarkdown(docPath, "Parity and Validation Report", sections); err != nil {
		return nil, err
	}
	return map[pipeline.ArtifactKind]string{
		pipeline.KindParityDoc: docPath,
	}, nil
}

// readGeneratedSource concatenates the generated tree's source files as
// delimited blocks, path-sorted.
func readGeneratedSource(root, ext string) (string, error) {
	var parts []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || !strings.HasSuffix(path, ext) {
			return walkErr
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		parts = append(parts, fmt.Sprintf("--- %s ---\n%s", filepath.ToSlash(rel), string(data)))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reading generated source: %w", err)
	}
	return strings.Join(parts, "\n\n"), nil
}
