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
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AleutianAI/cobalt/services/pipeline"
	"github.com/AleutianAI/cobalt/services/report"
)

var fileBlockPattern = regexp.MustCompile(`(?s)---FILE:\s*([^\n-]+)---\s*(.*?)---END FILE---`)

// targetCodeStage writes the generated source tree. The model sees only
// pseudocode and the design document, never the legacy source.
type targetCodeStage struct {
	deps
}

func (s *targetCodeStage) Spec() pipeline.StageSpec {
	spec, _ := pipeline.Spec(7)
	return spec
}

func (s *targetCodeStage) Execute(ctx context.Context, sc *pipeline.StageContext) (map[pipeline.ArtifactKind]string, error) {
	pseudoDoc, err := report.ReadText(sc.InputPath(pipeline.KindPseudocodeDoc))
	if err != nil {
		return nil, err
	}
	designDoc, err := report.ReadText(sc.InputPath(pipeline.KindDesignDoc))
	if err != nil {
		return nil, err
	}

	prompt := targetCodePrompt(s.language) +
		"\n\n--- Pseudocode ---\n" + pseudoDoc +
		"\n\n--- Design ---\n" + designDoc

	response, err := s.generate(ctx, pipeline.StageTargetCode, prompt)
	if err != nil {
		return nil, err
	}

	blocks := fileBlockPattern.FindAllStringSubmatch(response, -1)
	if len(blocks) == 0 {
		return nil, &pipeline.MalformedOutputError{
			Stage:  pipeline.StageTargetCode,
			Detail: "no file blocks in response",
		}
	}

	srcRoot := filepath.Join(sc.StageDir, "src")
	written := 0
	for _, block := range blocks {
		rel, err := sanitizeSourcePath(strings.TrimSpace(block[1]), s.language.Ext)
		if err != nil {
			return nil, &pipeline.MalformedOutputError{Stage: pipeline.StageTargetCode, Detail: err.Error()}
		}
		code := strings.TrimSpace(block[2])
		if code == "" {
			return nil, &pipeline.MalformedOutputError{Stage: pipeline.StageTargetCode, Detail: "empty file block: " + rel}
		}
		full := filepath.Join(srcRoot, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return nil, fmt.Errorf("creating source directory: %w", err)
		}
		if err := os.WriteFile(full, []byte(code+"\n"), 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", rel, err)
		}
		written++
	}

	sc.Logger.Info("target source generated", "files", written, "language", s.language.Name)

	return map[pipeline.ArtifactKind]string{
		pipeline.KindTargetSource: srcRoot,
	}, nil
}

// sanitizeSourcePath normalizes a model-supplied path and confines it to
// the stage's source tree.
func sanitizeSourcePath(p, ext string) (string, error) {
	p = filepath.ToSlash(p)
	if p == "" {
		return "", fmt.Errorf("empty file path in file block")
	}
	if !strings.HasSuffix(p, ext) {
		p = strings.TrimRight(p, "/") + ext
	}
	clean := filepath.ToSlash(filepath.Clean(p))
	if strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("file block path escapes the source tree: %s", p)
	}
	return clean, nil
}
