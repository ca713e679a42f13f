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
	"path/filepath"
	"strings"

	"github.com/AleutianAI/cobalt/services/pipeline"
	"github.com/AleutianAI/cobalt/services/report"
)

// documentationStage consolidates every prior document into the final
// maintainer-facing design document.
type documentationStage struct {
	deps
}

func (s *documentationStage) Spec() pipeline.StageSpec {
	spec, _ := pipeline.Spec(9)
	return spec
}

var consolidationInputs = []pipeline.ArtifactKind{
	pipeline.KindOverviewDoc,
	pipeline.KindDepGraphDoc,
	pipeline.KindBusinessDoc,
	pipeline.KindTechDoc,
	pipeline.KindPseudocodeDoc,
	pipeline.KindDesignDoc,
	pipeline.KindParityDoc,
}

func (s *documentationStage) Execute(ctx context.Context, sc *pipeline.StageContext) (map[pipeline.ArtifactKind]string, error) {
	var parts []string
	for _, kind := range consolidationInputs {
		text, err := report.ReadText(sc.InputPath(kind))
		if err != nil {
			return nil, err
		}
		if text != "" {
			parts = append(parts, "--- "+string(kind)+" ---\n"+text)
		}
	}
	combined := truncate(strings.Join(parts, "\n\n"), 60000)

	prompt := documentationPrompt(s.language) + "\n\n" + combined
	response, err := s.generate(ctx, pipeline.StageDocumentation, prompt)
	if err != nil {
		return nil, err
	}

	// The consolidated document has no fixed section list; the model
	// chooses the structure. An empty parse still fails the stage.
	sections := parseSections(response)
	if len(sections) == 0 {
		return nil, &pipeline.MalformedOutputError{
			Stage:  pipeline.StageDocumentation,
			Detail: "no sections in response",
		}
	}

	docPath := filepath.Join(sc.StageDir, string(pipeline.KindConsolidatedDoc))
	title := s.language.Name + " Business and Technical Design"
	if err := report.WriteMarkdown(docPath, title, sections); err != nil {
		return nil, err
	}
	return map[pipeline.ArtifactKind]string{
		pipeline.KindConsolidatedDoc: docPath,
	}, nil
}
