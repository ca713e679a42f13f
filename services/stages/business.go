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

// businessRules is the machine-readable stage 3 artifact, decoded from
// the JSON block the model appends after the narrative.
type businessRules struct {
	Rules         []businessRule `json:"rules"`
	DecisionLogic []decision     `json:"decision_logic"`
	DomainTerms   []domainTerm   `json:"domain_terms"`
	EdgeCases     []edgeCase     `json:"edge_cases"`
}

type businessRule struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type decision struct {
	Condition string `json:"condition"`
	Outcome   string `json:"outcome"`
}

type domainTerm struct {
	Term    string `json:"term"`
	Meaning string `json:"meaning"`
}

type edgeCase struct {
	Description string `json:"description"`
	Example     string `json:"example"`
}

type businessLogicStage struct {
	deps
}

func (s *businessLogicStage) Spec() pipeline.StageSpec {
	spec, _ := pipeline.Spec(3)
	return spec
}

var businessSections = []string{
	"Business Rules",
	"Decision Logic",
	"Domain Explanations",
	"Edge Cases",
}

func (s *businessLogicStage) Execute(ctx context.Context, sc *pipeline.StageContext) (map[pipeline.ArtifactKind]string, error) {
	overview, err := report.ReadText(sc.InputPath(pipeline.KindOverviewDoc))
	if err != nil {
		return nil, err
	}
	depDoc, err := report.ReadText(sc.InputPath(pipeline.KindDepGraphDoc))
	if err != nil {
		return nil, err
	}
	depJSON, err := report.ReadText(sc.InputPath(pipeline.KindDepGraph))
	if err != nil {
		return nil, err
	}
	files, err := loadSources(sc.CorpusRoot)
	if err != nil {
		return nil, err
	}

	prompt := businessLogicPrompt +
		"\n\n--- Overview ---\n" + overview +
		"\n\n--- Dependency ---\n" + depDoc +
		"\n\n--- Dependency JSON ---\n" + truncate(depJSON, 6000) +
		"\n\n--- Source (excerpts) ---\n" + combineSources(files, 2000, 20000)

	response, err := s.generate(ctx, pipeline.StageBusinessLogic, prompt)
	if err != nil {
		return nil, err
	}
	sections, err := requireSections(pipeline.StageBusinessLogic, response, businessSections)
	if err != nil {
		return nil, err
	}
	var rules businessRules
	if err := parseJSONBlock(pipeline.StageBusinessLogic, response, &rules); err != nil {
		return nil, err
	}

	docPath := filepath.Join(sc.StageDir, string(pipeline.KindBusinessDoc))
	if err := report.WriteMarkdown(docPath, "Business Logic Specification", sections); err != nil {
		return nil, err
	}
	rulesPath := filepath.Join(sc.StageDir, string(pipeline.KindBusinessRules))
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding business rules: %w", err)
	}
	if err := os.WriteFile(rulesPath, data, 0644); err != nil {
		return nil, fmt.Errorf("writing business rules: %w", err)
	}

	sc.Logger.Info("business logic extracted", "rules", len(rules.Rules), "decisions", len(rules.DecisionLogic))

	return map[pipeline.ArtifactKind]string{
		pipeline.KindBusinessDoc:   docPath,
		pipeline.KindBusinessRules: rulesPath,
	}, nil
}
