// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stages holds the nine stage implementations. Each stage reads
// its declared inputs, optionally calls the model backend, and writes
// its artifacts under the stage directory. Stage 1 is parser-driven;
// stages 2 through 9 are model-backed with strict response parsing.
package stages

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/cobalt/services/llm"
	"github.com/AleutianAI/cobalt/services/pipeline"
	"github.com/AleutianAI/cobalt/services/scanner"
)

var tracer = otel.Tracer("cobalt.stages")

// Language describes the migration target.
type Language struct {
	Name string // display name used in prompts
	Ext  string // source file extension including the dot
}

var languages = map[string]Language{
	"scala":  {Name: "Scala", Ext: ".scala"},
	"python": {Name: "Python", Ext: ".py"},
}

// LanguageFor resolves a config language id.
func LanguageFor(id string) (Language, error) {
	lang, ok := languages[id]
	if !ok {
		return Language{}, fmt.Errorf("unsupported target language %q", id)
	}
	return lang, nil
}

// deps is the shared wiring every stage embeds.
type deps struct {
	client   llm.Client
	registry *llm.ModelRegistry
	scan     *scanner.Scanner
	budget   int
	language Language
}

// Build wires all nine stages for the orchestrator. The client and
// registry may be nil only for scanner-only runs, where no stage past
// discovery can execute anyway.
func Build(cfg pipeline.Config, client llm.Client, registry *llm.ModelRegistry, sc *scanner.Scanner) (map[int]pipeline.Stage, error) {
	lang, err := LanguageFor(cfg.TargetLanguage)
	if err != nil {
		return nil, err
	}
	d := deps{
		client:   client,
		registry: registry,
		scan:     sc,
		budget:   cfg.InventoryBudget,
		language: lang,
	}
	return map[int]pipeline.Stage{
		1: &discoveryStage{deps: d},
		2: &dependencyGraphStage{deps: d},
		3: &businessLogicStage{deps: d},
		4: &technicalAnalysisStage{deps: d},
		5: &pseudocodeStage{deps: d},
		6: &targetDesignStage{deps: d},
		7: &targetCodeStage{deps: d},
		8: &validationStage{deps: d},
		9: &documentationStage{deps: d},
	}, nil
}

// generate resolves the stage's model and invokes the backend.
func (d deps) generate(ctx context.Context, stage, prompt string) (string, error) {
	if d.client == nil || d.registry == nil {
		return "", fmt.Errorf("stage %s: no model backend configured", stage)
	}
	params, err := d.registry.Params(stage)
	if err != nil {
		return "", err
	}

	ctx, span := tracer.Start(ctx, "stages.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("stage.name", stage),
		attribute.String("model", params.Model),
		attribute.Int("prompt.bytes", len(prompt)),
	)

	response, err := d.client.Generate(ctx, prompt, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("stage %s: %w", stage, err)
	}
	return response, nil
}
