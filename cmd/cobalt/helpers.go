// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/AleutianAI/cobalt/services/llm"
	"github.com/AleutianAI/cobalt/services/pipeline"
	"github.com/AleutianAI/cobalt/services/scanner"
	"github.com/AleutianAI/cobalt/services/stages"
)

// defaultRunID follows the UTC timestamp convention so run directories
// sort chronologically.
func defaultRunID() string {
	return time.Now().UTC().Format("20060102_150405")
}

// buildClient constructs the configured model backend. Scanner-only
// invocations pass none.
func buildClient(cfg pipeline.Config) (llm.Client, error) {
	switch cfg.Backend {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("backend openai requires OPENAI_API_KEY")
		}
		return llm.NewOpenAIClient(apiKey, cfg.OpenAIBaseURL, appLogger.Slog())
	default:
		baseURL := cfg.OllamaBaseURL
		if baseURL == "" {
			baseURL = llm.DefaultOllamaBaseURL
		}
		return llm.NewOllamaClient(baseURL, appLogger.Slog()), nil
	}
}

// buildOrchestrator wires the full control plane for one output root.
func buildOrchestrator(cfg pipeline.Config, outputRoot string) (*pipeline.Orchestrator, *pipeline.Store, error) {
	store := pipeline.NewStore(outputRoot, appLogger.Slog())

	var client llm.Client
	var registry *llm.ModelRegistry
	if !cfg.ScannerOnly {
		var err error
		client, err = buildClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		registry, err = llm.NewModelRegistry(cfg.Models, cfg.Blocklist, cfg.Temperature)
		if err != nil {
			return nil, nil, err
		}
	}

	sc := scanner.New(
		scanner.WithConcurrency(cfg.ScanConcurrency),
		scanner.WithLogger(appLogger.Slog()),
	)
	stageMap, err := stages.Build(cfg, client, registry, sc)
	if err != nil {
		return nil, nil, err
	}
	orch, err := pipeline.NewOrchestrator(cfg, store, stageMap, registry, appLogger.Slog())
	if err != nil {
		return nil, nil, err
	}
	return orch, store, nil
}

// printNextAction prints the follow-up guidance after an orchestrated
// invocation.
func printNextAction(action *pipeline.NextAction, runDir string) {
	if action == nil {
		return
	}
	switch action.Kind {
	case pipeline.NextComplete:
		fmt.Printf("Pipeline complete. Artifacts are under %s\n", runDir)
	case pipeline.NextStage:
		fmt.Printf("Next: stage %d. Run:\n  %s\n", action.Ordinal, action.Command)
	case pipeline.NextBlocked:
		fmt.Printf("Blocked: %s\nResume with:\n  %s\n", action.Reason, action.Command)
	}
}
