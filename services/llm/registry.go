// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Built-in blocked substrings. Config can extend this with regexes but
// cannot remove these entries.
var builtinBlocklist = []string{"qwen", "chinese"}

// ErrModelBlocked indicates a configured model matched the blocklist.
var ErrModelBlocked = errors.New("model is blocked by policy")

// ErrNoModelConfigured indicates a stage has no model assigned.
var ErrNoModelConfigured = errors.New("no model configured for stage")

// ModelRegistry maps stage names to models and enforces the blocklist.
// A lookup failure is a configuration error surfaced before any backend
// call, not a stage failure.
type ModelRegistry struct {
	models      map[string]string
	blocklist   []*regexp.Regexp
	temperature float32
}

// NewModelRegistry builds a registry from per-stage model assignments and
// optional blocklist regex patterns. Patterns are matched against the
// lowercased model name.
func NewModelRegistry(models map[string]string, blocklist []string, temperature float32) (*ModelRegistry, error) {
	compiled := make([]*regexp.Regexp, 0, len(blocklist))
	for _, pattern := range blocklist {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid blocklist pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	cloned := make(map[string]string, len(models))
	for k, v := range models {
		cloned[k] = v
	}
	return &ModelRegistry{
		models:      cloned,
		blocklist:   compiled,
		temperature: temperature,
	}, nil
}

// ModelFor returns the model assigned to a stage name, after blocklist
// checks.
func (r *ModelRegistry) ModelFor(stage string) (string, error) {
	model, ok := r.models[stage]
	if !ok || model == "" {
		return "", fmt.Errorf("%w: %s", ErrNoModelConfigured, stage)
	}
	lower := strings.ToLower(model)
	for _, blocked := range builtinBlocklist {
		if strings.Contains(lower, blocked) {
			return "", fmt.Errorf("%w: %s (stage %s)", ErrModelBlocked, model, stage)
		}
	}
	for _, re := range r.blocklist {
		if re.MatchString(lower) {
			return "", fmt.Errorf("%w: %s (stage %s)", ErrModelBlocked, model, stage)
		}
	}
	return model, nil
}

// Temperature returns the pipeline-wide sampling temperature.
func (r *ModelRegistry) Temperature() float32 {
	return r.temperature
}

// Params builds GenerationParams for a stage, resolving its model.
func (r *ModelRegistry) Params(stage string) (GenerationParams, error) {
	model, err := r.ModelFor(stage)
	if err != nil {
		return GenerationParams{}, err
	}
	temp := r.temperature
	return GenerationParams{Model: model, Temperature: &temp}, nil
}
