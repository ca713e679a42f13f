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
	"testing"
)

func TestModelRegistryLookup(t *testing.T) {
	registry, err := NewModelRegistry(map[string]string{
		"discovery":      "llama3.1:8b",
		"business_logic": "deepseek-coder-v2:16b",
	}, nil, 0.2)
	if err != nil {
		t.Fatalf("NewModelRegistry: %v", err)
	}

	model, err := registry.ModelFor("discovery")
	if err != nil {
		t.Fatalf("ModelFor: %v", err)
	}
	if model != "llama3.1:8b" {
		t.Errorf("model = %q", model)
	}

	_, err = registry.ModelFor("target_code")
	if !errors.Is(err, ErrNoModelConfigured) {
		t.Errorf("err = %v, want ErrNoModelConfigured", err)
	}
}

func TestModelRegistryBuiltinBlocklist(t *testing.T) {
	registry, err := NewModelRegistry(map[string]string{
		"discovery": "Qwen2.5-Coder:32b",
	}, nil, 0.2)
	if err != nil {
		t.Fatalf("NewModelRegistry: %v", err)
	}

	// The built-in list applies regardless of configuration and matches
	// case-insensitively.
	_, err = registry.ModelFor("discovery")
	if !errors.Is(err, ErrModelBlocked) {
		t.Errorf("err = %v, want ErrModelBlocked", err)
	}
}

func TestModelRegistryConfiguredBlocklist(t *testing.T) {
	registry, err := NewModelRegistry(map[string]string{
		"discovery":  "mistral:7b",
		"validation": "llama3.1:70b",
	}, []string{`^mistral`}, 0.2)
	if err != nil {
		t.Fatalf("NewModelRegistry: %v", err)
	}

	if _, err := registry.ModelFor("discovery"); !errors.Is(err, ErrModelBlocked) {
		t.Errorf("err = %v, want ErrModelBlocked", err)
	}
	if _, err := registry.ModelFor("validation"); err != nil {
		t.Errorf("unblocked model rejected: %v", err)
	}
}

func TestModelRegistryInvalidPattern(t *testing.T) {
	if _, err := NewModelRegistry(nil, []string{`(`}, 0.2); err == nil {
		t.Fatal("expected error for invalid blocklist pattern")
	}
}

func TestModelRegistryParams(t *testing.T) {
	registry, err := NewModelRegistry(map[string]string{"pseudocode": "llama3.1:8b"}, nil, 0.35)
	if err != nil {
		t.Fatalf("NewModelRegistry: %v", err)
	}

	params, err := registry.Params("pseudocode")
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if params.Model != "llama3.1:8b" {
		t.Errorf("model = %q", params.Model)
	}
	if params.Temperature == nil || *params.Temperature != 0.35 {
		t.Errorf("temperature = %v", params.Temperature)
	}

	if _, err := registry.Params("unknown_stage"); !errors.Is(err, ErrNoModelConfigured) {
		t.Errorf("err = %v, want ErrNoModelConfigured", err)
	}
}
