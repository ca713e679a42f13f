// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the boundary to the external text-generation
// capability. The pipeline treats the backend as a black box with the
// contract Generate(prompt, model, temperature) -> text | failure.
package llm

import (
	"context"
	"errors"
)

// GenerationParams carries per-call generation settings.
//
// Model selects the backend model for this call; stages get their model
// from the ModelRegistry rather than a backend default.
type GenerationParams struct {
	Model       string   `json:"model"`
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Client defines the standard interface for any LLM backend.
type Client interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Sentinel errors for backend failures. Backends wrap these so the
// orchestrator can classify an attempt without knowing the transport.
var (
	// ErrTimeout indicates the call exceeded its deadline. The remote
	// outcome is unknown; the caller must resume explicitly.
	ErrTimeout = errors.New("llm call timed out")

	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("llm backend unavailable")

	// ErrModelNotFound indicates the backend does not have the model.
	ErrModelNotFound = errors.New("model not found")

	// ErrEmptyResponse indicates the backend returned no content.
	ErrEmptyResponse = errors.New("llm returned empty response")
)
