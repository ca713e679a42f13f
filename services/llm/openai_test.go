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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient("", "", discardLogger()); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestOpenAIGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req["model"] != "gpt-4o-mini" {
			t.Errorf("request model = %v", req["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"choices": []map[string]any{
				{
					"message":       map[string]any{"role": "assistant", "content": "migrated"},
					"finish_reason": "stop",
				},
			},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encoding response: %v", err)
		}
	}))
	defer server.Close()

	client, err := NewOpenAIClient("test-key", server.URL+"/v1", discardLogger())
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	temp := float32(0.2)
	text, err := client.Generate(context.Background(), "p", GenerationParams{Model: "gpt-4o-mini", Temperature: &temp})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "migrated" {
		t.Errorf("text = %q", text)
	}
}

func TestOpenAIGenerateEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient("test-key", server.URL+"/v1", discardLogger())
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	_, err = client.Generate(context.Background(), "p", GenerationParams{Model: "gpt-4o-mini"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestOpenAIGenerateNoModel(t *testing.T) {
	client, err := NewOpenAIClient("test-key", "", discardLogger())
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	if _, err := client.Generate(context.Background(), "p", GenerationParams{}); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("err = %v, want ErrModelNotFound", err)
	}
}
