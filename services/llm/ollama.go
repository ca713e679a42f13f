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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("cobalt.llm.ollama")

// DefaultOllamaBaseURL is used when no endpoint is configured.
const DefaultOllamaBaseURL = "http://localhost:11434"

// OllamaClient talks to an Ollama server's generate API.
//
// Responses are read as a stream so each token arrives in a small read;
// a single long blocking read would trip client timeouts on large
// generations. The per-call deadline still comes from the context.
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewOllamaClient creates a client for the given endpoint. An empty
// baseURL falls back to DefaultOllamaBaseURL.
func NewOllamaClient(baseURL string, logger *slog.Logger) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	logger.Info("initializing Ollama client", "base_url", baseURL)
	return &OllamaClient{
		// No transport-level timeout: the per-call context carries the
		// deadline, and streaming keeps individual reads short.
		httpClient: &http.Client{},
		baseURL:    baseURL,
		logger:     logger,
	}
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate implements the Client interface.
func (o *OllamaClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "OllamaClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", params.Model))

	if params.Model == "" {
		return "", fmt.Errorf("%w: no model selected", ErrModelNotFound)
	}
	o.logger.Debug("generating text via Ollama", "model", params.Model, "prompt_bytes", len(prompt))

	options := make(map[string]any)
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopK != nil {
		options["top_k"] = *params.TopK
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		options["stop"] = params.Stop
	}
	payload := ollamaGenerateRequest{
		Model:   params.Model,
		Prompt:  prompt,
		Stream:  true,
		Options: options,
	}

	reqBodyBytes, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to marshal request to Ollama: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to create request to Ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusNotFound {
			o.logger.Warn("Ollama model not found", "model", params.Model)
			return "", fmt.Errorf("%w: '%s' (run: ollama pull %s)", ErrModelNotFound, params.Model, params.Model)
		}
		o.logger.Error("Ollama returned an error", "status_code", resp.StatusCode, "response", string(respBodyBytes))
		return "", fmt.Errorf("Ollama failed with status %d: %s", resp.StatusCode, string(respBodyBytes))
	}

	text, err := readStream(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", classifyTransportError(err)
	}
	if text == "" {
		return "", ErrEmptyResponse
	}

	o.logger.Debug("received response from Ollama",
		"model", params.Model,
		"response_bytes", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// readStream concatenates the "response" fields of the newline-delimited
// JSON chunks Ollama emits in streaming mode. Undecodable lines are
// skipped; the stream ends at the chunk with done=true.
func readStream(r io.Reader) (string, error) {
	var parts strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var chunk ollamaGenerateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		parts.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(parts.String()), nil
}

// classifyTransportError maps transport failures onto the package's
// sentinel errors so callers can distinguish timeout from unreachable.
func classifyTransportError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("Ollama API call failed: %w", err)
}
