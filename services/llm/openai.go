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
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient is an OpenAI-compatible backend. It also covers local
// servers that expose the OpenAI chat API (vLLM, llama.cpp, Ollama's
// /v1 endpoint) via a custom base URL.
type OpenAIClient struct {
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAIClient creates a client. baseURL may be empty for the
// hosted OpenAI API.
func NewOpenAIClient(apiKey, baseURL string, logger *slog.Logger) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key not set")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	logger.Info("initializing OpenAI-compatible client", "base_url", cfg.BaseURL)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		logger: logger,
	}, nil
}

// Generate implements the Client interface.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAIClient.Generate")
	defer span.End()

	if params.Model == "" {
		return "", fmt.Errorf("%w: no model selected", ErrModelNotFound)
	}
	o.logger.Debug("generating text via OpenAI-compatible API", "model", params.Model)

	req := openai.ChatCompletionRequest{
		Model: params.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		o.logger.Error("OpenAI API call failed", "error", err)
		return "", classifyTransportError(err)
	}
	if len(resp.Choices) == 0 {
		o.logger.Warn("OpenAI returned no choices")
		return "", ErrEmptyResponse
	}
	o.logger.Debug("received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
