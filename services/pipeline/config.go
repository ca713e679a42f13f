// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "45m" or "2h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the per-run pipeline configuration. It is loaded once and
// passed explicitly to the orchestrator and stage invocations; nothing
// reads it from ambient global state.
type Config struct {
	// Backend selects the LLM transport: "ollama" (default) or "openai".
	Backend string `yaml:"backend"`

	// OllamaBaseURL is the Ollama endpoint. Env OLLAMA_BASE_URL wins.
	OllamaBaseURL string `yaml:"ollama_base_url"`

	// OpenAIBaseURL overrides the OpenAI-compatible endpoint. The API
	// key comes only from env OPENAI_API_KEY, never from the file.
	OpenAIBaseURL string `yaml:"openai_base_url"`

	// Models assigns a model per stage name (see Stage* constants).
	Models map[string]string `yaml:"models"`

	// Blocklist holds regex patterns for models that must not be used,
	// in addition to the built-in blocklist.
	Blocklist []string `yaml:"blocklist"`

	// Temperature is the pipeline-wide sampling temperature.
	Temperature float32 `yaml:"temperature"`

	// StageTimeout bounds one stage invocation, model call included.
	// On expiry the attempt is marked failed with a timeout reason and
	// the run halts for manual resumption.
	StageTimeout Duration `yaml:"stage_timeout"`

	// InventoryBudget bounds the serialized inventory in bytes.
	InventoryBudget int `yaml:"inventory_budget"`

	// ScanConcurrency bounds the scanner worker pool.
	ScanConcurrency int `yaml:"scan_concurrency"`

	// TargetLanguage is the code-generation target: "scala" or "python".
	TargetLanguage string `yaml:"target_language"`

	// ScannerOnly forces scanner-only discovery: no model calls. Also
	// settable via env COBALT_SCANNER_ONLY.
	ScannerOnly bool `yaml:"scanner_only"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Backend:         "ollama",
		Models:          map[string]string{},
		Temperature:     0,
		StageTimeout:    Duration(45 * time.Minute),
		InventoryBudget: 40000,
		ScanConcurrency: 8,
		TargetLanguage:  "scala",
	}
}

// LoadConfig reads a YAML config file over the defaults and applies env
// overrides. An empty path yields defaults + env.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		c.OllamaBaseURL = v
	}
	if v := os.Getenv("COBALT_SCANNER_ONLY"); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			c.ScannerOnly = true
		}
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("TARGET_LANGUAGE"))); v == "scala" || v == "python" {
		c.TargetLanguage = v
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown backend %q (want ollama or openai)", c.Backend)
	}
	switch c.TargetLanguage {
	case "scala", "python":
	default:
		return fmt.Errorf("unknown target language %q (want scala or python)", c.TargetLanguage)
	}
	if c.StageTimeout <= 0 {
		return fmt.Errorf("stage_timeout must be positive")
	}
	return nil
}
