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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/cobalt/pkg/logging"
	"github.com/AleutianAI/cobalt/services/pipeline"
)

var (
	config     pipeline.Config
	appLogger  *logging.Logger
	configPath string
	logLevel   string
)

// rootCmd is the cobalt entry point.
var rootCmd = &cobra.Command{
	Use:   "cobalt",
	Short: "COBOL modernization pipeline",
	Long: `Cobalt drives a nine-stage COBOL modernization pipeline: structural
discovery, dependency analysis, business and technical specification,
pseudocode, target design, code generation, parity validation, and
consolidated documentation.

Runs are durable. Every stage outcome is persisted before control
returns, so an interrupted run resumes exactly where it stopped.

Examples:
  cobalt run --corpus ./cobol --out ./runs
  cobalt run --corpus ./cobol --out ./runs --run-id 20260831_120000 --stage 3
  cobalt scan --corpus ./cobol --out ./runs --watch
  cobalt status --out ./runs --run-id 20260831_120000`,
	SilenceUsage: true,
}

func main() {
	defer func() {
		if appLogger != nil {
			appLogger.Close()
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to pipeline.yaml (defaults apply when omitted)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		config, err = pipeline.LoadConfig(configPath)
		if err != nil {
			return err
		}
		appLogger = logging.New(logging.Config{
			Level:   logging.ParseLevel(logLevel),
			Service: "cobalt",
		})
		return nil
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
}
