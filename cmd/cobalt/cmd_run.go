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
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/cobalt/services/pipeline"
)

var (
	runCorpus      string
	runOut         string
	runID          string
	runFrom        int
	runStage       int
	runForce       bool
	runScannerOnly bool
)

// runCmd executes the pipeline: all stages, a resumed suffix, or one
// selected stage.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the modernization pipeline",
	Long: `Run the nine-stage pipeline over a COBOL corpus.

Without --run-id a new run is created under a timestamp id. With
--run-id an existing run is resumed; stages that already succeeded are
skipped unless --force is given.

--stage runs exactly one stage. --from starts at a stage and continues
to the end, stopping at the first failure.

Examples:
  cobalt run --corpus ./cobol --out ./runs
  cobalt run --corpus ./cobol --out ./runs --run-id 20260831_120000 --from 4
  cobalt run --corpus ./cobol --out ./runs --run-id 20260831_120000 --stage 7 --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runStage != 0 && runFrom != 0 {
			return fmt.Errorf("--stage and --from are mutually exclusive")
		}
		if runScannerOnly {
			config.ScannerOnly = true
		}

		id := runID
		if id == "" {
			id = defaultRunID()
		}

		orch, store, err := buildOrchestrator(config, runOut)
		if err != nil {
			return err
		}
		if _, err := store.CreateOrResume(id, runCorpus); err != nil {
			return err
		}
		fmt.Printf("Run id: %s\n", id)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var action *pipeline.NextAction
		switch {
		case runStage != 0:
			action, err = orch.RunStage(ctx, id, runStage, runForce)
		case runFrom != 0:
			action, err = orch.RunFrom(ctx, id, runFrom, runForce)
		default:
			action, err = orch.RunFrom(ctx, id, 1, runForce)
		}

		printNextAction(action, store.RunDir(id))
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&runCorpus, "corpus", "", "COBOL corpus root (required)")
	runCmd.Flags().StringVar(&runOut, "out", "", "Output root for run directories (required)")
	runCmd.Flags().StringVar(&runID, "run-id", "", "Run id to create or resume (default: UTC timestamp)")
	runCmd.Flags().IntVar(&runFrom, "from", 0, "Start at this stage and continue to the end")
	runCmd.Flags().IntVar(&runStage, "stage", 0, "Run exactly this stage")
	runCmd.Flags().BoolVar(&runForce, "force", false, "Re-run stages that already succeeded")
	runCmd.Flags().BoolVar(&runScannerOnly, "scanner-only", false, "Scanner-only discovery, no model calls")
	runCmd.MarkFlagRequired("corpus")
	runCmd.MarkFlagRequired("out")
}
