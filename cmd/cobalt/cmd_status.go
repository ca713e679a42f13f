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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/cobalt/services/pipeline"
)

var (
	statusOut   string
	statusRunID string
)

// statusCmd reports a run's per-stage state and the next step.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a run",
	Long: `Show per-stage status for a run and the exact command to take the
next step.

Example:
  cobalt status --out ./runs --run-id 20260831_120000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := pipeline.NewStore(statusOut, appLogger.Slog())
		rec, err := store.Load(statusRunID)
		if err != nil {
			return err
		}

		fmt.Printf("Run %s\n  corpus: %s\n  created: %s\n\n", rec.RunID, rec.CorpusRoot, rec.CreatedAt.Format("2006-01-02 15:04:05 UTC"))

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STAGE\tNAME\tSTATUS\tDETAIL")
		next := 0
		for _, spec := range pipeline.Specs() {
			st := rec.StageState(spec.Ordinal)
			detail := st.Reason
			if st.Status == pipeline.StatusSucceeded {
				detail = fmt.Sprintf("%d artifact(s)", len(st.Artifacts))
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", spec.Ordinal, spec.Name, st.Status, detail)
			if next == 0 && st.Status != pipeline.StatusSucceeded {
				next = spec.Ordinal
			}
		}
		w.Flush()

		fmt.Println()
		if next == 0 {
			fmt.Printf("Pipeline complete. Artifacts are under %s\n", rec.RunDir())
			return nil
		}
		fmt.Printf("Next: stage %d. Run:\n  cobalt run --run-id %s --stage %d\n", next, rec.RunID, next)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusOut, "out", "", "Output root containing run directories (required)")
	statusCmd.Flags().StringVar(&statusRunID, "run-id", "", "Run id to inspect (required)")
	statusCmd.MarkFlagRequired("out")
	statusCmd.MarkFlagRequired("run-id")
}
