// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stages

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/cobalt/services/pipeline"
	"github.com/AleutianAI/cobalt/services/scanner"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeDiscoveryCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	main := strings.Join([]string{
		"       IDENTIFICATION DIVISION.",
		"       PROGRAM-ID. MAINPGM.",
		"       PROCEDURE DIVISION.",
		"           COPY SHARED.",
		"           CALL 'CALCSUBR'.",
		"           READ TRANS-IN.",
	}, "\n")
	sub := strings.Join([]string{
		"       IDENTIFICATION DIVISION.",
		"       PROGRAM-ID. CALCSUBR.",
		"       PROCEDURE DIVISION.",
		"           COPY SHARED.",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "mainpgm.cbl"), []byte(main), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "calcsubr.cbl"), []byte(sub), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "shared.cpy"), []byte("       01 SHARED-REC PIC X(80)."), 0644))
	return root
}

func TestDiscoveryStageScannerOnly(t *testing.T) {
	corpus := writeDiscoveryCorpus(t)
	stageDir := t.TempDir()

	stage := &discoveryStage{deps: deps{
		scan:   scanner.New(scanner.WithConcurrency(2)),
		budget: 40000,
	}}

	sc := &pipeline.StageContext{
		RunID:       "disc-test",
		CorpusRoot:  corpus,
		StageDir:    stageDir,
		Artifacts:   map[pipeline.ArtifactKind]string{pipeline.KindCobolSource: corpus},
		ScannerOnly: true,
		Logger:      discardLogger(),
	}

	outputs, err := stage.Execute(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, outputs, 3)

	// Inventory lists every scanned unit.
	inventory, err := os.ReadFile(outputs[pipeline.KindInventory])
	require.NoError(t, err)
	assert.Contains(t, string(inventory), "MAINPGM")
	assert.Contains(t, string(inventory), "CALCSUBR")
	assert.Contains(t, string(inventory), "shared.cpy")

	var discovery scanner.Discovery
	data, err := os.ReadFile(outputs[pipeline.KindDiscovery])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &discovery))
	assert.True(t, discovery.ScannerOnly)
	assert.Len(t, discovery.Programs, 2)
	assert.Contains(t, discovery.Copybooks, "SHARED")
	assert.Contains(t, discovery.CalledPrograms, "CALCSUBR")
	// No EXEC CICS anywhere, so the heuristic answer is batch.
	assert.Contains(t, strings.ToLower(discovery.BatchOrCICS), "batch")

	overview, err := os.ReadFile(outputs[pipeline.KindOverviewDoc])
	require.NoError(t, err)
	text := string(overview)
	assert.Contains(t, text, "# COBOL Codebase Overview")
	assert.Contains(t, text, "## Programs")
	assert.Contains(t, text, "## Call Linkages")
	assert.Contains(t, text, "MAINPGM calls CALCSUBR")
}

func TestDiscoveryStageBadCorpus(t *testing.T) {
	stage := &discoveryStage{deps: deps{scan: scanner.New(), budget: 40000}}
	sc := &pipeline.StageContext{
		CorpusRoot:  filepath.Join(t.TempDir(), "missing"),
		StageDir:    t.TempDir(),
		ScannerOnly: true,
		Logger:      discardLogger(),
	}
	_, err := stage.Execute(context.Background(), sc)
	require.Error(t, err)
}

func TestParseClassification(t *testing.T) {
	fallback := scanner.Classification{
		BatchOrCICS: "Batch",
		IOFiles:     "none identified",
		DBTables:    "none identified",
	}

	response := strings.Join([]string{
		"Some narrative the model added.",
		"BATCH_OR_CICS: CICS (EXEC CICS found in MAINPGM)",
		"IO_FILES: TRANS-IN, REPORT-OUT",
		"DB_TABLES: CUSTOMER_ACCT",
	}, "\n")

	got := parseClassification(response, fallback)
	assert.Equal(t, "CICS (EXEC CICS found in MAINPGM)", got.BatchOrCICS)
	assert.Equal(t, "TRANS-IN, REPORT-OUT", got.IOFiles)
	assert.Equal(t, "CUSTOMER_ACCT", got.DBTables)
}

func TestParseClassificationKeepsFallback(t *testing.T) {
	fallback := scanner.Classification{BatchOrCICS: "Batch", IOFiles: "a, b", DBTables: "none identified"}

	// Absent and empty lines both keep the fallback value.
	got := parseClassification("BATCH_OR_CICS:\nunrelated text", fallback)
	assert.Equal(t, fallback, got)

	got = parseClassification("db_tables: ORDERS", fallback)
	assert.Equal(t, "ORDERS", got.DBTables)
	assert.Equal(t, "Batch", got.BatchOrCICS)
}

func TestOverviewSectionsEmptyDiscovery(t *testing.T) {
	sections := overviewSections(scanner.Discovery{BatchOrCICS: "Batch", IOFiles: "none identified", DBTables: "none identified"})
	require.Len(t, sections, 7)
	assert.Equal(t, "None.", sections[0].Body)
	assert.Equal(t, "None.", sections[6].Body)
}
