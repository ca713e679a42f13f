// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corpusResult() *Result {
	return &Result{
		Root: "/corpus",
		Units: []SourceUnit{
			{Path: "calcsub.cbl", Program: "CALCSUBR", Copybooks: []string{"SHARED"}},
			{Path: "mainpgm.cbl", Program: "MAINPGM", Copybooks: []string{"SHARED"}, Calls: []string{"CALCSUBR", "EXTPROG"}, HasIO: true},
			{Path: "shared.cpy"},
		},
	}
}

func TestBuildDiscovery(t *testing.T) {
	d := BuildDiscovery(corpusResult(), Classification{BatchOrCICS: "Batch"}, true)

	// Only files with a declared identifier become programs.
	require.Len(t, d.Programs, 2)
	assert.Equal(t, "CALCSUBR", d.Programs[0].Name)
	assert.Equal(t, "MAINPGM", d.Programs[1].Name)

	assert.Equal(t, []string{"SHARED"}, d.Copybooks)
	assert.Equal(t, []string{"CALCSUBR", "EXTPROG"}, d.CalledPrograms)

	// EXTPROG has no file in the corpus, so only one linkage resolves.
	require.Len(t, d.CallLinkages, 1)
	assert.Equal(t, CallLinkage{From: "MAINPGM", To: "CALCSUBR"}, d.CallLinkages[0])

	assert.Equal(t, 3, d.FileCount)
	assert.True(t, d.ScannerOnly)
	assert.Equal(t, "Batch", d.BatchOrCICS)
}

func TestBuildDiscoveryResolvesCallByFileStem(t *testing.T) {
	result := &Result{
		Units: []SourceUnit{
			// The callee declares a different PROGRAM-ID but call sites
			// use the member name.
			{Path: "helper.cbl", Program: "HLP0001"},
			{Path: "main.cbl", Program: "MAINPGM", Calls: []string{"HELPER"}},
		},
	}
	d := BuildDiscovery(result, Classification{}, true)
	require.Len(t, d.CallLinkages, 1)
	assert.Equal(t, CallLinkage{From: "MAINPGM", To: "HELPER"}, d.CallLinkages[0])
}

func TestClassifyHeuristically(t *testing.T) {
	t.Run("batch with io and sql", func(t *testing.T) {
		class := ClassifyHeuristically(&Result{Units: []SourceUnit{
			{Path: "a.cbl", HasIO: true},
			{Path: "b.cbl", HasSQL: true},
		}})
		assert.Equal(t, "Batch", class.BatchOrCICS)
		assert.Contains(t, class.IOFiles, "a.cbl")
		assert.Contains(t, class.DBTables, "b.cbl")
	})

	t.Run("cics", func(t *testing.T) {
		class := ClassifyHeuristically(&Result{Units: []SourceUnit{{Path: "a.cbl", HasCICS: true}}})
		assert.Equal(t, "CICS", class.BatchOrCICS)
	})
}

func TestSharedCopybooks(t *testing.T) {
	shared := SharedCopybooks(corpusResult())
	require.Len(t, shared, 1)
	assert.Equal(t, "SHARED", shared[0].Copybook)
	assert.Equal(t, []string{"CALCSUBR", "MAINPGM"}, shared[0].UsedBy)
	assert.True(t, shared[0].Shared)
}

func TestMigrationOrder(t *testing.T) {
	t.Run("leaf first", func(t *testing.T) {
		d := BuildDiscovery(corpusResult(), Classification{}, true)
		order := MigrationOrder(d)
		require.Len(t, order, 2)
		assert.Equal(t, "CALCSUBR", order[0].Program)
		assert.Equal(t, "MAINPGM", order[1].Program)
	})

	t.Run("call sites with different casing still gate ordering", func(t *testing.T) {
		d := Discovery{
			Programs: []Program{{Name: "MAINPGM"}, {Name: "CALCSUBR"}},
			CallLinkages: []CallLinkage{
				{From: "MAINPGM", To: "calcsubr"},
			},
		}
		order := MigrationOrder(d)
		require.Len(t, order, 2)
		assert.Equal(t, "CALCSUBR", order[0].Program)
		assert.Equal(t, "MAINPGM", order[1].Program)
		assert.Contains(t, order[1].Reason, "CALCSUBR")
	})

	t.Run("cycle placed deterministically", func(t *testing.T) {
		d := Discovery{
			Programs: []Program{{Name: "B"}, {Name: "A"}},
			CallLinkages: []CallLinkage{
				{From: "A", To: "B"},
				{From: "B", To: "A"},
			},
		}
		order := MigrationOrder(d)
		require.Len(t, order, 2)
		assert.Equal(t, "A", order[0].Program)
		assert.Equal(t, "B", order[1].Program)
		assert.Contains(t, order[0].Reason, "cycle")
	})
}
