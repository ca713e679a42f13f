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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeCorpus lays down a small corpus: a program calling another, the
// called program, a copybook fragment, and a file with conflicting
// declarations.
func writeCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"mainpgm.cbl": "       PROGRAM-ID. MAINPGM.\n           COPY SHARED.\n           CALL 'CALCSUBR'.\n",
		"calcsub.cbl": "       PROGRAM-ID. CALCSUBR.\n           COPY SHARED.\n",
		"shared.cpy":  "       01 WS-SHARED.\n          05 WS-AMOUNT PIC 9(5).\n",
		"broken.cbl":  "PROGRAM-ID. ONE.\nPROGRAM-ID. TWO.\n",
		"notes.txt":   "not cobol, must be ignored\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestScan(t *testing.T) {
	root := writeCorpus(t)
	s := New(WithConcurrency(4))

	result, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(result.Units) != 4 {
		t.Fatalf("units = %d, want 4 (recognized files only)", len(result.Units))
	}
	for i := 1; i < len(result.Units); i++ {
		if result.Units[i-1].Path >= result.Units[i].Path {
			t.Fatalf("units not path-sorted: %q before %q", result.Units[i-1].Path, result.Units[i].Path)
		}
	}

	byPath := make(map[string]SourceUnit, len(result.Units))
	for _, u := range result.Units {
		byPath[u.Path] = u
	}
	if byPath["mainpgm.cbl"].Program != "MAINPGM" {
		t.Errorf("mainpgm program = %q", byPath["mainpgm.cbl"].Program)
	}
	if byPath["shared.cpy"].Program != "" {
		t.Errorf("copybook fragment got program %q", byPath["shared.cpy"].Program)
	}
	if byPath["broken.cbl"].Program != "ONE" {
		t.Errorf("broken program = %q, want first declaration ONE", byPath["broken.cbl"].Program)
	}

	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly the conflict warning", result.Warnings)
	}
	if result.Warnings[0].Path != "broken.cbl" {
		t.Errorf("warning path = %q", result.Warnings[0].Path)
	}
}

func TestScanDeterministic(t *testing.T) {
	root := writeCorpus(t)

	// Different concurrency levels must produce identical inventories.
	var inventories []string
	for _, workers := range []int{1, 2, 8} {
		s := New(WithConcurrency(workers))
		result, err := s.Scan(context.Background(), root)
		if err != nil {
			t.Fatalf("Scan(workers=%d): %v", workers, err)
		}
		inventories = append(inventories, BuildInventory(result.Units, DefaultInventoryBudget))
	}
	for i := 1; i < len(inventories); i++ {
		if inventories[i] != inventories[0] {
			t.Fatalf("inventory differs between runs:\n%s\n---\n%s", inventories[0], inventories[i])
		}
	}
}

func TestScanInventoryListsEveryUnit(t *testing.T) {
	root := writeCorpus(t)
	s := New()
	result, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	inventory := BuildInventory(result.Units, DefaultInventoryBudget)
	for _, u := range result.Units {
		if !strings.Contains(inventory, "FILE: "+u.Path) {
			t.Errorf("inventory missing unit %s", u.Path)
		}
	}
}

func TestScanInvalidRoot(t *testing.T) {
	s := New()
	if _, err := s.Scan(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing root")
	}

	// A file is not a valid root either.
	file := filepath.Join(t.TempDir(), "f.cbl")
	if err := os.WriteFile(file, []byte("PROGRAM-ID. X.\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scan(context.Background(), file); err == nil {
		t.Fatal("expected error for file root")
	}
}

func TestScanCancelled(t *testing.T) {
	root := writeCorpus(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Scan(ctx, root); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
