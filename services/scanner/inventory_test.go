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
	"fmt"
	"strings"
	"testing"
)

func wideUnits(n, listLen int) []SourceUnit {
	units := make([]SourceUnit, n)
	for i := range units {
		u := SourceUnit{
			Path:    fmt.Sprintf("prog%03d.cbl", i),
			Program: fmt.Sprintf("PROG%03d", i),
			HasIO:   true,
			HasSQL:  i%2 == 0,
		}
		for j := 0; j < listLen; j++ {
			u.Copybooks = append(u.Copybooks, fmt.Sprintf("CPY%03d_%02d", i, j))
			u.Calls = append(u.Calls, fmt.Sprintf("SUB%03d_%02d", i, j))
		}
		units[i] = u
	}
	return units
}

func TestBuildInventoryUnderBudget(t *testing.T) {
	units := wideUnits(3, 2)
	full := RenderInventory(units)
	got := BuildInventory(units, len(full)+100)
	if got != full {
		t.Fatal("inventory under budget must be the unbounded rendering")
	}
}

func TestBuildInventoryNeverDropsUnit(t *testing.T) {
	units := wideUnits(50, 20)
	for _, budget := range []int{30000, 10000, 4000, 2000} {
		inventory := BuildInventory(units, budget)
		for _, u := range units {
			if !strings.Contains(inventory, "FILE: "+u.Path) {
				t.Fatalf("budget %d: unit %s dropped", budget, u.Path)
			}
			if !strings.Contains(inventory, "PROGRAM-ID: "+u.Program) {
				t.Fatalf("budget %d: program %s dropped", budget, u.Program)
			}
		}
	}
}

func TestBuildInventoryCompactionPriority(t *testing.T) {
	units := wideUnits(50, 20)
	full := RenderInventory(units)

	// A budget below the full rendering first sheds the hint lines.
	inventory := BuildInventory(units, len(full)-1)
	if strings.Contains(inventory, "HINTS:") {
		t.Error("hints must be the first casualty of compaction")
	}

	// A tight budget caps lists with an overflow marker.
	tight := BuildInventory(units, 6000)
	if !strings.Contains(tight, "more") {
		t.Error("expected +N more markers under a tight budget")
	}
}

func TestCompactInventoryIdempotent(t *testing.T) {
	units := wideUnits(40, 15)
	for _, budget := range []int{20000, 8000, 3000} {
		once := BuildInventory(units, budget)
		twice, err := CompactInventory(once, budget)
		if err != nil {
			t.Fatalf("budget %d: %v", budget, err)
		}
		if twice != once {
			t.Fatalf("budget %d: compaction is not idempotent", budget)
		}
	}
}

func TestBuildInventoryDeterministic(t *testing.T) {
	units := wideUnits(30, 10)
	a := BuildInventory(units, 5000)
	b := BuildInventory(units, 5000)
	if a != b {
		t.Fatal("same units and budget must yield byte-identical output")
	}
}

func TestBuildInventoryMinimalFormMayExceedBudget(t *testing.T) {
	// Completeness outranks the bound: with an absurdly small budget the
	// minimal per-unit form is returned rather than dropping units.
	units := wideUnits(20, 5)
	inventory := BuildInventory(units, 10)
	for _, u := range units {
		if !strings.Contains(inventory, "FILE: "+u.Path) {
			t.Fatalf("unit %s dropped under minimal budget", u.Path)
		}
	}
}

func TestParseRecordsRejectsGarbage(t *testing.T) {
	if _, err := parseRecords("  PROGRAM-ID: ORPHAN\n"); err == nil {
		t.Error("field before FILE header must fail")
	}
	if _, err := parseRecords("FILE: a.cbl\nbogus line\n"); err == nil {
		t.Error("unrecognized field must fail")
	}
}

func TestListFieldOverflowRoundTrip(t *testing.T) {
	f := listField{Items: []string{"A", "B", "C", "D", "E"}}
	f.capAt(2)
	if f.Overflow != 3 {
		t.Fatalf("overflow = %d, want 3", f.Overflow)
	}
	parsed := parseListField(f.render())
	if len(parsed.Items) != 2 || parsed.Overflow != 3 {
		t.Fatalf("round trip = %+v", parsed)
	}
	// Re-capping at the same limit must not change anything.
	parsed.capAt(2)
	if parsed.Overflow != 3 || len(parsed.Items) != 2 {
		t.Fatalf("re-cap changed field: %+v", parsed)
	}
}
