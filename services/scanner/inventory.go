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
	"regexp"
	"strings"
)

// DefaultInventoryBudget is the default serialized-size bound in bytes,
// sized to fit a single downstream model request.
const DefaultInventoryBudget = 40000

// The inventory is the sole knowledge surface for the first pipeline
// stage. It must cover every discovered unit: when the raw serialization
// exceeds the budget, records are compacted in a fixed priority order
// (hints dropped first, then list lengths capped with a "+N more"
// suffix, then lists collapsed to their counts) but a unit's path and
// program identifier always survive. Compaction is deterministic: the
// same unit set and budget always yield byte-identical output, and
// compacting an already-compacted inventory is a no-op.

// listCaps is the fixed sequence of per-unit list caps tried in order.
var listCaps = []int{8, 4, 2, 1}

var overflowPattern = regexp.MustCompile(`^\+(\d+) more$`)

// BuildInventory serializes units under the given byte budget.
// budget <= 0 disables the bound. Units are assumed path-sorted (the
// scanner guarantees this); order is preserved.
func BuildInventory(units []SourceUnit, budget int) string {
	text := RenderInventory(units)
	if budget <= 0 || len(text) <= budget {
		return text
	}
	compacted, err := CompactInventory(text, budget)
	if err != nil {
		// Render output is always parseable; a failure here is a bug.
		panic(fmt.Sprintf("scanner: compacting own inventory: %v", err))
	}
	return compacted
}

// RenderInventory serializes units without any size bound, one
// fixed-shape record per unit.
func RenderInventory(units []SourceUnit) string {
	records := make([]inventoryRecord, len(units))
	for i, u := range units {
		records[i] = recordFromUnit(u)
	}
	return renderRecords(records)
}

// CompactInventory re-serializes an inventory under budget by applying
// the fixed compaction priority: drop hints, cap list lengths, collapse
// lists to counts. It never drops a record. If even the minimal form
// exceeds budget, the minimal form is returned: completeness outranks
// the bound.
func CompactInventory(inventory string, budget int) (string, error) {
	records, err := parseRecords(inventory)
	if err != nil {
		return "", err
	}

	if out := renderRecords(records); len(out) <= budget {
		return out, nil
	}

	for i := range records {
		records[i].Hints = nil
	}
	if out := renderRecords(records); len(out) <= budget {
		return out, nil
	}

	for _, limit := range listCaps {
		for i := range records {
			records[i].Copybooks.capAt(limit)
			records[i].Calls.capAt(limit)
		}
		if out := renderRecords(records); len(out) <= budget {
			return out, nil
		}
	}

	for i := range records {
		records[i].Copybooks.capAt(0)
		records[i].Calls.capAt(0)
	}
	return renderRecords(records), nil
}

// inventoryRecord is the parseable per-unit shape.
type inventoryRecord struct {
	Path      string
	Program   string
	Copybooks listField
	Calls     listField
	Hints     []string
}

// listField is a possibly-capped name list. Overflow counts entries
// elided by compaction.
type listField struct {
	Items    []string
	Overflow int
}

func (f *listField) empty() bool {
	return len(f.Items) == 0 && f.Overflow == 0
}

// capAt keeps at most n items, accumulating the rest into Overflow.
// Capping at the same n twice is a no-op, which makes compaction
// idempotent.
func (f *listField) capAt(n int) {
	if len(f.Items) <= n {
		return
	}
	f.Overflow += len(f.Items) - n
	f.Items = f.Items[:n]
}

func (f *listField) render() string {
	parts := make([]string, 0, len(f.Items)+1)
	parts = append(parts, f.Items...)
	if f.Overflow > 0 {
		parts = append(parts, fmt.Sprintf("+%d more", f.Overflow))
	}
	return strings.Join(parts, ", ")
}

func recordFromUnit(u SourceUnit) inventoryRecord {
	rec := inventoryRecord{
		Path:      u.Path,
		Program:   u.Program,
		Copybooks: listField{Items: u.Copybooks},
		Calls:     listField{Items: u.Calls},
	}
	if u.HasIO {
		rec.Hints = append(rec.Hints, "io")
	}
	if u.HasSQL {
		rec.Hints = append(rec.Hints, "sql")
	}
	if u.HasCICS {
		rec.Hints = append(rec.Hints, "cics")
	}
	return rec
}

func renderRecords(records []inventoryRecord) string {
	var b strings.Builder
	for _, rec := range records {
		b.WriteString("FILE: ")
		b.WriteString(rec.Path)
		b.WriteByte('\n')
		if rec.Program != "" {
			b.WriteString("  PROGRAM-ID: ")
			b.WriteString(rec.Program)
			b.WriteByte('\n')
		}
		if !rec.Copybooks.empty() {
			b.WriteString("  COPY: ")
			b.WriteString(rec.Copybooks.render())
			b.WriteByte('\n')
		}
		if !rec.Calls.empty() {
			b.WriteString("  CALL: ")
			b.WriteString(rec.Calls.render())
			b.WriteByte('\n')
		}
		if len(rec.Hints) > 0 {
			b.WriteString("  HINTS: ")
			b.WriteString(strings.Join(rec.Hints, ", "))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func parseRecords(inventory string) ([]inventoryRecord, error) {
	var records []inventoryRecord
	var current *inventoryRecord
	for lineNo, line := range strings.Split(inventory, "\n") {
		switch {
		case strings.HasPrefix(line, "FILE: "):
			records = append(records, inventoryRecord{Path: strings.TrimPrefix(line, "FILE: ")})
			current = &records[len(records)-1]
		case strings.TrimSpace(line) == "":
			continue
		case current == nil:
			return nil, fmt.Errorf("inventory line %d: record field before FILE header", lineNo+1)
		case strings.HasPrefix(line, "  PROGRAM-ID: "):
			current.Program = strings.TrimPrefix(line, "  PROGRAM-ID: ")
		case strings.HasPrefix(line, "  COPY: "):
			current.Copybooks = parseListField(strings.TrimPrefix(line, "  COPY: "))
		case strings.HasPrefix(line, "  CALL: "):
			current.Calls = parseListField(strings.TrimPrefix(line, "  CALL: "))
		case strings.HasPrefix(line, "  HINTS: "):
			current.Hints = strings.Split(strings.TrimPrefix(line, "  HINTS: "), ", ")
		default:
			return nil, fmt.Errorf("inventory line %d: unrecognized field %q", lineNo+1, line)
		}
	}
	return records, nil
}

func parseListField(s string) listField {
	var f listField
	for _, part := range strings.Split(s, ", ") {
		if m := overflowPattern.FindStringSubmatch(part); m != nil {
			var n int
			fmt.Sscanf(m[1], "%d", &n)
			f.Overflow += n
			continue
		}
		f.Items = append(f.Items, part)
	}
	return f
}
