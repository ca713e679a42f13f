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
	"path"
	"sort"
	"strings"
)

// Program is one discovered program declaration.
type Program struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// CallLinkage is one resolved caller->callee edge between programs.
type CallLinkage struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Classification holds the narrative fields of the discovery artifact.
// In scanner-only mode they come from extraction heuristics; in full
// mode the first pipeline stage fills them from the model response.
type Classification struct {
	BatchOrCICS string `json:"batch_or_cics"`
	IOFiles     string `json:"io_files"`
	DBTables    string `json:"db_tables"`
}

// Discovery is the machine-readable discovery artifact. Field names are
// stable across scanner-only and full modes.
type Discovery struct {
	Programs       []Program     `json:"programs"`
	Copybooks      []string      `json:"copybooks"`
	CalledPrograms []string      `json:"called_programs"`
	CallLinkages   []CallLinkage `json:"call_linkages"`
	BatchOrCICS    string        `json:"batch_or_cics"`
	IOFiles        string        `json:"io_files"`
	DBTables       string        `json:"db_tables"`
	FileCount      int           `json:"file_count"`
	ScannerOnly    bool          `json:"scanner_only"`
}

// SharedCopybook maps one copybook to the programs that include it.
type SharedCopybook struct {
	Copybook string   `json:"copybook"`
	UsedBy   []string `json:"used_by"`
	Shared   bool     `json:"shared"`
}

// MigrationStep is one entry of the leaf-first migration order.
type MigrationStep struct {
	Program string `json:"program"`
	Reason  string `json:"reason"`
}

// BuildDiscovery derives the discovery artifact from a scan result.
// Programs keep scan (path) order; name lists are sorted; linkages are
// sorted by (from, to). The output is fully deterministic.
func BuildDiscovery(result *Result, class Classification, scannerOnly bool) Discovery {
	d := Discovery{
		Programs:       []Program{},
		Copybooks:      []string{},
		CalledPrograms: []string{},
		CallLinkages:   []CallLinkage{},
		BatchOrCICS:    class.BatchOrCICS,
		IOFiles:        class.IOFiles,
		DBTables:       class.DBTables,
		FileCount:      len(result.Units),
		ScannerOnly:    scannerOnly,
	}

	copybooks := make(map[string]bool)
	called := make(map[string]bool)
	programByName := make(map[string]bool)

	for _, u := range result.Units {
		if u.Program != "" && IsProgramFile(u.Path) {
			d.Programs = append(d.Programs, Program{Name: u.Program, Path: u.Path})
			programByName[strings.ToUpper(u.Program)] = true
		}
		for _, c := range u.Copybooks {
			copybooks[c] = true
		}
		for _, c := range u.Calls {
			called[c] = true
		}
	}

	// Program file stems double as call targets when no PROGRAM-ID
	// matches; legacy call sites frequently use the member name.
	stems := make(map[string]bool)
	for _, u := range result.Units {
		if IsProgramFile(u.Path) {
			stems[strings.ToUpper(fileStem(u.Path))] = true
		}
	}

	for _, u := range result.Units {
		if u.Program == "" || !IsProgramFile(u.Path) {
			continue
		}
		for _, callee := range u.Calls {
			upper := strings.ToUpper(callee)
			if programByName[upper] || stems[upper] {
				d.CallLinkages = append(d.CallLinkages, CallLinkage{From: u.Program, To: callee})
			}
		}
	}

	d.Copybooks = sortedKeys(copybooks)
	d.CalledPrograms = sortedKeys(called)
	sort.Slice(d.CallLinkages, func(i, j int) bool {
		if d.CallLinkages[i].From != d.CallLinkages[j].From {
			return d.CallLinkages[i].From < d.CallLinkages[j].From
		}
		return d.CallLinkages[i].To < d.CallLinkages[j].To
	})
	return d
}

// ClassifyHeuristically fills the narrative fields from extraction hints
// alone, for scanner-only mode.
func ClassifyHeuristically(result *Result) Classification {
	class := Classification{
		BatchOrCICS: "Batch",
		IOFiles:     "None explicitly mentioned (scanner-only).",
		DBTables:    "None referenced (scanner-only).",
	}
	var ioPaths, sqlPaths []string
	hasCICS := false
	for _, u := range result.Units {
		if u.HasCICS {
			hasCICS = true
		}
		if u.HasIO {
			ioPaths = append(ioPaths, u.Path)
		}
		if u.HasSQL {
			sqlPaths = append(sqlPaths, u.Path)
		}
	}
	if hasCICS {
		class.BatchOrCICS = "CICS"
	}
	if len(ioPaths) > 0 {
		class.IOFiles = "File I/O statements present in: " + strings.Join(ioPaths, ", ")
	}
	if len(sqlPaths) > 0 {
		class.DBTables = "Embedded SQL present in: " + strings.Join(sqlPaths, ", ")
	}
	return class
}

// SharedCopybooks lists, per copybook, the programs that include it,
// sorted by copybook name.
func SharedCopybooks(result *Result) []SharedCopybook {
	usedBy := make(map[string]map[string]bool)
	for _, u := range result.Units {
		if !IsProgramFile(u.Path) {
			continue
		}
		prog := u.Program
		if prog == "" {
			prog = fileStem(u.Path)
		}
		for _, cpy := range u.Copybooks {
			if usedBy[cpy] == nil {
				usedBy[cpy] = make(map[string]bool)
			}
			usedBy[cpy][prog] = true
		}
	}
	out := make([]SharedCopybook, 0, len(usedBy))
	for cpy, progs := range usedBy {
		entry := SharedCopybook{Copybook: cpy, UsedBy: sortedKeys(progs)}
		entry.Shared = len(entry.UsedBy) > 1
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Copybook < out[j].Copybook })
	return out
}

// MigrationOrder proposes a leaf-first program order: programs whose
// callees are already placed come next. A dependency cycle places the
// remaining programs alphabetically with a note.
func MigrationOrder(d Discovery) []MigrationStep {
	// Call sites and PROGRAM-ID declarations disagree on casing in
	// legacy code, so edge checks are case-normalized the same way
	// BuildDiscovery resolves linkage targets.
	calls := make(map[string][]string)
	for _, link := range d.CallLinkages {
		from := strings.ToUpper(link.From)
		calls[from] = append(calls[from], strings.ToUpper(link.To))
	}

	corpus := make(map[string]bool, len(d.Programs))
	remaining := make(map[string]bool, len(d.Programs))
	for _, p := range d.Programs {
		corpus[strings.ToUpper(p.Name)] = true
		remaining[p.Name] = true
	}

	var order []MigrationStep
	placed := make(map[string]bool)
	for len(remaining) > 0 {
		batch := make([]string, 0, len(remaining))
		for prog := range remaining {
			upper := strings.ToUpper(prog)
			ready := true
			for _, callee := range calls[upper] {
				// Only edges to programs in this corpus gate ordering.
				if corpus[callee] && !placed[callee] && callee != upper {
					ready = false
					break
				}
			}
			if ready {
				batch = append(batch, prog)
			}
		}
		if len(batch) == 0 {
			// Cycle: place the rest deterministically.
			for _, prog := range sortedKeys(remaining) {
				order = append(order, MigrationStep{Program: prog, Reason: "part of a call cycle; migrate together"})
				delete(remaining, prog)
			}
			break
		}
		sort.Strings(batch)
		for _, prog := range batch {
			upper := strings.ToUpper(prog)
			reason := "leaf program, no unmigrated callees"
			if len(calls[upper]) > 0 {
				reason = "callees already migrated: " + strings.Join(calls[upper], ", ")
			}
			order = append(order, MigrationStep{Program: prog, Reason: reason})
			placed[upper] = true
			delete(remaining, prog)
		}
	}
	return order
}

func fileStem(p string) string {
	base := path.Base(p)
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		return base[:idx]
	}
	return base
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
