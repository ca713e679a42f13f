// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scanner builds a complete structural index of a COBOL corpus.
//
// The scanner walks a corpus root, extracts structural facts from every
// recognized file (program identifier, COPY references, CALL references,
// I/O and external-data hints) without semantic interpretation, and
// aggregates them into a bounded-size Inventory. Coverage of files
// outranks completeness of per-file extraction: a file that cannot be
// read still yields a SourceUnit, plus a warning.
package scanner

import "strings"

// Recognized corpus extensions (lowercase, with dot).
var recognizedExtensions = map[string]bool{
	".cbl": true,
	".cob": true,
	".cpy": true,
}

// RecognizedExtension reports whether a path names a corpus source unit.
func RecognizedExtension(path string) bool {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return false
	}
	return recognizedExtensions[strings.ToLower(path[idx:])]
}

// IsProgramFile reports whether a path is independently compiled source
// (as opposed to an includable copybook fragment).
func IsProgramFile(path string) bool {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return false
	}
	ext := strings.ToLower(path[idx:])
	return ext == ".cbl" || ext == ".cob"
}

// SourceUnit is the structural extraction result for one source file.
//
// Identity is the file path relative to the corpus root, slash-separated.
// A unit is created once per scan and is immutable afterwards. Every
// physical file gets exactly one unit, including fragments that are
// never independently compiled.
type SourceUnit struct {
	// Path is the stable identity, relative to the corpus root.
	Path string `json:"path"`

	// Program is the declared PROGRAM-ID, empty if absent. When a file
	// carries conflicting declarations the first one wins and the
	// condition is recorded as a scan warning.
	Program string `json:"program,omitempty"`

	// Copybooks lists COPY references, first-seen order, deduplicated.
	Copybooks []string `json:"copybooks,omitempty"`

	// Calls lists CALL references, first-seen order, deduplicated.
	Calls []string `json:"calls,omitempty"`

	// HasIO marks file I/O statements (SELECT..ASSIGN, OPEN, READ, WRITE).
	HasIO bool `json:"has_io,omitempty"`

	// HasSQL marks embedded EXEC SQL blocks.
	HasSQL bool `json:"has_sql,omitempty"`

	// HasCICS marks embedded EXEC CICS blocks.
	HasCICS bool `json:"has_cics,omitempty"`
}

// Warning records a non-fatal per-file extraction issue. Warnings never
// halt a scan.
type Warning struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Result is the outcome of one corpus scan. Units are sorted by path so
// the result is independent of worker scheduling.
type Result struct {
	Root     string       `json:"root"`
	Units    []SourceUnit `json:"units"`
	Warnings []Warning    `json:"warnings,omitempty"`
}
