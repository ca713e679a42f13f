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
)

// Lightweight structural extraction only. These patterns deliberately do
// not attempt COBOL semantics; they recover identifiers, inclusion
// directives and call references the way a reviewer would grep for them.
var (
	programIDPattern = regexp.MustCompile(`(?i)PROGRAM-ID\.\s*([^\s.]+)\s*\.`)
	copyPattern      = regexp.MustCompile(`(?i)\bCOPY\s+([^\s.]+)\s*\.`)
	callPattern      = regexp.MustCompile(`(?i)\bCALL\s+['"]?(\w+)['"]?`)
	ioPattern        = regexp.MustCompile(`(?im)^\s*(SELECT\s+\S+\s+ASSIGN|OPEN\s+(INPUT|OUTPUT|I-O|EXTEND)\b|READ\s+\S+|WRITE\s+\S+)`)
	execSQLPattern   = regexp.MustCompile(`(?i)\bEXEC\s+SQL\b`)
	execCICSPattern  = regexp.MustCompile(`(?i)\bEXEC\s+CICS\b`)
)

// Extract derives a SourceUnit from one file's full content. The whole
// content is read; nothing is truncated at this layer.
//
// Returns the unit plus any per-file warnings (e.g. conflicting
// PROGRAM-ID declarations, where the first occurrence wins).
func Extract(relPath, content string) (SourceUnit, []Warning) {
	unit := SourceUnit{Path: relPath}
	var warnings []Warning

	programs := programIDPattern.FindAllStringSubmatch(content, -1)
	if len(programs) > 0 {
		unit.Program = programs[0][1]
	}
	if len(programs) > 1 {
		conflicting := false
		for _, m := range programs[1:] {
			if m[1] != unit.Program {
				conflicting = true
				break
			}
		}
		if conflicting {
			warnings = append(warnings, Warning{
				Path:    relPath,
				Message: fmt.Sprintf("multiple PROGRAM-ID declarations, keeping first: %s", unit.Program),
			})
		}
	}

	unit.Copybooks = dedupMatches(copyPattern.FindAllStringSubmatch(content, -1))
	unit.Calls = dedupMatches(callPattern.FindAllStringSubmatch(content, -1))
	unit.HasIO = ioPattern.MatchString(content)
	unit.HasSQL = execSQLPattern.MatchString(content)
	unit.HasCICS = execCICSPattern.MatchString(content)

	return unit, warnings
}

// dedupMatches collects the first capture group of each match, removing
// duplicates while preserving first-seen order.
func dedupMatches(matches [][]string) []string {
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
