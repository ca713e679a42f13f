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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/cobalt/services/scanner"
)

// sourceFile is one corpus file loaded for prompt assembly.
type sourceFile struct {
	Path    string // relative to the corpus root, forward slashes
	Content string
}

// loadSources reads every recognized corpus file, path-sorted. Unreadable
// files are skipped here; the discovery scan already recorded them as
// warnings.
func loadSources(root string) ([]sourceFile, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving corpus root: %w", err)
	}
	var files []sourceFile
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || !scanner.RecognizedExtension(path) {
			if walkErr != nil && d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			rel = path
		}
		files = append(files, sourceFile{Path: filepath.ToSlash(rel), Content: string(data)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking corpus: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// combineSources renders files as delimited blocks for a prompt, capping
// each file at perFile bytes and the whole block at total bytes.
func combineSources(files []sourceFile, perFile, total int) string {
	var b strings.Builder
	for _, f := range files {
		block := fmt.Sprintf("--- %s ---\n%s", f.Path, truncate(f.Content, perFile))
		if b.Len()+len(block)+2 > total {
			break
		}
		b.WriteString(block)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
