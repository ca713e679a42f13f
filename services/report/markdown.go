// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders stage documents as Markdown. Every document is
// a title plus ordered sections so downstream stages can feed the text
// straight back into a prompt.
package report

import (
	"fmt"
	"os"
	"strings"
)

// Section is one titled block of a stage document.
type Section struct {
	Title string
	Body  string
}

// RenderMarkdown produces the document text: H1 title, H2 per section.
func RenderMarkdown(title string, sections []Section) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", title)
	for _, s := range sections {
		b.WriteString("\n## ")
		b.WriteString(s.Title)
		b.WriteString("\n\n")
		b.WriteString(strings.TrimRight(s.Body, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// WriteMarkdown renders and writes the document.
func WriteMarkdown(path, title string, sections []Section) error {
	if err := os.WriteFile(path, []byte(RenderMarkdown(title, sections)), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadText returns a document's full text for use in a later prompt.
// A missing document reads as empty; prerequisite checks happen before
// any stage gets this far.
func ReadText(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}
