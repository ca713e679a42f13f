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
	"encoding/json"
	"regexp"
	"strings"

	"github.com/AleutianAI/cobalt/services/pipeline"
	"github.com/AleutianAI/cobalt/services/report"
)

// endMarker terminates the narrative portion of every model response.
const endMarker = "---END---"

var jsonBlockPattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// parseSections splits a model response into titled sections. A section
// title is a line of the form "- Title"; everything up to the next title
// or the end marker is its body. Text after the marker is ignored here
// (the JSON block, where a stage expects one, lives there).
func parseSections(response string) []report.Section {
	var sections []report.Section
	var title string
	var body []string

	flush := func() {
		if title != "" || len(body) > 0 {
			if title == "" {
				title = "Section"
			}
			sections = append(sections, report.Section{Title: title, Body: strings.Join(body, "\n")})
		}
	}

	for _, line := range strings.Split(response, "\n") {
		if strings.TrimSpace(line) == endMarker {
			break
		}
		if strings.HasPrefix(line, "- ") && !strings.HasPrefix(line, "-  ") {
			flush()
			title = strings.TrimSpace(strings.TrimPrefix(line, "- "))
			body = nil
			continue
		}
		body = append(body, line)
	}
	flush()
	return sections
}

// requireSections parses the response and verifies every expected title
// is present. A missing title fails the whole stage; no partial document
// is ever written.
func requireSections(stage, response string, expected []string) ([]report.Section, error) {
	sections := parseSections(response)
	have := make(map[string]bool, len(sections))
	for _, s := range sections {
		have[s.Title] = true
	}
	var missing []string
	for _, title := range expected {
		if !have[title] {
			missing = append(missing, title)
		}
	}
	if len(missing) > 0 {
		return nil, &pipeline.MalformedOutputError{
			Stage:  stage,
			Detail: "missing sections: " + strings.Join(missing, ", "),
		}
	}
	return sections, nil
}

// parseJSONBlock decodes the fenced JSON block that follows the end
// marker into v. The block is part of the stage contract, so a missing
// or undecodable block is a malformed response.
func parseJSONBlock(stage, response string, v any) error {
	tail := response
	if idx := strings.Index(tail, endMarker); idx >= 0 {
		tail = tail[idx+len(endMarker):]
	}
	m := jsonBlockPattern.FindStringSubmatch(tail)
	if m == nil {
		return &pipeline.MalformedOutputError{Stage: stage, Detail: "no JSON block after end marker"}
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), v); err != nil {
		return &pipeline.MalformedOutputError{Stage: stage, Detail: "undecodable JSON block: " + err.Error()}
	}
	return nil
}

// truncate caps prompt material at n bytes without splitting the final
// line mid-way more than necessary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
