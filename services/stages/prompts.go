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

import "fmt"

const classificationPrompt = `You are a COBOL analyst. Below is the complete inventory of a codebase (every file with PROGRAM-ID, COPY, CALL).

Answer ONLY these three items in this exact format (one line each):

BATCH_OR_CICS: Batch | CICS | Unknown
IO_FILES: brief answer or "None explicitly mentioned"
DB_TABLES: brief answer or "None referenced"

Inventory:
`

const dependencyPrompt = `You are a system architect. Document at a MINUTE level of detail so downstream analysis understands exactly who calls whom and how data flows.

Do NOT explain business rules or algorithms. Focus ONLY on structure and data flow.

Given the overview and source below, produce a highly detailed document:

1. Call Hierarchy
   - List EVERY program. For each program state: (a) which programs it CALLs (by PROGRAM-ID), (b) which programs call it.
   - Use explicit lines like "MAINPGM calls: CALCSUBR" and "CALCSUBR is called by: MAINPGM".

2. Shared Components
   - List EVERY copybook. For each copybook list EVERY program that uses it (COPY statement). If a copybook is used by more than one program, say "SHARED" and list all programs.

3. Data Flow Summary
   - Describe step-by-step how data moves: which program passes what to which (e.g. via CALL USING, copybook fields). Name programs and data areas.

4. Migration Order Recommendation
   - List programs in the order they should be migrated. For each program give a one-line justification.

Format with exactly these section titles on their own line:
- Call Hierarchy
- Shared Components
- Data Flow Summary
- Migration Order Recommendation

After the last section add: ---END---`

const businessLogicPrompt = `You are a senior business analyst. Document at a MINUTE level of detail so downstream analysis can understand every rule and decision exactly.

You do NOT care about: file names, variable names, performance, COBOL syntax.

Your ONLY goal: Answer WHAT does the system do for the business? Be exhaustive and precise.

Produce:

1. Business Rules
   - List EVERY business rule. Give each a unique ID (BR-01, BR-02, ...) and a full, unambiguous description.

2. Decision Logic
   - List EVERY decision: condition and outcome. Use explicit "IF <condition> THEN <outcome>" or "WHEN X THEN Y".

3. Domain Explanations
   - Define every domain term used. Explain what each means in business terms.

4. Edge Cases
   - List every edge case or exception with a concrete example.

You MUST NOT mention files, loops, or programming language syntax. Use business language only.

Format with these section titles on their own line:
- Business Rules
- Decision Logic
- Domain Explanations
- Edge Cases

End with: ---END---

Then, on a new line, output a JSON block for machine consumption. Use exactly this format (no other text around it):
` + "```json" + `
{"rules": [{"id": "BR-01", "description": "..."}], "decision_logic": [{"condition": "...", "outcome": "..."}], "domain_terms": [{"term": "...", "meaning": "..."}], "edge_cases": [{"description": "...", "example": "..."}]}
` + "```"

const technicalPrompt = `You are a legacy system engineer. Document at a MINUTE level of detail so downstream analysis understands exactly how the system works technically.

Goal: Answer HOW does the system achieve the business logic? Be exhaustive and precise. Do NOT change business meaning or simplify logic.

Include:

1. File and I/O Patterns
   - For EACH program or file: name the file/program, operation (read/write/update), record or data structure, and any key details. List every relevant FD, SELECT, OPEN, READ, WRITE.

2. Looping Behavior
   - For EACH loop: which program, what type (PERFORM UNTIL, VARYING, etc.), exit condition, and what the loop does in one line.

3. Cursor and Position Logic
   - Any record position, cursor, or pointer logic: which program, where it is set/used, and how it advances or resets.

4. Error Handling
   - For EACH program: how errors are detected, what happens (abend, return code, message), and any error copybook or paragraph.

5. Restart and Checkpoint Logic
   - Any checkpoint, restart, or recovery logic: where and how.

Use section titles on their own line:
- File and I/O Patterns
- Looping Behavior
- Cursor and Position Logic
- Error Handling
- Restart and Checkpoint Logic

End with: ---END---

Then, on a new line, output a JSON block for machine consumption. Use exactly this format (no other text around it):
` + "```json" + `
{"file_patterns": [{"program": "...", "file_or_resource": "...", "operation": "...", "description": "..."}], "loops": [{"program": "...", "type": "...", "exit_condition": "...", "description": "..."}], "cursor_logic": [{"program": "...", "description": "..."}], "error_handling": [{"program": "...", "mechanism": "...", "description": "..."}], "restart_checkpoint": [{"program": "...", "description": "..."}]}
` + "```"

func pseudocodePrompt(lang Language) string {
	return fmt.Sprintf(`You are a language-neutral algorithm designer.
Create pure pseudocode that exactly represents the system.

Include:
- Step-by-step logic
- Control flow
- Data transformations

You MUST NOT: use COBOL syntax, use %s syntax, or optimize logic.

Use section titles on their own line:
- Main Flow
- Control Flow
- Data Transformations

End with: ---END---`, lang.Name)
}

func targetDesignPrompt(lang Language) string {
	return fmt.Sprintf(`You are a %[1]s architect.
Design a clean %[1]s structure WITHOUT writing code.

Include:
- Package structure
- Core data types (names and main fields)
- Services (names and responsibilities)
- Mapping table: COBOL concept -> %[1]s concept

You MUST NOT: write %[1]s code or skip logic.

Use section titles on their own line:
- Package Structure
- Data Types
- Services
- COBOL Mapping

End with: ---END---`, lang.Name)
}

func targetCodePrompt(lang Language) string {
	return fmt.Sprintf(`You are a %[1]s developer.
Write %[1]s code ONLY, strictly following the design and pseudocode below.
You MUST NOT: access COBOL, change logic, or add creativity.

Output only valid %[1]s source code. For multiple files, use this format exactly:

---FILE: path/to/File%[2]s---
// %[1]s code here
---END FILE---

Repeat for each file. No other commentary.`, lang.Name, lang.Ext)
}

func validationPrompt(lang Language) string {
	return fmt.Sprintf(`You are a QA auditor.
Verify business logic parity between the Business Logic Specification and the %[1]s source.

Produce:
- Rule-by-rule comparison (each business rule -> where/how it appears in %[1]s)
- Deviations (any mismatch or missing behavior)
- Risk flags (areas that need manual review)

Use section titles on their own line:
- Rule-by-Rule Comparison
- Deviations
- Risk Flags

End with: ---END---`, lang.Name)
}

func documentationPrompt(lang Language) string {
	return fmt.Sprintf(`You are a technical writer.
Produce the final %[1]s-side documentation that combines business and technical design.

Use the content from all the provided prior documents to create one cohesive document:
- Business context and rules (from business logic spec)
- Technical design and structure (from technical and %[1]s design docs)
- Validation summary (from parity report)
- Any other relevant sections for a developer maintaining the %[1]s system

Do NOT invent content that is not in the sources.

Use section titles on their own line, each starting with "- ". End with: ---END---`, lang.Name)
}
