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
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	t.Run("program id and references", func(t *testing.T) {
		content := `       IDENTIFICATION DIVISION.
       PROGRAM-ID. PAYROLL.
       PROCEDURE DIVISION.
           COPY PAYREC.
           COPY TAXTBL.
           COPY PAYREC.
           CALL 'CALCTAX' USING WS-AMOUNT.
           CALL "AUDITLOG".
`
		unit, warnings := Extract("payroll.cbl", content)
		if unit.Program != "PAYROLL" {
			t.Fatalf("program = %q, want PAYROLL", unit.Program)
		}
		if got, want := unit.Copybooks, []string{"PAYREC", "TAXTBL"}; !reflect.DeepEqual(got, want) {
			t.Errorf("copybooks = %v, want %v", got, want)
		}
		if got, want := unit.Calls, []string{"CALCTAX", "AUDITLOG"}; !reflect.DeepEqual(got, want) {
			t.Errorf("calls = %v, want %v", got, want)
		}
		if len(warnings) != 0 {
			t.Errorf("unexpected warnings: %v", warnings)
		}
	})

	t.Run("first program id wins with warning", func(t *testing.T) {
		content := "PROGRAM-ID. FIRST.\nPROGRAM-ID. SECOND.\n"
		unit, warnings := Extract("dual.cbl", content)
		if unit.Program != "FIRST" {
			t.Fatalf("program = %q, want FIRST", unit.Program)
		}
		if len(warnings) != 1 {
			t.Fatalf("warnings = %v, want exactly one", warnings)
		}
		if warnings[0].Path != "dual.cbl" {
			t.Errorf("warning path = %q", warnings[0].Path)
		}
	})

	t.Run("repeated identical program id is not a conflict", func(t *testing.T) {
		content := "PROGRAM-ID. SAME.\nPROGRAM-ID. SAME.\n"
		unit, warnings := Extract("same.cbl", content)
		if unit.Program != "SAME" {
			t.Fatalf("program = %q", unit.Program)
		}
		if len(warnings) != 0 {
			t.Errorf("unexpected warnings: %v", warnings)
		}
	})

	t.Run("hints", func(t *testing.T) {
		content := `       PROGRAM-ID. IOPROG.
       SELECT INFILE ASSIGN TO 'IN.DAT'.
           EXEC SQL SELECT 1 FROM DUAL END-EXEC.
`
		unit, _ := Extract("ioprog.cbl", content)
		if !unit.HasIO {
			t.Error("HasIO = false, want true")
		}
		if !unit.HasSQL {
			t.Error("HasSQL = false, want true")
		}
		if unit.HasCICS {
			t.Error("HasCICS = true, want false")
		}
	})

	t.Run("copybook fragment without program id", func(t *testing.T) {
		unit, warnings := Extract("rec.cpy", "01 WS-RECORD.\n   05 WS-AMOUNT PIC 9(7)V99.\n")
		if unit.Program != "" {
			t.Errorf("program = %q, want empty", unit.Program)
		}
		if len(warnings) != 0 {
			t.Errorf("unexpected warnings: %v", warnings)
		}
	})

	t.Run("case insensitive matching", func(t *testing.T) {
		unit, _ := Extract("lower.cbl", "program-id. lowcase.\ncopy shared.\ncall 'helper'\n")
		if unit.Program != "lowcase" {
			t.Errorf("program = %q, want lowcase", unit.Program)
		}
		if len(unit.Copybooks) != 1 || unit.Copybooks[0] != "shared" {
			t.Errorf("copybooks = %v", unit.Copybooks)
		}
		if len(unit.Calls) != 1 || unit.Calls[0] != "helper" {
			t.Errorf("calls = %v", unit.Calls)
		}
	})
}
