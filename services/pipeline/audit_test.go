// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAuditLogAppendAndSeqRecovery(t *testing.T) {
	runDir := t.TempDir()

	log, err := OpenAuditLog(runDir)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		entry := &AuditEntry{RunID: "r1", Stage: i + 1, StageName: "discovery", Outcome: "succeeded"}
		if err := log.Append(entry); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if entry.Seq != i+1 {
			t.Fatalf("seq = %d, want %d", entry.Seq, i+1)
		}
	}

	// A fresh open recovers the next sequence from the file.
	reopened, err := OpenAuditLog(runDir)
	if err != nil {
		t.Fatal(err)
	}
	entry := &AuditEntry{RunID: "r1", Stage: 4, StageName: "technical_analysis", Outcome: "failed", Reason: "timeout"}
	if err := reopened.Append(entry); err != nil {
		t.Fatal(err)
	}
	if entry.Seq != 4 {
		t.Fatalf("recovered seq = %d, want 4", entry.Seq)
	}

	entries, err := reopened.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	for i, e := range entries {
		if e.Seq != i+1 {
			t.Errorf("entry %d seq = %d", i, e.Seq)
		}
		if e.Timestamp.IsZero() {
			t.Errorf("entry %d has no timestamp", i)
		}
	}
}

func TestHashArtifactFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}
	first, err := HashArtifact(path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := HashArtifact(path)
	if err != nil {
		t.Fatal(err)
	}
	if first != second || first == "" {
		t.Fatalf("hash not stable: %q vs %q", first, second)
	}

	if err := os.WriteFile(path, []byte("changed"), 0644); err != nil {
		t.Fatal(err)
	}
	third, _ := HashArtifact(path)
	if third == first {
		t.Fatal("hash unchanged after content change")
	}
}

func TestHashArtifactDirectory(t *testing.T) {
	build := func(t *testing.T) string {
		dir := t.TempDir()
		if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "Main.scala"), []byte("object Main"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "sub", "Util.scala"), []byte("object Util"), 0644); err != nil {
			t.Fatal(err)
		}
		return dir
	}

	// Two trees with identical relative contents hash identically.
	h1, err := HashArtifact(build(t))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashArtifact(build(t))
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatal("identical trees hash differently")
	}
}
