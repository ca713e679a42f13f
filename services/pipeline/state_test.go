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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	out := t.TempDir()
	return NewStore(out, nil), out
}

func TestStoreCreateOrResume(t *testing.T) {
	store, _ := newTestStore(t)
	corpus := t.TempDir()

	rec, err := store.CreateOrResume("run1", corpus)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.RunID != "run1" {
		t.Errorf("run id = %q", rec.RunID)
	}
	if rec.Artifacts[KindCobolSource] == "" {
		t.Error("corpus pseudo-artifact not bound")
	}
	if rec.Version != StateVersion {
		t.Errorf("version = %q", rec.Version)
	}

	// Resuming rebinds the corpus and persists the rebinding.
	corpus2 := t.TempDir()
	resumed, err := store.CreateOrResume("run1", corpus2)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.CreatedAt != rec.CreatedAt {
		t.Error("resume must not reset creation time")
	}
	reloaded, err := store.Load("run1")
	if err != nil {
		t.Fatalf("load after resume: %v", err)
	}
	if !strings.Contains(reloaded.Artifacts[KindCobolSource], filepath.Base(corpus2)) {
		t.Error("rebound corpus root not persisted")
	}
}

func TestStoreRejectsBadRunID(t *testing.T) {
	store, _ := newTestStore(t)
	for _, id := range []string{"", "has space", "a/b", "x\x00y"} {
		if _, err := store.CreateOrResume(id, t.TempDir()); err == nil {
			t.Errorf("run id %q accepted", id)
		}
	}
}

func TestStoreLoadMissing(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Load("nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	rec, err := store.CreateOrResume("rt", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	st := rec.StageState(1)
	st.Status = StatusSucceeded
	st.Artifacts = map[ArtifactKind]string{KindInventory: "/tmp/inventory.txt"}
	rec.Artifacts[KindInventory] = "/tmp/inventory.txt"
	if err := store.Save(rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load("rt")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Status(1) != StatusSucceeded {
		t.Errorf("stage 1 status = %q", loaded.Status(1))
	}
	if loaded.Artifacts[KindInventory] != "/tmp/inventory.txt" {
		t.Errorf("artifact map not preserved: %v", loaded.Artifacts)
	}
	if loaded.Status(2) != StatusNotStarted {
		t.Errorf("absent stage status = %q", loaded.Status(2))
	}
}

func TestStoreDetectsCorruption(t *testing.T) {
	store, out := newTestStore(t)
	rec, err := store.CreateOrResume("c1", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	rec.StageState(1).Status = StatusSucceeded
	if err := store.Save(rec); err != nil {
		t.Fatal(err)
	}

	// Flip the persisted status without recomputing the checksum.
	statePath := filepath.Join(out, "c1", "state.json")
	data, err := os.ReadFile(statePath)
	if err != nil {
		t.Fatal(err)
	}
	tampered := strings.Replace(string(data), string(StatusSucceeded), string(StatusFailed), 1)
	if tampered == string(data) {
		t.Fatal("test setup: nothing replaced")
	}
	if err := os.WriteFile(statePath, []byte(tampered), 0644); err != nil {
		t.Fatal(err)
	}

	_, err = store.Load("c1")
	if !errors.Is(err, ErrStateCorrupted) {
		t.Fatalf("err = %v, want ErrStateCorrupted", err)
	}
}

func TestStoreDetectsVersionMismatch(t *testing.T) {
	store, out := newTestStore(t)
	if _, err := store.CreateOrResume("v1", t.TempDir()); err != nil {
		t.Fatal(err)
	}
	statePath := filepath.Join(out, "v1", "state.json")
	data, err := os.ReadFile(statePath)
	if err != nil {
		t.Fatal(err)
	}
	mutated := strings.Replace(string(data), StateVersion, "0.0.1", 1)
	if err := os.WriteFile(statePath, []byte(mutated), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("v1"); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("err = %v, want ErrStateVersionMismatch", err)
	}
}

func TestHasArtifact(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "inventory.txt")
	if err := os.WriteFile(present, []byte("FILE: a.cbl\n"), 0644); err != nil {
		t.Fatal(err)
	}
	rec := &RunRecord{Artifacts: map[ArtifactKind]string{
		KindInventory: present,
		KindDiscovery: filepath.Join(dir, "missing.json"),
	}}
	if !rec.HasArtifact(KindInventory) {
		t.Error("present artifact reported missing")
	}
	if rec.HasArtifact(KindDiscovery) {
		t.Error("missing file reported present")
	}
	if rec.HasArtifact(KindOverviewDoc) {
		t.Error("unregistered kind reported present")
	}
}
