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
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// auditFileName is the append-only audit file inside a run dir.
const auditFileName = "audit.jsonl"

// ArtifactRef is one artifact reference in an audit entry: kind, path,
// and content hash.
type ArtifactRef struct {
	Kind   ArtifactKind `json:"kind"`
	Path   string       `json:"path"`
	SHA256 string       `json:"sha256"`
}

// AuditEntry records one stage invocation. Entries are immutable once
// appended and ordered by Seq within a run; together they reconstruct
// the causal chain from corpus state to final artifacts for parity
// review.
type AuditEntry struct {
	Seq        int           `json:"seq"`
	RunID      string        `json:"run_id"`
	AttemptID  string        `json:"attempt_id"`
	Stage      int           `json:"stage"`
	StageName  string        `json:"stage_name"`
	Model      string        `json:"model,omitempty"`
	Inputs     []ArtifactRef `json:"inputs"`
	Outputs    []ArtifactRef `json:"outputs,omitempty"`
	Outcome    string        `json:"outcome"`
	Reason     string        `json:"reason,omitempty"`
	DurationMS int64         `json:"duration_ms"`
	Timestamp  time.Time     `json:"timestamp"`
}

// AuditLog is the append-only per-run audit record. Append is the only
// operation; sequence numbers are monotonic within the run and survive
// process restarts (the next sequence is recovered from the file).
//
// Thread Safety: AuditLog is safe for concurrent use, though the
// orchestrator is single-writer by design.
type AuditLog struct {
	path    string
	mu      sync.Mutex
	nextSeq int
}

// OpenAuditLog opens (or creates) the audit log for a run directory.
func OpenAuditLog(runDir string) (*AuditLog, error) {
	l := &AuditLog{path: filepath.Join(runDir, auditFileName), nextSeq: 1}
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry.Seq >= l.nextSeq {
			l.nextSeq = entry.Seq + 1
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning audit log: %w", err)
	}
	return l, nil
}

// Append assigns the next sequence number, writes the entry as one JSON
// line, and syncs before returning.
func (l *AuditLog) Append(entry *AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Seq = l.nextSeq
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync audit log: %w", err)
	}

	l.nextSeq++
	return nil
}

// Entries reads back all appended entries in sequence order.
func (l *AuditLog) Entries() ([]AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("corrupt audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// HashArtifact computes the SHA-256 content hash of an artifact path.
// Directories hash the sorted relative paths and content hashes of
// every file inside, so a regenerated tree with identical contents
// hashes identically.
func HashArtifact(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat artifact %s: %w", path, err)
	}
	if !info.IsDir() {
		return hashFile(path)
	}

	type fileHash struct {
		rel string
		sum string
	}
	var hashes []fileHash
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		sum, err := hashFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		hashes = append(hashes, fileHash{rel: filepath.ToSlash(rel), sum: sum})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("hashing artifact dir %s: %w", path, err)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].rel < hashes[j].rel })

	h := sha256.New()
	for _, fh := range hashes {
		fmt.Fprintf(h, "%s %s\n", fh.rel, fh.sum)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
