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
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the per-file extraction worker pool.
const DefaultConcurrency = 8

// ErrInvalidRoot indicates the corpus root is missing or not a directory.
var ErrInvalidRoot = errors.New("invalid corpus root")

// Option is a functional option for configuring Scanner.
type Option func(*Scanner)

// WithConcurrency sets the extraction worker limit. Values below 1 fall
// back to serial extraction.
func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n >= 1 {
			s.concurrency = n
		} else {
			s.concurrency = 1
		}
	}
}

// WithLogger sets the scanner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// Scanner walks a corpus root and produces one SourceUnit per recognized
// file. Per-file extraction runs on a bounded worker pool; results are
// merged in path order so output is independent of scheduling.
//
// Thread Safety: Scanner is safe for concurrent use.
type Scanner struct {
	concurrency int
	logger      *slog.Logger
}

// New creates a Scanner with the given options.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan walks root and extracts every recognized file.
//
// Coverage is total: an unreadable file still yields a SourceUnit with
// empty extracted fields plus a warning. Only an invalid root or context
// cancellation fail the scan as a whole.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory", ErrInvalidRoot)
	}

	paths, walkWarnings, err := collectPaths(ctx, absRoot)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	result := &Result{
		Root:     absRoot,
		Units:    make([]SourceUnit, len(paths)),
		Warnings: walkWarnings,
	}

	// One slot per path keeps the merge deterministic regardless of
	// which worker finishes first.
	unitWarnings := make([][]Warning, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, relPath := range paths {
		i, relPath := i, relPath
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(filepath.Join(absRoot, filepath.FromSlash(relPath)))
			if err != nil {
				result.Units[i] = SourceUnit{Path: relPath}
				unitWarnings[i] = []Warning{{Path: relPath, Message: fmt.Sprintf("unreadable file: %v", err)}}
				return nil
			}
			unit, warnings := Extract(relPath, string(content))
			result.Units[i] = unit
			unitWarnings[i] = warnings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, ws := range unitWarnings {
		result.Warnings = append(result.Warnings, ws...)
	}

	s.logger.Info("corpus scan complete",
		"root", absRoot,
		"files", len(result.Units),
		"warnings", len(result.Warnings),
	)
	return result, nil
}

// collectPaths walks root and returns slash-separated relative paths of
// all recognized files. Unreadable directories are recorded as warnings
// and skipped; the walk itself continues.
func collectPaths(ctx context.Context, absRoot string) ([]string, []Warning, error) {
	var paths []string
	var warnings []Warning
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			rel, rerr := filepath.Rel(absRoot, path)
			if rerr != nil {
				rel = path
			}
			warnings = append(warnings, Warning{Path: filepath.ToSlash(rel), Message: fmt.Sprintf("walk error: %v", err)})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !RecognizedExtension(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			warnings = append(warnings, Warning{Path: path, Message: fmt.Sprintf("relative path: %v", err)})
			return nil
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return paths, warnings, nil
}
