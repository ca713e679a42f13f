// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io/fs"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// scanDebounce coalesces bursts of filesystem events into one rescan.
const scanDebounce = 500 * time.Millisecond

var (
	scanCorpus string
	scanOut    string
	scanRunID  string
	scanWatch  bool
)

// scanCmd runs scanner-only discovery: inventory plus the discovery
// artifact, no model calls.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scanner-only discovery over a COBOL corpus",
	Long: `Scan a COBOL corpus and produce the inventory and discovery
artifacts without any model call. The discovery stage is idempotent, so
repeated scans over an unchanged corpus produce identical output.

With --watch the corpus is monitored and the scan re-runs whenever a
file changes, until interrupted.

Examples:
  cobalt scan --corpus ./cobol --out ./runs
  cobalt scan --corpus ./cobol --out ./runs --watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config.ScannerOnly = true

		id := scanRunID
		if id == "" {
			id = defaultRunID()
		}

		orch, store, err := buildOrchestrator(config, scanOut)
		if err != nil {
			return err
		}
		if _, err := store.CreateOrResume(id, scanCorpus); err != nil {
			return err
		}
		fmt.Printf("Run id: %s\n", id)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		scanOnce := func() error {
			action, err := orch.RunStage(ctx, id, 1, false)
			printNextAction(action, store.RunDir(id))
			return err
		}
		if err := scanOnce(); err != nil {
			return err
		}
		if !scanWatch {
			return nil
		}
		return watchCorpus(ctx, scanCorpus, scanOnce)
	},
}

// watchCorpus re-runs the scan whenever the corpus changes, debounced,
// until the context is cancelled.
func watchCorpus(ctx context.Context, root string, rescan func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, root); err != nil {
		return err
	}
	appLogger.Info("watching corpus", "root", root)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// New directories must be watched before their contents
			// generate events.
			if event.Has(fsnotify.Create) {
				if err := addWatchDirs(watcher, event.Name); err != nil {
					appLogger.Warn("watching new path", "path", event.Name, "error", err)
				}
			}
			if event.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
				resetDebounce(timer, scanDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			appLogger.Warn("watch error", "error", err)
		case <-timer.C:
			if err := rescan(); err != nil {
				appLogger.Error("rescan failed", "error", err)
			}
		}
	}
}

// resetDebounce restarts the debounce window. A tick that fired but was
// not yet consumed is drained first, or the stale tick would trigger an
// extra rescan right after the reset.
func resetDebounce(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}

// addWatchDirs registers a path and, when it is a directory, every
// directory beneath it.
func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
		}
		return nil
	})
}

func init() {
	scanCmd.Flags().StringVar(&scanCorpus, "corpus", "", "COBOL corpus root (required)")
	scanCmd.Flags().StringVar(&scanOut, "out", "", "Output root for run directories (required)")
	scanCmd.Flags().StringVar(&scanRunID, "run-id", "", "Run id to create or resume (default: UTC timestamp)")
	scanCmd.Flags().BoolVar(&scanWatch, "watch", false, "Re-run the scan when the corpus changes")
	scanCmd.MarkFlagRequired("corpus")
	scanCmd.MarkFlagRequired("out")
}
