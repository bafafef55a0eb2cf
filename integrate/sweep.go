// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package integrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/apphub-foundation/apphub/lib/desktop"
	"github.com/apphub-foundation/apphub/lib/digest"
)

// SweepStats summarizes one reconciliation pass.
type SweepStats struct {
	// StaleRemoved counts installed records deleted because their
	// bundle disappeared or was replaced in place.
	StaleRemoved int
	// Installed counts bundles integrated by the catch-up pass.
	Installed int
	// Failures counts records and bundles the sweep could not
	// reconcile. Each has been logged; none aborts the sweep.
	Failures int
}

// Sweep reconciles installed records with the bundle directory's
// actual contents. Stale removal runs first and sequentially, so a
// replaced bundle's old record is gone before catch-up reinstalls it;
// catch-up integrations then fan out concurrently. Sweeps serialize
// against each other but share all code paths with live events.
func (e *Engine) Sweep(ctx context.Context) (SweepStats, error) {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()

	var stats SweepStats

	entries, err := os.ReadDir(e.cfg.Paths.ApplicationsDir)
	if err != nil {
		return stats, fmt.Errorf("listing applications directory: %w", err)
	}
	for _, dirEntry := range entries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".desktop") {
			continue
		}
		if !e.entryIsStale(dirEntry.Name()) {
			continue
		}
		base := strings.TrimSuffix(dirEntry.Name(), ".desktop")
		unlock := e.lockName(base)
		err := e.removeRecord(base, "")
		unlock()
		if err != nil {
			e.logger.Error("stale record removal failed", "entry", dirEntry.Name(), "error", err)
			stats.Failures++
			continue
		}
		stats.StaleRemoved++
	}

	bundles, err := os.ReadDir(e.cfg.Paths.BundleDir)
	if err != nil {
		return stats, fmt.Errorf("listing bundle directory: %w", err)
	}
	var installed, failed atomic.Int64
	var group errgroup.Group
	for _, dirEntry := range bundles {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), e.cfg.Integration.BundleExtension) {
			continue
		}
		bundlePath := filepath.Join(e.cfg.Paths.BundleDir, dirEntry.Name())
		name, err := ParseBundlePath(bundlePath, e.cfg.Integration.BundleExtension)
		if err != nil {
			e.logger.Warn("bundle name not decomposable, catch-up skipped",
				"bundle", dirEntry.Name(), "error", err)
			stats.Failures++
			continue
		}
		if _, err := os.Stat(e.entryPath(name.SanitizedBase())); err == nil {
			continue
		}
		group.Go(func() error {
			if err := e.Integrate(ctx, bundlePath); err != nil {
				failed.Add(1)
			} else {
				installed.Add(1)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return stats, err
	}
	stats.Installed = int(installed.Load())
	stats.Failures += int(failed.Load())

	e.logger.Info("reconciliation sweep complete",
		"stale_removed", stats.StaleRemoved,
		"installed", stats.Installed,
		"failures", stats.Failures,
	)
	return stats, nil
}

// entryIsStale reports whether a menu entry references a bundle that
// no longer backs it. Only entries whose Exec program lies inside the
// bundle directory are considered at all; everything else in the
// applications directory belongs to someone else.
//
// Two conditions make an entry stale: the referenced bundle is gone,
// or the bundle present at that path no longer matches the digest
// recorded at install time (replaced in place). Undecidable cases
// (unreadable entry or bundle) leave the entry alone.
func (e *Engine) entryIsStale(entryName string) bool {
	path := filepath.Join(e.cfg.Paths.ApplicationsDir, entryName)
	data, err := os.ReadFile(path)
	if err != nil {
		e.logger.Warn("menu entry unreadable during sweep", "entry", entryName, "error", err)
		return false
	}
	entry := desktop.Parse(data)

	execValue, ok := entry.Get(desktop.MainSection, "Exec")
	if !ok {
		return false
	}
	program := desktop.ExecProgram(execValue)
	if !pathWithin(program, e.cfg.Paths.BundleDir) {
		return false
	}

	if _, err := os.Stat(program); err != nil {
		if os.IsNotExist(err) {
			return true
		}
		e.logger.Warn("bundle stat failed during sweep", "bundle", program, "error", err)
		return false
	}

	recorded, ok := entry.Get(desktop.MainSection, KeyDigest)
	if !ok || recorded == "" {
		return false
	}
	want, err := digest.Parse(recorded)
	if err != nil {
		e.logger.Warn("recorded digest malformed", "entry", entryName, "value", recorded)
		return false
	}
	current, err := digest.File(program)
	if err != nil {
		e.logger.Warn("bundle digest failed during sweep", "bundle", program, "error", err)
		return false
	}
	return current != want
}
