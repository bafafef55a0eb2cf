// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package integrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apphub-foundation/apphub/lib/desktop"
	"github.com/apphub-foundation/apphub/lib/digest"
)

// RecordStatus describes how an installed record relates to the
// bundle it was synthesized from.
type RecordStatus string

const (
	// StatusOK means the recorded bundle is present and its content
	// still matches the digest taken at install time.
	StatusOK RecordStatus = "ok"
	// StatusMissing means the recorded bundle is gone. The next sweep
	// will remove this record.
	StatusMissing RecordStatus = "missing"
	// StatusChanged means a bundle is present at the recorded path but
	// its content differs from the installed digest. The next sweep
	// will reinstall it.
	StatusChanged RecordStatus = "changed"
	// StatusUnknown means the bundle could not be read or hashed.
	StatusUnknown RecordStatus = "unknown"
)

// InstalledRecord summarizes one engine-owned menu entry for the
// operator CLI.
type InstalledRecord struct {
	// Name is the sanitized base name, which is also the menu entry's
	// filename stem.
	Name string `json:"name"`

	// Display is the entry's Name value, as shown in desktop menus.
	Display string `json:"display"`

	// CLI marks a NoDisplay record that owns a shell alias.
	CLI bool `json:"cli"`

	// Bundle is the bundle path recorded at install time.
	Bundle string `json:"bundle"`

	// Digest is the recorded content digest, hex encoded.
	Digest string `json:"digest,omitempty"`

	// Status relates the record to the bundle now on disk.
	Status RecordStatus `json:"status"`
}

// Records enumerates engine-owned menu entries in the applications
// directory, ordered by name. Foreign entries are excluded. A missing
// applications directory yields an empty list.
func (e *Engine) Records() ([]InstalledRecord, error) {
	entries, err := os.ReadDir(e.cfg.Paths.ApplicationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing applications directory: %w", err)
	}

	var records []InstalledRecord
	for _, dirEntry := range entries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".desktop") {
			continue
		}
		path := filepath.Join(e.cfg.Paths.ApplicationsDir, dirEntry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			e.logger.Warn("menu entry unreadable, skipped", "entry", dirEntry.Name(), "error", err)
			continue
		}
		entry := desktop.Parse(data)
		if !e.ownsEntry(entry) {
			continue
		}

		record := InstalledRecord{
			Name: strings.TrimSuffix(dirEntry.Name(), ".desktop"),
		}
		record.Display, _ = entry.Get(desktop.MainSection, "Name")
		noDisplay, _ := entry.Get(desktop.MainSection, "NoDisplay")
		record.CLI = strings.EqualFold(noDisplay, "true")
		record.Bundle, _ = entry.Get(desktop.MainSection, KeyBundle)
		record.Digest, _ = entry.Get(desktop.MainSection, KeyDigest)
		if record.Bundle == "" {
			// Owned by Exec location rather than the marker keys.
			execValue, _ := entry.Get(desktop.MainSection, "Exec")
			record.Bundle = desktop.ExecProgram(execValue)
		}
		record.Status = e.recordStatus(record)

		records = append(records, record)
	}
	return records, nil
}

// recordStatus stats and, when needed, re-hashes the recorded bundle.
func (e *Engine) recordStatus(record InstalledRecord) RecordStatus {
	if record.Bundle == "" {
		return StatusUnknown
	}
	if _, err := os.Stat(record.Bundle); err != nil {
		if os.IsNotExist(err) {
			return StatusMissing
		}
		return StatusUnknown
	}
	if record.Digest == "" {
		return StatusOK
	}
	recorded, err := digest.Parse(record.Digest)
	if err != nil {
		// Corrupted bookkeeping, not a content change.
		return StatusUnknown
	}
	current, err := digest.File(record.Bundle)
	if err != nil {
		return StatusUnknown
	}
	if current != recorded {
		return StatusChanged
	}
	return StatusOK
}
