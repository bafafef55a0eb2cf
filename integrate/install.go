// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package integrate

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// installIcon copies the source icon out of the extracted tree into
// the managed icon directory, named after the sanitized base so the
// sweep can later identify and delete it. Returns the installed path.
func (e *Engine) installIcon(sourcePath, base string) (string, error) {
	targetPath := filepath.Join(e.cfg.Paths.IconDir, base+filepath.Ext(sourcePath))

	source, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("opening extracted icon: %w", err)
	}
	defer source.Close()

	if err := writeStreamAtomic(targetPath, source, 0644); err != nil {
		return "", fmt.Errorf("installing icon: %w", err)
	}
	return targetPath, nil
}

// writeFileAtomic writes data to path so that path only ever holds
// either its previous content or the complete new content.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	return writeStreamAtomic(path, bytes.NewReader(data), mode)
}

// writeStreamAtomic streams source to a sibling temporary file, syncs
// it, renames it over the target, and syncs the parent directory. The
// target is never observable half-written.
func writeStreamAtomic(path string, source io.Reader, mode os.FileMode) error {
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}

	// Write, sync, close, in that order. If any step fails, remove
	// the temporary file and report the first error.
	if _, err := io.Copy(file, source); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming into place: %w", err)
	}

	// Sync the parent directory so the rename survives power loss
	// before the OS flushes directory metadata.
	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}
