// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package logfile provides a size-rotated log sink for the daemon.
//
// A Writer appends to a single log file and rotates it when the next
// write would push it past the size limit. Rotated files are
// zstd-compressed and numbered path.1.zst (newest) through path.N.zst
// (oldest); at most maxBackups are kept. The compressed backup is
// written to a temporary file and renamed into place, so a crash
// mid-rotation never leaves a truncated backup.
//
// The Writer is safe for concurrent use, which slog handlers require.
package logfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Writer is an append-only, size-rotated log file. Create one with
// Open and hand it to slog.NewJSONHandler.
type Writer struct {
	mu         sync.Mutex
	path       string
	maxSize    int64
	maxBackups int
	file       *os.File
	size       int64
	closed     bool
}

// Open opens (or creates) the log file at path for appending. Rotation
// triggers when a write would push the file past maxSize bytes; up to
// maxBackups compressed backups are kept. A maxBackups of zero means
// the file is truncated on rotation with nothing retained.
func Open(path string, maxSize int64, maxBackups int) (*Writer, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("logfile: max size must be positive, got %d", maxSize)
	}
	if maxBackups < 0 {
		return nil, fmt.Errorf("logfile: max backups must be non-negative, got %d", maxBackups)
	}

	writer := &Writer{
		path:       path,
		maxSize:    maxSize,
		maxBackups: maxBackups,
	}
	if err := writer.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return writer, nil
}

// Write appends p to the log file, rotating first when the write would
// exceed the size limit. A single record larger than the limit is
// written whole to an empty file rather than dropped. A failed
// rotation fails the write; the next write retries.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, fmt.Errorf("logfile: write after Close")
	}
	if w.file == nil {
		// A previous rotation failed to reopen. Try again.
		if err := w.open(os.O_APPEND); err != nil {
			return 0, err
		}
	}

	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	written, err := w.file.Write(p)
	w.size += int64(written)
	return written, err
}

// Close closes the underlying file. Further writes fail.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// open opens the live log file with the given disposition flag
// (os.O_APPEND or os.O_TRUNC) and records its size. Called with w.mu
// held.
func (w *Writer) open(dispositionFlag int) error {
	file, err := os.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|dispositionFlag, 0600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("statting log file: %w", err)
	}
	w.file = file
	w.size = info.Size()
	return nil
}

// rotate shifts existing backups up one slot, compresses the live file
// into the .1 slot, and reopens a fresh live file. Called with w.mu
// held. On failure the live file is reopened for appending when
// possible so subsequent writes still land somewhere.
func (w *Writer) rotate() error {
	if err := w.file.Close(); err != nil {
		w.file = nil
		return fmt.Errorf("closing for rotation: %w", err)
	}
	w.file = nil

	rotateErr := w.archive()

	dispositionFlag := os.O_TRUNC
	if rotateErr != nil {
		dispositionFlag = os.O_APPEND
	}
	if err := w.open(dispositionFlag); err != nil {
		if rotateErr != nil {
			return rotateErr
		}
		return err
	}
	return rotateErr
}

// archive moves the current log content into the compressed backup
// chain. Called with w.mu held and the live file closed.
func (w *Writer) archive() error {
	if w.maxBackups == 0 {
		return nil
	}

	// Drop the oldest backup, then shift the rest up one slot.
	os.Remove(backupName(w.path, w.maxBackups))
	for index := w.maxBackups - 1; index >= 1; index-- {
		source := backupName(w.path, index)
		if _, err := os.Stat(source); err != nil {
			continue
		}
		if err := os.Rename(source, backupName(w.path, index+1)); err != nil {
			return fmt.Errorf("shifting backup %d: %w", index, err)
		}
	}

	return compressFile(w.path, backupName(w.path, 1))
}

// compressFile writes a zstd-compressed copy of source at destination,
// going through a temporary file and rename.
func compressFile(source, destination string) error {
	input, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("opening %s for compression: %w", source, err)
	}
	defer input.Close()

	temporaryPath := destination + ".tmp"
	output, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", temporaryPath, err)
	}

	encoder, err := zstd.NewWriter(output, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		output.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("initializing zstd encoder: %w", err)
	}

	if _, err := io.Copy(encoder, input); err != nil {
		encoder.Close()
		output.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("compressing %s: %w", source, err)
	}
	if err := encoder.Close(); err != nil {
		output.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("finishing zstd stream: %w", err)
	}
	if err := output.Sync(); err != nil {
		output.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing %s: %w", temporaryPath, err)
	}
	if err := output.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing %s: %w", temporaryPath, err)
	}

	if err := os.Rename(temporaryPath, destination); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming backup into place: %w", err)
	}

	// Sync the parent directory so the rename survives power loss.
	parentDirectory, err := os.Open(filepath.Dir(destination))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}

// backupName returns the path of the numbered compressed backup.
func backupName(path string, index int) string {
	return fmt.Sprintf("%s.%d.zst", path, index)
}
