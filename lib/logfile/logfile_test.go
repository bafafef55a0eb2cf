// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package logfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestWriteAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	writer, err := Open(path, 1024, 3)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer writer.Close()

	for _, line := range []string{"first\n", "second\n"} {
		written, err := writer.Write([]byte(line))
		if err != nil {
			t.Fatalf("Write(%q) error: %v", line, err)
		}
		if written != len(line) {
			t.Errorf("Write(%q) = %d, want %d", line, written, len(line))
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if string(content) != "first\nsecond\n" {
		t.Errorf("log content = %q, want %q", content, "first\nsecond\n")
	}
}

func TestOpenResumesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	if err := os.WriteFile(path, []byte("existing\n"), 0600); err != nil {
		t.Fatalf("seeding log file: %v", err)
	}

	writer, err := Open(path, 1024, 3)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer writer.Close()

	if _, err := writer.Write([]byte("appended\n")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if string(content) != "existing\nappended\n" {
		t.Errorf("log content = %q, want existing content preserved", content)
	}
}

func TestRotationProducesCompressedBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	writer, err := Open(path, 64, 3)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer writer.Close()

	first := strings.Repeat("a", 60) + "\n"
	second := strings.Repeat("b", 60) + "\n"
	if _, err := writer.Write([]byte(first)); err != nil {
		t.Fatalf("first Write() error: %v", err)
	}
	if _, err := writer.Write([]byte(second)); err != nil {
		t.Fatalf("second Write() error: %v", err)
	}

	// The first record was rotated out; the live file holds only the
	// second.
	live, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading live file: %v", err)
	}
	if string(live) != second {
		t.Errorf("live file = %q, want %q", live, second)
	}

	backup := path + ".1.zst"
	compressed, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("initializing zstd decoder: %v", err)
	}
	defer decoder.Close()
	decompressed, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		t.Fatalf("decompressing backup: %v", err)
	}
	if string(decompressed) != first {
		t.Errorf("backup content = %q, want %q", decompressed, first)
	}

	// No temporary residue.
	if _, err := os.Stat(backup + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary compression file left behind")
	}
}

func TestRotationBoundsBackupCount(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "daemon.log")
	writer, err := Open(path, 32, 2)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer writer.Close()

	// Force five rotations.
	for i := range 6 {
		record := fmt.Sprintf("%d%s\n", i, strings.Repeat("x", 30))
		if _, err := writer.Write([]byte(record)); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
	}

	entries, err := os.ReadDir(directory)
	if err != nil {
		t.Fatalf("reading directory: %v", err)
	}
	var backups []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".zst") {
			backups = append(backups, entry.Name())
		}
	}
	if len(backups) != 2 {
		t.Errorf("backup count = %d (%v), want 2", len(backups), backups)
	}
	for _, name := range []string{"daemon.log.1.zst", "daemon.log.2.zst"} {
		if _, err := os.Stat(filepath.Join(directory, name)); err != nil {
			t.Errorf("expected backup %s: %v", name, err)
		}
	}
}

func TestZeroBackupsTruncates(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "daemon.log")
	writer, err := Open(path, 32, 0)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer writer.Close()

	long := strings.Repeat("y", 30) + "\n"
	if _, err := writer.Write([]byte(long)); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if _, err := writer.Write([]byte("after\n")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	live, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading live file: %v", err)
	}
	if string(live) != "after\n" {
		t.Errorf("live file = %q, want %q", live, "after\n")
	}

	entries, err := os.ReadDir(directory)
	if err != nil {
		t.Fatalf("reading directory: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".zst") {
			t.Errorf("unexpected backup %s with max_backups=0", entry.Name())
		}
	}
}

func TestOversizedRecordWrittenWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	writer, err := Open(path, 16, 1)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer writer.Close()

	record := strings.Repeat("z", 64) + "\n"
	written, err := writer.Write([]byte(record))
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if written != len(record) {
		t.Errorf("Write() = %d, want %d", written, len(record))
	}

	live, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading live file: %v", err)
	}
	if string(live) != record {
		t.Errorf("oversized record was split or dropped")
	}
}

func TestWriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	writer, err := Open(path, 1024, 1)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if _, err := writer.Write([]byte("late\n")); err == nil {
		t.Error("expected error writing after Close")
	}
}

func TestOpenRejectsBadLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	if _, err := Open(path, 0, 3); err == nil {
		t.Error("expected error for zero max size")
	}
	if _, err := Open(path, 1024, -1); err == nil {
		t.Error("expected error for negative max backups")
	}
}
