// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package aliasledger maintains shell aliases for command-line
// bundles in a shared alias file.
//
// The alias file is user-owned: people hand-edit it, other tools
// append to it, and dotfile managers template it. The ledger therefore
// owns only its own blocks (an ownership comment directly followed by
// the alias line) and reproduces every other byte of the file
// unchanged. All mutations are a single locked read-modify-write
// cycle ending in an atomic rename, so concurrent integrations cannot
// interleave partial writes and a crash cannot leave a torn file.
package aliasledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Ledger serializes mutations of one alias file.
type Ledger struct {
	mu   sync.Mutex
	path string
}

// New returns a Ledger for the alias file at path. The file need not
// exist yet; it is created on the first Add.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the alias file path.
func (l *Ledger) Path() string { return l.path }

// ownershipComment marks a block as ledger-owned. Only the exact
// comment+alias pair is ever removed; a bare alias line a user wrote
// for the same name is foreign content and survives.
func ownershipComment(name string) string {
	return "# Alias for " + name
}

// aliasLine renders the alias definition with the command
// single-quoted for the shell.
func aliasLine(name, command string) string {
	return fmt.Sprintf("alias %s='%s'", name, strings.ReplaceAll(command, "'", `'\''`))
}

// Add inserts (or refreshes) the alias block for name, pointing it at
// command. Any existing block for name is replaced.
func (l *Ledger) Add(name, command string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := l.readLines()
	if err != nil {
		return err
	}

	lines = stripBlock(lines, name)
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
		lines = append(lines, "")
	}
	lines = append(lines, ownershipComment(name), aliasLine(name, command))

	return l.writeLines(lines)
}

// Remove deletes the alias block for name. Removing a name that has
// no block is a no-op, as is removing from a missing file.
func (l *Ledger) Remove(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := l.readLines()
	if err != nil {
		return err
	}
	if lines == nil {
		return nil
	}

	stripped := stripBlock(lines, name)
	if len(stripped) == len(lines) {
		return nil
	}
	return l.writeLines(stripped)
}

// sourceGuard returns the rc line that sources the alias file.
func (l *Ledger) sourceGuard() string {
	quoted := "'" + strings.ReplaceAll(l.path, "'", `'\''`) + "'"
	return fmt.Sprintf("[ -f %s ] && . %s", quoted, quoted)
}

// EnsureSourced appends a line sourcing the alias file to the shell
// startup file at rcPath, unless one is already present. The rc file
// is created when absent. Idempotent.
func (l *Ledger) EnsureSourced(rcPath string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	guard := l.sourceGuard()

	data, err := os.ReadFile(rcPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", rcPath, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == guard {
			return nil
		}
	}

	var block strings.Builder
	if len(data) > 0 {
		if !strings.HasSuffix(string(data), "\n") {
			block.WriteString("\n")
		}
		block.WriteString("\n")
	}
	block.WriteString("# Load apphub aliases\n")
	block.WriteString(guard)
	block.WriteString("\n")

	file, err := os.OpenFile(rcPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", rcPath, err)
	}
	if _, err := file.WriteString(block.String()); err != nil {
		file.Close()
		return fmt.Errorf("appending to %s: %w", rcPath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", rcPath, err)
	}
	return nil
}

// readLines reads the alias file as lines without trailing newline.
// A missing file yields nil lines and no error.
func (l *Ledger) readLines() ([]string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading alias file: %w", err)
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return []string{}, nil
	}
	return strings.Split(text, "\n"), nil
}

// writeLines writes the alias file atomically: temporary file, sync,
// rename, parent directory sync.
func (l *Ledger) writeLines(lines []string) error {
	content := strings.Join(lines, "\n") + "\n"
	temporaryPath := l.path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating temporary alias file: %w", err)
	}
	if _, err := file.WriteString(content); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary alias file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary alias file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary alias file: %w", err)
	}

	if err := os.Rename(temporaryPath, l.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming alias file into place: %w", err)
	}

	parentDirectory, err := os.Open(filepath.Dir(l.path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}

// stripBlock removes the ledger-owned block for name, along with one
// preceding blank line when the block was separated by one.
func stripBlock(lines []string, name string) []string {
	comment := ownershipComment(name)
	aliasPrefix := "alias " + name + "="

	result := make([]string, 0, len(lines))
	for index := 0; index < len(lines); index++ {
		if lines[index] == comment &&
			index+1 < len(lines) &&
			strings.HasPrefix(lines[index+1], aliasPrefix) {
			if len(result) > 0 && strings.TrimSpace(result[len(result)-1]) == "" {
				result = result[:len(result)-1]
			}
			index++
			continue
		}
		result = append(result, lines[index])
	}
	return result
}
