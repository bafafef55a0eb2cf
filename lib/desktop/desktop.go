// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package desktop reads and writes freedesktop .desktop entries while
// preserving everything it does not understand.
//
// Menu entries extracted from third-party bundles carry localized
// names, desktop actions, vendor extensions, and comments. The engine
// only ever needs to read or rewrite a handful of keys in the main
// [Desktop Entry] section, so the representation here is an ordered
// list of physical lines: untouched lines serialize byte-for-byte,
// and mutations replace or insert single lines in place. This is
// deliberately not a generic INI parser; those normalize whitespace,
// reorder keys, and drop comments, any of which would make installed
// entries diverge from what the application shipped.
package desktop

import (
	"strings"
)

// MainSection is the section every compliant entry must carry and the
// only one the engine mutates.
const MainSection = "Desktop Entry"

// File is a parsed .desktop document.
type File struct {
	lines []string

	// trailingNewline records whether the source ended with a
	// newline, so serialization is byte-stable either way.
	trailingNewline bool
}

// Parse parses a .desktop document. Parsing is total: any input is a
// sequence of lines. Callers that need the main section use
// HasSection to check for it.
func Parse(data []byte) *File {
	text := string(data)
	trailing := strings.HasSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\n")

	file := &File{trailingNewline: trailing}
	if text == "" && !trailing {
		return file
	}
	file.lines = strings.Split(text, "\n")
	return file
}

// Bytes serializes the document.
func (f *File) Bytes() []byte {
	joined := strings.Join(f.lines, "\n")
	if f.trailingNewline {
		joined += "\n"
	}
	return []byte(joined)
}

// sectionName returns the section a header line declares, or "" when
// the line is not a header.
func sectionName(line string) string {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) >= 2 && trimmed[0] == '[' && trimmed[len(trimmed)-1] == ']' {
		return trimmed[1 : len(trimmed)-1]
	}
	return ""
}

// lineKey returns the key a line defines, or "" for comments, blanks,
// and headers. Localized keys (Name[de]) are distinct from their base
// key, matching the freedesktop entry format.
func lineKey(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || sectionName(line) != "" {
		return ""
	}
	key, _, found := strings.Cut(trimmed, "=")
	if !found {
		return ""
	}
	return strings.TrimSpace(key)
}

// lineValue returns the value portion of a key line, with surrounding
// whitespace trimmed per the entry format.
func lineValue(line string) string {
	_, value, _ := strings.Cut(line, "=")
	return strings.TrimSpace(value)
}

// sectionRange returns the half-open line range [start, end) of the
// named section's body (excluding the header line). ok is false when
// the section is absent.
func (f *File) sectionRange(section string) (start, end int, ok bool) {
	start = -1
	for index, line := range f.lines {
		name := sectionName(line)
		if name == "" {
			continue
		}
		if start >= 0 {
			return start, index, true
		}
		if name == section {
			start = index + 1
		}
	}
	if start >= 0 {
		return start, len(f.lines), true
	}
	return 0, 0, false
}

// HasSection reports whether the named section is present.
func (f *File) HasSection(section string) bool {
	_, _, ok := f.sectionRange(section)
	return ok
}

// Get returns the value of key in section. The second result is false
// when the section or key is absent.
func (f *File) Get(section, key string) (string, bool) {
	start, end, ok := f.sectionRange(section)
	if !ok {
		return "", false
	}
	for _, line := range f.lines[start:end] {
		if lineKey(line) == key {
			return lineValue(line), true
		}
	}
	return "", false
}

// Set replaces the value of key in section, or inserts the key after
// the section's last entry line when absent. A missing section is
// appended at the end of the document.
func (f *File) Set(section, key, value string) {
	entry := key + "=" + value

	start, end, ok := f.sectionRange(section)
	if !ok {
		if len(f.lines) > 0 {
			f.lines = append(f.lines, "")
		}
		f.lines = append(f.lines, "["+section+"]", entry)
		f.trailingNewline = true
		return
	}

	for index := start; index < end; index++ {
		if lineKey(f.lines[index]) == key {
			f.lines[index] = entry
			return
		}
	}

	// Insert after the last non-blank line of the section so the
	// entry stays inside the section even when a blank-line run
	// separates it from the next header.
	insertAt := start
	for index := start; index < end; index++ {
		if strings.TrimSpace(f.lines[index]) != "" {
			insertAt = index + 1
		}
	}
	f.lines = append(f.lines[:insertAt], append([]string{entry}, f.lines[insertAt:]...)...)
}

// Delete removes key from section. Reports whether anything was
// removed.
func (f *File) Delete(section, key string) bool {
	start, end, ok := f.sectionRange(section)
	if !ok {
		return false
	}
	removed := false
	kept := f.lines[:start:start]
	for index := start; index < end; index++ {
		if lineKey(f.lines[index]) == key {
			removed = true
			continue
		}
		kept = append(kept, f.lines[index])
	}
	f.lines = append(kept, f.lines[end:]...)
	return removed
}

// ExecProgram extracts the program path from an Exec-style value: the
// first field, honoring double quotes per the entry format's quoting
// rules. Field codes and arguments are ignored.
func ExecProgram(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if value[0] != '"' {
		return strings.Fields(value)[0]
	}

	// Quoted program: scan to the closing quote, unescaping \" and \\.
	var builder strings.Builder
	escaped := false
	for _, r := range value[1:] {
		if escaped {
			builder.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '"':
			return builder.String()
		default:
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// QuoteExec quotes a program path for use in an Exec value when it
// contains characters the entry format would otherwise split on.
func QuoteExec(path string) string {
	if !strings.ContainsAny(path, " \t\"") {
		return path
	}
	replacer := strings.NewReplacer("\\", "\\\\", "\"", "\\\"")
	return "\"" + replacer.Replace(path) + "\""
}
