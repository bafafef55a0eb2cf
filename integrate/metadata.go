// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package integrate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/apphub-foundation/apphub/lib/desktop"
	"github.com/apphub-foundation/apphub/lib/digest"
)

// foundArtifacts holds what the workspace walk located inside the
// extracted tree.
type foundArtifacts struct {
	// entry is the first menu entry file, depth-first lexical order.
	entry string
	// icon is the first icon file, or "" when the tree has none.
	icon string
}

var iconExtensions = map[string]bool{
	".png": true,
	".svg": true,
	".xpm": true,
}

// findArtifacts walks the extracted tree depth-first for the first
// menu entry file and the first icon. A tree without a menu entry
// cannot be integrated; a tree without an icon can.
func findArtifacts(workspace string) (foundArtifacts, error) {
	var found foundArtifacts
	err := filepath.WalkDir(workspace, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		extension := strings.ToLower(filepath.Ext(path))
		if found.entry == "" && extension == ".desktop" {
			found.entry = path
		}
		if found.icon == "" && iconExtensions[extension] {
			found.icon = path
		}
		if found.entry != "" && found.icon != "" {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return foundArtifacts{}, fmt.Errorf("scanning extracted tree: %w", err)
	}
	if found.entry == "" {
		return foundArtifacts{}, fmt.Errorf("extracted tree contains no menu entry (.desktop) file")
	}
	return found, nil
}

// record is the synthesized installation payload for one bundle.
type record struct {
	// content is the full menu entry file, rewritten and ready for an
	// atomic write to the applications directory.
	content []byte
	// displayName is the entry's Name, for the notification. Falls
	// back to the entry filename stem.
	displayName string
	// cli marks a NoDisplay entry: a command-line tool that gets a
	// shell alias instead of a menu presence.
	cli bool
}

// synthesize rewrites the extracted menu entry so it launches the
// original bundle rather than the ephemeral extracted copy, points at
// the installed icon, and carries the engine's bookkeeping keys.
// Every unrelated line of the source entry passes through untouched.
func (e *Engine) synthesize(entryPath, bundlePath, installedIcon string, contentDigest digest.Digest) (*record, error) {
	data, err := os.ReadFile(entryPath)
	if err != nil {
		return nil, fmt.Errorf("reading extracted menu entry: %w", err)
	}
	entry := desktop.Parse(data)
	if !entry.HasSection(desktop.MainSection) {
		return nil, fmt.Errorf("extracted menu entry %s has no [Desktop Entry] section", filepath.Base(entryPath))
	}

	entry.Set(desktop.MainSection, "Exec", desktop.QuoteExec(bundlePath))
	entry.Set(desktop.MainSection, "TryExec", bundlePath)
	if installedIcon != "" {
		entry.Set(desktop.MainSection, "Icon", installedIcon)
	}

	entry.Set(desktop.MainSection, KeyIntegrated, "true")
	entry.Set(desktop.MainSection, KeyBundle, bundlePath)
	entry.Set(desktop.MainSection, KeyDigest, contentDigest.String())

	noDisplay, _ := entry.Get(desktop.MainSection, "NoDisplay")
	cli := strings.EqualFold(noDisplay, "true")

	displayName, ok := entry.Get(desktop.MainSection, "Name")
	if !ok || displayName == "" {
		displayName = strings.TrimSuffix(filepath.Base(entryPath), ".desktop")
	}

	return &record{
		content:     entry.Bytes(),
		displayName: displayName,
		cli:         cli,
	}, nil
}
