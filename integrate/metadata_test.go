// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package integrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/apphub-foundation/apphub/lib/desktop"
	"github.com/apphub-foundation/apphub/lib/digest"
)

// plantFile creates path (and parents) with content.
func plantFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestFindArtifactsPicksFirstInWalkOrder(t *testing.T) {
	workspace := t.TempDir()
	plantFile(t, filepath.Join(workspace, "alpha", "first.desktop"), "[Desktop Entry]\n")
	plantFile(t, filepath.Join(workspace, "alpha", "zed.png"), "png")
	plantFile(t, filepath.Join(workspace, "beta", "second.desktop"), "[Desktop Entry]\n")
	plantFile(t, filepath.Join(workspace, "beta", "aaa.svg"), "svg")

	found, err := findArtifacts(workspace)
	if err != nil {
		t.Fatalf("findArtifacts: %v", err)
	}
	if want := filepath.Join(workspace, "alpha", "first.desktop"); found.entry != want {
		t.Errorf("entry = %q, want %q", found.entry, want)
	}
	if want := filepath.Join(workspace, "alpha", "zed.png"); found.icon != want {
		t.Errorf("icon = %q, want %q", found.icon, want)
	}
}

func TestFindArtifactsIconIsOptional(t *testing.T) {
	workspace := t.TempDir()
	plantFile(t, filepath.Join(workspace, "app.desktop"), "[Desktop Entry]\n")

	found, err := findArtifacts(workspace)
	if err != nil {
		t.Fatalf("findArtifacts: %v", err)
	}
	if found.icon != "" {
		t.Errorf("icon = %q, want none", found.icon)
	}
}

func TestFindArtifactsMissingEntryIsFatal(t *testing.T) {
	workspace := t.TempDir()
	plantFile(t, filepath.Join(workspace, "logo.png"), "png")

	_, err := findArtifacts(workspace)
	if err == nil || !strings.Contains(err.Error(), "no menu entry") {
		t.Fatalf("findArtifacts error = %v, want missing-entry failure", err)
	}
}

func TestFindArtifactsRecognizesIconFormats(t *testing.T) {
	for _, extension := range []string{".png", ".svg", ".xpm"} {
		t.Run(extension, func(t *testing.T) {
			workspace := t.TempDir()
			plantFile(t, filepath.Join(workspace, "app.desktop"), "[Desktop Entry]\n")
			plantFile(t, filepath.Join(workspace, "logo"+extension), "icon")

			found, err := findArtifacts(workspace)
			if err != nil {
				t.Fatalf("findArtifacts: %v", err)
			}
			if found.icon == "" {
				t.Errorf("icon with extension %s not recognized", extension)
			}
		})
	}
}

func TestSynthesizeRewritesLaunchFields(t *testing.T) {
	f := newFixture(t, nil, nil)
	source := strings.Join([]string{
		"#!/usr/bin/env xdg-open",
		"[Desktop Entry]",
		"Type=Application",
		"Name=My Editor",
		"Name[de]=Mein Editor",
		"Exec=AppRun %U",
		"TryExec=AppRun",
		"Icon=editor",
		"Categories=Utility;",
		"",
		"[Desktop Action New]",
		"Name=New Window",
		"Exec=AppRun --new",
		"",
	}, "\n")
	entryPath := filepath.Join(t.TempDir(), "app.desktop")
	plantFile(t, entryPath, source)

	bundle := "/bundles/my editor-2.1-x86_64.AppBox"
	var contentDigest digest.Digest
	rec, err := f.engine.synthesize(entryPath, bundle, "/icons/my-editor.png", contentDigest)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	out := desktop.Parse(rec.content)
	if got, _ := out.Get(desktop.MainSection, "Exec"); got != `"/bundles/my editor-2.1-x86_64.AppBox"` {
		t.Errorf("Exec = %q, want quoted bundle path", got)
	}
	if got, _ := out.Get(desktop.MainSection, "TryExec"); got != bundle {
		t.Errorf("TryExec = %q, want %q", got, bundle)
	}
	if got, _ := out.Get(desktop.MainSection, "Icon"); got != "/icons/my-editor.png" {
		t.Errorf("Icon = %q", got)
	}
	if got, _ := out.Get(desktop.MainSection, KeyDigest); got != contentDigest.String() {
		t.Errorf("%s = %q, want %q", KeyDigest, got, contentDigest.String())
	}
	if rec.cli {
		t.Errorf("graphical entry classified as CLI")
	}
	if rec.displayName != "My Editor" {
		t.Errorf("displayName = %q, want My Editor", rec.displayName)
	}

	// Localized names, the shebang, and the action section pass
	// through untouched.
	text := string(rec.content)
	for _, want := range []string{
		"#!/usr/bin/env xdg-open",
		"Name[de]=Mein Editor",
		"[Desktop Action New]",
		"Exec=AppRun --new",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("synthesized entry lost %q:\n%s", want, text)
		}
	}
}

func TestSynthesizeClassifiesCLI(t *testing.T) {
	f := newFixture(t, nil, nil)
	for _, value := range []string{"true", "TRUE", "True"} {
		entryPath := filepath.Join(t.TempDir(), "app.desktop")
		plantFile(t, entryPath, "[Desktop Entry]\nName=Tool\nExec=AppRun\nNoDisplay="+value+"\n")

		rec, err := f.engine.synthesize(entryPath, "/bundles/tool-1.0-x86_64.AppBox", "", digest.Digest{})
		if err != nil {
			t.Fatalf("synthesize: %v", err)
		}
		if !rec.cli {
			t.Errorf("NoDisplay=%s not classified as CLI", value)
		}
	}
}

func TestSynthesizeWithoutIconKeepsOriginalIconValue(t *testing.T) {
	f := newFixture(t, nil, nil)
	entryPath := filepath.Join(t.TempDir(), "app.desktop")
	plantFile(t, entryPath, "[Desktop Entry]\nName=Tool\nExec=AppRun\nIcon=themed-name\n")

	rec, err := f.engine.synthesize(entryPath, "/bundles/tool-1.0-x86_64.AppBox", "", digest.Digest{})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	out := desktop.Parse(rec.content)
	if got, _ := out.Get(desktop.MainSection, "Icon"); got != "themed-name" {
		t.Errorf("Icon = %q, want original themed-name", got)
	}
}

func TestSynthesizeRejectsEntryWithoutMainSection(t *testing.T) {
	f := newFixture(t, nil, nil)
	entryPath := filepath.Join(t.TempDir(), "app.desktop")
	plantFile(t, entryPath, "[Some Other Section]\nKey=value\n")

	_, err := f.engine.synthesize(entryPath, "/bundles/tool-1.0-x86_64.AppBox", "", digest.Digest{})
	if err == nil || !strings.Contains(err.Error(), "[Desktop Entry]") {
		t.Fatalf("synthesize error = %v, want missing-section failure", err)
	}
}

func TestSynthesizeFallsBackToFilenameForDisplayName(t *testing.T) {
	f := newFixture(t, nil, nil)
	entryPath := filepath.Join(t.TempDir(), "fallback.desktop")
	plantFile(t, entryPath, "[Desktop Entry]\nExec=AppRun\n")

	rec, err := f.engine.synthesize(entryPath, "/bundles/tool-1.0-x86_64.AppBox", "", digest.Digest{})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if rec.displayName != "fallback" {
		t.Errorf("displayName = %q, want fallback", rec.displayName)
	}
}

func TestSynthesizeIsByteStableForForeignContent(t *testing.T) {
	f := newFixture(t, nil, nil)
	source := strings.Join([]string{
		"# leading comment",
		"[Desktop Entry]",
		"Name=App",
		"Exec=old",
		"TryExec=old",
		"Icon=old",
		"X-AppHub-Integrated=x",
		"X-AppHub-Bundle=x",
		"X-AppHub-Digest=x",
		"",
		"# trailing comment",
		"",
	}, "\n")
	entryPath := filepath.Join(t.TempDir(), "app.desktop")
	plantFile(t, entryPath, source)

	bundle := "/bundles/app-1.0-x86_64.AppBox"
	rec, err := f.engine.synthesize(entryPath, bundle, "/icons/app.png", digest.Digest{})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	// With every rewritten key already present, the output differs
	// from the input only in those values: same lines, same order.
	want := strings.Join([]string{
		"# leading comment",
		"[Desktop Entry]",
		"Name=App",
		"Exec=" + bundle,
		"TryExec=" + bundle,
		"Icon=/icons/app.png",
		"X-AppHub-Integrated=true",
		"X-AppHub-Bundle=" + bundle,
		"X-AppHub-Digest=" + digest.Digest{}.String(),
		"",
		"# trailing comment",
		"",
	}, "\n")
	if diff := cmp.Diff(want, string(rec.content)); diff != "" {
		t.Errorf("synthesized entry mismatch (-want +got):\n%s", diff)
	}
}
