// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package trust decides whether a bundle may be integrated.
//
// Validation is a fixed sequence of checks that short-circuits on the
// first failure: the file exists, it carries the ELF magic, its
// filename stem parses under the bundle-name grammar, a build manifest
// in the manifest store attests it, and its build marker is present.
// Every rejection is a *Error carrying a machine-readable Reason; the
// engine surfaces the reason in the failure notification and log
// rather than dropping bundles silently.
//
// The posture is fail-closed: when provenance checking is enabled and
// the manifest store cannot be enumerated, validation fails. A store
// that is present but contains no matching manifest is an ordinary
// no-manifest rejection. Individual manifests that cannot be read or
// parsed simply attest nothing.
package trust

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Reason classifies a validation failure.
type Reason string

const (
	// ReasonMissing: the bundle file does not exist.
	ReasonMissing Reason = "missing"

	// ReasonUnreadable: the bundle file exists but cannot be opened
	// or read.
	ReasonUnreadable Reason = "unreadable"

	// ReasonNotELF: the file does not start with the ELF magic.
	ReasonNotELF Reason = "not-elf"

	// ReasonMalformedName: the filename stem does not parse under the
	// bundle-name grammar.
	ReasonMalformedName Reason = "malformed-name"

	// ReasonNoManifest: no build manifest attests this bundle.
	ReasonNoManifest Reason = "no-manifest"

	// ReasonNoMarker: the bundle's build marker file is absent.
	ReasonNoMarker Reason = "no-marker"

	// ReasonStoreUnavailable: the manifest store or marker directory
	// cannot be enumerated. Provenance cannot be established, so the
	// bundle is rejected.
	ReasonStoreUnavailable Reason = "store-unavailable"
)

// Error is a validation rejection.
type Error struct {
	// Reason classifies the rejection.
	Reason Reason

	// Path is the bundle that was rejected.
	Path string

	// Detail elaborates in human terms. May be empty.
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("bundle %s rejected: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("bundle %s rejected: %s (%s)", e.Path, e.Reason, e.Detail)
}

// elfMagic is the four-byte ELF identification prefix. Bundles are
// self-extracting executables; anything else in the watched directory
// is noise.
var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// StemParser decomposes a bundle filename stem under the bundle-name
// grammar, returning the architecture token. A non-nil error means
// the stem is malformed.
type StemParser func(stem string) (arch string, err error)

// Manifest is one build attestation document in the manifest store.
type Manifest struct {
	// Name is the application's base name. A manifest attests every
	// bundle whose stem starts with Name.
	Name string `yaml:"name"`

	// Version is informational.
	Version string `yaml:"version"`

	// Architecture is matched against the stem's architecture token
	// after alias normalization.
	Architecture string `yaml:"architecture"`
}

// Options configures a Validator.
type Options struct {
	// ManifestDir is searched recursively for manifest YAML files.
	ManifestDir string

	// MarkerDir holds build marker files named after bundle stems.
	MarkerDir string

	// CheckProvenance enables the manifest and marker checks. The
	// structural checks always run.
	CheckProvenance bool
}

// Validator validates bundles before integration.
type Validator struct {
	options Options
	parse   StemParser
}

// NewValidator returns a Validator. The parser is the bundle-name
// grammar; it must not be nil.
func NewValidator(options Options, parse StemParser) *Validator {
	if parse == nil {
		panic("trust: nil stem parser")
	}
	return &Validator{options: options, parse: parse}
}

// Validate runs the full check sequence against the bundle at path.
// Returns nil when the bundle is trusted, a *Error describing the
// first failed check otherwise.
func (v *Validator) Validate(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Error{Reason: ReasonMissing, Path: path}
		}
		return &Error{Reason: ReasonUnreadable, Path: path, Detail: err.Error()}
	}
	defer file.Close()

	var magic [4]byte
	if _, err := io.ReadFull(file, magic[:]); err != nil {
		return &Error{Reason: ReasonNotELF, Path: path, Detail: "shorter than an ELF header"}
	}
	if !bytes.Equal(magic[:], elfMagic) {
		return &Error{Reason: ReasonNotELF, Path: path}
	}

	stem := stemOf(path)
	arch, err := v.parse(stem)
	if err != nil {
		return &Error{Reason: ReasonMalformedName, Path: path, Detail: err.Error()}
	}

	if !v.options.CheckProvenance {
		return nil
	}

	attested, err := v.manifestAttests(stem, arch)
	if err != nil {
		return &Error{Reason: ReasonStoreUnavailable, Path: path, Detail: err.Error()}
	}
	if !attested {
		return &Error{Reason: ReasonNoManifest, Path: path}
	}

	markerPath := filepath.Join(v.options.MarkerDir, stem)
	if _, err := os.Stat(markerPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Error{Reason: ReasonNoMarker, Path: path, Detail: markerPath}
		}
		return &Error{Reason: ReasonStoreUnavailable, Path: path, Detail: err.Error()}
	}

	return nil
}

// manifestAttests walks the manifest store looking for a document
// whose name prefixes the stem and whose architecture matches the
// stem's token. Unparseable individual manifests attest nothing; a
// store that cannot be enumerated is an error.
func (v *Validator) manifestAttests(stem, arch string) (bool, error) {
	found := false
	walkErr := filepath.WalkDir(v.options.ManifestDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !isManifestFile(entry.Name()) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var manifest Manifest
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			return nil
		}
		if manifest.Name == "" || !strings.HasPrefix(stem, manifest.Name) {
			return nil
		}
		if normalizeArch(manifest.Architecture) != normalizeArch(arch) {
			return nil
		}

		found = true
		return fs.SkipAll
	})
	if walkErr != nil {
		return false, fmt.Errorf("enumerating manifest store %s: %w", v.options.ManifestDir, walkErr)
	}
	return found, nil
}

// isManifestFile reports whether a filename looks like a manifest
// document.
func isManifestFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// stemOf strips the directory and the final extension from a bundle
// path.
func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// archAliases maps interchangeable architecture spellings to one
// canonical token. Build systems and bundle publishers disagree on
// these; a manifest written with either spelling attests both.
var archAliases = map[string]string{
	"x86_64":  "amd64",
	"amd64":   "amd64",
	"aarch64": "arm64",
	"arm64":   "arm64",
	"armhf":   "arm",
	"arm":     "arm",
}

// normalizeArch maps an architecture token to its canonical form.
// Unknown tokens normalize to themselves.
func normalizeArch(token string) string {
	if canonical, ok := archAliases[strings.ToLower(token)]; ok {
		return canonical
	}
	return strings.ToLower(token)
}
