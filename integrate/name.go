// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package integrate

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrAmbiguousName reports a bundle filename that does not decompose
// into name, version, and architecture segments.
var ErrAmbiguousName = errors.New("bundle name does not decompose into name-version-architecture")

// BundleName is the decomposed identity of a bundle filename stem.
type BundleName struct {
	// Base is the product name. It may itself contain a hyphen when
	// the name's second word carries no digit (word-processor).
	Base string
	// Version is the middle segment, hyphens preserved. Empty when
	// the stem has no tokens between the name and the architecture.
	Version string
	// Architecture is the last hyphen-separated token, verbatim.
	Architecture string
}

// ParseStem decomposes a filename stem of the form
// name[-name2]-version-arch.
//
// The stem splits on hyphens: fewer than three tokens is ambiguous
// and rejected rather than guessed. The last token is always the
// architecture. The base name consumes the first token, plus the
// second when the second contains no ASCII digit; this keeps
// multi-word names (word-processor) whole while leaving
// digit-leading versions (2.1) out of the name.
//
// The heuristic cannot tell a digit-bearing second name word from a
// version: studio-3d-1.0-x86_64 parses with base "studio". Names
// whose first word carries the digit are unaffected: app2-pro
// parses whole, because the digit test applies to the second token
// only.
func ParseStem(stem string) (BundleName, error) {
	tokens := strings.Split(stem, "-")
	if len(tokens) < 3 {
		return BundleName{}, fmt.Errorf("%w: %q has %d hyphen-separated tokens, need at least 3", ErrAmbiguousName, stem, len(tokens))
	}

	architecture := tokens[len(tokens)-1]
	remaining := tokens[:len(tokens)-1]

	base := remaining[0]
	consumed := 1
	if len(remaining) >= 2 && !containsASCIIDigit(remaining[1]) {
		base = base + "-" + remaining[1]
		consumed = 2
	}

	return BundleName{
		Base:         base,
		Version:      strings.Join(remaining[consumed:], "-"),
		Architecture: architecture,
	}, nil
}

// ParseBundlePath decomposes the filename of a bundle path, stripping
// extension (e.g. ".AppBox") first.
func ParseBundlePath(path, extension string) (BundleName, error) {
	stem := strings.TrimSuffix(filepath.Base(path), extension)
	return ParseStem(stem)
}

// Sanitize maps the shell- and filesystem-hostile characters ':',
// '+', and '~' to '-'. Total and deterministic: equal inputs always
// yield equal outputs, so the sanitized base name is a stable join
// key across menu entry, icon, and alias.
func Sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '+', '~':
			return '-'
		}
		return r
	}, name)
}

// SanitizedBase returns the sanitized base name, the identity under
// which the bundle's menu entry, icon, and alias are installed.
func (n BundleName) SanitizedBase() string {
	return Sanitize(n.Base)
}

func containsASCIIDigit(token string) bool {
	for _, r := range token {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
