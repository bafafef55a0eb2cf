// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package digest computes BLAKE3 content digests of bundle files.
//
// The digest recorded at install time is the join between a menu
// entry and the exact bundle content it was synthesized from: the
// reconciliation sweep re-integrates a bundle whose on-disk content no
// longer matches the digest in its entry (replaced in place under the
// same name).
package digest

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest.
type Digest [32]byte

// File computes the BLAKE3 digest of the file at path. The file is
// streamed through the hash function (via io.Copy) to keep memory
// usage constant regardless of bundle size.
func File(path string) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// String returns the canonical hex encoding. This is the format stored
// in menu entries and printed in logs.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Parse parses a hex-encoded digest string. Returns an error if the
// string is not a valid 64-character hex encoding of 32 bytes.
func Parse(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != 32 {
		return digest, fmt.Errorf("digest is %d bytes, want 32", len(decoded))
	}
	copy(digest[:], decoded)
	return digest, nil
}
