// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package integrate

import (
	"context"
	"os"

	"golang.org/x/sys/unix"
)

// waitUntilReady polls a bundle until it looks fully written: two
// consecutive size probes agree and the file is executable. Creation
// events fire the moment a download or copy begins, so integrating
// immediately would read a truncated bundle.
//
// Stat failures and permission errors during polling are transient
// (the file may not exist yet, or may still carry the download tool's
// temporary mode) and polling continues. Returns false once the
// configured timeout elapses or ctx is cancelled.
func (e *Engine) waitUntilReady(ctx context.Context, path string) bool {
	deadline := e.clock.Now().Add(e.readyTimeout)

	previousSize := int64(-1)
	for {
		if info, err := os.Stat(path); err == nil {
			size := info.Size()
			if size == previousSize && unix.Access(path, unix.X_OK) == nil {
				return true
			}
			previousSize = size
		} else {
			previousSize = -1
		}

		if !e.clock.Now().Before(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-e.clock.After(e.readyInterval):
		}
	}
}
