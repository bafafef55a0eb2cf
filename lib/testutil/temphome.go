// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import "testing"

// TempHome creates a fresh temporary directory and points HOME at it
// for the duration of the test, so path defaults that expand ${HOME}
// resolve inside the test sandbox. Returns the directory.
//
// t.Setenv makes the test ineligible for t.Parallel, which is the
// point: HOME is process-global.
func TempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}
