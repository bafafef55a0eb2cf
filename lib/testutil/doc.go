// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for AppHub packages.
//
// [TempHome] redirects HOME to a fresh temporary directory so tests can
// exercise the daemon's real path derivation (watched directory, menu
// directory, alias file) without touching the developer's account.
//
// [RequireReceive] encapsulates the timeout safety valve pattern
// (select with a time.After fallback) so that individual tests do not
// need direct time.After calls.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no AppHub-internal dependencies.
package testutil
