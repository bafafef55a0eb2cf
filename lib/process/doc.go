// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for AppHub
// binaries. These functions centralize the raw I/O that exists before
// or after the structured logger:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized (pre-logger).
//   - Process exit after an unrecoverable error in main().
//
// All other output in the daemon goes through slog; all other output
// in the CLI goes through its command writer.
package process
