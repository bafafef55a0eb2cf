// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package integrate implements the bundle integration engine: the
// per-bundle state machine that turns a .AppBox file into a desktop
// menu entry, an icon, and (for command-line tools) a shell alias,
// plus the reconciliation sweep that keeps those installed records
// consistent with the bundle directory over time.
//
// The state machine for one bundle runs readiness detection, trust
// validation, self-extraction into an ephemeral workspace, metadata
// synthesis from the extracted tree, and installation. Every step is
// idempotent: duplicate events, daemon restarts, and sweep re-runs
// converge on the same installed state.
package integrate
