// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for AppHub
// binaries.
//
// Configuration is loaded from a single file specified by either the
// APPHUB_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides. A missing APPHUB_CONFIG is
// not an error for [LoadOrDefault], which the daemon uses so a stock
// installation runs with defaults alone.
//
// Variable expansion is performed on path fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Integration, Trust,
//     Logging, Notify
//   - [Default] -- returns a Config with stock single-user defaults
//   - [Load], [LoadOrDefault], and [LoadFile] -- the entry points
//
// This package depends on no other AppHub packages.
package config
