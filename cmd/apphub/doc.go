// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

// Apphub is the operator CLI for the AppHub integration daemon. It
// provides subcommands for listing installed integrations (list),
// integrating and removing bundles by hand (integrate, remove), and
// running a one-shot reconciliation pass (sweep).
package main
