// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

// Apphub-daemon watches a drop directory for AppBox application
// bundles and keeps the desktop in sync with it: menu entries, icons,
// and shell aliases appear when a bundle does and disappear when it
// goes. A reconciliation sweep at startup, on SIGHUP, and on an
// optional timer converges state the watcher missed.
package main
