// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts wall-clock time for deterministic tests.
//
// Code that waits on time accepts a Clock instead of calling the time
// package directly. Real() delegates to the standard library. Fake()
// returns a clock whose time moves only when a test calls Advance, so
// polling loops, retry backoffs, and periodic sweeps can be driven
// without real sleeps.
//
// A typical test starts the code under test in a goroutine, calls
// WaitForTimers to block until that code has registered its timer, then
// calls Advance to fire it:
//
//	fake := clock.Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
//	go poller.run(ctx)
//	fake.WaitForTimers(1)
//	fake.Advance(200 * time.Millisecond)
package clock
