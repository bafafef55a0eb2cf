// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package integrate

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/apphub-foundation/apphub/lib/clock"
	"github.com/apphub-foundation/apphub/lib/config"
	"github.com/apphub-foundation/apphub/lib/testutil"
)

// etxtbsy fabricates the error shape exec.Command produces when the
// bundle is still mapped for writing.
func etxtbsy() error {
	return &os.PathError{Op: "fork/exec", Path: "/bundle", Err: unix.ETXTBSY}
}

func TestIntegrateRetriesBusyExtraction(t *testing.T) {
	fc := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	f := newFixture(t, nil, fc)
	// Busy on the first four attempts, success on the last allowed one.
	f.runner.failures = []error{etxtbsy(), etxtbsy(), etxtbsy(), etxtbsy()}
	bundle := f.writeBundle(t, "editor-2.1-x86_64.AppBox", "editor content")

	result := make(chan error, 1)
	go func() {
		result <- f.engine.Integrate(context.Background(), bundle)
	}()

	// Readiness needs one poll interval between its two size probes.
	fc.WaitForTimers(1)
	fc.Advance(time.Millisecond)

	// Each busy attempt is followed by the fixed backoff.
	for range 4 {
		fc.WaitForTimers(1)
		fc.Advance(time.Second)
	}

	if err := testutil.RequireReceive(t, result, 5*time.Second, "integration result"); err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	if got := f.runner.callCount(); got != 5 {
		t.Errorf("extraction attempts = %d, want 5", got)
	}
	if _, err := os.Stat(f.engine.entryPath("editor")); err != nil {
		t.Errorf("entry not installed after retries: %v", err)
	}
	f.requireCleanWorkspace(t)
}

func TestIntegrateGivesUpAfterBoundedBusyRetries(t *testing.T) {
	fc := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	f := newFixture(t, nil, fc)
	f.runner.failures = []error{etxtbsy(), etxtbsy(), etxtbsy(), etxtbsy(), etxtbsy()}
	bundle := f.writeBundle(t, "editor-2.1-x86_64.AppBox", "editor content")

	result := make(chan error, 1)
	go func() {
		result <- f.engine.Integrate(context.Background(), bundle)
	}()

	fc.WaitForTimers(1)
	fc.Advance(time.Millisecond)
	for range 4 {
		fc.WaitForTimers(1)
		fc.Advance(time.Second)
	}

	err := testutil.RequireReceive(t, result, 5*time.Second, "integration result")
	if err == nil || !strings.Contains(err.Error(), "5 attempts") {
		t.Fatalf("Integrate error = %v, want bounded-retry failure", err)
	}
	if got := f.runner.callCount(); got != 5 {
		t.Errorf("extraction attempts = %d, want 5", got)
	}
	notices := f.notifier.all()
	if len(notices) != 1 || notices[0].title != "AppBox Integration Failed" {
		t.Errorf("notifications = %+v, want one failure", notices)
	}
	f.requireCleanWorkspace(t)
}

func TestIntegrateAbortsOnNonBusyFailure(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.runner.failures = []error{errors.New("exec format error")}
	bundle := f.writeBundle(t, "editor-2.1-x86_64.AppBox", "editor content")

	err := f.engine.Integrate(context.Background(), bundle)
	if err == nil || !strings.Contains(err.Error(), "self-extraction failed") {
		t.Fatalf("Integrate error = %v, want immediate extraction failure", err)
	}
	if got := f.runner.callCount(); got != 1 {
		t.Errorf("extraction attempts = %d, want 1 (no retry)", got)
	}
}

// hangRunner blocks until its context expires.
type hangRunner struct{}

func (hangRunner) Run(ctx context.Context, _, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestExtractCeilingBoundsHungExtraction(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Integration.ExtractTimeout = "50ms"
	}, nil)
	f.engine.runner = hangRunner{}

	err := f.engine.extract(context.Background(), "/bundles/hung-1.0-x86_64.AppBox", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "ceiling") {
		t.Fatalf("extract error = %v, want ceiling failure", err)
	}
}
