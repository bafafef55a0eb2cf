// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package integrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// extractMaxAttempts bounds retries of a self-extraction that fails
// with ETXTBSY. Busy-file races are expected: the shell, a package
// manager, or the desktop environment may hold the bundle open right
// after it lands. Five attempts a second apart outlasts those windows.
const extractMaxAttempts = 5

// extractRetryBackoff is the pause between ETXTBSY retries.
const extractRetryBackoff = time.Second

// Runner executes a bundle's self-extraction subprocess. Production
// uses CommandRunner; tests inject a fake that fabricates an
// extracted tree.
type Runner interface {
	// Run invokes bundlePath with argument arg, working directory
	// workingDir, and output discarded. The context carries the
	// per-attempt deadline.
	Run(ctx context.Context, bundlePath, arg, workingDir string) error
}

// CommandRunner runs the bundle as a real subprocess.
type CommandRunner struct{}

func (CommandRunner) Run(ctx context.Context, bundlePath, arg, workingDir string) error {
	cmd := exec.CommandContext(ctx, bundlePath, arg)
	cmd.Dir = workingDir
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}

// extract runs the bundle's self-extraction subcommand with the
// workspace as working directory. Each attempt runs under the
// configured wall-clock ceiling, so a wedged extraction cannot stall
// a worker forever.
//
// ETXTBSY is the one retried failure: bounded attempts with a fixed
// backoff. Everything else aborts immediately.
func (e *Engine) extract(ctx context.Context, bundlePath, workspace string) error {
	logger := e.logger.With("bundle", filepath.Base(bundlePath))

	var lastError error
	for attempt := 1; attempt <= extractMaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.clock.After(extractRetryBackoff):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.extractTimeout)
		err := e.runner.Run(attemptCtx, bundlePath, e.cfg.Integration.ExtractArg, workspace)
		cancel()
		if err == nil {
			return nil
		}
		lastError = err

		if attemptCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("self-extraction exceeded %v ceiling: %w", e.extractTimeout, err)
		}
		if !errors.Is(err, unix.ETXTBSY) {
			return fmt.Errorf("self-extraction failed: %w", err)
		}

		logger.Warn("bundle busy during self-extraction, retrying",
			"attempt", attempt,
			"error", err,
		)
	}
	return fmt.Errorf("self-extraction failed after %d attempts, bundle stayed busy: %w",
		extractMaxAttempts, lastError)
}
