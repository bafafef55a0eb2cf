// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify delivers desktop notifications for integration
// outcomes.
//
// Notifications are strictly best-effort: a missing notification
// daemon, a broken session bus, or a slow notify-send never fails an
// integration. The engine takes a Notifier at construction so tests
// can capture notifications and headless deployments can discard
// them.
package notify

import (
	"context"
	"log/slog"
	"os/exec"
	"time"
)

const (
	// applicationName is reported to the notification server.
	applicationName = "apphubd"

	// sendTimeout bounds one notify-send invocation so a stuck
	// notification server cannot pin a worker goroutine.
	sendTimeout = 5 * time.Second
)

// Notifier delivers a desktop notification. Implementations swallow
// delivery failures; callers treat every Notify as fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, title, message string)
}

// Command sends notifications through the notify-send binary.
type Command struct {
	binary string
	logger *slog.Logger
}

// NewCommand resolves notify-send on PATH and returns a Command
// notifier. Returns an error when the binary is not installed.
func NewCommand(logger *slog.Logger) (*Command, error) {
	binary, err := exec.LookPath("notify-send")
	if err != nil {
		return nil, err
	}
	return &Command{binary: binary, logger: logger}, nil
}

// Notify invokes notify-send with a normal-urgency informational
// notification. Failures are logged at debug level and otherwise
// ignored.
func (c *Command) Notify(ctx context.Context, title, message string) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary,
		"-a", applicationName,
		"-u", "normal",
		"-i", "dialog-information",
		title, message)
	if err := cmd.Run(); err != nil {
		c.logger.Debug("notification delivery failed",
			"title", title,
			"error", err)
	}
}

// Discard drops all notifications. Used in tests and headless
// deployments.
type Discard struct{}

// Notify does nothing.
func (Discard) Notify(context.Context, string, string) {}

// Detect returns a Command notifier when notify-send is installed and
// Discard otherwise. The choice is logged once so operators can tell
// why notifications are absent.
func Detect(logger *slog.Logger) Notifier {
	notifier, err := NewCommand(logger)
	if err != nil {
		logger.Info("notify-send not found, desktop notifications disabled")
		return Discard{}
	}
	return notifier
}
