// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/apphub-foundation/apphub/integrate"
	"github.com/apphub-foundation/apphub/lib/config"
	"github.com/apphub-foundation/apphub/lib/logfile"
	"github.com/apphub-foundation/apphub/lib/process"
	"github.com/apphub-foundation/apphub/lib/version"
	"github.com/apphub-foundation/apphub/lib/watcher"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		logFile     string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "path to apphub.yaml (overrides APPHUB_CONFIG)")
	flag.StringVar(&logFile, "log-file", "", "route logs to this size-rotated file (overrides logging.file)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("apphub-daemon %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger, closeLogs, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLogs()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := integrate.New(integrate.Options{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	// Aliases only reach new shells once the rc sources the alias file.
	// A read-only or exotic rc is not fatal; the ledger still records.
	if err := engine.EnsureAliasesSourced(); err != nil {
		logger.Warn("shell rc not updated to source aliases",
			"rc", cfg.Paths.ShellRC, "error", err)
	}

	sweepInterval, err := cfg.Integration.SweepIntervalDuration()
	if err != nil {
		return err
	}

	watch, err := watcher.Watch(cfg.Paths.BundleDir, cfg.Integration.BundleExtension, logger)
	if err != nil {
		return fmt.Errorf("watching bundle directory: %w", err)
	}
	defer watch.Close()

	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)

	daemon := &daemon{
		logger:        logger,
		engine:        engine,
		watcher:       watch,
		sweepInterval: sweepInterval,
		hangup:        hangup,
	}

	logger.Info("apphub daemon started",
		"version", version.Info(),
		"bundle_dir", cfg.Paths.BundleDir,
		"extension", cfg.Integration.BundleExtension,
		"trust", cfg.Trust.Enabled,
	)

	// Converge whatever happened while the daemon was down. Sweep
	// failures are not fatal: live events and later sweeps still
	// reconcile.
	if _, err := engine.Sweep(ctx); err != nil {
		logger.Error("startup sweep failed", "error", err)
	}

	loopErr := daemon.loop(ctx)

	logger.Info("shutting down, draining in-flight integrations")
	daemon.workers.Wait()
	if loopErr != nil {
		return loopErr
	}
	logger.Info("shutdown complete")
	return nil
}

// loadConfig resolves configuration the same way the operator CLI
// does: an explicit --config path wins, then APPHUB_CONFIG, then the
// built-in single-user defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadOrDefault()
}

// newLogger builds the daemon logger. A configured log file gets JSON
// lines through the rotating writer; otherwise logs go to stderr, as
// text on a terminal and JSON when piped or captured by a supervisor.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}

	if cfg.Logging.File != "" {
		sink, err := logfile.Open(cfg.Logging.File, cfg.Logging.MaxSizeBytes, cfg.Logging.MaxBackups)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		logger := slog.New(slog.NewJSONHandler(sink, options))
		return logger, func() { _ = sink.Close() }, nil
	}

	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler), func() {}, nil
}

// daemon owns the event loop: watcher events fan out to integration
// workers, removals run inline, and sweeps serialize inside the
// engine.
type daemon struct {
	logger        *slog.Logger
	engine        *integrate.Engine
	watcher       *watcher.Watcher
	sweepInterval time.Duration
	hangup        <-chan os.Signal

	// workers tracks in-flight integration goroutines so shutdown can
	// drain them instead of abandoning half-installed records.
	workers sync.WaitGroup
}

// loop runs until the context is cancelled (clean shutdown, returns
// nil) or the watcher stops delivering (returns an error; the watch
// read loop has already logged the cause).
func (d *daemon) loop(ctx context.Context) error {
	var tick <-chan time.Time
	if d.sweepInterval > 0 {
		ticker := time.NewTicker(d.sweepInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.hangup:
			d.logger.Info("SIGHUP received, running reconciliation sweep")
			d.sweep(ctx)
		case <-tick:
			d.sweep(ctx)
		case event, ok := <-d.watcher.Events():
			if !ok {
				return fmt.Errorf("bundle directory watch stopped unexpectedly")
			}
			d.dispatch(ctx, event)
		}
	}
}

// dispatch routes one watcher event. Creations fan out to a goroutine
// each: a bundle spending its readiness window must not delay the
// next event. Removals are cheap unlinks and run inline, which also
// orders a rapid delete-then-recreate of the same name correctly.
func (d *daemon) dispatch(ctx context.Context, event watcher.Event) {
	if event.Overflow {
		d.logger.Warn("watch queue overflowed, reconciling by sweep")
		d.sweep(ctx)
		return
	}

	switch event.Op {
	case watcher.Created:
		// Workers outlive a shutdown signal: the daemon drains them
		// rather than cancelling half-done installs.
		workerCtx := context.WithoutCancel(ctx)
		d.workers.Add(1)
		go func() {
			defer d.workers.Done()
			// The engine has logged and notified any failure.
			_ = d.engine.Integrate(workerCtx, event.Path)
		}()
	case watcher.Removed:
		if err := d.engine.Remove(ctx, event.Path); err != nil {
			d.logger.Error("record removal failed", "bundle", event.Path, "error", err)
		}
	}
}

func (d *daemon) sweep(ctx context.Context) {
	if _, err := d.engine.Sweep(ctx); err != nil {
		d.logger.Error("reconciliation sweep failed", "error", err)
	}
}
