// Copyright 2026 The AppHub Authors
// SPDX-License-Identifier: Apache-2.0

package integrate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/apphub-foundation/apphub/lib/aliasledger"
	"github.com/apphub-foundation/apphub/lib/clock"
	"github.com/apphub-foundation/apphub/lib/config"
	"github.com/apphub-foundation/apphub/lib/desktop"
	"github.com/apphub-foundation/apphub/lib/digest"
	"github.com/apphub-foundation/apphub/lib/notify"
	"github.com/apphub-foundation/apphub/lib/trust"
)

// Bookkeeping keys written into the [Desktop Entry] section of every
// installed menu entry. They mark the entry as engine-owned and tie it
// to the bundle it was derived from.
const (
	// KeyIntegrated marks an entry as installed by this engine.
	KeyIntegrated = "X-AppHub-Integrated"
	// KeyBundle is the absolute path of the source bundle.
	KeyBundle = "X-AppHub-Bundle"
	// KeyDigest is the BLAKE3 digest of the bundle at install time.
	// The sweep compares it against the present bundle to detect
	// in-place replacement.
	KeyDigest = "X-AppHub-Digest"
)

// Options configures an Engine. Config and Logger are required; the
// remaining fields default to production implementations when nil.
type Options struct {
	Config *config.Config
	Logger *slog.Logger

	// Clock drives readiness polling and extraction retry backoff.
	// Defaults to the system clock.
	Clock clock.Clock

	// Notifier delivers desktop notifications for integration
	// outcomes. Defaults to notify.Detect (notify-send when present).
	Notifier notify.Notifier

	// Runner executes bundle self-extraction. Defaults to running the
	// bundle as a subprocess.
	Runner Runner
}

// Engine runs the per-bundle integration state machine and the
// reconciliation sweep over one configured set of directories.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	clock    clock.Clock
	notifier notify.Notifier
	runner   Runner

	validator *trust.Validator
	ledger    *aliasledger.Ledger

	readyTimeout   time.Duration
	readyInterval  time.Duration
	extractTimeout time.Duration

	// nameLocks serializes integrations per sanitized base name. Two
	// bundles sharing a base name contend for one record; the lock
	// closes the race between their idempotency checks.
	locksMu   sync.Mutex
	nameLocks map[string]*sync.Mutex

	// sweepMu keeps reconciliation sweeps one at a time.
	sweepMu sync.Mutex
}

// New builds an Engine from validated configuration.
func New(options Options) (*Engine, error) {
	if options.Config == nil {
		return nil, fmt.Errorf("integrate: Options.Config is required")
	}
	if options.Logger == nil {
		return nil, fmt.Errorf("integrate: Options.Logger is required")
	}
	cfg := options.Config

	readyTimeout, err := cfg.Integration.ReadyTimeoutDuration()
	if err != nil {
		return nil, err
	}
	readyInterval, err := cfg.Integration.ReadyPollIntervalDuration()
	if err != nil {
		return nil, err
	}
	extractTimeout, err := cfg.Integration.ExtractTimeoutDuration()
	if err != nil {
		return nil, err
	}

	engineClock := options.Clock
	if engineClock == nil {
		engineClock = clock.Real()
	}
	notifier := options.Notifier
	if notifier == nil {
		if cfg.Notify.Enabled {
			notifier = notify.Detect(options.Logger)
		} else {
			notifier = notify.Discard{}
		}
	}
	runner := options.Runner
	if runner == nil {
		runner = CommandRunner{}
	}

	validator := trust.NewValidator(trust.Options{
		ManifestDir:     cfg.Trust.ManifestDir,
		MarkerDir:       cfg.Trust.MarkerDir,
		CheckProvenance: cfg.Trust.Enabled,
	}, stemArchitecture)

	return &Engine{
		cfg:            cfg,
		logger:         options.Logger,
		clock:          engineClock,
		notifier:       notifier,
		runner:         runner,
		validator:      validator,
		ledger:         aliasledger.New(cfg.Paths.AliasFile),
		readyTimeout:   readyTimeout,
		readyInterval:  readyInterval,
		extractTimeout: extractTimeout,
		nameLocks:      make(map[string]*sync.Mutex),
	}, nil
}

// stemArchitecture adapts the bundle-name grammar for the trust
// validator, which only needs the architecture token.
func stemArchitecture(stem string) (string, error) {
	name, err := ParseStem(stem)
	if err != nil {
		return "", err
	}
	return name.Architecture, nil
}

// EnsureAliasesSourced makes the configured shell rc source the alias
// file, so freshly written aliases reach new shells.
func (e *Engine) EnsureAliasesSourced() error {
	if e.cfg.Paths.ShellRC == "" {
		return nil
	}
	return e.ledger.EnsureSourced(e.cfg.Paths.ShellRC)
}

// Integrate runs the full state machine for one bundle: readiness
// wait, trust validation, self-extraction, metadata synthesis, and
// installation. Idempotent: a bundle whose menu entry already exists
// is skipped. The error return carries the failure for callers that
// count or exit on it; Integrate itself has already logged and
// notified by the time it returns.
func (e *Engine) Integrate(ctx context.Context, bundlePath string) error {
	name, err := ParseBundlePath(bundlePath, e.cfg.Integration.BundleExtension)
	if err != nil {
		e.reportFailure(ctx, bundlePath, err)
		return err
	}
	base := name.SanitizedBase()
	logger := e.logger.With("bundle", filepath.Base(bundlePath), "name", base)

	unlock := e.lockName(base)
	defer unlock()

	target := e.entryPath(base)
	if _, err := os.Stat(target); err == nil {
		logger.Info("menu entry already present, skipping integration", "entry", target)
		return nil
	}

	if !e.waitUntilReady(ctx, bundlePath) {
		err := fmt.Errorf("bundle never became stable and executable within %v", e.readyTimeout)
		e.reportFailure(ctx, bundlePath, err)
		return err
	}

	if err := e.validator.Validate(bundlePath); err != nil {
		e.reportFailure(ctx, bundlePath, err)
		return err
	}

	contentDigest, err := digest.File(bundlePath)
	if err != nil {
		err = fmt.Errorf("digesting bundle: %w", err)
		e.reportFailure(ctx, bundlePath, err)
		return err
	}

	workspace, err := os.MkdirTemp(e.cfg.Paths.WorkspaceRoot, base+"-extract-*")
	if err != nil {
		err = fmt.Errorf("creating extraction workspace: %w", err)
		e.reportFailure(ctx, bundlePath, err)
		return err
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			logger.Warn("extraction workspace not fully removed", "workspace", workspace, "error", err)
		}
	}()

	if err := e.extract(ctx, bundlePath, workspace); err != nil {
		e.reportFailure(ctx, bundlePath, err)
		return err
	}

	found, err := findArtifacts(workspace)
	if err != nil {
		e.reportFailure(ctx, bundlePath, err)
		return err
	}

	installedIcon := ""
	if found.icon != "" {
		installedIcon, err = e.installIcon(found.icon, base)
		if err != nil {
			logger.Warn("icon install failed, continuing without icon", "icon", found.icon, "error", err)
			installedIcon = ""
		}
	}

	record, err := e.synthesize(found.entry, bundlePath, installedIcon, contentDigest)
	if err != nil {
		e.reportFailure(ctx, bundlePath, err)
		return err
	}

	if err := writeFileAtomic(target, record.content, 0644); err != nil {
		err = fmt.Errorf("installing menu entry: %w", err)
		e.reportFailure(ctx, bundlePath, err)
		return err
	}

	if record.cli {
		if err := e.ledger.Add(base, bundlePath); err != nil {
			// Roll the entry back so a retry is not skipped by the
			// idempotency gate with the alias still missing.
			os.Remove(target)
			err = fmt.Errorf("recording shell alias: %w", err)
			e.reportFailure(ctx, bundlePath, err)
			return err
		}
	}

	logger.Info("bundle integrated",
		"entry", target,
		"cli", record.cli,
		"icon", installedIcon,
		"digest", contentDigest.String(),
	)
	e.notifier.Notify(ctx, "AppBox Integrated",
		fmt.Sprintf("%s has been added to your applications menu.", record.displayName))
	return nil
}

// Remove deletes the installed record for a bundle that left the
// watched directory. Synchronous and cheap: lookups and unlinks only.
// Idempotent; removing a bundle that was never integrated is a no-op.
func (e *Engine) Remove(ctx context.Context, bundlePath string) error {
	name, err := ParseBundlePath(bundlePath, e.cfg.Integration.BundleExtension)
	if err != nil {
		// Never integrated: nothing installed under a name we could
		// not derive in the first place.
		e.logger.Debug("ignoring removal of unparseable bundle name", "bundle", filepath.Base(bundlePath))
		return nil
	}
	base := name.SanitizedBase()

	unlock := e.lockName(base)
	defer unlock()

	return e.removeRecord(base, bundlePath)
}

// RemoveName deletes the installed record for a sanitized base name,
// regardless of which bundle backs it. The operator CLI uses this for
// removal by name as printed by "apphub list".
func (e *Engine) RemoveName(ctx context.Context, base string) error {
	unlock := e.lockName(base)
	defer unlock()

	return e.removeRecord(base, "")
}

// removeRecord deletes the menu entry, managed icon, and alias block
// for base. A non-empty bundlePath restricts removal to records that
// actually reference that bundle, so deleting editor-2.1 does not tear
// down a record now owned by editor-2.2. The sweep passes "" after
// deciding staleness itself.
func (e *Engine) removeRecord(base, bundlePath string) error {
	entryFile := e.entryPath(base)
	logger := e.logger.With("name", base, "entry", entryFile)

	data, err := os.ReadFile(entryFile)
	if err != nil {
		if os.IsNotExist(err) {
			// Entry already gone; clear any lingering alias block.
			return e.removeAlias(base)
		}
		return fmt.Errorf("reading menu entry %s: %w", entryFile, err)
	}
	entry := desktop.Parse(data)

	if !e.ownsEntry(entry) {
		logger.Warn("menu entry is not engine-owned, leaving it in place")
		return e.removeAlias(base)
	}

	if bundlePath != "" {
		referenced, _ := entry.Get(desktop.MainSection, KeyBundle)
		if referenced != "" && referenced != bundlePath {
			if _, err := os.Stat(referenced); err == nil {
				logger.Info("menu entry belongs to a different present bundle, keeping it",
					"referenced", referenced, "removed", bundlePath)
				return nil
			}
		}
	}

	if err := os.Remove(entryFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing menu entry %s: %w", entryFile, err)
	}

	if iconValue, ok := entry.Get(desktop.MainSection, "Icon"); ok && pathWithin(iconValue, e.cfg.Paths.IconDir) {
		if err := os.Remove(iconValue); err != nil && !os.IsNotExist(err) {
			logger.Warn("managed icon not removed", "icon", iconValue, "error", err)
		}
	}

	if err := e.removeAlias(base); err != nil {
		return err
	}

	logger.Info("integration removed")
	return nil
}

// removeAlias clears the alias block for base. A missing alias file or
// absent block is a no-op inside the ledger.
func (e *Engine) removeAlias(base string) error {
	if err := e.ledger.Remove(base); err != nil {
		return fmt.Errorf("removing shell alias: %w", err)
	}
	return nil
}

// ownsEntry reports whether a menu entry was installed by this engine:
// either it carries the ownership marker, or its Exec program points
// into the bundle directory.
func (e *Engine) ownsEntry(entry *desktop.File) bool {
	if marker, ok := entry.Get(desktop.MainSection, KeyIntegrated); ok && strings.EqualFold(marker, "true") {
		return true
	}
	execValue, ok := entry.Get(desktop.MainSection, "Exec")
	if !ok {
		return false
	}
	return pathWithin(desktop.ExecProgram(execValue), e.cfg.Paths.BundleDir)
}

// entryPath returns the target menu entry path for a sanitized base
// name. Identity-stable: derived from the bundle's name grammar, never
// from filenames inside the extracted tree.
func (e *Engine) entryPath(base string) string {
	return filepath.Join(e.cfg.Paths.ApplicationsDir, base+".desktop")
}

// lockName locks the per-base-name mutex and returns the unlock.
func (e *Engine) lockName(base string) func() {
	e.locksMu.Lock()
	lock, ok := e.nameLocks[base]
	if !ok {
		lock = &sync.Mutex{}
		e.nameLocks[base] = lock
	}
	e.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// reportFailure logs an integration failure and raises the "failed"
// notification. Every abandoned bundle goes through here so no failure
// is silently dropped.
func (e *Engine) reportFailure(ctx context.Context, bundlePath string, reason error) {
	fileName := filepath.Base(bundlePath)
	e.logger.Error("bundle integration failed", "bundle", fileName, "error", reason)
	e.notifier.Notify(ctx, "AppBox Integration Failed", fmt.Sprintf("%s: %v", fileName, reason))
}

// pathWithin reports whether path lies strictly inside directory.
func pathWithin(path, directory string) bool {
	if path == "" || directory == "" {
		return false
	}
	rel, err := filepath.Rel(directory, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
