// Package syncer orchestrates a deployment: resolve credentials, enumerate
// the local tree, stage it in a scratch directory, transfer it, and always
// remove the scratch directory before returning.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/UnfoldDataScience/skiff/internal/event"
	"github.com/UnfoldDataScience/skiff/internal/plan"
	"github.com/UnfoldDataScience/skiff/internal/platform"
	"github.com/UnfoldDataScience/skiff/internal/stage"
	"github.com/UnfoldDataScience/skiff/internal/stats"
	"github.com/UnfoldDataScience/skiff/internal/transport"
)

// Config describes one deployment run.
type Config struct {
	// Root is the local directory to deploy.
	Root string

	// Matcher filters the tree during enumeration. Nil includes everything.
	Matcher plan.Matcher

	// Auth resolves credentials before any filesystem work. A non-nil
	// error aborts the run with ErrCredentialInvalid. Nil skips the check
	// (local destinations).
	Auth func() error

	// Dial opens the transport when the transfer phase begins.
	Dial func(ctx context.Context) (transport.Transport, error)

	// DryRun stops after enumeration and reports what would be sent.
	DryRun bool

	// Clean removes the destination tree before transferring.
	Clean bool

	// Verify re-hashes every transferred file and compares it against the
	// staged copy.
	Verify bool

	IOURing bool

	Events chan<- event.Event
	Stats  *stats.Collector
	Logger *slog.Logger
}

// Summary reports what a completed run did.
type Summary struct {
	Files    int64
	Dirs     int64
	Bytes    int64
	Skipped  int64
	Verified int64
	Elapsed  time.Duration
	DryRun   bool
}

// Run executes a deployment. The scratch directory is removed on every
// return path, including transfer failure and context cancellation.
func Run(ctx context.Context, cfg Config) (*Summary, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	start := time.Now()

	// Phase 1: credentials. Fails before any filesystem work so a typo'd
	// key path never costs an enumeration pass.
	if cfg.Auth != nil {
		if err := cfg.Auth(); err != nil {
			return nil, phaseErr(PhaseAuth, ErrCredentialInvalid, err)
		}
	}

	// Phase 2: enumerate.
	event.Emit(cfg.Events, event.Event{Type: event.PlanStarted, Path: cfg.Root})
	p, err := plan.Build(cfg.Root, cfg.Matcher)
	if err != nil {
		return nil, classifyEnumerate(err)
	}
	if cfg.Stats != nil {
		cfg.Stats.SetTotals(int64(p.Files), p.TotalBytes)
		cfg.Stats.AddFilesPlanned(int64(p.Files))
		cfg.Stats.AddFilesSkipped(int64(p.Skipped))
	}
	event.Emit(cfg.Events, event.Event{Type: event.PlanComplete, Total: int64(p.Files), TotalSize: p.TotalBytes})
	log.Debug("plan built", "files", p.Files, "dirs", p.Dirs, "skipped", p.Skipped, "bytes", p.TotalBytes)

	if cfg.DryRun {
		return &Summary{
			Files:   int64(p.Files),
			Dirs:    int64(p.Dirs),
			Bytes:   p.TotalBytes,
			Skipped: int64(p.Skipped),
			Elapsed: time.Since(start),
			DryRun:  true,
		}, nil
	}

	// Phase 3: stage. From here on the scratch directory exists and must
	// be removed no matter how the run ends.
	scratch, err := stage.NewScratch()
	if err != nil {
		return nil, &Error{Phase: PhaseStage, Err: err}
	}

	summary, runErr := runStaged(ctx, cfg, p, scratch, log)

	if cleanErr := scratch.Remove(); cleanErr != nil {
		log.Warn("scratch cleanup failed", "dir", scratch.Dir, "error", cleanErr)
		event.Emit(cfg.Events, event.Event{Type: event.CleanupWarning, Path: scratch.Dir, Error: cleanErr})
		if runErr == nil {
			// A failed run's own error wins; cleanup trouble only
			// surfaces when everything else worked.
			runErr = phaseErr(PhaseCleanup, ErrCleanupFailed, cleanErr)
		}
	}

	if runErr != nil {
		return nil, runErr
	}
	summary.Elapsed = time.Since(start)
	return summary, nil
}

// runStaged covers the stage, transfer, and verify phases so Run can hold a
// single cleanup point for the scratch directory.
func runStaged(ctx context.Context, cfg Config, p *plan.Plan, scratch *stage.Scratch, log *slog.Logger) (*Summary, error) {
	stageCfg := stage.Config{Events: cfg.Events}
	if cfg.Stats != nil {
		stageCfg.Stats = cfg.Stats
	}
	if cfg.IOURing {
		copier, err := newIOURingCopier()
		if err != nil {
			log.Warn("io_uring unavailable, using syscall copy", "error", err)
		} else if copier != nil {
			stageCfg.IOURing = copier
			defer copier.Close()
		}
	}
	if err := stage.Run(ctx, scratch, p, stageCfg); err != nil {
		return nil, &Error{Phase: PhaseStage, Err: err}
	}
	log.Debug("staging complete", "dir", scratch.Dir)

	// Phase 4: transfer.
	t, err := cfg.Dial(ctx)
	if err != nil {
		return nil, classifyTransfer(err)
	}
	defer t.Close()

	if cfg.Clean {
		if err := t.RemoveTree(); err != nil {
			return nil, classifyTransfer(fmt.Errorf("clean destination: %w", err))
		}
		log.Info("destination cleaned")
	}

	cs, err := t.Copy(ctx, scratch.Dir, p.Entries)
	if err != nil {
		return nil, classifyTransfer(err)
	}
	log.Info("transfer complete", "files", cs.Files, "bytes", cs.Bytes, "protocol", t.Protocol().String())

	summary := &Summary{Files: cs.Files, Dirs: cs.Dirs, Bytes: cs.Bytes, Skipped: int64(p.Skipped)}

	if cfg.Verify {
		verified, err := verify(ctx, cfg, t, scratch.Dir, p.Entries)
		if err != nil {
			return nil, err
		}
		summary.Verified = verified
	}
	return summary, nil
}

// verify compares the BLAKE3 hash of every transferred file against its
// staged copy. The first mismatch aborts.
func verify(ctx context.Context, cfg Config, t transport.Transport, stagedRoot string, entries []plan.Entry) (int64, error) {
	var verified int64
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		select {
		case <-ctx.Done():
			return verified, classifyTransfer(ctx.Err())
		default:
		}

		event.Emit(cfg.Events, event.Event{Type: event.VerifyStarted, Path: e.RelPath, Size: e.Size})

		want, err := transport.HashFile(filepath.Join(stagedRoot, filepath.FromSlash(e.RelPath)))
		if err != nil {
			return verified, &Error{Phase: PhaseTransfer, Err: fmt.Errorf("hash staged %s: %w", e.RelPath, err)}
		}
		got, err := t.Hash(e.RelPath)
		if err != nil {
			return verified, &Error{Phase: PhaseTransfer, Err: fmt.Errorf("hash remote %s: %w", e.RelPath, err)}
		}
		if want != got {
			event.Emit(cfg.Events, event.Event{Type: event.VerifyFailed, Path: e.RelPath})
			if cfg.Stats != nil {
				cfg.Stats.AddFilesVerifyFailed(1)
			}
			return verified, &Error{Phase: PhaseTransfer, Err: fmt.Errorf("verify %s: hash mismatch", e.RelPath)}
		}

		event.Emit(cfg.Events, event.Event{Type: event.VerifyOK, Path: e.RelPath})
		if cfg.Stats != nil {
			cfg.Stats.AddFilesVerified(1)
		}
		verified++
	}
	return verified, nil
}

const iouringQueueDepth = 64

func newIOURingCopier() (*platform.IOURingCopier, error) {
	if !platform.KernelSupportsIOURing() {
		return nil, errors.New("kernel lacks io_uring support")
	}
	return platform.NewIOURingCopier(iouringQueueDepth)
}

func classifyEnumerate(err error) *Error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return phaseErr(PhaseEnumerate, ErrRootNotFound, err)
	case errors.Is(err, os.ErrPermission):
		return phaseErr(PhaseEnumerate, ErrPermissionDenied, err)
	default:
		return &Error{Phase: PhaseEnumerate, Err: err}
	}
}

func classifyTransfer(err error) *Error {
	if errors.Is(err, os.ErrPermission) {
		return phaseErr(PhaseTransfer, ErrPermissionDenied, err)
	}
	return phaseErr(PhaseTransfer, ErrTransferInterrupted, err)
}
