// Package stage assembles the filtered file set in a scratch directory
// before transfer. The scratch directory is private to one invocation and
// is removed on every exit path.
package stage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/UnfoldDataScience/skiff/internal/event"
	"github.com/UnfoldDataScience/skiff/internal/plan"
	"github.com/UnfoldDataScience/skiff/internal/platform"
	"github.com/UnfoldDataScience/skiff/internal/stats"
)

// Scratch is a temporary staging directory.
type Scratch struct {
	Dir string
}

// NewScratch creates a scratch directory under the system temp dir and
// registers it for signal-time cleanup.
func NewScratch() (*Scratch, error) {
	dir := filepath.Join(os.TempDir(), "skiff-"+uuid.New().String()[:8])
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	registerScratch(dir)
	return &Scratch{Dir: dir}, nil
}

// Remove deletes the scratch directory. Safe to call more than once.
func (s *Scratch) Remove() error {
	deregisterScratch(s.Dir)
	if err := os.RemoveAll(s.Dir); err == nil {
		return nil
	}
	// A staged read-only directory blocks unlinking its children. Make
	// every directory writable and retry once.
	makeDirsWritable(s.Dir)
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("remove scratch dir %s: %w", s.Dir, err)
	}
	return nil
}

func makeDirsWritable(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			_ = os.Chmod(path, 0o700)
		}
		return nil
	})
}

// Config controls staging behavior.
type Config struct {
	Events  chan<- event.Event
	Stats   stats.Writer
	IOURing *platform.IOURingCopier // nil = syscall ladder
}

// Run copies the plan's entries into the scratch directory, preserving
// relative structure and file modes. Directories are created before the
// files beneath them (plan order guarantees this). The first error aborts.
//
// Directories are created writable and get their real mode only after the
// whole subtree is staged, so a read-only source directory does not block
// staging the files beneath it.
func Run(ctx context.Context, scratch *Scratch, p *plan.Plan, cfg Config) error {
	type dirMode struct {
		path string
		rel  string
		mode os.FileMode
	}
	var restore []dirMode

	for _, e := range p.Entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		dstPath := filepath.Join(scratch.Dir, filepath.FromSlash(e.RelPath))

		if e.IsDir {
			if err := os.Mkdir(dstPath, 0o700); err != nil {
				return fmt.Errorf("stage mkdir %s: %w", e.RelPath, err)
			}
			if e.Mode.Perm() != 0o700 {
				restore = append(restore, dirMode{dstPath, e.RelPath, e.Mode.Perm()})
			}
			continue
		}

		if err := stageFile(dstPath, e, cfg.IOURing); err != nil {
			return err
		}

		event.Emit(cfg.Events, event.Event{Type: event.FileStaged, Path: e.RelPath, Size: e.Size})
		if cfg.Stats != nil {
			cfg.Stats.AddFilesStaged(1)
		}
	}

	// Children before parents, so every directory is still writable when
	// its contents get their final mode.
	for i := len(restore) - 1; i >= 0; i-- {
		d := restore[i]
		if err := os.Chmod(d.path, d.mode); err != nil {
			return fmt.Errorf("stage chmod %s: %w", d.rel, err)
		}
	}
	return nil
}

func stageFile(dstPath string, e plan.Entry, copier *platform.IOURingCopier) error {
	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, e.Mode.Perm())
	if err != nil {
		return fmt.Errorf("stage create %s: %w", e.RelPath, err)
	}

	params := platform.CopyFileParams{
		DstFd:   dst,
		SrcPath: e.AbsPath,
		SrcSize: e.Size,
	}

	if copier != nil {
		_, err = copier.CopyFile(params)
	} else {
		_, err = platform.CopyFile(params)
	}

	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("stage copy %s: %w", e.RelPath, err)
	}
	return nil
}
