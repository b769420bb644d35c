package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/UnfoldDataScience/skiff/internal/event"
	"github.com/UnfoldDataScience/skiff/internal/plan"
	"github.com/UnfoldDataScience/skiff/internal/platform"
)

var _ Transport = (*LocalTransport)(nil)

// LocalTransport writes to a directory on the local filesystem. It serves
// local destinations (rehearsing a deployment into a directory) and is the
// transport used by unit tests.
type LocalTransport struct {
	root string
	opts Options
}

// NewLocalTransport creates a transport writing under root.
func NewLocalTransport(root string, opts Options) *LocalTransport {
	return &LocalTransport{root: root, opts: opts}
}

func (t *LocalTransport) Protocol() Protocol { return ProtocolLocal }

func (t *LocalTransport) Copy(ctx context.Context, stagedRoot string, entries []plan.Entry) (CopyStats, error) {
	var cs CopyStats

	if err := os.MkdirAll(t.root, 0o755); err != nil {
		return cs, fmt.Errorf("mkdir %s: %w", t.root, err)
	}

	// Directory modes go on after the tree is populated, otherwise a
	// read-only directory would reject the uploads beneath it.
	type dirMode struct {
		path string
		mode os.FileMode
	}
	var dirModes []dirMode

	for _, e := range entries {
		select {
		case <-ctx.Done():
			return cs, ctx.Err()
		default:
		}

		dstPath := filepath.Join(t.root, filepath.FromSlash(e.RelPath))

		if e.IsDir {
			if err := os.MkdirAll(dstPath, 0o755); err != nil {
				return cs, fmt.Errorf("mkdir %s: %w", e.RelPath, err)
			}
			if e.Mode.Perm() != 0o755 {
				dirModes = append(dirModes, dirMode{dstPath, e.Mode.Perm()})
			}
			event.Emit(t.opts.Events, event.Event{Type: event.DirCreated, Path: e.RelPath})
			if t.opts.Stats != nil {
				t.opts.Stats.AddDirsCreated(1)
			}
			cs.Dirs++
			continue
		}

		n, err := t.copyFile(ctx, stagedRoot, dstPath, e)
		if err != nil {
			event.Emit(t.opts.Events, event.Event{Type: event.FileFailed, Path: e.RelPath, Size: e.Size, Error: err})
			if t.opts.Stats != nil {
				t.opts.Stats.AddFilesFailed(1)
			}
			return cs, err
		}
		cs.Files++
		cs.Bytes += n
	}

	for i := len(dirModes) - 1; i >= 0; i-- {
		d := dirModes[i]
		if err := os.Chmod(d.path, d.mode); err != nil {
			return cs, fmt.Errorf("chmod %s: %w", d.path, err)
		}
	}

	return cs, nil
}

func (t *LocalTransport) copyFile(ctx context.Context, stagedRoot, dstPath string, e plan.Entry) (int64, error) {
	event.Emit(t.opts.Events, event.Event{Type: event.FileStarted, Path: e.RelPath, Size: e.Size})

	srcPath := filepath.Join(stagedRoot, filepath.FromSlash(e.RelPath))
	tmpPath := filepath.Join(filepath.Dir(dstPath), fmt.Sprintf(".%s.%s.skiff-tmp", filepath.Base(dstPath), uuid.New().String()[:8]))

	dst, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, e.Mode.Perm())
	if err != nil {
		return 0, fmt.Errorf("create temp %s: %w", tmpPath, err)
	}

	var written int64
	if t.opts.Limiter != nil {
		// Rate-limited path goes through a plain reader copy.
		src, openErr := os.Open(srcPath)
		if openErr != nil {
			dst.Close()
			_ = os.Remove(tmpPath)
			return 0, fmt.Errorf("open staged %s: %w", e.RelPath, openErr)
		}
		written, err = io.Copy(dst, newLimitedReader(ctx, src, t.opts.Limiter))
		src.Close()
	} else {
		var result platform.CopyResult
		result, err = platform.CopyFile(platform.CopyFileParams{
			DstFd:   dst,
			SrcPath: srcPath,
			SrcSize: e.Size,
		})
		written = result.BytesWritten
	}

	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return written, fmt.Errorf("copy %s: %w", e.RelPath, err)
	}

	if err := os.Rename(tmpPath, dstPath); err != nil {
		_ = os.Remove(tmpPath)
		return written, fmt.Errorf("rename %s: %w", e.RelPath, err)
	}

	event.Emit(t.opts.Events, event.Event{Type: event.FileCompleted, Path: e.RelPath, Size: written})
	if t.opts.Stats != nil {
		t.opts.Stats.AddFilesTransferred(1)
		t.opts.Stats.AddBytesTransferred(written)
	}
	return written, nil
}

func (t *LocalTransport) RemoveTree() error {
	if _, err := os.Lstat(t.root); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(t.root); err != nil {
		return err
	}
	event.Emit(t.opts.Events, event.Event{Type: event.RemoteCleaned, Path: t.root})
	return nil
}

func (t *LocalTransport) WriteFile(relPath string, data []byte, perm os.FileMode) error {
	absPath := filepath.Join(t.root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(absPath, data, perm)
}

func (t *LocalTransport) Exists(relPath string) (bool, error) {
	_, err := os.Lstat(filepath.Join(t.root, filepath.FromSlash(relPath)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (t *LocalTransport) Hash(relPath string) (string, error) {
	f, err := os.Open(filepath.Join(t.root, filepath.FromSlash(relPath)))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", relPath, err)
	}
	defer f.Close()
	return hashReader(f)
}

func (t *LocalTransport) Close() error { return nil }

// Root returns the destination root. Exposed for tests.
func (t *LocalTransport) Root() string { return t.root }
