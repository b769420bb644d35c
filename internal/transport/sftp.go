package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/UnfoldDataScience/skiff/internal/event"
	"github.com/UnfoldDataScience/skiff/internal/plan"
)

var _ Transport = (*SFTPTransport)(nil)

// SFTPTransport uploads to a remote filesystem over SFTP. The caller owns
// the SSH connection lifecycle only until construction succeeds; Close
// tears down both the SFTP session and the SSH client.
type SFTPTransport struct {
	client *sftp.Client
	ssh    *ssh.Client
	root   string
	opts   Options
}

// NewSFTPTransport creates a transport writing under root on the remote
// host. The caller must call Close when done.
func NewSFTPTransport(sshClient *ssh.Client, root string, opts Options) (*SFTPTransport, error) {
	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, fmt.Errorf("sftp client: %w", err)
	}
	return &SFTPTransport{
		client: sftpClient,
		ssh:    sshClient,
		root:   root,
		opts:   opts,
	}, nil
}

func (t *SFTPTransport) Protocol() Protocol { return ProtocolSFTP }

func (t *SFTPTransport) Copy(ctx context.Context, stagedRoot string, entries []plan.Entry) (CopyStats, error) {
	var cs CopyStats

	if err := t.client.MkdirAll(t.root); err != nil {
		return cs, fmt.Errorf("sftp mkdir %s: %w", t.root, err)
	}

	// Directory modes go on after the uploads, otherwise a read-only
	// directory would reject the files beneath it.
	var dirs []plan.Entry

	for _, e := range entries {
		select {
		case <-ctx.Done():
			return cs, ctx.Err()
		default:
		}

		if e.IsDir {
			if err := t.mkdir(e); err != nil {
				return cs, err
			}
			dirs = append(dirs, e)
			cs.Dirs++
			continue
		}

		n, err := t.uploadFile(ctx, stagedRoot, e)
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

	for i := len(dirs) - 1; i >= 0; i-- {
		e := dirs[i]
		// Best-effort mode; directory creation itself is what matters.
		_ = t.client.Chmod(path.Join(t.root, e.RelPath), e.Mode.Perm())
	}

	return cs, nil
}

func (t *SFTPTransport) mkdir(e plan.Entry) error {
	absPath := path.Join(t.root, e.RelPath)
	if err := t.client.MkdirAll(absPath); err != nil {
		return fmt.Errorf("sftp mkdir %s: %w", absPath, err)
	}

	event.Emit(t.opts.Events, event.Event{Type: event.DirCreated, Path: e.RelPath})
	if t.opts.Stats != nil {
		t.opts.Stats.AddDirsCreated(1)
	}
	return nil
}

// uploadFile writes the staged file to a temp name next to its final
// location, then renames it into place so a partial upload never
// masquerades as a complete file.
func (t *SFTPTransport) uploadFile(ctx context.Context, stagedRoot string, e plan.Entry) (int64, error) {
	event.Emit(t.opts.Events, event.Event{Type: event.FileStarted, Path: e.RelPath, Size: e.Size})

	src, err := os.Open(filepath.Join(stagedRoot, filepath.FromSlash(e.RelPath)))
	if err != nil {
		return 0, fmt.Errorf("open staged %s: %w", e.RelPath, err)
	}
	defer src.Close()

	absPath := path.Join(t.root, e.RelPath)
	tmpPath := path.Join(path.Dir(absPath), fmt.Sprintf(".%s.%s.skiff-tmp", path.Base(absPath), uuid.New().String()[:8]))

	dst, err := t.client.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return 0, fmt.Errorf("sftp create %s: %w", tmpPath, err)
	}

	n, err := io.Copy(dst, newLimitedReader(ctx, src, t.opts.Limiter))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = t.client.Remove(tmpPath)
		return n, fmt.Errorf("sftp write %s: %w", e.RelPath, err)
	}

	if err := t.client.Chmod(tmpPath, e.Mode.Perm()); err != nil {
		_ = t.client.Remove(tmpPath)
		return n, fmt.Errorf("sftp chmod %s: %w", e.RelPath, err)
	}

	// SFTP rename fails if the target exists; remove first.
	_ = t.client.Remove(absPath)
	if err := t.client.Rename(tmpPath, absPath); err != nil {
		_ = t.client.Remove(tmpPath)
		return n, fmt.Errorf("sftp rename %s: %w", e.RelPath, err)
	}

	event.Emit(t.opts.Events, event.Event{Type: event.FileCompleted, Path: e.RelPath, Size: n})
	if t.opts.Stats != nil {
		t.opts.Stats.AddFilesTransferred(1)
		t.opts.Stats.AddBytesTransferred(n)
	}
	return n, nil
}

func (t *SFTPTransport) RemoveTree() error {
	if _, err := t.client.Lstat(t.root); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("sftp stat %s: %w", t.root, err)
	}
	if err := removeAllSFTP(t.client, t.root); err != nil {
		return err
	}
	event.Emit(t.opts.Events, event.Event{Type: event.RemoteCleaned, Path: t.root})
	return nil
}

func (t *SFTPTransport) WriteFile(relPath string, data []byte, perm os.FileMode) error {
	absPath := path.Join(t.root, relPath)
	if err := t.client.MkdirAll(path.Dir(absPath)); err != nil {
		return fmt.Errorf("sftp mkdir %s: %w", path.Dir(absPath), err)
	}
	f, err := t.client.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("sftp create %s: %w", absPath, err)
	}
	_, err = f.Write(data)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("sftp write %s: %w", absPath, err)
	}
	return t.client.Chmod(absPath, perm)
}

func (t *SFTPTransport) Exists(relPath string) (bool, error) {
	_, err := t.client.Lstat(path.Join(t.root, relPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Hash reads the remote file back and hashes it client-side; SFTP has no
// remote-hash operation.
func (t *SFTPTransport) Hash(relPath string) (string, error) {
	absPath := path.Join(t.root, relPath)
	f, err := t.client.Open(absPath)
	if err != nil {
		return "", fmt.Errorf("sftp open %s: %w", absPath, err)
	}
	defer f.Close()
	return hashReader(f)
}

func (t *SFTPTransport) Close() error {
	err := t.client.Close()
	if sshErr := t.ssh.Close(); sshErr != nil && err == nil {
		err = sshErr
	}
	return err
}

// removeAllSFTP recursively deletes a remote path, depth-first.
func removeAllSFTP(client *sftp.Client, absPath string) error {
	info, err := client.Lstat(absPath)
	if err != nil {
		return fmt.Errorf("sftp stat %s: %w", absPath, err)
	}

	if !info.IsDir() {
		if err := client.Remove(absPath); err != nil {
			return fmt.Errorf("sftp remove %s: %w", absPath, err)
		}
		return nil
	}

	children, err := client.ReadDir(absPath)
	if err != nil {
		return fmt.Errorf("sftp readdir %s: %w", absPath, err)
	}
	for _, child := range children {
		if err := removeAllSFTP(client, path.Join(absPath, child.Name())); err != nil {
			return err
		}
	}
	if err := client.RemoveDirectory(absPath); err != nil {
		return fmt.Errorf("sftp rmdir %s: %w", absPath, err)
	}
	return nil
}
