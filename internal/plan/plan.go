// Package plan enumerates a local tree into an ordered sync plan.
//
// The plan is computed once per invocation from the live filesystem and is
// immutable afterwards: later phases (staging, transfer) consume it as-is.
package plan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Entry is a single filesystem entry retained by the plan. RelPath is
// slash-separated and relative to the sync root.
type Entry struct {
	RelPath string
	AbsPath string
	ModTime time.Time
	Size    int64
	Mode    fs.FileMode
	IsDir   bool
}

// Plan is the filtered, ordered set of entries to sync. Directories always
// precede the entries beneath them (pre-order walk), so a consumer can
// recreate structure by processing entries front to back.
type Plan struct {
	Root       string
	Entries    []Entry
	Files      int
	Dirs       int
	Skipped    int
	TotalBytes int64
}

// Matcher decides whether a relative path belongs in the plan.
type Matcher interface {
	Match(relPath string, isDir bool, size int64) bool
}

// Build walks root sequentially and returns the plan of entries the matcher
// retains. An excluded directory is skipped whole: nothing beneath it is
// visited, so exclusion is transitive. Symlinks are recorded as-is and never
// followed. The root itself is not an entry.
func Build(root string, m Matcher) (*Plan, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("sync root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sync root %s: not a directory", root)
	}

	p := &Plan{Root: root}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("enumerate %s: %w", path, walkErr)
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		if m != nil && !m.Match(rel, d.IsDir(), fi.Size()) {
			p.Skipped++
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		entry := Entry{
			RelPath: rel,
			AbsPath: path,
			ModTime: fi.ModTime(),
			Size:    fi.Size(),
			Mode:    fi.Mode(),
			IsDir:   d.IsDir(),
		}
		p.Entries = append(p.Entries, entry)
		if entry.IsDir {
			p.Dirs++
		} else {
			p.Files++
			p.TotalBytes += entry.Size
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// RelPaths returns the relative paths of all entries, in plan order.
// Handy for tests and dry-run output.
func (p *Plan) RelPaths() []string {
	out := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.RelPath
	}
	return out
}
