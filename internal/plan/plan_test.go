package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnfoldDataScience/skiff/internal/filter"
)

// writeTree creates files under root; paths ending in / become directories.
func writeTree(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		abs := filepath.Join(root, filepath.FromSlash(strings.TrimSuffix(p, "/")))
		if strings.HasSuffix(p, "/") {
			require.NoError(t, os.MkdirAll(abs, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(p), 0o644))
	}
}

func chain(t *testing.T, excludes ...string) *filter.Chain {
	t.Helper()
	c := filter.NewChain()
	for _, e := range excludes {
		require.NoError(t, c.AddExclude(e))
	}
	return c
}

func TestBuildFiltersExcluded(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"app/main.py",
		".venv/lib/foo.py",
		"__pycache__/a.pyc",
	)

	p, err := Build(root, chain(t, ".venv", "__pycache__", "*.pyc"))
	require.NoError(t, err)

	assert.Equal(t, []string{"app", "app/main.py"}, p.RelPaths())
	assert.Equal(t, 1, p.Files)
	assert.Equal(t, 1, p.Dirs)
	// .venv and __pycache__ are pruned whole, so each counts once.
	assert.Equal(t, 2, p.Skipped)
}

func TestBuildPruningIsTransitive(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"src/ok.py",
		"node_modules/pkg/deep/index.js",
		"services/api/.venv/bin/python",
	)

	p, err := Build(root, chain(t, "node_modules", ".venv"))
	require.NoError(t, err)

	for _, rel := range p.RelPaths() {
		assert.NotContains(t, rel, "node_modules")
		assert.NotContains(t, rel, ".venv")
	}
	assert.Contains(t, p.RelPaths(), "src/ok.py")
	// The parent of a pruned directory survives.
	assert.Contains(t, p.RelPaths(), "services/api")
}

func TestBuildNoEntryMatchesExclusion(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"a/b/c.txt",
		"a/skip.log",
		"b/keep.txt",
		"cache/",
		"cache/x.bin",
	)

	c := chain(t, "*.log", "cache")
	p, err := Build(root, c)
	require.NoError(t, err)

	for _, e := range p.Entries {
		assert.True(t, c.Match(e.RelPath, e.IsDir, e.Size),
			"excluded entry %s present in plan", e.RelPath)
	}
}

func TestBuildDirsPrecedeContents(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "x/y/z/file.txt")

	p, err := Build(root, nil)
	require.NoError(t, err)

	seen := map[string]int{}
	for i, rel := range p.RelPaths() {
		seen[rel] = i
	}
	assert.Less(t, seen["x"], seen["x/y"])
	assert.Less(t, seen["x/y"], seen["x/y/z"])
	assert.Less(t, seen["x/y/z"], seen["x/y/z/file.txt"])
}

func TestBuildTotals(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt", "sub/b.txt")

	p, err := Build(root, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, p.Files)
	assert.Equal(t, 1, p.Dirs)
	assert.Equal(t, int64(len("a.txt")+len("sub/b.txt")), p.TotalBytes)
}

func TestBuildRootMissing(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "absent"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildRootIsFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "plain.txt")

	_, err := Build(filepath.Join(root, "plain.txt"), nil)
	assert.ErrorContains(t, err, "not a directory")
}
