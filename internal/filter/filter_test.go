package filter

import (
	"testing"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyChainIncludesAll(t *testing.T) {
	c := NewChain()
	assert.True(t, c.Match("any/file.txt", false, 1024))
	assert.True(t, c.Match("any/dir", true, 0))
	assert.True(t, c.Empty())
}

func TestExcludePattern(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.AddExclude("*.pyc"))

	assert.False(t, c.Match("a.pyc", false, 100))
	assert.False(t, c.Match("sub/deep/b.pyc", false, 100))
	assert.True(t, c.Match("main.py", false, 100))
}

func TestSegmentMatchAtAnyDepth(t *testing.T) {
	// A bare name matches the final segment regardless of depth.
	c := NewChain()
	require.NoError(t, c.AddExclude(".venv"))

	assert.False(t, c.Match(".venv", true, 0))
	assert.False(t, c.Match("services/api/.venv", true, 0))
	assert.True(t, c.Match("venv2", true, 0))
	assert.True(t, c.Match("my.venv.txt", false, 10))
}

func TestIncludeOverridesExclude(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.AddInclude("keep.log"))
	require.NoError(t, c.AddExclude("*.log"))

	assert.True(t, c.Match("keep.log", false, 100))
	assert.False(t, c.Match("debug.log", false, 100))
}

func TestExcludeIncludeOrder(t *testing.T) {
	// First match wins: with exclude first, the later include is dead.
	c := NewChain()
	require.NoError(t, c.AddExclude("*.log"))
	require.NoError(t, c.AddInclude("keep.log"))

	assert.False(t, c.Match("keep.log", false, 100))
}

func TestDirOnlyPattern(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.AddExclude("build/"))

	assert.False(t, c.Match("build", true, 0))
	assert.True(t, c.Match("build", false, 100))
}

func TestAnchoredPattern(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.AddExclude("/secrets.yaml"))

	assert.False(t, c.Match("secrets.yaml", false, 100))
	assert.True(t, c.Match("sub/secrets.yaml", false, 100))
}

func TestDoubleStar(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.AddInclude("**/*.py"))
	require.NoError(t, c.AddExclude("*"))

	assert.True(t, c.Match("main.py", false, 100))
	assert.True(t, c.Match("app/rag/pipeline.py", false, 100))
	assert.False(t, c.Match("README.md", false, 100))
}

func TestDefaultChain(t *testing.T) {
	c := NewDefaultChain()

	assert.False(t, c.Match(".venv", true, 0))
	assert.False(t, c.Match("__pycache__", true, 0))
	assert.False(t, c.Match("app/__pycache__", true, 0))
	assert.False(t, c.Match("app/main.pyc", false, 10))
	assert.False(t, c.Match(".env", false, 10))
	assert.False(t, c.Match(".git", true, 0))

	assert.True(t, c.Match("app/main.py", false, 10))
	assert.True(t, c.Match("requirements.txt", false, 10))
	assert.True(t, c.Match("environment.md", false, 10))
}

func TestSizeFilters(t *testing.T) {
	c := NewChain()
	c.SetMinSize(100)
	c.SetMaxSize(10000)

	assert.False(t, c.Match("tiny.txt", false, 50))
	assert.True(t, c.Match("medium.txt", false, 500))
	assert.False(t, c.Match("huge.bin", false, 50000))

	// Directories ignore size limits.
	assert.True(t, c.Match("somedir", true, 0))
}

func TestGitignoreFallback(t *testing.T) {
	c := NewChain()
	c.SetGitignore(ignore.CompileIgnoreLines("dist/", "*.tmp"))

	assert.False(t, c.Match("dist", true, 0))
	assert.False(t, c.Match("scratch.tmp", false, 10))
	assert.True(t, c.Match("app/main.py", false, 10))
	assert.False(t, c.Empty())
}

func TestRulesWinOverGitignore(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.AddInclude("important.tmp"))
	c.SetGitignore(ignore.CompileIgnoreLines("*.tmp"))

	assert.True(t, c.Match("important.tmp", false, 10))
	assert.False(t, c.Match("other.tmp", false, 10))
}

func TestCaseSensitive(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.AddExclude("*.PYC"))

	assert.True(t, c.Match("a.pyc", false, 10))
	assert.False(t, c.Match("a.PYC", false, 10))
}
