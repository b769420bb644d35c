package platform

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func copyViaParams(t *testing.T, copyFn func(CopyFileParams) (CopyResult, error), data []byte) []byte {
	t.Helper()
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	dstPath := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(srcPath, data, 0o644))

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	require.NoError(t, err)

	result, err := copyFn(CopyFileParams{
		DstFd:   dst,
		SrcPath: srcPath,
		SrcSize: int64(len(data)),
	})
	require.NoError(t, err)
	require.NoError(t, dst.Close())
	assert.Equal(t, int64(len(data)), result.BytesWritten)

	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	return got
}

func TestCopyFileSmall(t *testing.T) {
	data := []byte("deployment payload")
	got := copyViaParams(t, CopyFile, data)
	assert.True(t, bytes.Equal(data, got))
}

func TestCopyFileEmpty(t *testing.T) {
	got := copyViaParams(t, CopyFile, nil)
	assert.Empty(t, got)
}

func TestCopyFileLargerThanBuffer(t *testing.T) {
	data := make([]byte, bufferSize+4096)
	_, err := rand.Read(data)
	require.NoError(t, err)

	got := copyViaParams(t, CopyFile, data)
	assert.True(t, bytes.Equal(data, got))
}

func TestCopyReadWrite(t *testing.T) {
	data := make([]byte, 8192)
	_, err := rand.Read(data)
	require.NoError(t, err)

	got := copyViaParams(t, CopyReadWrite, data)
	assert.True(t, bytes.Equal(data, got))
}

func TestCopyFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst, err := os.Create(filepath.Join(dir, "dst"))
	require.NoError(t, err)
	defer dst.Close()

	_, err = CopyFile(CopyFileParams{
		DstFd:   dst,
		SrcPath: filepath.Join(dir, "absent"),
		SrcSize: 10,
	})
	assert.Error(t, err)
}
