package transport

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestResolveKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	keyPath := filepath.Join(t.TempDir(), "deploy_key.pem")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600))

	signer, err := ResolveKey(keyPath)
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519", signer.PublicKey().Type())
}

func TestResolveKeyMissingFile(t *testing.T) {
	_, err := ResolveKey(filepath.Join(t.TempDir(), "absent.pem"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolveKeyGarbage(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "junk.pem")
	require.NoError(t, os.WriteFile(keyPath, []byte("not a key"), 0o600))

	_, err := ResolveKey(keyPath)
	assert.ErrorContains(t, err, "parse key")
}

func TestBuildAuthMethodsPassword(t *testing.T) {
	methods := buildAuthMethods(SSHOpts{Password: "hunter2"})
	assert.NotEmpty(t, methods)
}
