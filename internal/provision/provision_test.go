package provision

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnfoldDataScience/skiff/internal/transport"
)

func TestScriptDefaults(t *testing.T) {
	script, err := Script(Params{RemotePath: "/home/ubuntu/app"})
	require.NoError(t, err)

	assert.Contains(t, script, "cd /home/ubuntu/app")
	assert.Contains(t, script, "python3 -m venv .venv")
	assert.Contains(t, script, "pip install --quiet -r requirements.txt")
	assert.NotContains(t, script, "streamlit run", "no restart unless asked")
	assert.Contains(t, script, "bootstrap complete")
}

func TestScriptWithStart(t *testing.T) {
	script, err := Script(Params{
		RemotePath: "/srv/app",
		Python:     "python3.11",
		AppEntry:   "app/main.py",
		AppPort:    9000,
		Start:      true,
	})
	require.NoError(t, err)

	assert.Contains(t, script, "python3.11 -m venv")
	assert.Contains(t, script, "streamlit run app/main.py --server.port 9000")
	assert.Contains(t, script, "nohup")
}

func TestScriptRequiresRemotePath(t *testing.T) {
	_, err := Script(Params{})
	assert.Error(t, err)
}

func TestEnsureEnvFileCreates(t *testing.T) {
	dst := t.TempDir()
	tr := transport.NewLocalTransport(dst, transport.Options{})

	created, err := EnsureEnvFile(tr)
	require.NoError(t, err)
	assert.True(t, created)

	raw, err := os.ReadFile(filepath.Join(dst, EnvFileName))
	require.NoError(t, err)
	data := string(raw)
	assert.Contains(t, data, "WEAVIATE_URL=")
	assert.Contains(t, data, "WEAVIATE_API_KEY=")
	assert.Contains(t, data, "LLM_PROVIDER=")
}

func TestEnsureEnvFilePreservesExisting(t *testing.T) {
	dst := t.TempDir()
	tr := transport.NewLocalTransport(dst, transport.Options{})

	require.NoError(t, tr.WriteFile(EnvFileName, []byte("WEAVIATE_URL=https://real\n"), 0o600))

	created, err := EnsureEnvFile(tr)
	require.NoError(t, err)
	assert.False(t, created)

	raw, err := os.ReadFile(filepath.Join(dst, EnvFileName))
	require.NoError(t, err)
	assert.Equal(t, "WEAVIATE_URL=https://real\n", string(raw))
}
