package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UnfoldDataScience/skiff/internal/config"
)

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Defaults.RemotePath)
	assert.Nil(t, cfg.Defaults.Verify)
	assert.Nil(t, cfg.Bootstrap.Python)
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "skiff")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	content := `
[defaults]
remote_path = "/home/ubuntu/app"
identity = "~/.ssh/deploy.pem"
port = 2222
verify = true
clean = false
iouring = true
bwlimit = "10MB"
excludes = ["*.ipynb", "data/"]

[bootstrap]
python = "python3.11"
requirements = "requirements.txt"
app_entry = "app/main.py"
app_port = 8501
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.Defaults.RemotePath)
	assert.Equal(t, "/home/ubuntu/app", *cfg.Defaults.RemotePath)

	require.NotNil(t, cfg.Defaults.Identity)
	assert.Equal(t, "~/.ssh/deploy.pem", *cfg.Defaults.Identity)

	require.NotNil(t, cfg.Defaults.Port)
	assert.Equal(t, 2222, *cfg.Defaults.Port)

	require.NotNil(t, cfg.Defaults.Verify)
	assert.True(t, *cfg.Defaults.Verify)

	require.NotNil(t, cfg.Defaults.Clean)
	assert.False(t, *cfg.Defaults.Clean)

	require.NotNil(t, cfg.Defaults.BWLimit)
	assert.Equal(t, "10MB", *cfg.Defaults.BWLimit)

	assert.Equal(t, []string{"*.ipynb", "data/"}, cfg.Defaults.Excludes)

	require.NotNil(t, cfg.Bootstrap.Python)
	assert.Equal(t, "python3.11", *cfg.Bootstrap.Python)

	require.NotNil(t, cfg.Bootstrap.AppPort)
	assert.Equal(t, 8501, *cfg.Bootstrap.AppPort)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "skiff")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte("not [valid toml"), 0o644))

	_, err := config.Load()
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "skiff", "config.toml"), config.Path())
}
