package cfg_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"avatarcast/cfg"

	"github.com/stretchr/testify/require"
)

const sample = `
api:
  port: 5000
  timeout: 10m
workspace:
  output_dir: /srv/output
coqui:
  url: http://coqui:5002
pipeline:
  max_idle: 30s
sadtalker:
  root: /opt/SadTalker
`

func writeCfg(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad(t *testing.T) {
	assert := require.New(t)

	c, err := cfg.Load(writeCfg(t, sample))
	assert.NoError(err)
	assert.Equal(5000, c.Api.Port)
	assert.Equal(10*time.Minute, c.Api.Timeout)
	assert.Equal(30*time.Second, c.Pipeline.MaxIdle)
	assert.Equal("/srv/output", c.Workspace.OutputDir)
	assert.Equal("http://coqui:5002", c.Coqui.URL)
	assert.False(c.S3.Enabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	assert := require.New(t)

	t.Setenv("COQUI_URL", "http://tts:5002")
	t.Setenv("SADTALKER_CHECKPOINT_DIR", "/models/checkpoints")
	t.Setenv("AVATARCAST_OUTPUT_DIR", "")

	c, err := cfg.Load(writeCfg(t, sample))
	assert.NoError(err)
	assert.Equal("http://tts:5002", c.Coqui.URL)
	assert.Equal("/models/checkpoints", c.SadTalker.CheckpointDir)
	assert.Equal("/opt/SadTalker", c.SadTalker.Root)
	assert.Equal("/srv/output", c.Workspace.OutputDir)
}

func TestLoadErrors(t *testing.T) {
	_, err := cfg.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = cfg.Load(writeCfg(t, "api: [oops"))
	require.Error(t, err)
}
