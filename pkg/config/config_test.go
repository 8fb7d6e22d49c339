package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 20, cfg.Agent.MaxSteps)
	assert.Equal(t, 40, cfg.Agent.MaxElements)
	assert.Equal(t, 10*time.Second, cfg.Agent.MaxWait)
	assert.Equal(t, 500*time.Millisecond, cfg.Agent.SnapshotRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, []string{`^(file|chrome|javascript|data):`}, cfg.Governance.DeniedURLPatterns)
	require.NoError(t, cfg.Validate())

	name, p := cfg.GetDefaultProvider()
	assert.Equal(t, "googleai", name)
	assert.Equal(t, "gemini-2.5-flash", p.Model)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  provider: openai
agent:
  max_steps: 7
  step_delay: 0s
browser:
  element_timeout: 2s
providers:
  openai:
    enabled: true
    model: gpt-4o
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ROBODRIVER_AGENT_MAX_ELEMENTS", "12")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Agent.MaxSteps)
	assert.Equal(t, 12, cfg.Agent.MaxElements)
	assert.Zero(t, cfg.Agent.StepDelay)
	assert.Equal(t, 2*time.Second, cfg.Browser.ElementTimeout)

	name, p := cfg.GetDefaultProvider()
	assert.Equal(t, "openai", name)
	assert.Equal(t, "gpt-4o", p.Model)
	assert.Equal(t, "sk-test", p.APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  max_steps: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_steps")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Agent, cfg.Agent)

	// never overwrites
	require.Error(t, WriteDefault(path))
}
