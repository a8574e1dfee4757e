package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "development", cfg.Server.Mode)
	require.Equal(t, "gemini-1.5-pro", cfg.Gemini.Model)
	require.Equal(t, 30*time.Second, cfg.Agents.Timeout)
	require.Equal(t, 3600, cfg.Context.OutputTTLSeconds)
	require.Equal(t, 168, cfg.Context.SignalHoursBack)
	require.Len(t, cfg.Agents.BaseURLs, 5)
	require.Contains(t, cfg.Agents.BaseURLs, "agent_sc")
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rivalscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9100
  mode: development
context:
  confidence_threshold: 0.7
storage:
  context_db_path: /tmp/ctx.db
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, 0.7, cfg.Context.ConfidenceThreshold)
	require.Equal(t, "/tmp/ctx.db", cfg.Storage.ContextDBPath)
	// Unset fields still fall back to defaults.
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RIVALSCAN_PORT", "9200")
	t.Setenv("RIVALSCAN_AGENT_AC_URL", "http://agents.internal/agent_ac")
	t.Setenv("GOOGLE_API_KEY", "test-key")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 9200, cfg.Server.Port)
	require.Equal(t, "test-key", cfg.Gemini.APIKey)

	// A single overridden agent URL leaves the rest of the fleet intact.
	require.Len(t, cfg.Agents.BaseURLs, 5)
	require.Equal(t, "http://agents.internal/agent_ac", cfg.Agents.BaseURLs["agent_ac"])
	require.Equal(t, "http://localhost:9001/agent_pc", cfg.Agents.BaseURLs["agent_pc"])
}

func TestEnvOverridesFileValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rivalscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o644))
	t.Setenv("RIVALSCAN_PORT", "9300")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9300, cfg.Server.Port)
}

func TestProductionRequiresAPIKey(t *testing.T) {
	t.Setenv("RIVALSCAN_MODE", "production")
	t.Setenv("GOOGLE_API_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "api key")

	t.Setenv("GOOGLE_API_KEY", "key")
	cfg, err := Load("")
	require.NoError(t, err)
	require.True(t, cfg.Production())
}

func TestInvalidMode(t *testing.T) {
	t.Setenv("RIVALSCAN_MODE", "staging")
	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid server mode")
}

func TestDumpMasksAPIKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "super-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	out, err := cfg.Dump()
	require.NoError(t, err)
	require.NotContains(t, string(out), "super-secret")
	require.Contains(t, string(out), "********")
	// Masking must not leak back into the config in use.
	require.Equal(t, "super-secret", cfg.Gemini.APIKey)
}
