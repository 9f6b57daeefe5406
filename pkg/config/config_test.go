package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, Validate(cfg))
	require.Equal(t, "INFO", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
	require.Equal(t, "mutual", cfg.TLS.VerifyMode)
	require.NotZero(t, cfg.Cache.MaxBytes)
}

func TestLoad_NoFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, GetDefaultConfig().Cache.MaxBytes, cfg.Cache.MaxBytes)
}

func TestLoad_FromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
logging:
  level: debug
  format: json
identity:
  name: gw-test
  quic_bind_addr: 127.0.0.1:0
cache:
  dir: ` + filepath.Join(dir, "cache") + `
  max_bytes: 2Gi
mounts:
  - root: ` + dir + `
    name: test
    display_name: Test
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "DEBUG", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, "gw-test", cfg.Identity.Name)
	require.EqualValues(t, 2<<30, cfg.Cache.MaxBytes)
	require.Len(t, cfg.Mounts, 1)
	require.Equal(t, "test", cfg.Mounts[0].Name)
}

func TestSaveAndReloadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Identity.Name = "roundtrip"
	require.NoError(t, SaveConfig(cfg, path))

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "roundtrip", reloaded.Identity.Name)
}

func TestValidate_RejectsBadLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "VERBOSE"
	require.Error(t, Validate(cfg))
}

func TestValidate_RejectsBadVerifyMode(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.TLS.VerifyMode = "paranoid"
	require.Error(t, Validate(cfg))
}

func TestValidate_RejectsBadAccessRuleAction(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.AccessRules = []AccessRuleConfig{{CIDR: "10.0.0.0/8", Action: "maybe"}}
	require.Error(t, Validate(cfg))
}

func TestValidate_NormalizesLogLevelCase(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "warn"
	require.NoError(t, Validate(cfg))
	require.Equal(t, "WARN", cfg.Logging.Level)
}
