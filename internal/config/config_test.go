package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NoConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "nonexistent.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 30*time.Second, cfg.InvocationTimeout)
	assert.NotEmpty(t, cfg.Polyfill.Skip)
	assert.Equal(t, "witrpc", cfg.Telemetry.ServiceName)
	assert.Equal(t, "witrpc", cfg.Profiling.ServiceName)
	assert.NotEmpty(t, cfg.Profiling.ProfileTypes)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
logging:
  level: debug
invocation_timeout: 5s
transport:
  listen_addr: "0.0.0.0:4433"
  idle_timeout: 1m
metrics:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, 5*time.Second, cfg.InvocationTimeout)
	assert.Equal(t, "0.0.0.0:4433", cfg.Transport.ListenAddr)
	assert.Equal(t, time.Minute, cfg.Transport.IdleTimeout)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestValidate_RejectsZeroInvocationTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.InvocationTimeout = 0
	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidate_RejectsMissingTransportAddr(t *testing.T) {
	cfg := GetDefaultConfig()
	err := Validate(cfg)
	assert.Error(t, err)

	cfg.Transport.DialAddr = "localhost:4433"
	assert.NoError(t, Validate(cfg))
}

func TestPolyfillConfig_SkipRules(t *testing.T) {
	cfg := PolyfillConfig{Skip: []SkipRuleConfig{{Package: "wasi:io", Interface: "streams", MinPatch: 2}}}
	rules := cfg.SkipRules()
	require.Len(t, rules, 1)
	assert.Equal(t, "wasi:io", rules[0].Package)
	assert.Equal(t, "streams", rules[0].Interface)
	assert.Equal(t, 2, rules[0].MinPatch)
}
