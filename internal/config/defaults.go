package config

import (
	"strings"
	"time"

	"github.com/marmos91/witrpc/internal/logger"
	"github.com/marmos91/witrpc/internal/telemetry"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Called after loading from file and environment, before Validate.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTransportDefaults(&cfg.Transport)
	applyPolyfillDefaults(&cfg.Polyfill)
	applyMetricsDefaults(&cfg.Metrics)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyProfilingDefaults(&cfg.Profiling)

	if cfg.InvocationTimeout == 0 {
		cfg.InvocationTimeout = 30 * time.Second
	}
}

func applyLoggingDefaults(cfg *logger.Config) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTransportDefaults(cfg *TransportConfig) {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 30 * time.Second
	}
}

func applyPolyfillDefaults(cfg *PolyfillConfig) {
	if len(cfg.Skip) == 0 {
		cfg.Skip = defaultSkipRules()
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyTelemetryDefaults(cfg *telemetry.Config) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "witrpc"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "dev"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

func applyProfilingDefaults(cfg *telemetry.ProfilingConfig) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "witrpc"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "dev"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_objects", "inuse_objects"}
	}
}

// defaultSkipRules is the built-in allowlist of host-native WASI interfaces
// the linker leaves unpolyfilled, since the host VM is assumed to implement
// them directly rather than by round-tripping to the peer.
func defaultSkipRules() []SkipRuleConfig {
	return []SkipRuleConfig{
		{Package: "wasi:io", Interface: "streams", MinPatch: 0},
		{Package: "wasi:io", Interface: "poll", MinPatch: 0},
		{Package: "wasi:io", Interface: "error", MinPatch: 0},
		{Package: "wasi:clocks", Interface: "wall-clock", MinPatch: 0},
		{Package: "wasi:clocks", Interface: "monotonic-clock", MinPatch: 0},
		{Package: "wasi:http", Interface: "types", MinPatch: 0},
		{Package: "wasi:http", Interface: "outgoing-handler", MinPatch: 0},
		{Package: "wasi:sockets", Interface: "tcp", MinPatch: 0},
		{Package: "wasi:sockets", Interface: "udp", MinPatch: 0},
		{Package: "wasi:filesystem", Interface: "types", MinPatch: 0},
		{Package: "wasi:filesystem", Interface: "preopens", MinPatch: 0},
		{Package: "wasi:random", Interface: "random", MinPatch: 0},
		{Package: "wasi:rpc", Interface: "bridge", MinPatch: 0},
	}
}

// GetDefaultConfig returns a Config with every default applied, used when no
// config file is found.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
