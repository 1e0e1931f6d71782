// Package config loads and validates the bridge's static configuration:
// logging, the per-invocation timeout, the transport binding, the polyfill
// skip-allowlist, and the metrics server.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (WRPCBRIDGE_*), for keys the configuration file sets
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// When no configuration file is found, Load returns the defaults without
// consulting the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/witrpc/internal/logger"
	"github.com/marmos91/witrpc/internal/telemetry"
)

// Config is the complete static configuration for one bridge process,
// either a client-side caller or a server-side adapter (both are valid
// uses of the same binary; which one runs is a matter of which of client.Invoke
// or serve.Server.Accept the caller invokes).
type Config struct {
	// Logging controls log output behavior.
	Logging logger.Config `mapstructure:"logging" yaml:"logging"`

	// InvocationTimeout is the per-call deadline budget. client.Invoke bounds
	// a call (session open through final decode) by the timeout its
	// hostvm.InvocationContext reports; the serve adapter applies no deadline
	// of its own. Zero-value is rejected by Validate; use a very large
	// duration to approximate "no timeout".
	InvocationTimeout time.Duration `mapstructure:"invocation_timeout" validate:"required,gt=0" yaml:"invocation_timeout"`

	// Transport configures the QUIC binding.
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`

	// Polyfill configures the import-surface linker's skip-allowlist.
	Polyfill PolyfillConfig `mapstructure:"polyfill" yaml:"polyfill"`

	// Metrics configures the Prometheus metrics HTTP server.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Telemetry configures OpenTelemetry span export for the invoke/serve
	// path. Disabled by default; when enabled, spans are exported over
	// OTLP/gRPC to Telemetry.Endpoint.
	Telemetry telemetry.Config `mapstructure:"telemetry" yaml:"telemetry"`

	// Profiling configures continuous Pyroscope profiling of the bridge
	// process. Disabled by default.
	Profiling telemetry.ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// TransportConfig configures the QUIC transport binding.
type TransportConfig struct {
	// ListenAddr is the host:port the server binds to. Required when
	// running as a server; ignored as a client.
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr,omitempty"`

	// DialAddr is the host:port the client connects to. Required when
	// running as a client; ignored as a server.
	DialAddr string `mapstructure:"dial_addr" yaml:"dial_addr,omitempty"`

	// IdleTimeout is the QUIC connection idle timeout.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"omitempty,gt=0" yaml:"idle_timeout"`

	// InsecureSkipVerify disables TLS certificate verification. Only ever
	// appropriate for local development against a self-signed cert.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify,omitempty"`
}

// PolyfillConfig configures the import-surface linker's skip-allowlist: the
// host-native interfaces the linker should leave unpolyfilled.
type PolyfillConfig struct {
	Skip []SkipRuleConfig `mapstructure:"skip" yaml:"skip"`
}

// SkipRuleConfig is one entry of PolyfillConfig.Skip.
type SkipRuleConfig struct {
	Package   string `mapstructure:"package" yaml:"package"`
	Interface string `mapstructure:"interface" yaml:"interface"`
	MinPatch  int    `mapstructure:"min_patch" yaml:"min_patch"`
}

// MetricsConfig configures the Prometheus metrics HTTP server. When Enabled
// is false, no metrics are collected.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, returning a user-friendly error when no
// config file is found at an explicit path.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("WRPCBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook converts strings like "30s" and raw numbers
// (nanoseconds) to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "witrpc")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "witrpc")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
