// Package config loads the gateway's static configuration: environment
// variables, a YAML file, and defaults, layered the way the
// teacher's own config package does (spf13/viper + mitchellh/mapstructure
// decode hooks for ByteSize and time.Duration, gopkg.in/yaml.v3 for
// round-tripping a file).
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

	"github.com/VacuolePaoo/gatewaygui/internal/bytesize"
)

// Config is the gateway's static configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (GATEWAY_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// cmd/gateway binds no flag to individual fields; its --config flag only
// chooses the file.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics controls the optional Prometheus metrics HTTP endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Identity names this gateway instance and binds its network surface.
	Identity IdentityConfig `mapstructure:"identity" yaml:"identity"`

	// TLS configures the mTLS identity bundle (C7).
	TLS TLSConfig `mapstructure:"tls" yaml:"tls"`

	// Registry configures the peer table's TTL sweep (C4).
	Registry RegistryConfig `mapstructure:"registry" yaml:"registry"`

	// Cache configures the content-addressed disk cache (C6).
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Compression configures the zstd transport compressor (C3).
	Compression CompressionConfig `mapstructure:"compression" yaml:"compression"`

	// SecureFile configures the control-plane file reader's size cap (C2).
	SecureFile SecureFileConfig `mapstructure:"secure_file" yaml:"secure_file"`

	// Supervisor configures the gateway's periodic tasks (C11).
	Supervisor SupervisorConfig `mapstructure:"supervisor" yaml:"supervisor"`

	// Mounts lists directories to mount automatically at startup.
	Mounts []MountConfig `mapstructure:"mounts" yaml:"mounts,omitempty"`

	// AccessRules seeds the network-level admission list (§3 supplement).
	AccessRules []AccessRuleConfig `mapstructure:"access_rules" yaml:"access_rules,omitempty"`

	// ShutdownTimeout bounds how long graceful shutdown may take.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// IdentityConfig names this gateway and binds its two sockets.
type IdentityConfig struct {
	// Name is advertised in PeerDescriptor.Name (1..=64 chars, no control chars).
	Name string `mapstructure:"name" yaml:"name"`

	// QUICBindAddr is the address the QUIC control channel binds (C8).
	QUICBindAddr string `mapstructure:"quic_bind_addr" yaml:"quic_bind_addr"`

	// UDPBindAddr is the address the UDP broadcast/token socket binds (C9).
	UDPBindAddr string `mapstructure:"udp_bind_addr" yaml:"udp_bind_addr"`

	// MountSideDir stores the per-mount DirectoryIndex side files the UDP
	// manager persists for reload (§4.9).
	MountSideDir string `mapstructure:"mount_side_dir" yaml:"mount_side_dir"`
}

// TLSConfig configures the mTLS identity bundle.
type TLSConfig struct {
	// BundleDir holds the CA/server/client cert+key files; generated on
	// first run if the CA certificate is absent.
	BundleDir string `mapstructure:"bundle_dir" yaml:"bundle_dir"`

	// VerifyMode is one of "none", "peer", "mutual", "strict".
	VerifyMode string `mapstructure:"verify_mode" yaml:"verify_mode"`
}

// RegistryConfig configures the peer registry's TTL sweep.
type RegistryConfig struct {
	// ConnectionTimeout is the TTL passed to Registry.CleanupExpired.
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout" yaml:"connection_timeout"`

	// CleanupInterval is how often the sweep runs.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// CacheConfig configures the content-addressed cache.
type CacheConfig struct {
	// Dir is the directory holding .cach files.
	Dir string `mapstructure:"dir" yaml:"dir"`

	// DefaultTTL is used by Put when no explicit TTL is given.
	DefaultTTL time.Duration `mapstructure:"default_ttl" yaml:"default_ttl"`

	// MaxBytes is the eviction budget. Supports human-readable sizes.
	MaxBytes bytesize.ByteSize `mapstructure:"max_bytes" yaml:"max_bytes"`

	// CleanupInterval is how often the supervisor's cache-cleanup task runs.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// CompressionConfig configures the zstd transport compressor.
type CompressionConfig struct {
	// MinCompressSize is the smallest payload compression is attempted on.
	MinCompressSize int `mapstructure:"min_compress_size" yaml:"min_compress_size"`

	// MaxChunkSize bounds both chunked-frame size and decompression output.
	MaxChunkSize int `mapstructure:"max_chunk_size" yaml:"max_chunk_size"`

	// Level is the zstd encoder level (1=fastest .. 4=best compression).
	Level int `mapstructure:"level" yaml:"level"`
}

// SecureFileConfig configures the control-plane file reader.
type SecureFileConfig struct {
	// MaxSize caps the bytes Read will return.
	MaxSize bytesize.ByteSize `mapstructure:"max_size" yaml:"max_size"`
}

// SupervisorConfig configures the gateway's periodic tasks (C11).
type SupervisorConfig struct {
	// BroadcastInterval is the period of the presence-broadcast task.
	BroadcastInterval time.Duration `mapstructure:"broadcast_interval" yaml:"broadcast_interval"`
}

// MountConfig describes one directory to mount automatically at startup.
type MountConfig struct {
	Root        string `mapstructure:"root" yaml:"root"`
	Name        string `mapstructure:"name" yaml:"name"`
	DisplayName string `mapstructure:"display_name" yaml:"display_name"`
	ReadOnly    bool   `mapstructure:"read_only" yaml:"read_only"`
}

// AccessRuleConfig seeds one CIDR allow/deny rule at startup.
type AccessRuleConfig struct {
	CIDR   string `mapstructure:"cidr" yaml:"cidr"`
	Action string `mapstructure:"action" yaml:"action"` // "allow" or "deny"
	Note   string `mapstructure:"note" yaml:"note,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Precedence (highest to lowest): environment variables (GATEWAY_*),
// configuration file, default values. When no configuration file is
// found, Load returns GetDefaultConfig() without reading the environment.
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

// MustLoad loads configuration with user-friendly errors when no config
// file exists at the requested (or default) location.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  gateway init\n\n"+
				"Or specify a custom config file:\n"+
				"  gateway <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  gateway init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in YAML form with restricted permissions
// (0600) since the bundle directory and mount roots may be sensitive.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
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
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

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
		return filepath.Join(xdg, "gateway")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "gateway")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
