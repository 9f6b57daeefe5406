package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/VacuolePaoo/gatewaygui/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. It is called after loading from file/environment to fill in
// sensible defaults; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyIdentityDefaults(&cfg.Identity)
	applyTLSDefaults(&cfg.TLS)
	applyRegistryDefaults(&cfg.Registry)
	applyCacheDefaults(&cfg.Cache)
	applyCompressionDefaults(&cfg.Compression)
	applySecureFileDefaults(&cfg.SecureFile)
	applySupervisorDefaults(&cfg.Supervisor)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

func applyLoggingDefaults(c *LoggingConfig) {
	if c.Level == "" {
		c.Level = "INFO"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
}

func applyMetricsDefaults(c *MetricsConfig) {
	if c.Port == 0 {
		c.Port = 9090
	}
}

func applyIdentityDefaults(c *IdentityConfig) {
	if c.Name == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "gateway"
		}
		c.Name = host
	}
	if c.QUICBindAddr == "" {
		c.QUICBindAddr = "0.0.0.0:7780"
	}
	if c.UDPBindAddr == "" {
		c.UDPBindAddr = "0.0.0.0:7781"
	}
	if c.MountSideDir == "" {
		c.MountSideDir = filepath.Join(getConfigDir(), "mounts")
	}
}

func applyTLSDefaults(c *TLSConfig) {
	if c.BundleDir == "" {
		c.BundleDir = filepath.Join(getConfigDir(), "tls")
	}
	if c.VerifyMode == "" {
		c.VerifyMode = "mutual"
	}
}

func applyRegistryDefaults(c *RegistryConfig) {
	if c.ConnectionTimeout == 0 {
		c.ConnectionTimeout = 90 * time.Second
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 30 * time.Second
	}
}

func applyCacheDefaults(c *CacheConfig) {
	if c.Dir == "" {
		c.Dir = filepath.Join(getConfigDir(), "cache")
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = time.Hour
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = bytesize.ByteSize(1 << 30) // 1 GiB
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 5 * time.Minute
	}
}

func applyCompressionDefaults(c *CompressionConfig) {
	if c.MinCompressSize == 0 {
		c.MinCompressSize = 64
	}
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = 1 << 20 // 1 MiB
	}
	if c.Level == 0 {
		c.Level = 3
	}
}

func applySecureFileDefaults(c *SecureFileConfig) {
	if c.MaxSize == 0 {
		c.MaxSize = bytesize.ByteSize(10 << 20) // 10 MiB
	}
}

func applySupervisorDefaults(c *SupervisorConfig) {
	if c.BroadcastInterval == 0 {
		c.BroadcastInterval = 30 * time.Second
	}
}

// GetDefaultConfig returns a Config with every field at its default value.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
