package config

import (
	"fmt"
	"strings"
)

// Validate checks cfg for internally-inconsistent or out-of-range values
// after defaults have been applied. It normalizes Logging.Level to
// uppercase as a side effect, matching the teacher's convention.
func Validate(cfg *Config) error {
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	switch cfg.Logging.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level must be one of DEBUG, INFO, WARN, ERROR, got %q", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", cfg.Metrics.Port)
	}

	if cfg.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if cfg.Cache.MaxBytes == 0 {
		return fmt.Errorf("cache.max_bytes must be greater than zero")
	}

	switch cfg.TLS.VerifyMode {
	case "none", "peer", "mutual", "strict":
	default:
		return fmt.Errorf("tls.verify_mode must be one of none, peer, mutual, strict, got %q", cfg.TLS.VerifyMode)
	}

	if cfg.Compression.MinCompressSize < 0 {
		return fmt.Errorf("compression.min_compress_size must not be negative")
	}
	if cfg.Compression.MaxChunkSize <= 0 {
		return fmt.Errorf("compression.max_chunk_size must be greater than zero")
	}

	for _, rule := range cfg.AccessRules {
		switch rule.Action {
		case "allow", "deny":
		default:
			return fmt.Errorf("access_rules: action must be allow or deny, got %q", rule.Action)
		}
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be greater than zero")
	}

	return nil
}
