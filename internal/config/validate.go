package config

import (
	"fmt"
	"path"
	"strings"
)

func (c *Config) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return fmt.Errorf("settings config: %w", err)
	}

	if err := c.KeyFrameDet.Validate(); err != nil {
		return fmt.Errorf("key_frame_det config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}

	return nil
}

func (s *SettingsConfig) Validate() error {
	if s.BlobDBPath == "" {
		return fmt.Errorf("blob_db_path cannot be empty")
	}

	if s.MappingTableFormat != "cbor" && s.MappingTableFormat != "csv" {
		return fmt.Errorf("mapping_table_format must be 'cbor' or 'csv'")
	}

	if len(s.RecordingsLevelPath()) == 0 {
		return fmt.Errorf("blob_db_recordings_loc cannot be empty")
	}

	if s.TempPath == "" {
		return fmt.Errorf("temp_path cannot be empty")
	}

	return nil
}

// RecordingsLevelPath splits RecordingsLoc into store level names.
func (s *SettingsConfig) RecordingsLevelPath() []string {
	clean := strings.Trim(path.Clean("/"+s.RecordingsLoc), "/")
	if clean == "" {
		return nil
	}
	return strings.Split(clean, "/")
}

// Validate checks the enumerated key frame options. Numeric ranges are
// enforced by the detector constructors.
func (k *KeyFrameConfig) Validate() error {
	switch k.Algorithm {
	case "frames_diff", "frames_ratio", "pixels_dist":
	default:
		return fmt.Errorf("unknown key frame algorithm: %q", k.Algorithm)
	}

	if k.DebugLevel < 0 || k.DebugLevel > 2 {
		return fmt.Errorf("debug_level must be 0, 1 or 2")
	}

	if k.Algorithm == "frames_ratio" && k.LagFramesAggregation != "mean" && k.LagFramesAggregation != "decaying" {
		return fmt.Errorf("lag_frames_aggregation must be 'mean' or 'decaying'")
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text'")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}
		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups cannot be negative")
		}
		if l.MaxAge < 0 {
			return fmt.Errorf("max_age cannot be negative")
		}
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", m.Port)
		}

		if m.Path == "" {
			return fmt.Errorf("metrics path cannot be empty")
		}
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", s.Port)
	}

	if s.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}

	if s.RateLimit > 0 && s.RateBurst <= 0 {
		return fmt.Errorf("rate_burst must be positive when rate limiting is enabled")
	}

	return nil
}

func (r *RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}

	if len(r.Addresses) == 0 {
		return fmt.Errorf("at least one Redis address is required")
	}

	if r.DB < 0 {
		return fmt.Errorf("invalid Redis database number: %d", r.DB)
	}

	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	if r.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive")
	}

	return nil
}
