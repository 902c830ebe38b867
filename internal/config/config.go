package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Settings    SettingsConfig `mapstructure:"settings"`
	KeyFrameDet KeyFrameConfig `mapstructure:"key_frame_det"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
	Server      ServerConfig   `mapstructure:"server"`
	Redis       RedisConfig    `mapstructure:"redis"`
}

type SettingsConfig struct {
	BlobDBPath         string `mapstructure:"blob_db_path"`
	MappingTableFormat string `mapstructure:"mapping_table_format"` // cbor or csv
	// Slash separated level path of the recordings namespace inside the store.
	RecordingsLoc string `mapstructure:"blob_db_recordings_loc"`
	TempPath      string `mapstructure:"temp_path"`
	FFmpegPath    string `mapstructure:"ffmpeg_path"`
	FFprobePath   string `mapstructure:"ffprobe_path"`
}

type KeyFrameConfig struct {
	Algorithm            string  `mapstructure:"algorithm"` // frames_diff, frames_ratio or pixels_dist
	DebugLevel           int     `mapstructure:"debug_level"`
	Threshold            float64 `mapstructure:"threshold"`
	ProcessingWidth      int     `mapstructure:"processing_res_width"`
	ProcessingHeight     int     `mapstructure:"processing_res_height"`
	MaxTemporalLag       int     `mapstructure:"max_temporal_lag"`
	MinKFDistance        int     `mapstructure:"min_kf_distance"`
	LagFramesAggregation string  `mapstructure:"lag_frames_aggregation"` // mean or decaying
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`   // json or text
	Output     string `mapstructure:"output"`   // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst       int           `mapstructure:"rate_burst"`
}

// RedisConfig configures the indexing run registry. When disabled runs are
// kept in memory for the lifetime of the process.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	RunTTL       time.Duration `mapstructure:"run_ttl"`
}

// Load reads configPath (YAML), applies GRE2G_* environment overrides and
// validates the result. An empty configPath loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variable override
	v.SetEnvPrefix("GRE2G")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration produced by the built-in defaults.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	// Settings defaults
	v.SetDefault("settings.blob_db_path", "./gre2g_data/blob_db")
	v.SetDefault("settings.mapping_table_format", "cbor")
	v.SetDefault("settings.blob_db_recordings_loc", "recordings")
	v.SetDefault("settings.temp_path", "./gre2g_data/temp")
	v.SetDefault("settings.ffmpeg_path", "ffmpeg")
	v.SetDefault("settings.ffprobe_path", "ffprobe")

	// Key frame detection defaults
	v.SetDefault("key_frame_det.algorithm", "frames_ratio")
	v.SetDefault("key_frame_det.debug_level", 0)
	v.SetDefault("key_frame_det.threshold", 0.3)
	v.SetDefault("key_frame_det.processing_res_width", 320)
	v.SetDefault("key_frame_det.processing_res_height", 180)
	v.SetDefault("key_frame_det.max_temporal_lag", 5)
	v.SetDefault("key_frame_det.min_kf_distance", 30)
	v.SetDefault("key_frame_det.lag_frames_aggregation", "mean")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Server defaults
	v.SetDefault("server.listen_addr", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.run_ttl", "720h")
}
