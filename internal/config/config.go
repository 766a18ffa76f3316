// Package config provides configuration loading and validation for telestatd.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidPort           = errors.New("invalid server port")
	ErrInvalidBufferSize     = errors.New("stats buffer size must be positive")
	ErrInvalidPingInterval   = errors.New("stats ws_ping_interval must be positive")
	ErrInvalidPingTimeout    = errors.New("stats ws_ping_timeout must be positive")
	ErrInvalidPeriodDuration = errors.New("stats period duration must be positive")
)

// Default configuration values.
const (
	defaultPort = 8080
	defaultHost = "0.0.0.0"
	maxPort     = 65535

	// defaultBufferSize is one day of one-second entries, matching the
	// upstream default of ~4.8MB per buffer at 56 bytes/entry.
	defaultBufferSize   = 86_400
	defaultPingInterval = 60
	defaultPingTimeout  = 10
)

// Config holds all configuration for telestatd.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Stats         StatsConfig         `mapstructure:"stats"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Port         int           `mapstructure:"port"`
}

// StatsConfig holds the telemetry core's configuration surface.
type StatsConfig struct {
	Enabled               bool           `mapstructure:"enabled"`
	TimingBufferSize      int            `mapstructure:"timing_buffer_size"`
	ConnectionBufferSize  int            `mapstructure:"connection_buffer_size"`
	MemoryBufferSize      int            `mapstructure:"memory_buffer_size"`
	WSPingIntervalSeconds int            `mapstructure:"ws_ping_interval"`
	WSPingTimeoutSeconds  int            `mapstructure:"ws_ping_timeout"`
	Periods               map[string]int `mapstructure:"periods"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds OTel export configuration.
type ObservabilityConfig struct {
	OTLPEndpoint string            `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool              `mapstructure:"otlp_insecure"`
	OTLPHeaders  map[string]string `mapstructure:"otlp_headers"`
	SampleRatio  float64           `mapstructure:"sample_ratio"`
}

// LoadConfig loads configuration from a TOML file and environment variables.
// Environment variables (prefixed TELESTAT_) take precedence over file values.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("toml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/telestat")
	}

	viperCfg.SetEnvPrefix("TELESTAT")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&cfg)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("server.port", defaultPort)
	viperCfg.SetDefault("server.host", defaultHost)
	viperCfg.SetDefault("server.read_timeout", "30s")
	viperCfg.SetDefault("server.write_timeout", "30s")
	viperCfg.SetDefault("server.idle_timeout", "60s")

	viperCfg.SetDefault("stats.enabled", true)
	viperCfg.SetDefault("stats.timing_buffer_size", defaultBufferSize)
	viperCfg.SetDefault("stats.connection_buffer_size", defaultBufferSize)
	viperCfg.SetDefault("stats.memory_buffer_size", defaultBufferSize)
	viperCfg.SetDefault("stats.ws_ping_interval", defaultPingInterval)
	viperCfg.SetDefault("stats.ws_ping_timeout", defaultPingTimeout)
	viperCfg.SetDefault("stats.periods", map[string]int{
		"second": 1,
		"minute": 60,
		"hour":   3600,
		"day":    86_400,
	})

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")

	viperCfg.SetDefault("observability.sample_ratio", 0.0)
}

// validateConfig validates the configuration.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, cfg.Server.Port)
	}

	if !cfg.Stats.Enabled {
		return nil
	}

	if cfg.Stats.TimingBufferSize <= 0 {
		return fmt.Errorf("%w: timing_buffer_size=%d", ErrInvalidBufferSize, cfg.Stats.TimingBufferSize)
	}

	if cfg.Stats.ConnectionBufferSize <= 0 {
		return fmt.Errorf("%w: connection_buffer_size=%d", ErrInvalidBufferSize, cfg.Stats.ConnectionBufferSize)
	}

	if cfg.Stats.MemoryBufferSize <= 0 {
		return fmt.Errorf("%w: memory_buffer_size=%d", ErrInvalidBufferSize, cfg.Stats.MemoryBufferSize)
	}

	if cfg.Stats.WSPingIntervalSeconds <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPingInterval, cfg.Stats.WSPingIntervalSeconds)
	}

	if cfg.Stats.WSPingTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPingTimeout, cfg.Stats.WSPingTimeoutSeconds)
	}

	for name, seconds := range cfg.Stats.Periods {
		if seconds <= 0 {
			return fmt.Errorf("%w: period %q=%d", ErrInvalidPeriodDuration, name, seconds)
		}
	}

	return nil
}
