package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Budget   BudgetConfig   `mapstructure:"budget"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

// ServerConfig defines daemon ports and addresses
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Path  string      `mapstructure:"path"` // bolt only
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines the Redis connection for shared state
type RedisConfig struct {
	Host         string `mapstructure:"host"` // may be "host:port"
	Port         int    `mapstructure:"port"` // ignored when host carries the port
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// BudgetConfig defines budget enforcement settings
type BudgetConfig struct {
	BreakURL string `mapstructure:"break_url"`
}

// TrackerConfig defines the background evaluation loop
type TrackerConfig struct {
	Interval      string `mapstructure:"interval"`
	WarningWindow string `mapstructure:"warning_window"`
}

// AgentConfig defines the local browser focus agent endpoint
type AgentConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Timeout  string `mapstructure:"timeout"`
}

// NotifierConfig defines how warnings reach the user
type NotifierConfig struct {
	Type    string   `mapstructure:"type"`    // "log" or "command"
	Command []string `mapstructure:"command"` // argv prefix for type "command"
}

// AdminConfig defines the settings API
type AdminConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Port        int    `mapstructure:"port"`
	BindAddress string `mapstructure:"bind_address"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("BREAKTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.metrics_port", 9090)

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/breaktime/breaktime.bolt")
	v.SetDefault("storage.redis.host", "127.0.0.1")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Budget defaults
	v.SetDefault("budget.break_url", "about:blank")

	// Tracker defaults
	v.SetDefault("tracker.interval", "1m")
	v.SetDefault("tracker.warning_window", "1m")

	// Agent defaults
	v.SetDefault("agent.endpoint", "http://127.0.0.1:4777")
	v.SetDefault("agent.timeout", "3s")

	// Notifier defaults
	v.SetDefault("notifier.type", "log")
	v.SetDefault("notifier.command", []string{})

	// Admin defaults
	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.port", 8710)
	v.SetDefault("admin.bind_address", "127.0.0.1")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}
	if cfg.Admin.Enabled && (cfg.Admin.Port <= 0 || cfg.Admin.Port > 65535) {
		return fmt.Errorf("invalid admin port: %d", cfg.Admin.Port)
	}

	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %q", cfg.Storage.Type)
	}

	for key, value := range map[string]string{
		"tracker.interval":       cfg.Tracker.Interval,
		"tracker.warning_window": cfg.Tracker.WarningWindow,
		"agent.timeout":          cfg.Agent.Timeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if cfg.Agent.Endpoint == "" {
		return fmt.Errorf("agent endpoint is required")
	}

	switch cfg.Notifier.Type {
	case "log":
	case "command":
		if len(cfg.Notifier.Command) == 0 {
			return fmt.Errorf("notifier command is required for type %q", cfg.Notifier.Type)
		}
	default:
		return fmt.Errorf("unsupported notifier type: %q", cfg.Notifier.Type)
	}

	return nil
}
