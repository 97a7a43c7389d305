// Package config loads mementod settings from file, environment and flags
package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds every runtime setting of the daemon
type Config struct {
	HTTPPort           int      `mapstructure:"http_port"`
	GrpcPort           int      `mapstructure:"grpc_port"`
	MetricsPort        int      `mapstructure:"metrics_port"`
	DatabasePath       string   `mapstructure:"database_path"`
	DaemonPrefix       string   `mapstructure:"daemon_prefix"` // Prepended to every link target, e.g. "http://archive.example.org/"
	LogLevel           string   `mapstructure:"log_level"`
	LogPretty          bool     `mapstructure:"log_pretty"`
	LogFile            string   `mapstructure:"log_file"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	RateLimitPerSec    float64  `mapstructure:"rate_limit_per_sec"` // 0 = no limit
	RateLimitBurst     int      `mapstructure:"rate_limit_burst"`
	CacheSize          int      `mapstructure:"cache_size"`
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_sec"`
}

// Manager owns a viper instance and the last successfully decoded Config
type Manager struct {
	viper *viper.Viper

	mu     sync.RWMutex
	config *Config
}

// Load reads configuration. An empty path searches for mementod.yaml in the
// working directory, $HOME/.mementod and /etc/mementod. A missing file is not
// an error; defaults and MEMENTOD_* environment variables still apply.
func Load(path string) (*Manager, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mementod")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.mementod")
		v.AddConfigPath("/etc/mementod")
	}

	v.SetEnvPrefix("MEMENTOD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	m := &Manager{viper: v}
	if err := m.decode(); err != nil {
		return nil, err
	}
	return m, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8080)
	v.SetDefault("grpc_port", 50051)
	v.SetDefault("metrics_port", 9090)
	v.SetDefault("database_path", "./mementod.db")
	v.SetDefault("daemon_prefix", "/")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("log_file", "")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("rate_limit_per_sec", 0)
	v.SetDefault("rate_limit_burst", 0)
	v.SetDefault("cache_size", 1024)
	v.SetDefault("shutdown_timeout_sec", 15)
}

func (m *Manager) decode() error {
	var cfg Config
	if err := m.viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return nil
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Viper exposes the underlying instance so CLI flags can be bound to it
func (m *Manager) Viper() *viper.Viper {
	return m.viper
}

// Refresh re-decodes after flags or overrides were applied to the viper instance
func (m *Manager) Refresh() error {
	return m.decode()
}

// Watch reloads the file whenever it changes and hands the new Config to
// onChange. Invalid edits are reported through onError and the previous
// Config stays active.
func (m *Manager) Watch(onChange func(*Config), onError func(error)) {
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := m.decode(); err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		if onChange != nil {
			onChange(m.Get())
		}
	})
	m.viper.WatchConfig()
}

// Validate checks ranges that would otherwise fail late at listen time
func (c *Config) Validate() error {
	var errs []string
	for name, port := range map[string]int{
		"http_port":    c.HTTPPort,
		"grpc_port":    c.GrpcPort,
		"metrics_port": c.MetricsPort,
	} {
		if port < 0 || port > 65535 {
			errs = append(errs, fmt.Sprintf("%s out of range: %d", name, port))
		}
	}
	if c.DatabasePath == "" {
		errs = append(errs, "database_path is required")
	}
	if c.RateLimitPerSec < 0 {
		errs = append(errs, "rate_limit_per_sec must not be negative")
	}
	if c.CacheSize < 0 {
		errs = append(errs, "cache_size must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Prefix returns DaemonPrefix with exactly one trailing slash
func (c *Config) Prefix() string {
	return strings.TrimRight(c.DaemonPrefix, "/") + "/"
}
