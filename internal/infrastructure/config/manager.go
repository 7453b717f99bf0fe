package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/vistagrid/vistagrid/internal/logging"
)

// Manager handles configuration loading, watching, and reloading.
type Manager struct {
	config    *Config
	viper     *viper.Viper
	mu        sync.RWMutex
	callbacks []func(*Config)
	watching  bool
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")

	configDir, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine config directory: %w", err)
	}
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Current directory for development

	v.SetEnvPrefix("VISTAGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("logging.level", "VISTAGRID_LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("failed to bind VISTAGRID_LOG_LEVEL: %w", err)
	}
	if err := v.BindEnv("logging.format", "VISTAGRID_LOG_FORMAT"); err != nil {
		return nil, fmt.Errorf("failed to bind VISTAGRID_LOG_FORMAT: %w", err)
	}

	return &Manager{
		viper:     v,
		callbacks: make([]func(*Config), 0),
	}, nil
}

// Load loads the configuration from file and environment variables.
// A missing config file is not an error; defaults apply.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setDefaults()

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := m.viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	m.config = &cfg
	return nil
}

// Get returns the loaded configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnChange registers a callback invoked after every successful reload.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Watch starts watching the config file for changes.
func (m *Manager) Watch(ctx context.Context) {
	m.mu.Lock()
	if m.watching {
		m.mu.Unlock()
		return
	}
	m.watching = true
	m.mu.Unlock()

	log := logging.FromContext(ctx)
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("file", e.Name).Msg("config file changed, reloading")

		var cfg Config
		if err := m.viper.Unmarshal(&cfg); err != nil {
			log.Warn().Err(err).Msg("config reload failed, keeping previous config")
			return
		}

		m.mu.Lock()
		m.config = &cfg
		callbacks := make([]func(*Config), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.Unlock()

		for _, fn := range callbacks {
			fn(&cfg)
		}
	})
	m.viper.WatchConfig()
}

func (m *Manager) setDefaults() {
	dataDir, err := GetDataDir()
	if err != nil {
		dataDir = "."
	}

	m.viper.SetDefault("database.path", filepath.Join(dataDir, "vistagrid.db"))
	m.viper.SetDefault("logging.level", "info")
	m.viper.SetDefault("logging.format", "console")
	m.viper.SetDefault("display.canvas_width", 1920.0)
	m.viper.SetDefault("display.canvas_height", 1080.0)
	m.viper.SetDefault("restore.delay_ms", 100)
	m.viper.SetDefault("restore.poll_interval_ms", 50)
	m.viper.SetDefault("restore.max_attempts", 20)
	m.viper.SetDefault("restore.annotation_grace_ms", 3000)
	m.viper.SetDefault("cleanup.orphan_sweep_interval_ms", 60000)
	m.viper.SetDefault("session.enabled", true)
	m.viper.SetDefault("session.save_debounce_ms", 5000)
	m.viper.SetDefault("default_layout", "1x1")
}

// GetConfigDir resolves the XDG config directory for vistagrid.
func GetConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "vistagrid"), nil
}

// GetDataDir resolves the XDG data directory for vistagrid.
func GetDataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "vistagrid"), nil
}

// Restore timing accessors convert the millisecond knobs to durations.

// Delay returns the deferred-restoration delay.
func (r RestoreConfig) Delay() time.Duration {
	return time.Duration(r.DelayMs) * time.Millisecond
}

// PollInterval returns the registry poll interval.
func (r RestoreConfig) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalMs) * time.Millisecond
}

// AnnotationGrace returns the annotation hold grace period.
func (r RestoreConfig) AnnotationGrace() time.Duration {
	return time.Duration(r.AnnotationGraceMs) * time.Millisecond
}

// OrphanSweepInterval returns the recurring sweep interval.
func (c CleanupConfig) OrphanSweepInterval() time.Duration {
	return time.Duration(c.OrphanSweepIntervalMs) * time.Millisecond
}

// SaveDebounce returns the session save debounce window.
func (s SessionConfig) SaveDebounce() time.Duration {
	return time.Duration(s.SaveDebounceMs) * time.Millisecond
}
