// Config loader with hot-reload and validation capabilities
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. KYCENGINE_DATABASE_DSN.
const EnvPrefix = "KYCENGINE"

// DefaultPaths are searched when Load is called without explicit paths.
var DefaultPaths = []string{
	"./config.yaml",
	"./configs/config.yaml",
	"/etc/kycengine/config.yaml",
}

// Load loads configuration from files and environment, validates it and
// starts watching the loaded files for changes.
func (m *Manager) Load(paths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(paths) == 0 {
		paths = DefaultPaths
	}
	m.logger.Info("Loading configuration", zap.Strings("paths", paths))

	v, loaded, err := m.read(paths)
	if err != nil {
		return err
	}
	m.watchPaths = loaded

	cfg, err := m.decode(v)
	if err != nil {
		return err
	}

	if err := m.startWatcher(); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	m.config = cfg
	m.lastReload = time.Now()

	m.logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Environment),
		zap.Time("loaded_at", m.lastReload))

	return nil
}

// read builds a viper instance seeded with Default() and merges every
// existing file in paths on top of it.
func (m *Manager) read(paths []string) (*viper.Viper, []string, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, nil, fmt.Errorf("failed to seed defaults: %w", err)
	}

	var loaded []string
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			m.logger.Debug("Config file not found, skipping", zap.String("path", path))
			continue
		}

		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}

	if len(loaded) == 0 {
		m.logger.Warn("No configuration files found, using defaults and environment variables")
	} else {
		m.logger.Info("Loaded configuration files", zap.Strings("files", loaded))
	}

	return v, loaded, nil
}

func (m *Manager) decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(m.validator, &cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// startWatcher starts the file watcher for hot-reload
func (m *Manager) startWatcher() error {
	if len(m.watchPaths) == 0 {
		m.logger.Info("No config files to watch, hot-reload disabled")
		return nil
	}
	if m.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	m.watcher = watcher

	for _, path := range m.watchPaths {
		if err := watcher.Add(path); err != nil {
			m.logger.Warn("Failed to watch config file", zap.String("path", path), zap.Error(err))
		}
	}

	go m.watchForChanges()

	m.logger.Info("File watcher started for hot-reload", zap.Strings("paths", m.watchPaths))
	return nil
}

// watchForChanges handles file system events for configuration hot-reload
func (m *Manager) watchForChanges() {
	debounceTimer := time.NewTimer(0)
	debounceTimer.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				m.logger.Debug("Config file changed",
					zap.String("file", event.Name),
					zap.String("operation", event.Op.String()))
				debounceTimer.Reset(m.debounce)
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("File watcher error", zap.Error(err))

		case <-debounceTimer.C:
			if err := m.Reload(); err != nil {
				m.logger.Error("Failed to reload configuration", zap.Error(err))
			}
		}
	}
}

// Reload re-reads the watched files. The new configuration replaces the
// current one only if it validates and every callback accepts it.
func (m *Manager) Reload() error {
	m.logger.Info("Reloading configuration")

	m.mu.RLock()
	oldConfig := m.config
	paths := append([]string(nil), m.watchPaths...)
	callbacks := append([]ReloadCallback(nil), m.reloadCallbacks...)
	m.mu.RUnlock()

	v, _, err := m.read(paths)
	if err != nil {
		return fmt.Errorf("failed to reload config files: %w", err)
	}
	newConfig, err := m.decode(v)
	if err != nil {
		return err
	}

	for _, callback := range callbacks {
		if err := callback(oldConfig, newConfig); err != nil {
			return fmt.Errorf("reload callback failed: %w", err)
		}
	}

	m.mu.Lock()
	m.config = newConfig
	m.lastReload = time.Now()
	m.mu.Unlock()

	m.logger.Info("Configuration reloaded successfully", zap.Time("reloaded_at", m.lastReload))
	return nil
}
