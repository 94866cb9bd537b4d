package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ReloadCallback is called when configuration is reloaded
type ReloadCallback func(oldConfig, newConfig *Config) error

// Manager handles configuration loading with hot-reload capabilities
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	validator *validator.Validate
	logger    *zap.Logger

	// Hot reload
	watcher         *fsnotify.Watcher
	watchPaths      []string
	reloadCallbacks []ReloadCallback
	debounce        time.Duration
	ctx             context.Context
	cancel          context.CancelFunc

	lastReload time.Time
}

// NewManager creates a new configuration manager
func NewManager(logger *zap.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		validator: validator.New(),
		logger:    logger.Named("config"),
		debounce:  500 * time.Millisecond,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// OnReload adds a callback to be called when configuration is reloaded
func (m *Manager) OnReload(callback ReloadCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloadCallbacks = append(m.reloadCallbacks, callback)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// LastReload returns the time of the last successful load
func (m *Manager) LastReload() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastReload
}

// Close shuts down the configuration manager
func (m *Manager) Close() error {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher != nil {
		if err := m.watcher.Close(); err != nil {
			return fmt.Errorf("failed to close file watcher: %w", err)
		}
	}
	return nil
}

// Validate checks struct tags and the cross-field ordering rules.
func Validate(v *validator.Validate, cfg *Config) error {
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return ValidateEngine(cfg.Engine)
}

// ValidateEngine checks the invariants the decision engine relies on.
func ValidateEngine(e EngineConfig) error {
	if err := validator.New().Struct(e); err != nil {
		return fmt.Errorf("engine validation failed: %w", err)
	}

	d := e.Decision
	if d.AutoApprovalThreshold >= d.ManualReviewThreshold {
		return fmt.Errorf("auto approval threshold %d must be below manual review threshold %d",
			d.AutoApprovalThreshold, d.ManualReviewThreshold)
	}

	l := e.Risk.Levels
	if !(l.Medium < l.High && l.High < l.Critical) {
		return fmt.Errorf("risk level thresholds must be strictly increasing, got %d/%d/%d",
			l.Medium, l.High, l.Critical)
	}
	if e.Risk.MediumVolume >= e.Risk.HighVolume {
		return fmt.Errorf("medium volume %.0f must be below high volume %.0f",
			e.Risk.MediumVolume, e.Risk.HighVolume)
	}
	if e.Risk.DocumentMediumRatio >= e.Risk.DocumentLowRatio {
		return fmt.Errorf("document medium ratio must be below low ratio")
	}

	mc := e.Matching
	if !(mc.FuzzyThreshold < mc.PotentialThreshold && mc.PotentialThreshold < mc.ExactThreshold) {
		return fmt.Errorf("matching thresholds must satisfy fuzzy < potential < exact")
	}
	if sum := mc.SequenceWeight + mc.TokenWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("matching weights must sum to 1, got %.3f", sum)
	}

	return nil
}
