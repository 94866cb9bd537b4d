// Package scheduler runs the periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Aidin1998/kycengine/internal/compliance/onboarding"
	"github.com/Aidin1998/kycengine/internal/compliance/workflow"
	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DailyRunner runs the daily batch
type DailyRunner interface {
	RunDaily(ctx context.Context, dryRun bool) (*onboarding.DailyReport, error)
}

// AlertProcessor works the high-priority alert queue
type AlertProcessor interface {
	ProcessHighPriorityAlerts(ctx context.Context) (*workflow.AlertRun, error)
}

// Scheduler owns the cron instance. Runs of the same job never overlap.
type Scheduler struct {
	cron    *cron.Cron
	daily   DailyRunner
	alerts  AlertProcessor
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	dryRun bool
}

// New registers the daily and alert jobs from cfg
func New(cfg config.SchedulerConfig, daily DailyRunner, alerts AlertProcessor, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		daily:   daily,
		alerts:  alerts,
		logger:  logger.Named("scheduler"),
		timeout: time.Hour,
		dryRun:  cfg.DryRun,
	}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))

	if _, err := s.cron.AddFunc(cfg.DailySpec, s.RunDaily); err != nil {
		return nil, fmt.Errorf("invalid daily spec %q: %w", cfg.DailySpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.AlertSpec, s.ProcessAlerts); err != nil {
		return nil, fmt.Errorf("invalid alert spec %q: %w", cfg.AlertSpec, err)
	}
	return s, nil
}

// SetDryRun switches subsequent daily runs into or out of dry-run mode
func (s *Scheduler) SetDryRun(dryRun bool) {
	s.mu.Lock()
	s.dryRun = dryRun
	s.mu.Unlock()
}

// Start begins running jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops scheduling and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries returns the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// RunDaily runs the daily batch once
func (s *Scheduler) RunDaily() {
	s.mu.RLock()
	dryRun := s.dryRun
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report, err := s.daily.RunDaily(ctx, dryRun)
	if err != nil {
		s.logger.Error("Daily batch failed", zap.Error(err))
		return
	}
	s.logger.Info("Daily batch finished",
		zap.Bool("dry_run", report.DryRun),
		zap.Duration("duration", report.Finished.Sub(report.Started)))
}

// ProcessAlerts works the alert queue once
func (s *Scheduler) ProcessAlerts() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	run, err := s.alerts.ProcessHighPriorityAlerts(ctx)
	if err != nil {
		s.logger.Error("Alert processing failed", zap.Error(err))
		return
	}
	s.logger.Info("Alert processing finished", zap.Any("result", run))
}
