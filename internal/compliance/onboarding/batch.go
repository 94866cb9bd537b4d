package onboarding

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/scoring"
	"github.com/Aidin1998/kycengine/internal/compliance/storage"
	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/Aidin1998/kycengine/internal/messaging"
	"github.com/Aidin1998/kycengine/pkg/clock"
	"github.com/Aidin1998/kycengine/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SystemUser is recorded as the initiator of batch operations
const SystemUser = "system"

// Job names
const (
	JobReassessOverdue    = "reassess_overdue"
	JobRescreenStale      = "rescreen_stale"
	JobFlagPendingReviews = "flag_pending_reviews"
	JobCleanupAlerts      = "cleanup_alerts"
	JobSnapshotMetrics    = "snapshot_metrics"
)

// Reassessor recalculates risk for customers whose profile may have drifted
type Reassessor interface {
	RiskAssessor
	NeedsReassessment(ctx context.Context, customer *models.Customer) (bool, error)
}

// BatchPublisher announces finished batch runs
type BatchPublisher interface {
	PublishBatchCompleted(ctx context.Context, event *messaging.BatchCompletedMessage) error
}

// JobReport counts what a job did. In a dry run Selected is filled and
// nothing else changes.
type JobReport struct {
	Job       string `json:"job"`
	Selected  int    `json:"selected"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

func (r *JobReport) counts() map[string]int {
	return map[string]int{
		"selected":  r.Selected,
		"processed": r.Processed,
		"skipped":   r.Skipped,
		"failed":    r.Failed,
	}
}

// DailyReport is the outcome of RunDaily
type DailyReport struct {
	DryRun   bool         `json:"dry_run"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Jobs     []*JobReport `json:"jobs"`
}

// Batch runs the periodic maintenance jobs. Customers are processed
// independently; one customer's failure is counted and does not stop a job.
type Batch struct {
	repo      storage.Repository
	risk      Reassessor
	screening Screener
	events    BatchPublisher
	clock     clock.Clock
	logger    *zap.SugaredLogger

	mu  sync.RWMutex
	cfg config.EngineConfig
}

// NewBatch creates the batch runner. events may be nil.
func NewBatch(repo storage.Repository, risk Reassessor, screening Screener, events BatchPublisher, clk clock.Clock, cfg config.EngineConfig, logger *zap.SugaredLogger) *Batch {
	return &Batch{
		repo:      repo,
		risk:      risk,
		screening: screening,
		events:    events,
		clock:     clk,
		cfg:       cfg,
		logger:    logger.Named("batch"),
	}
}

// Reconfigure swaps the tunables used by subsequent runs
func (b *Batch) Reconfigure(cfg config.EngineConfig) {
	b.mu.Lock()
	b.cfg = cfg
	b.mu.Unlock()
}

func (b *Batch) config() config.EngineConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

// RunDaily runs every job in order. A job that cannot even select its
// customers stops the run.
func (b *Batch) RunDaily(ctx context.Context, dryRun bool) (*DailyReport, error) {
	report := &DailyReport{DryRun: dryRun, Started: b.clock.Now()}
	if dryRun {
		b.logger.Warn("Running daily tasks in dry-run mode")
	}
	b.logger.Info("Starting daily automated tasks")

	jobs := []func(context.Context, bool) (*JobReport, error){
		b.ReassessOverdue,
		b.RescreenStale,
		b.FlagPendingReviews,
		b.CleanupAlerts,
		b.SnapshotMetrics,
	}
	for _, job := range jobs {
		r, err := job(ctx, dryRun)
		if err != nil {
			b.logger.Errorw("Error in daily automated tasks", "error", err)
			return nil, err
		}
		report.Jobs = append(report.Jobs, r)
	}
	report.Finished = b.clock.Now()

	if b.events != nil {
		event := &messaging.BatchCompletedMessage{
			BaseMessage: messaging.NewBaseMessage(messaging.MsgBatchCompleted, report.Finished),
			DryRun:      dryRun,
			Duration:    report.Finished.Sub(report.Started),
			Jobs:        make(map[string]map[string]int, len(report.Jobs)),
		}
		for _, r := range report.Jobs {
			event.Jobs[r.Job] = r.counts()
		}
		if err := b.events.PublishBatchCompleted(ctx, event); err != nil {
			b.logger.Warnw("Failed to publish batch event", "error", err)
		}
	}

	b.logger.Infow("Daily automated tasks completed", "dry_run", dryRun, "jobs", len(report.Jobs))
	return report, nil
}

// ReassessOverdue recalculates risk for approved customers whose review
// date passed or whose assessment is stale or missing, when the profile
// check says a new assessment is needed.
func (b *Batch) ReassessOverdue(ctx context.Context, dryRun bool) (*JobReport, error) {
	cfg := b.config()
	now := b.clock.Now()
	staleBefore := now.Add(-cfg.Risk.ReassessAfter)

	customers, err := b.repo.FindCustomers(ctx, storage.CustomerFilter{
		Statuses:        []models.OnboardingStatus{models.OnboardingApproved},
		ReviewDueBefore: &now,
		AssessedBefore:  &staleBefore,
		Any:             true,
	})
	if err != nil {
		return nil, err
	}

	return b.each(ctx, JobReassessOverdue, customers, dryRun, func(ctx context.Context, c *models.Customer) (bool, error) {
		needed, err := b.risk.NeedsReassessment(ctx, c)
		if err != nil || !needed {
			return false, err
		}
		_, err = b.risk.Calculate(ctx, c.ID, scoring.Options{
			Force:      true,
			Type:       models.AssessmentPeriodic,
			AssessedBy: SystemUser,
		})
		return err == nil, err
	})
}

// RescreenStale screens approved customers never screened or screened
// longer ago than the staleness window, up to the configured limit.
func (b *Batch) RescreenStale(ctx context.Context, dryRun bool) (*JobReport, error) {
	cfg := b.config()
	staleBefore := b.clock.Now().Add(-cfg.Screening.StaleAfter)

	customers, err := b.repo.FindCustomers(ctx, storage.CustomerFilter{
		Statuses:       []models.OnboardingStatus{models.OnboardingApproved},
		ScreenedBefore: &staleBefore,
		Limit:          cfg.Screening.RescreenLimit,
	})
	if err != nil {
		return nil, err
	}

	return b.each(ctx, JobRescreenStale, customers, dryRun, func(ctx context.Context, c *models.Customer) (bool, error) {
		_, err := b.screening.ScreenCustomer(ctx, c.ID, SystemUser)
		return err == nil, err
	})
}

// FlagPendingReviews raises a REVIEW_DUE alert for every customer awaiting
// manual review that has no open one yet.
func (b *Batch) FlagPendingReviews(ctx context.Context, dryRun bool) (*JobReport, error) {
	customers, err := b.repo.FindCustomers(ctx, storage.CustomerFilter{
		Statuses: []models.OnboardingStatus{models.OnboardingRequiresManualReview},
	})
	if err != nil {
		return nil, err
	}

	return b.each(ctx, JobFlagPendingReviews, customers, dryRun, func(ctx context.Context, c *models.Customer) (bool, error) {
		var raised bool
		err := b.repo.InTx(ctx, func(ctx context.Context) error {
			open, err := b.repo.CountAlerts(ctx, storage.AlertFilter{
				Types:      []models.AlertType{models.AlertReviewDue},
				Statuses:   []models.AlertStatus{models.AlertOpen},
				CustomerID: &c.ID,
			})
			if err != nil || open > 0 {
				return err
			}
			name := c.DisplayName()
			raised = true
			return b.repo.CreateAlert(ctx, &models.ComplianceAlert{
				AlertType:  models.AlertReviewDue,
				Severity:   models.SeverityWarning,
				Title:      fmt.Sprintf("Manual Review Pending: %s", name),
				Message:    fmt.Sprintf("Customer %s has been pending manual review", name),
				CustomerID: &c.ID,
			})
		})
		if raised && err == nil {
			metrics.AlertsRaised.WithLabelValues(string(models.AlertReviewDue), string(models.SeverityWarning)).Inc()
		}
		return raised, err
	})
}

// CleanupAlerts deletes resolved and dismissed alerts not touched within
// the retention window.
func (b *Batch) CleanupAlerts(ctx context.Context, dryRun bool) (*JobReport, error) {
	cfg := b.config()
	before := b.clock.Now().Add(-cfg.Batch.AlertRetention)
	filter := storage.AlertFilter{
		Statuses:      []models.AlertStatus{models.AlertResolved, models.AlertDismissed},
		UpdatedBefore: &before,
	}

	r := &JobReport{Job: JobCleanupAlerts}
	n, err := b.repo.CountAlerts(ctx, filter)
	if err != nil {
		return nil, err
	}
	r.Selected = int(n)
	if dryRun || n == 0 {
		b.logger.Infow("Alert cleanup", "would_delete", n, "dry_run", dryRun)
		return r, nil
	}

	deleted, err := b.repo.DeleteAlerts(ctx, filter)
	if err != nil {
		return nil, err
	}
	r.Processed = int(deleted)
	metrics.BatchJobItems.WithLabelValues(JobCleanupAlerts, "processed").Add(float64(deleted))
	b.logger.Infow("Cleaned up old alerts", "deleted", deleted)
	return r, nil
}

// SnapshotMetrics refreshes the compliance gauges exported at /metrics
func (b *Batch) SnapshotMetrics(ctx context.Context, dryRun bool) (*JobReport, error) {
	cfg := b.config()
	r := &JobReport{Job: JobSnapshotMetrics}
	if dryRun {
		return r, nil
	}

	statuses := []models.OnboardingStatus{
		models.OnboardingPending, models.OnboardingInProgress, models.OnboardingUnderReview,
		models.OnboardingRequiresManualReview, models.OnboardingApproved, models.OnboardingRejected,
	}
	for _, s := range statuses {
		n, err := b.repo.CountCustomers(ctx, storage.CustomerFilter{Statuses: []models.OnboardingStatus{s}})
		if err != nil {
			return nil, err
		}
		metrics.CustomersByStatus.WithLabelValues(string(s)).Set(float64(n))
	}

	highRisk, err := b.repo.CountCustomers(ctx, storage.HighRisk())
	if err != nil {
		return nil, err
	}
	metrics.HighRiskCustomers.Set(float64(highRisk))

	open, err := b.repo.CountAlerts(ctx, storage.AlertFilter{Statuses: []models.AlertStatus{models.AlertOpen}})
	if err != nil {
		return nil, err
	}
	metrics.OpenAlerts.Set(float64(open))

	stale, err := b.repo.CountStaleAssessments(ctx, b.clock.Now().Add(-cfg.Risk.ReassessAfter))
	if err != nil {
		return nil, err
	}
	metrics.StaleAssessments.Set(float64(stale))

	r.Processed = 1
	b.logger.Infow("Daily metrics refreshed",
		"high_risk_customers", highRisk,
		"open_alerts", open,
		"stale_assessments", stale)
	return r, nil
}

// each applies fn to every customer with bounded concurrency. fn reports
// whether it changed anything; errors are counted, never returned.
func (b *Batch) each(ctx context.Context, job string, customers []models.Customer, dryRun bool, fn func(context.Context, *models.Customer) (bool, error)) (*JobReport, error) {
	r := &JobReport{Job: job, Selected: len(customers)}
	if dryRun {
		b.logger.Infow("Dry run, nothing changed", "job", job, "selected", len(customers))
		return r, nil
	}

	var processed, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.config().Batch.Workers, 1))

	for i := range customers {
		c := &customers[i]
		g.Go(func() error {
			done, err := fn(gctx, c)
			switch {
			case err != nil:
				failed.Add(1)
				b.logger.Errorw("Batch item failed", "job", job, "customer_id", c.ID, "error", err)
			case done:
				processed.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	r.Processed, r.Skipped, r.Failed = int(processed.Load()), int(skipped.Load()), int(failed.Load())
	metrics.BatchJobItems.WithLabelValues(job, "processed").Add(float64(r.Processed))
	metrics.BatchJobItems.WithLabelValues(job, "skipped").Add(float64(r.Skipped))
	metrics.BatchJobItems.WithLabelValues(job, "failed").Add(float64(r.Failed))

	b.logger.Infow("Batch job finished", "job", job,
		"selected", r.Selected, "processed", r.Processed, "skipped", r.Skipped, "failed", r.Failed)
	if err := ctx.Err(); err != nil {
		return r, err
	}
	return r, nil
}
