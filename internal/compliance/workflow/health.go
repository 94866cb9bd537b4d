package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/storage"
)

// HealthStatus is the state of a single health check or of the whole system
type HealthStatus string

const (
	Healthy   HealthStatus = "HEALTHY"
	Warning   HealthStatus = "WARNING"
	Unhealthy HealthStatus = "UNHEALTHY"
	Errored   HealthStatus = "ERROR"
)

// HealthReport is the outcome of a health check
type HealthReport struct {
	Status    HealthStatus            `json:"overall_status"`
	Checks    map[string]HealthStatus `json:"checks"`
	Warnings  []string                `json:"warnings"`
	Errors    []string                `json:"errors"`
	Timestamp time.Time               `json:"timestamp"`
}

// Health checks database connectivity and the compliance backlog: stale
// assessments of approved customers, open alerts and pending manual reviews.
func (e *Engine) Health(ctx context.Context) *HealthReport {
	cfg, _ := e.snapshot()
	now := e.clock.Now()

	r := &HealthReport{
		Status:    Healthy,
		Checks:    make(map[string]HealthStatus),
		Warnings:  []string{},
		Errors:    []string{},
		Timestamp: now,
	}

	if err := e.repo.Ping(ctx); err != nil {
		r.Checks["database"] = Errored
		r.Errors = append(r.Errors, fmt.Sprintf("Database connectivity: %s", errors.MessageOf(err)))
	} else {
		r.Checks["database"] = Healthy
	}

	staleBefore := now.Add(-cfg.Risk.ReassessAfter)
	r.threshold("risk_assessments", "Risk assessment check", cfg.Batch.StaleAssessmentMax,
		"%d customers have stale risk assessments",
		func() (int64, error) {
			return e.repo.CountCustomers(ctx, storage.CustomerFilter{
				Statuses:       []models.OnboardingStatus{models.OnboardingApproved},
				AssessedBefore: &staleBefore,
			})
		})

	r.threshold("alert_backlog", "Alert backlog check", cfg.Batch.OpenAlertsMax,
		"%d open compliance alerts",
		func() (int64, error) {
			return e.repo.CountAlerts(ctx, storage.AlertFilter{Statuses: []models.AlertStatus{models.AlertOpen}})
		})

	r.threshold("pending_reviews", "Pending reviews check", cfg.Batch.PendingReviewMax,
		"%d customers pending manual review",
		func() (int64, error) {
			return e.repo.CountCustomers(ctx, storage.CustomerFilter{
				Statuses: []models.OnboardingStatus{models.OnboardingRequiresManualReview},
			})
		})

	switch {
	case len(r.Errors) > 0:
		r.Status = Unhealthy
	case len(r.Warnings) > 0:
		r.Status = Warning
	}

	e.logger.Infow("System health check completed", "status", r.Status)
	return r
}

func (r *HealthReport) threshold(name, label string, limit int64, format string, count func() (int64, error)) {
	n, err := count()
	switch {
	case err != nil:
		r.Checks[name] = Errored
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", label, errors.MessageOf(err)))
	case n > limit:
		r.Checks[name] = Warning
		r.Warnings = append(r.Warnings, fmt.Sprintf(format, n))
	default:
		r.Checks[name] = Healthy
	}
}
