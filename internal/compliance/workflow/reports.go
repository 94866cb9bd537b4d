package workflow

import (
	"context"
	"math"
	"time"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/storage"
)

// Trend compares passed checks with the previous period of equal length
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// Dashboard summarises compliance activity over a period
type Dashboard struct {
	From   time.Time       `json:"from"`
	To     time.Time       `json:"to"`
	Checks DashboardChecks `json:"checks"`
	Alerts DashboardAlerts `json:"alerts"`
	Trends DashboardTrends `json:"trends"`
}

type DashboardChecks struct {
	Total    int64   `json:"total"`
	Passed   int64   `json:"passed"`
	Failed   int64   `json:"failed"`
	Review   int64   `json:"review"`
	PassRate float64 `json:"pass_rate"`
	FailRate float64 `json:"fail_rate"`
}

type DashboardAlerts struct {
	Total    int64 `json:"total"`
	Open     int64 `json:"open"`
	Critical int64 `json:"critical"`
}

type DashboardTrends struct {
	Overall              Trend `json:"overall_trend"`
	CurrentPeriodChecks  int64 `json:"current_period_checks"`
	PreviousPeriodChecks int64 `json:"previous_period_checks"`
}

// Dashboard reports checks and alerts in [from, to). A zero from or to
// defaults to the last 30 days.
func (e *Engine) Dashboard(ctx context.Context, from, to time.Time) (*Dashboard, error) {
	if to.IsZero() {
		to = e.clock.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if !from.Before(to) {
		return nil, errors.Invalid.Explain("period start must be before its end")
	}

	current, err := e.repo.CheckStats(ctx, from, to)
	if err != nil {
		return nil, err
	}
	previous, err := e.repo.CheckStats(ctx, from.Add(-to.Sub(from)), from)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		From: from,
		To:   to,
		Checks: DashboardChecks{
			Total:  current.Total,
			Passed: current.Passed,
			Failed: current.Failed,
			Review: current.RequiresReview,
		},
		Trends: DashboardTrends{
			Overall:              TrendStable,
			CurrentPeriodChecks:  current.Total,
			PreviousPeriodChecks: previous.Total,
		},
	}
	if current.Total > 0 {
		d.Checks.PassRate = rate(current.Passed, current.Total)
		d.Checks.FailRate = rate(current.Failed, current.Total)
	}
	switch {
	case current.Passed > previous.Passed:
		d.Trends.Overall = TrendImproving
	case current.Passed < previous.Passed:
		d.Trends.Overall = TrendDeclining
	}

	period := storage.AlertFilter{CreatedFrom: &from, CreatedTo: &to}
	if d.Alerts.Total, err = e.repo.CountAlerts(ctx, period); err != nil {
		return nil, err
	}
	open := period
	open.Statuses = []models.AlertStatus{models.AlertOpen}
	if d.Alerts.Open, err = e.repo.CountAlerts(ctx, open); err != nil {
		return nil, err
	}
	critical := period
	critical.Severities = []models.Severity{models.SeverityCritical}
	if d.Alerts.Critical, err = e.repo.CountAlerts(ctx, critical); err != nil {
		return nil, err
	}

	return d, nil
}

// rate is n/total as a percentage rounded to one decimal
func rate(n, total int64) float64 {
	return math.Round(float64(n)/float64(total)*1000) / 10
}
