package workflow

import (
	"context"

	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/storage"
)

// AlertAction is what alert processing did with one alert
type AlertAction string

const (
	ActionAutoResolved AlertAction = "AUTO_RESOLVED"
	ActionEscalated    AlertAction = "ESCALATED"
	ActionNone         AlertAction = "NO_ACTION"
)

// AlertRun counts the results of one alert processing pass
type AlertRun struct {
	TotalProcessed int `json:"total_processed"`
	AutoResolved   int `json:"auto_resolved"`
	Escalated      int `json:"escalated"`
	Errors         int `json:"errors"`
}

// ProcessHighPriorityAlerts walks open ERROR and CRITICAL alerts, oldest
// first. HIGH_RISK_ACTIVITY alerts of approved customers and RULE_VIOLATION
// alerts followed by a passed check are resolved. Remaining CRITICAL alerts
// are escalated. A failure on one alert is counted and does not stop the run.
func (e *Engine) ProcessHighPriorityAlerts(ctx context.Context) (*AlertRun, error) {
	e.logger.Info("Processing high priority alerts")

	alerts, err := e.repo.FindAlerts(ctx, storage.HighPriorityOpen())
	if err != nil {
		return nil, err
	}

	run := &AlertRun{}
	for i := range alerts {
		if err := ctx.Err(); err != nil {
			return run, err
		}

		action, err := e.processAlert(ctx, &alerts[i])
		if err != nil {
			e.logger.Errorw("Error processing alert", "alert_id", alerts[i].ID, "error", err)
			run.Errors++
			continue
		}
		switch action {
		case ActionAutoResolved:
			run.AutoResolved++
		case ActionEscalated:
			run.Escalated++
		}
		run.TotalProcessed++
	}

	e.logger.Infow("High priority alerts processed",
		"total_processed", run.TotalProcessed,
		"auto_resolved", run.AutoResolved,
		"escalated", run.Escalated,
		"errors", run.Errors)
	return run, nil
}

func (e *Engine) processAlert(ctx context.Context, alert *models.ComplianceAlert) (AlertAction, error) {
	if alert.CustomerID != nil {
		switch alert.AlertType {
		case models.AlertHighRiskActivity:
			customer, err := e.repo.GetCustomer(ctx, *alert.CustomerID)
			if err != nil {
				return "", err
			}
			if customer.OnboardingStatus == models.OnboardingApproved {
				return ActionAutoResolved, e.resolve(ctx, alert, "Customer approved after manual review")
			}

		case models.AlertRuleViolation:
			passed, err := e.repo.HasPassedCheckSince(ctx, *alert.CustomerID, alert.CreatedAt)
			if err != nil {
				return "", err
			}
			if passed {
				return ActionAutoResolved, e.resolve(ctx, alert, "Compliance issues resolved")
			}
		}
	}

	if alert.Severity == models.SeverityCritical {
		e.logger.Warnw("Critical alert escalated", "alert_id", alert.ID, "title", alert.Title)
		return ActionEscalated, nil
	}
	return ActionNone, nil
}

func (e *Engine) resolve(ctx context.Context, alert *models.ComplianceAlert, notes string) error {
	return e.repo.ResolveAlert(ctx, alert.ID, models.AlertResolved, notes, e.clock.Now())
}
