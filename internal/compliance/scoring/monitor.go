package scoring

import (
	"context"
	"time"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/storage"
	"github.com/google/uuid"
)

// NeedsReassessment is called when a customer profile changes. It reports
// true when there is no current assessment, when PEP status changed since
// the assessment, or when the last assessment is older than ReassessAfter.
func (e *Engine) NeedsReassessment(ctx context.Context, customer *models.Customer) (bool, error) {
	cfg := e.config()

	current, err := e.repo.CurrentAssessment(ctx, customer.ID)
	if errors.Is(err, errors.NotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if current.CustomerWasPEP != customer.IsPEP {
		e.logger.Infow("PEP status changed since last assessment", "customer_id", customer.ID)
		return true, nil
	}

	if customer.LastRiskAssessment == nil {
		return true, nil
	}
	return customer.LastRiskAssessment.Before(e.clock.Now().Add(-cfg.Risk.ReassessAfter)), nil
}

// Summary aggregates assessments made in [from, to)
func (e *Engine) Summary(ctx context.Context, from, to time.Time) (*storage.AssessmentStats, error) {
	if !from.Before(to) {
		return nil, errors.Invalid.Explain("period start must be before its end")
	}
	return e.repo.AssessmentStats(ctx, from, to)
}

// History returns the customer's assessments, newest first
func (e *Engine) History(ctx context.Context, customerID uuid.UUID, limit int) ([]models.RiskAssessment, error) {
	if _, err := e.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	return e.repo.ListAssessments(ctx, customerID, limit)
}
