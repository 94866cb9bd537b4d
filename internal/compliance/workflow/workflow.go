// Package workflow runs the automated compliance rules for a customer and
// turns their outcome into an onboarding decision.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/rules"
	"github.com/Aidin1998/kycengine/internal/compliance/scoring"
	"github.com/Aidin1998/kycengine/internal/compliance/storage"
	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/Aidin1998/kycengine/pkg/clock"
	"github.com/Aidin1998/kycengine/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Decision is the approval outcome of a workflow run
type Decision string

const (
	AutoApproved          Decision = "AUTO_APPROVED"
	ConditionallyApproved Decision = "CONDITIONALLY_APPROVED"
	PendingManualReview   Decision = "PENDING_MANUAL_REVIEW"
	Rejected              Decision = "REJECTED"
)

// IsApproval reports whether the decision lets the customer onboard
func (d Decision) IsApproval() bool {
	return d == AutoApproved || d == ConditionallyApproved
}

// OnboardingStatus maps the decision onto the customer's lifecycle state
func (d Decision) OnboardingStatus() models.OnboardingStatus {
	switch d {
	case AutoApproved, ConditionallyApproved:
		return models.OnboardingApproved
	case PendingManualReview:
		return models.OnboardingRequiresManualReview
	default:
		return models.OnboardingRejected
	}
}

// CheckOutcome is one rule evaluated during a run
type CheckOutcome struct {
	CheckID  uuid.UUID               `json:"check_id"`
	RuleID   uuid.UUID               `json:"rule_id"`
	RuleName string                  `json:"rule_name"`
	RuleType models.RuleType         `json:"rule_type"`
	Status   models.ComplianceStatus `json:"status"`
	Score    int                     `json:"score"`
	Details  string                  `json:"details"`
	Error    string                  `json:"error,omitempty"`
}

// Outcome is the result of a workflow run
type Outcome struct {
	CustomerID           uuid.UUID               `json:"customer_id"`
	Decision             Decision                `json:"final_decision"`
	RequiresManualReview bool                    `json:"requires_manual_review"`
	Overall              models.ComplianceStatus `json:"overall_status"`
	RiskScore            int                     `json:"risk_score"`
	Checks               []CheckOutcome          `json:"checks"`
	ChecksPassed         int                     `json:"checks_passed"`
	ChecksFailed         int                     `json:"checks_failed"`
	ChecksForReview      int                     `json:"checks_requires_review"`
	NextSteps            []string                `json:"next_steps"`
	Conditions           []string                `json:"approval_conditions,omitempty"`
}

// RuleEvaluator evaluates one rule against a customer snapshot
type RuleEvaluator interface {
	Evaluate(rule *models.ComplianceRule, f *rules.Facts) (rules.Result, error)
}

// Engine runs compliance workflows
type Engine struct {
	repo   storage.Repository
	clock  clock.Clock
	logger *zap.SugaredLogger

	mu        sync.RWMutex
	cfg       config.EngineConfig
	evaluator RuleEvaluator
}

// NewEngine creates a compliance workflow engine
func NewEngine(repo storage.Repository, clk clock.Clock, cfg config.EngineConfig, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		repo:      repo,
		clock:     clk,
		logger:    logger.Named("workflow"),
		cfg:       cfg,
		evaluator: rules.NewEvaluator(cfg),
	}
}

// Reconfigure swaps the tunables used by subsequent calls
func (e *Engine) Reconfigure(cfg config.EngineConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.evaluator = rules.NewEvaluator(cfg)
	e.mu.Unlock()
}

func (e *Engine) snapshot() (config.EngineConfig, RuleEvaluator) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg, e.evaluator
}

// Run evaluates every active auto-checked rule against the customer,
// decides on approval and applies the decision. All writes of a run commit
// together. A rule that cannot be evaluated is recorded as a FAILED check
// and does not stop the other rules.
func (e *Engine) Run(ctx context.Context, customerID uuid.UUID, initiatedBy string) (*Outcome, error) {
	cfg, evaluator := e.snapshot()
	e.logger.Infow("Starting compliance workflow", "customer_id", customerID)

	var (
		out    *Outcome
		alerts []*models.ComplianceAlert
	)
	err := e.repo.InTx(ctx, func(ctx context.Context) error {
		now := e.clock.Now()

		facts, err := rules.LoadFacts(ctx, e.repo, customerID, now)
		if err != nil {
			return err
		}
		active, err := e.repo.ActiveAutoCheckRules(ctx)
		if err != nil {
			return err
		}

		out = &Outcome{CustomerID: customerID, RiskScore: cfg.Risk.BaseScore}
		if facts.Assessment != nil {
			out.RiskScore = facts.Assessment.FinalScore
		}

		statuses := make([]models.ComplianceStatus, 0, len(active))
		for i := range active {
			co, err := e.runCheck(ctx, evaluator, &active[i], facts, initiatedBy)
			if err != nil {
				return err
			}
			out.Checks = append(out.Checks, co)
			statuses = append(statuses, co.Status)
			switch co.Status {
			case models.CompliancePassed:
				out.ChecksPassed++
			case models.ComplianceFailed:
				out.ChecksFailed++
			default:
				out.ChecksForReview++
			}
		}

		out.Overall = rules.OverallStatus(statuses)
		decide(cfg.Decision, out)

		status := out.Decision.OnboardingStatus()
		upd := storage.CustomerUpdate{OnboardingStatus: &status}
		if out.Decision.IsApproval() {
			next := now.Add(scoring.ReviewInterval(cfg.Review, facts.Customer.RiskLevel))
			upd.NextReviewDate = &next
		}
		if err := e.repo.UpdateCustomer(ctx, customerID, upd); err != nil {
			return err
		}

		alerts = workflowAlerts(facts.Customer, out)
		for _, a := range alerts {
			if err := e.repo.CreateAlert(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Errorw("Compliance workflow failed", "customer_id", customerID, "error", err)
		return nil, err
	}

	for _, c := range out.Checks {
		metrics.ComplianceChecks.WithLabelValues(string(c.RuleType), string(c.Status)).Inc()
	}
	for _, a := range alerts {
		metrics.AlertsRaised.WithLabelValues(string(a.AlertType), string(a.Severity)).Inc()
	}
	e.logger.Infow("Compliance workflow completed",
		"customer_id", customerID,
		"decision", out.Decision,
		"overall", out.Overall,
		"risk_score", out.RiskScore,
		"checks", len(out.Checks))
	return out, nil
}

// runCheck records an IN_PROGRESS check, evaluates the rule and completes
// the check with the result. Only infrastructure errors are returned.
func (e *Engine) runCheck(ctx context.Context, evaluator RuleEvaluator, rule *models.ComplianceRule, facts *rules.Facts, initiatedBy string) (CheckOutcome, error) {
	check := &models.ComplianceCheck{
		CustomerID:  facts.Customer.ID,
		RuleID:      rule.ID,
		CheckStatus: models.ComplianceInProgress,
		CheckDate:   e.clock.Now(),
		InitiatedBy: initiatedBy,
	}
	if err := e.repo.CreateComplianceCheck(ctx, check); err != nil {
		return CheckOutcome{}, err
	}

	co := CheckOutcome{CheckID: check.ID, RuleID: rule.ID, RuleName: rule.Name, RuleType: rule.RuleType}

	res, err := evaluator.Evaluate(rule, facts)
	switch {
	case err != nil && !errors.IsBusiness(err):
		return CheckOutcome{}, err
	case err != nil:
		e.logger.Errorw("Compliance check failed", "rule", rule.Name, "customer_id", facts.Customer.ID, "error", err)
		co.Error = errors.MessageOf(err)
		check.Complete(models.ComplianceFailed, 0, "Error: "+co.Error, e.clock.Now())
	default:
		check.Complete(res.Status, res.Score, res.Detail(), e.clock.Now())
	}

	if err := e.repo.UpdateComplianceCheck(ctx, check); err != nil {
		return CheckOutcome{}, err
	}
	co.Status, co.Score, co.Details = check.CheckStatus, check.RiskScore, check.ResultDetails
	return co, nil
}

// decide applies the decision table in priority order
func decide(cfg config.DecisionConfig, out *Outcome) {
	switch {
	case out.Overall == models.ComplianceFailed:
		out.Decision = Rejected
		out.NextSteps = append(out.NextSteps, "Address compliance failures")
	case out.Overall == models.ComplianceRequiresReview || out.RiskScore >= cfg.ManualReviewThreshold:
		out.Decision = PendingManualReview
		out.RequiresManualReview = true
		out.NextSteps = append(out.NextSteps, "Manual review required")
	case out.RiskScore <= cfg.AutoApprovalThreshold:
		out.Decision = AutoApproved
		out.NextSteps = append(out.NextSteps, "Customer onboarded successfully")
	default:
		out.Decision = ConditionallyApproved
		out.Conditions = append(out.Conditions, "Enhanced monitoring required")
		out.NextSteps = append(out.NextSteps, "Approve with conditions")
	}
}

func workflowAlerts(c *models.Customer, out *Outcome) []*models.ComplianceAlert {
	var alerts []*models.ComplianceAlert
	name := c.DisplayName()

	if out.ChecksFailed > 0 {
		alerts = append(alerts, &models.ComplianceAlert{
			AlertType:  models.AlertRuleViolation,
			Severity:   models.SeverityError,
			Title:      fmt.Sprintf("Compliance Failures: %s", name),
			Message:    fmt.Sprintf("Customer %s failed %d compliance checks", name, out.ChecksFailed),
			CustomerID: &c.ID,
		})
	}
	if out.RequiresManualReview {
		alerts = append(alerts, &models.ComplianceAlert{
			AlertType:  models.AlertReviewDue,
			Severity:   models.SeverityWarning,
			Title:      fmt.Sprintf("Manual Review Required: %s", name),
			Message:    fmt.Sprintf("Customer %s requires manual compliance review", name),
			CustomerID: &c.ID,
		})
	}
	return alerts
}
