// Package rules evaluates compliance rules against a snapshot of a
// customer's KYC data. Evaluators are pure: they read Facts and never
// touch storage.
package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
)

// Result is the outcome of one rule evaluation
type Result struct {
	Status  models.ComplianceStatus `json:"status"`
	Score   int                     `json:"score"`
	Details []string                `json:"details"`
}

// Detail joins the details into the text stored on the check
func (r Result) Detail() string {
	return strings.Join(r.Details, "; ")
}

// Func evaluates one rule type
type Func func(cfg config.EngineConfig, f *Facts) Result

// Evaluator dispatches a rule to the evaluator of its type
type Evaluator struct {
	cfg        config.EngineConfig
	evaluators map[models.RuleType]Func
}

// NewEvaluator creates an evaluator using the rule and risk tunables of cfg
func NewEvaluator(cfg config.EngineConfig) *Evaluator {
	return &Evaluator{
		cfg: cfg,
		evaluators: map[models.RuleType]Func{
			models.RuleKYC:       evaluateKYC,
			models.RuleAML:       evaluateAML,
			models.RuleSanctions: evaluateSanctions,
			models.RulePEP:       evaluatePEP,
			models.RuleFATCA:     evaluateFATCA,
			models.RuleCRS:       evaluateCRS,
		},
	}
}

// register installs fn for a rule type, replacing any built-in evaluator.
// It must not be called concurrently with Evaluate.
func (e *Evaluator) register(rt models.RuleType, fn Func) {
	e.evaluators[rt] = fn
}

// Evaluate runs the rule against the facts. Rule types without a dedicated
// evaluator get the generic completeness check. A panic inside an
// evaluator is returned as a Computation error.
func (e *Evaluator) Evaluate(rule *models.ComplianceRule, f *Facts) (res Result, err error) {
	if rule == nil {
		return Result{}, errors.Invalid.Explain("rule is required")
	}
	if f == nil || f.Customer == nil {
		return Result{}, errors.Invalid.Explain("rule %s evaluated without a customer", rule.Name)
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Computation.Explain("rule %s evaluation failed: %v", rule.Name, r).Trace()
		}
	}()

	fn, ok := e.evaluators[rule.RuleType]
	if !ok {
		fn = evaluateGeneric
	}
	return fn(e.cfg, f), nil
}

// OverallStatus aggregates rule outcomes: any FAILED wins, then any
// REQUIRES_REVIEW, then NO_CHECKS when nothing ran, otherwise PASSED.
func OverallStatus(statuses []models.ComplianceStatus) models.ComplianceStatus {
	switch {
	case slices.Contains(statuses, models.ComplianceFailed):
		return models.ComplianceFailed
	case slices.Contains(statuses, models.ComplianceRequiresReview):
		return models.ComplianceRequiresReview
	case len(statuses) == 0:
		return models.ComplianceNoChecks
	default:
		return models.CompliancePassed
	}
}

// statusFor maps a score onto PASSED, REQUIRES_REVIEW or FAILED
func statusFor(score, review int) models.ComplianceStatus {
	switch {
	case score <= 0:
		return models.CompliancePassed
	case score <= review:
		return models.ComplianceRequiresReview
	default:
		return models.ComplianceFailed
	}
}

type tally struct {
	score   int
	details []string
}

func (t *tally) add(points int, format string, args ...any) {
	t.score += points
	t.details = append(t.details, fmt.Sprintf(format, args...))
}

func (t *tally) result(review int, clear string) Result {
	if len(t.details) == 0 {
		return Result{Status: models.CompliancePassed, Details: []string{clear}}
	}
	return Result{Status: statusFor(t.score, review), Score: t.score, Details: t.details}
}

func percent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}
