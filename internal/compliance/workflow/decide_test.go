package workflow

import (
	"context"
	"testing"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/rules"
	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/Aidin1998/kycengine/pkg/clock"
	"github.com/Aidin1998/kycengine/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDecide(t *testing.T) {
	cfg := config.DefaultEngine().Decision
	p, r, f, none := models.CompliancePassed, models.ComplianceRequiresReview, models.ComplianceFailed, models.ComplianceNoChecks

	tests := []struct {
		name     string
		overall  models.ComplianceStatus
		score    int
		decision Decision
		manual   bool
		step     string
	}{
		{"failed beats low risk", f, 10, Rejected, false, "Address compliance failures"},
		{"failed beats high risk", f, 90, Rejected, false, "Address compliance failures"},
		{"review with low risk", r, 10, PendingManualReview, true, "Manual review required"},
		{"passed at manual threshold", p, 60, PendingManualReview, true, "Manual review required"},
		{"passed at auto threshold", p, 40, AutoApproved, false, "Customer onboarded successfully"},
		{"passed low", p, 0, AutoApproved, false, "Customer onboarded successfully"},
		{"passed between thresholds", p, 41, ConditionallyApproved, false, "Approve with conditions"},
		{"passed just below manual", p, 59, ConditionallyApproved, false, "Approve with conditions"},
		{"no checks uses risk", none, 50, ConditionallyApproved, false, "Approve with conditions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &Outcome{Overall: tt.overall, RiskScore: tt.score}
			decide(cfg, out)
			assert.Equal(t, tt.decision, out.Decision)
			assert.Equal(t, tt.manual, out.RequiresManualReview)
			assert.Equal(t, []string{tt.step}, out.NextSteps)
			if tt.decision == ConditionallyApproved {
				assert.Equal(t, []string{"Enhanced monitoring required"}, out.Conditions)
			} else {
				assert.Empty(t, out.Conditions)
			}
		})
	}
}

func TestDecisionOnboardingStatus(t *testing.T) {
	assert.Equal(t, models.OnboardingApproved, AutoApproved.OnboardingStatus())
	assert.Equal(t, models.OnboardingApproved, ConditionallyApproved.OnboardingStatus())
	assert.Equal(t, models.OnboardingRequiresManualReview, PendingManualReview.OnboardingStatus())
	assert.Equal(t, models.OnboardingRejected, Rejected.OnboardingStatus())
}

func TestRate(t *testing.T) {
	assert.Equal(t, 33.3, rate(1, 3))
	assert.Equal(t, 66.7, rate(2, 3))
	assert.Equal(t, 100.0, rate(4, 4))
}

type brokenEvaluator struct{}

func (brokenEvaluator) Evaluate(rule *models.ComplianceRule, _ *rules.Facts) (rules.Result, error) {
	return rules.Result{}, errors.Computation.Explain("rule %s evaluation failed: division by zero", rule.Name)
}

func TestRunRecordsEvaluatorErrorsAsFailedChecks(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock(testutil.Epoch)
	store := testutil.NewStore(t, clk)
	testutil.SeedRules(t, store, models.RuleOther)
	customer := testutil.Customer(t, store)

	e := NewEngine(store, clk, config.DefaultEngine(), zaptest.NewLogger(t).Sugar())
	e.evaluator = brokenEvaluator{}

	out, err := e.Run(ctx, customer.ID, "test")
	require.NoError(t, err)
	require.Len(t, out.Checks, 1)
	assert.Equal(t, models.ComplianceFailed, out.Checks[0].Status)
	assert.Equal(t, "Error: rule OTHER baseline evaluation failed: division by zero", out.Checks[0].Details)
	assert.Equal(t, Rejected, out.Decision)
	assert.Equal(t, 1, out.ChecksFailed)

	var check models.ComplianceCheck
	require.NoError(t, store.DB().First(&check, "id = ?", out.Checks[0].CheckID).Error)
	assert.Equal(t, models.ComplianceFailed, check.CheckStatus)
	require.NotNil(t, check.CompletedDate)
}
