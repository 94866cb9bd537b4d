package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/storage"
	"github.com/Aidin1998/kycengine/internal/compliance/workflow"
	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/Aidin1998/kycengine/pkg/clock"
	"github.com/Aidin1998/kycengine/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

const day = 24 * time.Hour

type WorkflowTestSuite struct {
	suite.Suite
	ctx    context.Context
	clock  *clock.Mock
	store  *storage.Store
	engine *workflow.Engine
}

func (suite *WorkflowTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.clock = clock.NewMock(testutil.Epoch)
	suite.store = testutil.NewStore(suite.T(), suite.clock)
	suite.engine = workflow.NewEngine(
		suite.store,
		suite.clock,
		config.DefaultEngine(),
		zaptest.NewLogger(suite.T()).Sugar(),
	)
}

// compliant creates a customer that passes every rule type, assessed at score
func (suite *WorkflowTestSuite) compliant(score int, level models.RiskLevel) *models.Customer {
	t := suite.T()
	customer := testutil.Customer(t, suite.store, func(c *models.Customer) { c.RiskLevel = level })
	testutil.Document(t, suite.store, customer.ID, "Passport", true, models.DocumentApproved)
	testutil.Document(t, suite.store, customer.ID, "CRS Self-Certification", false, models.DocumentApproved)
	suite.assess(customer, score, level)
	suite.screen(customer, models.NoMatch)
	return customer
}

func (suite *WorkflowTestSuite) assess(customer *models.Customer, score int, level models.RiskLevel) {
	now := suite.clock.Now()
	require.NoError(suite.T(), suite.store.CreateAssessment(suite.ctx, &models.RiskAssessment{
		CustomerID:     customer.ID,
		AssessmentType: models.AssessmentInitial,
		BaseScore:      50,
		FinalScore:     score,
		RiskLevel:      level,
		AssessmentDate: now,
		ValidUntil:     now.Add(365 * day),
		IsCurrent:      true,
	}))
}

func (suite *WorkflowTestSuite) screen(customer *models.Customer, status models.MatchStatus) {
	require.NoError(suite.T(), suite.store.CreateSanctionsCheck(suite.ctx, &models.SanctionsCheck{
		CheckType:   models.CheckCustomer,
		CustomerID:  &customer.ID,
		SearchName:  customer.FullName,
		CheckStatus: models.CheckCompleted,
		MatchStatus: status,
		CheckDate:   suite.clock.Now(),
	}))
}

func (suite *WorkflowTestSuite) alerts(customerID uuid.UUID) []models.ComplianceAlert {
	alerts, err := suite.store.FindAlerts(suite.ctx, storage.AlertFilter{CustomerID: &customerID, OldestFirst: true})
	suite.Require().NoError(err)
	return alerts
}

func (suite *WorkflowTestSuite) TestAutoApproval() {
	t := suite.T()
	testutil.SeedRules(t, suite.store)
	customer := suite.compliant(30, models.RiskLevelLow)

	out, err := suite.engine.Run(suite.ctx, customer.ID, "officer")
	require.NoError(t, err)
	assert.Equal(t, workflow.AutoApproved, out.Decision)
	assert.Equal(t, models.CompliancePassed, out.Overall)
	assert.Equal(t, 30, out.RiskScore)
	assert.Len(t, out.Checks, 6)
	assert.Equal(t, 6, out.ChecksPassed)
	assert.False(t, out.RequiresManualReview)
	assert.Equal(t, []string{"Customer onboarded successfully"}, out.NextSteps)

	reloaded, err := suite.store.GetCustomer(suite.ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OnboardingApproved, reloaded.OnboardingStatus)
	require.NotNil(t, reloaded.NextReviewDate)
	assert.True(t, reloaded.NextReviewDate.Equal(testutil.Epoch.Add(180*day)))
	assert.Empty(t, suite.alerts(customer.ID))

	var checks []models.ComplianceCheck
	require.NoError(t, suite.store.DB().Where("customer_id = ?", customer.ID).Find(&checks).Error)
	require.Len(t, checks, 6)
	for _, c := range checks {
		assert.Equal(t, models.CompliancePassed, c.CheckStatus)
		assert.Equal(t, "officer", c.InitiatedBy)
		assert.NotNil(t, c.CompletedDate)
	}
}

func (suite *WorkflowTestSuite) TestConditionalApprovalSchedulesReviewByLevel() {
	t := suite.T()
	testutil.SeedRules(t, suite.store)
	customer := suite.compliant(50, models.RiskLevelMedium)

	out, err := suite.engine.Run(suite.ctx, customer.ID, "officer")
	require.NoError(t, err)
	assert.Equal(t, workflow.ConditionallyApproved, out.Decision)
	assert.Equal(t, []string{"Enhanced monitoring required"}, out.Conditions)

	reloaded, err := suite.store.GetCustomer(suite.ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OnboardingApproved, reloaded.OnboardingStatus)
	require.NotNil(t, reloaded.NextReviewDate)
	assert.True(t, reloaded.NextReviewDate.Equal(testutil.Epoch.Add(90*day)))
}

func (suite *WorkflowTestSuite) TestHighRiskScoreNeedsManualReview() {
	t := suite.T()
	testutil.SeedRules(t, suite.store, models.RuleKYC)
	customer := suite.compliant(65, models.RiskLevelHigh)

	out, err := suite.engine.Run(suite.ctx, customer.ID, "officer")
	require.NoError(t, err)
	assert.Equal(t, workflow.PendingManualReview, out.Decision)
	assert.True(t, out.RequiresManualReview)

	reloaded, err := suite.store.GetCustomer(suite.ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OnboardingRequiresManualReview, reloaded.OnboardingStatus)
	assert.Nil(t, reloaded.NextReviewDate)

	alerts := suite.alerts(customer.ID)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertReviewDue, alerts[0].AlertType)
	assert.Equal(t, models.SeverityWarning, alerts[0].Severity)
	assert.Equal(t, "Manual Review Required: Anna Schmidt", alerts[0].Title)
	assert.Equal(t, "Customer Anna Schmidt requires manual compliance review", alerts[0].Message)
	assert.Equal(t, models.AlertOpen, alerts[0].Status)
}

func (suite *WorkflowTestSuite) TestFailedRuleRejects() {
	t := suite.T()
	testutil.SeedRules(t, suite.store)
	customer := testutil.Customer(t, suite.store)
	testutil.Document(t, suite.store, customer.ID, "Passport", true, models.DocumentApproved)
	testutil.Document(t, suite.store, customer.ID, "CRS Self-Certification", false, models.DocumentApproved)
	suite.assess(customer, 20, models.RiskLevelLow)

	out, err := suite.engine.Run(suite.ctx, customer.ID, "officer")
	require.NoError(t, err)
	assert.Equal(t, workflow.Rejected, out.Decision)
	assert.Equal(t, models.ComplianceFailed, out.Overall)
	assert.Equal(t, 1, out.ChecksFailed)
	assert.Equal(t, 5, out.ChecksPassed)

	for _, c := range out.Checks {
		if c.RuleType == models.RuleSanctions {
			assert.Equal(t, "No sanctions screening performed", c.Details)
			assert.Equal(t, 25, c.Score)
		}
	}

	reloaded, err := suite.store.GetCustomer(suite.ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OnboardingRejected, reloaded.OnboardingStatus)

	alerts := suite.alerts(customer.ID)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertRuleViolation, alerts[0].AlertType)
	assert.Equal(t, models.SeverityError, alerts[0].Severity)
	assert.Equal(t, "Compliance Failures: Anna Schmidt", alerts[0].Title)
	assert.Equal(t, "Customer Anna Schmidt failed 1 compliance checks", alerts[0].Message)
}

func (suite *WorkflowTestSuite) TestNoRulesFallsBackToDefaultRisk() {
	customer := testutil.Customer(suite.T(), suite.store)

	out, err := suite.engine.Run(suite.ctx, customer.ID, "officer")
	suite.Require().NoError(err)
	suite.Equal(models.ComplianceNoChecks, out.Overall)
	suite.Equal(50, out.RiskScore)
	suite.Equal(workflow.ConditionallyApproved, out.Decision)
	suite.Empty(out.Checks)
}

func (suite *WorkflowTestSuite) TestUnknownCustomer() {
	testutil.SeedRules(suite.T(), suite.store)

	_, err := suite.engine.Run(suite.ctx, uuid.New(), "officer")
	suite.ErrorIs(err, errors.NotFound)

	var n int64
	suite.Require().NoError(suite.store.DB().Model(&models.ComplianceCheck{}).Count(&n).Error)
	suite.Zero(n)
}

func (suite *WorkflowTestSuite) TestDashboard() {
	t := suite.T()
	rule := testutil.SeedRules(t, suite.store, models.RuleKYC)[0]
	customer := testutil.Customer(t, suite.store)

	check := func(at time.Time, status models.ComplianceStatus) {
		require.NoError(t, suite.store.CreateComplianceCheck(suite.ctx, &models.ComplianceCheck{
			CustomerID: customer.ID, RuleID: rule.ID, CheckStatus: status, CheckDate: at,
		}))
	}
	from := testutil.Epoch.Add(-10 * day)
	to := testutil.Epoch

	check(from.Add(-5*day), models.CompliancePassed)
	check(from.Add(day), models.CompliancePassed)
	check(from.Add(2*day), models.CompliancePassed)
	check(from.Add(3*day), models.ComplianceFailed)
	check(to.Add(day), models.CompliancePassed)

	suite.clock.Set(from.Add(day))
	require.NoError(t, suite.store.CreateAlert(suite.ctx, &models.ComplianceAlert{
		AlertType: models.AlertSanctionsMatch, Severity: models.SeverityCritical, Title: "a", CustomerID: &customer.ID,
	}))
	require.NoError(t, suite.store.CreateAlert(suite.ctx, &models.ComplianceAlert{
		AlertType: models.AlertReviewDue, Severity: models.SeverityWarning, Title: "b", Status: models.AlertResolved,
	}))
	suite.clock.Set(testutil.Epoch)

	d, err := suite.engine.Dashboard(suite.ctx, from, to)
	require.NoError(t, err)
	assert.EqualValues(t, 3, d.Checks.Total)
	assert.EqualValues(t, 2, d.Checks.Passed)
	assert.EqualValues(t, 1, d.Checks.Failed)
	assert.Equal(t, 66.7, d.Checks.PassRate)
	assert.Equal(t, 33.3, d.Checks.FailRate)
	assert.EqualValues(t, 2, d.Alerts.Total)
	assert.EqualValues(t, 1, d.Alerts.Open)
	assert.EqualValues(t, 1, d.Alerts.Critical)
	assert.Equal(t, workflow.TrendImproving, d.Trends.Overall)
	assert.EqualValues(t, 1, d.Trends.PreviousPeriodChecks)

	_, err = suite.engine.Dashboard(suite.ctx, to, from)
	assert.ErrorIs(t, err, errors.Invalid)

	empty, err := suite.engine.Dashboard(suite.ctx, to.Add(100*day), to.Add(101*day))
	require.NoError(t, err)
	assert.Zero(t, empty.Checks.PassRate)
	assert.Equal(t, workflow.TrendStable, empty.Trends.Overall)
}

func (suite *WorkflowTestSuite) TestProcessHighPriorityAlerts() {
	t := suite.T()
	rule := testutil.SeedRules(t, suite.store, models.RuleKYC)[0]
	approved := testutil.Customer(t, suite.store, func(c *models.Customer) { c.OnboardingStatus = models.OnboardingApproved })
	fixed := testutil.Customer(t, suite.store, func(c *models.Customer) { c.FullName = "Fixed Customer" })
	broken := testutil.Customer(t, suite.store, func(c *models.Customer) { c.FullName = "Broken Customer" })

	alert := func(at models.AlertType, sev models.Severity, customerID *uuid.UUID) *models.ComplianceAlert {
		a := &models.ComplianceAlert{AlertType: at, Severity: sev, Title: string(at), CustomerID: customerID}
		require.NoError(t, suite.store.CreateAlert(suite.ctx, a))
		return a
	}
	highRisk := alert(models.AlertHighRiskActivity, models.SeverityCritical, &approved.ID)
	violation := alert(models.AlertRuleViolation, models.SeverityError, &fixed.ID)
	alert(models.AlertRuleViolation, models.SeverityError, &broken.ID)
	sanctions := alert(models.AlertSanctionsMatch, models.SeverityCritical, &broken.ID)
	warning := alert(models.AlertReviewDue, models.SeverityWarning, &broken.ID)

	suite.clock.Advance(time.Hour)
	require.NoError(t, suite.store.CreateComplianceCheck(suite.ctx, &models.ComplianceCheck{
		CustomerID: fixed.ID, RuleID: rule.ID, CheckStatus: models.CompliancePassed, CheckDate: suite.clock.Now(),
	}))

	run, err := suite.engine.ProcessHighPriorityAlerts(suite.ctx)
	require.NoError(t, err)
	assert.Equal(t, workflow.AlertRun{TotalProcessed: 4, AutoResolved: 2, Escalated: 1}, *run)

	status := func(a *models.ComplianceAlert) models.ComplianceAlert {
		var got models.ComplianceAlert
		require.NoError(t, suite.store.DB().First(&got, "id = ?", a.ID).Error)
		return got
	}
	got := status(highRisk)
	assert.Equal(t, models.AlertResolved, got.Status)
	assert.Equal(t, "Customer approved after manual review", got.ResolutionNotes)
	assert.NotNil(t, got.ResolvedAt)

	got = status(violation)
	assert.Equal(t, models.AlertResolved, got.Status)
	assert.Equal(t, "Compliance issues resolved", got.ResolutionNotes)

	assert.Equal(t, models.AlertOpen, status(sanctions).Status)
	assert.Equal(t, models.AlertOpen, status(warning).Status)
}

func (suite *WorkflowTestSuite) TestHealth() {
	t := suite.T()

	r := suite.engine.Health(suite.ctx)
	assert.Equal(t, workflow.Healthy, r.Status)
	assert.Len(t, r.Checks, 4)
	assert.Empty(t, r.Warnings)

	for range 11 {
		testutil.Customer(t, suite.store, func(c *models.Customer) { c.OnboardingStatus = models.OnboardingApproved })
	}
	recent := suite.clock.Now()
	testutil.Customer(t, suite.store, func(c *models.Customer) {
		c.OnboardingStatus = models.OnboardingApproved
		c.LastRiskAssessment = &recent
	})

	r = suite.engine.Health(suite.ctx)
	assert.Equal(t, workflow.Warning, r.Status)
	assert.Equal(t, workflow.Warning, r.Checks["risk_assessments"])
	assert.Equal(t, []string{"11 customers have stale risk assessments"}, r.Warnings)

	sqlDB, err := suite.store.DB().DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	r = suite.engine.Health(suite.ctx)
	assert.Equal(t, workflow.Unhealthy, r.Status)
	assert.Equal(t, workflow.Errored, r.Checks["database"])
	assert.NotEmpty(t, r.Errors)
}

func TestWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(WorkflowTestSuite))
}
