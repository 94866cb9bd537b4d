package onboarding_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/onboarding"
	"github.com/Aidin1998/kycengine/internal/compliance/scoring"
	"github.com/Aidin1998/kycengine/internal/compliance/screening"
	"github.com/Aidin1998/kycengine/internal/compliance/storage"
	"github.com/Aidin1998/kycengine/internal/compliance/workflow"
	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/Aidin1998/kycengine/internal/infrastructure/lock"
	"github.com/Aidin1998/kycengine/internal/messaging"
	"github.com/Aidin1998/kycengine/pkg/clock"
	"github.com/Aidin1998/kycengine/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const day = 24 * time.Hour

type events struct {
	mu         sync.Mutex
	onboarding []*messaging.OnboardingCompletedMessage
	batches    []*messaging.BatchCompletedMessage
}

func (e *events) PublishOnboardingCompleted(_ context.Context, m *messaging.OnboardingCompletedMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onboarding = append(e.onboarding, m)
	return nil
}

func (e *events) PublishBatchCompleted(_ context.Context, m *messaging.BatchCompletedMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, m)
	return nil
}

// engines wires the real engines against one in-memory store
type engines struct {
	ctx       context.Context
	clock     *clock.Mock
	store     *storage.Store
	scoring   *scoring.Engine
	screening *screening.Engine
	workflow  *workflow.Engine
	events    *events
	logger    *zap.SugaredLogger
}

func newEngines(t *testing.T) *engines {
	clk := clock.NewMock(testutil.Epoch)
	store := testutil.NewStore(t, clk)
	logger := zaptest.NewLogger(t).Sugar()
	cfg := config.DefaultEngine()

	return &engines{
		ctx:       context.Background(),
		clock:     clk,
		store:     store,
		scoring:   scoring.NewEngine(store, lock.NewLocal(), clk, cfg, logger),
		screening: screening.NewEngine(store, clk, cfg, logger),
		workflow:  workflow.NewEngine(store, clk, cfg, logger),
		events:    &events{},
		logger:    logger,
	}
}

func (e *engines) newOrchestrator() *onboarding.Orchestrator {
	return onboarding.NewOrchestrator(e.store, e.scoring, e.screening, e.workflow, e.events, e.clock, e.logger)
}

type OnboardingTestSuite struct {
	suite.Suite
	*engines
	orchestrator *onboarding.Orchestrator
}

func (suite *OnboardingTestSuite) SetupTest() {
	suite.engines = newEngines(suite.T())
	suite.orchestrator = suite.newOrchestrator()
	testutil.SeedFactors(suite.T(), suite.store)
	testutil.SeedRules(suite.T(), suite.store)
	testutil.SanctionsList(suite.T(), suite.store, "OFAC SDN", models.SanctionsEntry{
		PrimaryName: "SMITH, John",
		Aliases:     []string{"John Smith"},
		Program:     "SDGT",
	})
}

func (suite *OnboardingTestSuite) documented(opts ...func(*models.Customer)) *models.Customer {
	t := suite.T()
	customer := testutil.Customer(t, suite.store, opts...)
	testutil.Document(t, suite.store, customer.ID, "Passport", true, models.DocumentApproved)
	testutil.Document(t, suite.store, customer.ID, "CRS Self-Certification", false, models.DocumentApproved)
	return customer
}

func (suite *OnboardingTestSuite) TestCleanIndividualIsApproved() {
	t := suite.T()
	customer := suite.documented()

	r, err := suite.orchestrator.Onboard(suite.ctx, customer.ID, "officer")
	require.NoError(t, err)

	assert.Equal(t, onboarding.RunCompleted, r.Status)
	assert.Empty(t, r.StepsFailed)
	assert.Len(t, r.StepsCompleted, 3)
	assert.Equal(t, 38, r.Risk.RiskScore)
	assert.Equal(t, models.RiskLevelMedium, r.Risk.RiskLevel)
	assert.Equal(t, models.NoMatch, r.Sanctions.MatchStatus)
	require.NotNil(t, r.Compliance)
	assert.Equal(t, workflow.AutoApproved, r.Compliance.Decision)
	assert.Equal(t, onboarding.Approved, r.FinalStatus)
	assert.Equal(t, "Customer approved - activate account", r.NextActions[0])

	reloaded, err := suite.store.GetCustomer(suite.ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OnboardingApproved, reloaded.OnboardingStatus)
	assert.Equal(t, models.RiskLevelMedium, reloaded.RiskLevel)
	require.NotNil(t, reloaded.NextReviewDate)
	assert.True(t, reloaded.NextReviewDate.Equal(testutil.Epoch.Add(90*day)))

	require.Len(t, suite.events.onboarding, 1)
	assert.Equal(t, "APPROVED", suite.events.onboarding[0].FinalStatus)
	assert.Equal(t, 38, suite.events.onboarding[0].RiskScore)
}

func (suite *OnboardingTestSuite) TestSanctionedIndividualIsRejected() {
	t := suite.T()
	customer := suite.documented(func(c *models.Customer) {
		c.FullName = "John Smith"
		c.DocumentNumber = "P7700112"
	})

	r, err := suite.orchestrator.Onboard(suite.ctx, customer.ID, "officer")
	require.NoError(t, err)

	assert.Equal(t, models.Match, r.Sanctions.MatchStatus)
	assert.Equal(t, workflow.Rejected, r.Compliance.Decision)
	assert.Equal(t, onboarding.RejectedCompliance, r.FinalStatus)
	assert.Equal(t, "Send rejection notification to customer", r.NextActions[0])

	reloaded, err := suite.store.GetCustomer(suite.ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OnboardingRejected, reloaded.OnboardingStatus)
}

func (suite *OnboardingTestSuite) TestLegalEntityScreensOwners() {
	t := suite.T()
	company := suite.documented(func(c *models.Customer) {
		c.CustomerType = models.CustomerLegalEntity
		c.LegalName = "Schmidt Software GmbH"
		c.FullName = ""
		c.DateOfBirth = nil
	})
	testutil.Owner(t, suite.store, company.ID, "Maria Keller", 60)
	testutil.Owner(t, suite.store, company.ID, "Karl Weber", 40)

	r, err := suite.orchestrator.Onboard(suite.ctx, company.ID, "officer")
	require.NoError(t, err)

	require.Len(t, r.Owners, 2)
	for _, o := range r.Owners {
		assert.Equal(t, models.NoMatch, o.MatchStatus)
		assert.NotNil(t, o.OwnerID)
	}
	var steps []onboarding.Step
	for _, s := range r.StepsCompleted {
		steps = append(steps, s.Step)
	}
	assert.Contains(t, steps, onboarding.StepOwnerScreening)
}

func highRisk(c *models.Customer) {
	c.Country = "IR"
	c.Nationality = "IR"
	c.Industry = "CRYPTO"
	c.IsPEP = true
	c.ExpectedMonthlyVolume = decimal.NewNullDecimal(decimal.NewFromInt(2_000_000))
}

func (suite *OnboardingTestSuite) TestHighRiskIndividualIsNotApproved() {
	t := suite.T()
	customer := suite.documented(highRisk)

	r, err := suite.orchestrator.Onboard(suite.ctx, customer.ID, "officer")
	require.NoError(t, err)

	assert.Empty(t, r.StepsFailed)
	assert.Equal(t, 100, r.Risk.RiskScore)
	assert.Equal(t, models.RiskLevelCritical, r.Risk.RiskLevel)
	require.NotNil(t, r.Compliance)
	assert.Equal(t, models.ComplianceFailed, r.Compliance.Overall)
	assert.Equal(t, workflow.Rejected, r.Compliance.Decision)
	assert.Equal(t, onboarding.RejectedCompliance, r.FinalStatus)

	failed := map[models.RuleType]bool{}
	for _, c := range r.Compliance.Checks {
		failed[c.RuleType] = c.Status == models.ComplianceFailed
	}
	assert.True(t, failed[models.RuleAML])
	assert.True(t, failed[models.RulePEP])

	reloaded, err := suite.store.GetCustomer(suite.ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OnboardingRejected, reloaded.OnboardingStatus)
}

func TestOnboardingTestSuite(t *testing.T) {
	suite.Run(t, new(OnboardingTestSuite))
}

func TestSeededDeploymentDoesNotApproveHighRisk(t *testing.T) {
	e := newEngines(t)
	_, err := e.store.Seed(e.ctx)
	require.NoError(t, err)

	customer := testutil.Customer(t, e.store, highRisk)
	testutil.Document(t, e.store, customer.ID, "Passport", true, models.DocumentApproved)

	r, err := e.newOrchestrator().Onboard(e.ctx, customer.ID, "officer")
	require.NoError(t, err)

	assert.NotEqual(t, models.ComplianceNoChecks, r.Compliance.Overall)
	assert.True(t, r.Risk.RiskLevel.IsHigh())
	assert.Contains(t, []onboarding.FinalStatus{onboarding.PendingManualReview, onboarding.RejectedCompliance}, r.FinalStatus)
	assert.NotEqual(t, onboarding.Approved, r.FinalStatus)
}

func TestUnseededDeploymentHasNoChecks(t *testing.T) {
	e := newEngines(t)
	customer := testutil.Customer(t, e.store, highRisk)

	r, err := e.newOrchestrator().Onboard(e.ctx, customer.ID, "officer")
	require.NoError(t, err)
	assert.Equal(t, models.ComplianceNoChecks, r.Compliance.Overall)
	assert.Equal(t, config.DefaultEngine().Risk.BaseScore, r.Risk.RiskScore)
}
