package onboarding

import (
	"context"
	"fmt"
	"testing"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/scoring"
	"github.com/Aidin1998/kycengine/internal/compliance/workflow"
	"github.com/Aidin1998/kycengine/internal/messaging"
	"github.com/Aidin1998/kycengine/pkg/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestFinalStatus(t *testing.T) {
	compliance := func(d workflow.Decision) *workflow.Outcome { return &workflow.Outcome{Decision: d} }
	sanctions := func(s models.MatchStatus) *ScreeningOutcome { return &ScreeningOutcome{MatchStatus: s} }
	risk := func(l models.RiskLevel) *RiskOutcome { return &RiskOutcome{RiskLevel: l} }
	failed := func(steps ...Step) []StepFailure {
		var out []StepFailure
		for _, s := range steps {
			out = append(out, StepFailure{Step: s, Error: "boom"})
		}
		return out
	}

	tests := []struct {
		name string
		r    Result
		want FinalStatus
	}{
		{
			name: "sanctions step failed beats everything",
			r: Result{
				StepsFailed: failed(StepSanctionsScreening, StepComplianceWorkflow),
				Compliance:  compliance(workflow.AutoApproved),
			},
			want: RejectedSanctionsFailure,
		},
		{
			name: "compliance step failed",
			r:    Result{StepsFailed: failed(StepComplianceWorkflow), Sanctions: sanctions(models.NoMatch)},
			want: RejectedComplianceFailure,
		},
		{
			name: "compliance rejected",
			r:    Result{Compliance: compliance(workflow.Rejected), Sanctions: sanctions(models.NoMatch)},
			want: RejectedCompliance,
		},
		{
			name: "compliance pending review",
			r:    Result{Compliance: compliance(workflow.PendingManualReview)},
			want: PendingManualReview,
		},
		{
			name: "compliance approved overrides sanctions match",
			r:    Result{Compliance: compliance(workflow.ConditionallyApproved), Sanctions: sanctions(models.Match)},
			want: Approved,
		},
		{
			name: "sanctions match without compliance",
			r:    Result{Sanctions: sanctions(models.Match), Risk: risk(models.RiskLevelLow)},
			want: PendingSanctionsReview,
		},
		{
			name: "potential sanctions match without compliance",
			r:    Result{Sanctions: sanctions(models.PotentialMatch)},
			want: PendingManualReview,
		},
		{
			name: "high risk fallback",
			r:    Result{Sanctions: sanctions(models.NoMatch), Risk: risk(models.RiskLevelHigh)},
			want: PendingManualReview,
		},
		{
			name: "nothing conclusive",
			r:    Result{Sanctions: sanctions(models.NoMatch), Risk: risk(models.RiskLevelMedium)},
			want: Approved,
		},
		{
			name: "risk failure alone does not reject",
			r:    Result{StepsFailed: failed(StepRiskAssessment), Compliance: compliance(workflow.AutoApproved)},
			want: Approved,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, finalStatus(&tt.r))
		})
	}
}

func TestNextActions(t *testing.T) {
	r := &Result{
		FinalStatus: RejectedSanctionsFailure,
		StepsFailed: []StepFailure{
			{Step: StepRiskAssessment},
			{Step: StepSanctionsScreening},
			{Step: StepOwnerScreening},
		},
	}
	assert.Equal(t, []string{
		"Send rejection notification to customer",
		"Document rejection reasons",
		"Archive customer record",
		"Retry risk assessment with manual review",
		"Perform manual sanctions screening",
		"Perform manual beneficial owner sanctions screening",
	}, nextActions(r))

	for _, step := range []Step{StepRiskAssessment, StepSanctionsScreening, StepOwnerScreening, StepComplianceWorkflow} {
		actions := nextActions(&Result{FinalStatus: Approved, StepsFailed: []StepFailure{{Step: step}}})
		assert.Len(t, actions, len(statusActions[Approved])+1, step)
	}

	assert.Equal(t, []string{
		"Assign to sanctions specialist for review",
		"Investigate potential sanctions matches",
		"Document review decision",
	}, nextActions(&Result{FinalStatus: PendingSanctionsReview}))

	assert.Equal(t, []string{
		"Assign to compliance officer for manual review",
		"Gather additional documentation if needed",
		"Schedule review meeting",
		"Manual compliance review required",
	}, nextActions(&Result{FinalStatus: PendingManualReview, StepsFailed: []StepFailure{{Step: StepComplianceWorkflow}}}))

	assert.Equal(t, []string{
		"Customer approved - activate account",
		"Send welcome communication",
		"Schedule periodic review",
	}, nextActions(&Result{FinalStatus: Approved}))
}

func TestIsRejection(t *testing.T) {
	for _, s := range []FinalStatus{RejectedCompliance, RejectedComplianceFailure, RejectedSanctionsFailure} {
		assert.True(t, s.IsRejection(), s)
	}
	for _, s := range []FinalStatus{Approved, PendingManualReview, PendingSanctionsReview} {
		assert.False(t, s.IsRejection(), s)
	}
}

type fakeCustomers struct {
	customer *models.Customer
	owners   []models.BeneficialOwner
	err      error
}

func (f *fakeCustomers) GetCustomer(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	if f.customer == nil || f.customer.ID != id {
		return nil, errors.NotFound.Explain("customer %s not found", id)
	}
	return f.customer, nil
}

func (f *fakeCustomers) ListBeneficialOwners(context.Context, uuid.UUID) ([]models.BeneficialOwner, error) {
	return f.owners, f.err
}

type fakeRisk struct {
	level models.RiskLevel
	err   error
}

func (f *fakeRisk) Calculate(_ context.Context, id uuid.UUID, _ scoring.Options) (*models.RiskAssessment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.RiskAssessment{ID: uuid.New(), CustomerID: id, FinalScore: 35, RiskLevel: f.level}, nil
}

type fakeScreener struct {
	status      models.MatchStatus
	err         error
	ownerErr    error
	ownerChecks int
}

func (f *fakeScreener) ScreenCustomer(_ context.Context, id uuid.UUID, _ string) (*models.SanctionsCheck, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.SanctionsCheck{ID: uuid.New(), CustomerID: &id, MatchStatus: f.status}, nil
}

func (f *fakeScreener) ScreenBeneficialOwner(_ context.Context, id uuid.UUID, _ string) (*models.SanctionsCheck, error) {
	if f.ownerErr != nil {
		return nil, f.ownerErr
	}
	f.ownerChecks++
	return &models.SanctionsCheck{ID: uuid.New(), BeneficialOwnerID: &id, MatchStatus: models.NoMatch}, nil
}

type fakeCompliance struct {
	decision workflow.Decision
	err      error
}

func (f *fakeCompliance) Run(_ context.Context, id uuid.UUID, _ string) (*workflow.Outcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &workflow.Outcome{CustomerID: id, Decision: f.decision}, nil
}

type recordingPublisher struct {
	events []*messaging.OnboardingCompletedMessage
	err    error
}

func (p *recordingPublisher) PublishOnboardingCompleted(_ context.Context, e *messaging.OnboardingCompletedMessage) error {
	p.events = append(p.events, e)
	return p.err
}

type fixture struct {
	customers  *fakeCustomers
	risk       *fakeRisk
	screening  *fakeScreener
	compliance *fakeCompliance
	events     *recordingPublisher
	o          *Orchestrator
}

func newFixture(t *testing.T, customerType models.CustomerType) *fixture {
	f := &fixture{
		customers: &fakeCustomers{customer: &models.Customer{
			ID:           uuid.New(),
			CustomerType: customerType,
			FullName:     "Anna Schmidt",
		}},
		risk:       &fakeRisk{level: models.RiskLevelLow},
		screening:  &fakeScreener{status: models.NoMatch},
		compliance: &fakeCompliance{decision: workflow.AutoApproved},
		events:     &recordingPublisher{},
	}
	f.o = NewOrchestrator(f.customers, f.risk, f.screening, f.compliance, f.events,
		clock.NewMock(clock.System.Now()), zaptest.NewLogger(t).Sugar())
	return f
}

func (f *fixture) onboard(t *testing.T) *Result {
	r, err := f.o.Onboard(context.Background(), f.customers.customer.ID, "officer")
	require.NoError(t, err)
	require.Equal(t, RunCompleted, r.Status)
	return r
}

func steps(outcomes []StepOutcome) []Step {
	out := make([]Step, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, o.Step)
	}
	return out
}

func TestOnboardIndividual(t *testing.T) {
	f := newFixture(t, models.CustomerIndividual)

	r := f.onboard(t)
	assert.Equal(t, []Step{StepRiskAssessment, StepSanctionsScreening, StepComplianceWorkflow}, steps(r.StepsCompleted))
	assert.Empty(t, r.StepsFailed)
	assert.Equal(t, Approved, r.FinalStatus)
	assert.Equal(t, models.RiskLevelLow, r.Risk.RiskLevel)
	assert.Equal(t, models.NoMatch, r.Sanctions.MatchStatus)
	assert.Zero(t, f.screening.ownerChecks)

	require.Len(t, f.events.events, 1)
	e := f.events.events[0]
	assert.Equal(t, messaging.MsgOnboardingCompleted, e.Type)
	assert.Equal(t, r.CustomerID, e.CustomerID)
	assert.Equal(t, "APPROVED", e.FinalStatus)
	assert.Equal(t, "AUTO_APPROVED", e.Decision)
	assert.Equal(t, []string{"risk_assessment", "sanctions_screening", "compliance_workflow"}, e.StepsCompleted)
	assert.Equal(t, "officer", e.InitiatedBy)
}

func TestOnboardLegalEntityScreensOwners(t *testing.T) {
	f := newFixture(t, models.CustomerLegalEntity)
	f.customers.owners = []models.BeneficialOwner{{ID: uuid.New()}, {ID: uuid.New()}}

	r := f.onboard(t)
	assert.Equal(t, []Step{StepRiskAssessment, StepSanctionsScreening, StepOwnerScreening, StepComplianceWorkflow}, steps(r.StepsCompleted))
	assert.Len(t, r.Owners, 2)
	assert.Equal(t, 2, f.screening.ownerChecks)
}

func TestOnboardRecordsStepFailures(t *testing.T) {
	f := newFixture(t, models.CustomerLegalEntity)
	f.risk.err = errors.Invalid.Explain("customer has no country")
	f.screening.err = errors.Computation.Explain("matcher failed")
	f.screening.ownerErr = errors.NotFound.Explain("beneficial owner missing")
	f.customers.owners = []models.BeneficialOwner{{ID: uuid.New()}}

	r := f.onboard(t)
	assert.Equal(t, []Step{StepComplianceWorkflow}, steps(r.StepsCompleted))
	assert.Equal(t, []StepFailure{
		{Step: StepRiskAssessment, Error: "customer has no country"},
		{Step: StepSanctionsScreening, Error: "matcher failed"},
		{Step: StepOwnerScreening, Error: "beneficial owner missing"},
	}, r.StepsFailed)
	assert.Equal(t, RejectedSanctionsFailure, r.FinalStatus)
	assert.Equal(t, []string{
		"Send rejection notification to customer",
		"Document rejection reasons",
		"Archive customer record",
		"Retry risk assessment with manual review",
		"Perform manual sanctions screening",
		"Perform manual beneficial owner sanctions screening",
	}, r.NextActions)

	require.Len(t, f.events.events, 1)
	assert.Len(t, f.events.events[0].StepsFailed, 3)
}

func TestOnboardComplianceFailure(t *testing.T) {
	f := newFixture(t, models.CustomerIndividual)
	f.compliance.err = errors.NotFound.Explain("rule not found")

	r := f.onboard(t)
	assert.Equal(t, RejectedComplianceFailure, r.FinalStatus)
	assert.Nil(t, r.Compliance)
	assert.Contains(t, r.NextActions, "Manual compliance review required")
}

func TestOnboardAbortsOnInfrastructureErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{"risk", func(f *fixture) { f.risk.err = errors.Unavailable.Explain("database down") }},
		{"screening", func(f *fixture) { f.screening.err = fmt.Errorf("connection reset") }},
		{"compliance", func(f *fixture) { f.compliance.err = context.Canceled }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, models.CustomerIndividual)
			tt.setup(f)

			r, err := f.o.Onboard(context.Background(), f.customers.customer.ID, "officer")
			assert.Error(t, err)
			assert.Nil(t, r)
			assert.Empty(t, f.events.events)
		})
	}
}

func TestOnboardUnknownCustomer(t *testing.T) {
	f := newFixture(t, models.CustomerIndividual)

	_, err := f.o.Onboard(context.Background(), uuid.New(), "officer")
	assert.ErrorIs(t, err, errors.NotFound)
	assert.Empty(t, f.events.events)
}

func TestOnboardIgnoresPublishFailures(t *testing.T) {
	f := newFixture(t, models.CustomerIndividual)
	f.events.err = errors.Unavailable.Explain("broker down")

	r := f.onboard(t)
	assert.Equal(t, Approved, r.FinalStatus)
	assert.Len(t, f.events.events, 1)
}

func TestOnboardWithoutPublisher(t *testing.T) {
	f := newFixture(t, models.CustomerIndividual)
	f.o.events = nil

	r := f.onboard(t)
	assert.Equal(t, Approved, r.FinalStatus)
}
