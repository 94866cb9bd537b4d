// Package onboarding runs the complete onboarding of a customer and the
// periodic maintenance jobs that keep approved customers current.
package onboarding

import (
	"context"
	"strings"
	"time"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/scoring"
	"github.com/Aidin1998/kycengine/internal/compliance/workflow"
	"github.com/Aidin1998/kycengine/internal/messaging"
	"github.com/Aidin1998/kycengine/pkg/clock"
	"github.com/Aidin1998/kycengine/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/Aidin1998/kycengine/internal/compliance/onboarding"

// Step names an onboarding step
type Step string

const (
	StepRiskAssessment     Step = "risk_assessment"
	StepSanctionsScreening Step = "sanctions_screening"
	StepOwnerScreening     Step = "beneficial_owner_screening"
	StepComplianceWorkflow Step = "compliance_workflow"
)

// FinalStatus is the outcome of an onboarding run
type FinalStatus string

const (
	Approved                  FinalStatus = "APPROVED"
	PendingManualReview       FinalStatus = "PENDING_MANUAL_REVIEW"
	PendingSanctionsReview    FinalStatus = "PENDING_SANCTIONS_REVIEW"
	RejectedSanctionsFailure  FinalStatus = "REJECTED_SANCTIONS_FAILURE"
	RejectedComplianceFailure FinalStatus = "REJECTED_COMPLIANCE_FAILURE"
	RejectedCompliance        FinalStatus = "REJECTED_COMPLIANCE"
)

func (s FinalStatus) IsRejection() bool {
	return strings.HasPrefix(string(s), "REJECTED")
}

// RunStatus is the state of the run itself, independent of its outcome
type RunStatus string

const (
	RunInProgress RunStatus = "IN_PROGRESS"
	RunCompleted  RunStatus = "COMPLETED"
)

// StepOutcome records a step that completed
type StepOutcome struct {
	Step     Step          `json:"step"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
}

// StepFailure records a step that failed and the reason
type StepFailure struct {
	Step  Step   `json:"step"`
	Error string `json:"error"`
}

// RiskOutcome is the result of the risk_assessment step
type RiskOutcome struct {
	AssessmentID uuid.UUID        `json:"assessment_id"`
	RiskScore    int              `json:"risk_score"`
	RiskLevel    models.RiskLevel `json:"risk_level"`
}

// ScreeningOutcome is the result of a single sanctions check
type ScreeningOutcome struct {
	CheckID      uuid.UUID          `json:"check_id"`
	OwnerID      *uuid.UUID         `json:"beneficial_owner_id,omitempty"`
	Name         string             `json:"name"`
	MatchStatus  models.MatchStatus `json:"match_status"`
	TotalMatches int                `json:"total_matches"`
}

// Result is the outcome of Onboard
type Result struct {
	CustomerID     uuid.UUID          `json:"customer_id"`
	Status         RunStatus          `json:"status"`
	StepsCompleted []StepOutcome      `json:"steps_completed"`
	StepsFailed    []StepFailure      `json:"steps_failed"`
	FinalStatus    FinalStatus        `json:"final_status"`
	NextActions    []string           `json:"next_actions"`
	Risk           *RiskOutcome       `json:"risk,omitempty"`
	Sanctions      *ScreeningOutcome  `json:"sanctions,omitempty"`
	Owners         []ScreeningOutcome `json:"beneficial_owners,omitempty"`
	Compliance     *workflow.Outcome  `json:"compliance,omitempty"`
}

func (r *Result) failed(step Step) bool {
	for _, f := range r.StepsFailed {
		if f.Step == step {
			return true
		}
	}
	return false
}

// RiskAssessor calculates risk assessments
type RiskAssessor interface {
	Calculate(ctx context.Context, customerID uuid.UUID, opts scoring.Options) (*models.RiskAssessment, error)
}

// Screener screens customers and beneficial owners against sanctions lists
type Screener interface {
	ScreenCustomer(ctx context.Context, customerID uuid.UUID, initiatedBy string) (*models.SanctionsCheck, error)
	ScreenBeneficialOwner(ctx context.Context, ownerID uuid.UUID, initiatedBy string) (*models.SanctionsCheck, error)
}

// ComplianceRunner runs the compliance workflow
type ComplianceRunner interface {
	Run(ctx context.Context, customerID uuid.UUID, initiatedBy string) (*workflow.Outcome, error)
}

// Customers is the customer data the orchestrator reads
type Customers interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	ListBeneficialOwners(ctx context.Context, customerID uuid.UUID) ([]models.BeneficialOwner, error)
}

// Publisher announces completed onboarding runs
type Publisher interface {
	PublishOnboardingCompleted(ctx context.Context, event *messaging.OnboardingCompletedMessage) error
}

// Orchestrator coordinates risk assessment, sanctions screening and the
// compliance workflow for one customer
type Orchestrator struct {
	customers  Customers
	risk       RiskAssessor
	screening  Screener
	compliance ComplianceRunner
	events     Publisher
	clock      clock.Clock
	logger     *zap.SugaredLogger
	tracer     trace.Tracer
	runs       metric.Int64Counter
}

// NewOrchestrator creates an onboarding orchestrator. events may be nil.
func NewOrchestrator(customers Customers, risk RiskAssessor, screening Screener, compliance ComplianceRunner, events Publisher, clk clock.Clock, logger *zap.SugaredLogger) *Orchestrator {
	o := &Orchestrator{
		customers:  customers,
		risk:       risk,
		screening:  screening,
		compliance: compliance,
		events:     events,
		clock:      clk,
		logger:     logger.Named("onboarding"),
		tracer:     otel.Tracer(tracerName),
	}

	runs, err := otel.Meter(tracerName).Int64Counter("kycengine.onboarding.runs",
		metric.WithDescription("Completed onboarding runs by final status"))
	if err != nil {
		o.logger.Warnw("Failed to create onboarding run counter", "error", err)
	}
	o.runs = runs
	return o
}

// Onboard runs every onboarding step. A step that fails with a business
// error is recorded and the remaining steps still run; each step commits
// its own writes. Infrastructure errors abort the run and are returned.
func (o *Orchestrator) Onboard(ctx context.Context, customerID uuid.UUID, initiatedBy string) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "onboarding.Onboard",
		trace.WithAttributes(attribute.String("customer.id", customerID.String())))
	defer span.End()

	o.logger.Infow("Starting complete onboarding", "customer_id", customerID)

	customer, err := o.customers.GetCustomer(ctx, customerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	r := &Result{
		CustomerID:     customerID,
		Status:         RunInProgress,
		StepsCompleted: []StepOutcome{},
		StepsFailed:    []StepFailure{},
	}

	err = o.step(ctx, r, StepRiskAssessment, func(ctx context.Context) error {
		a, err := o.risk.Calculate(ctx, customerID, scoring.Options{
			Type:       models.AssessmentInitial,
			AssessedBy: initiatedBy,
		})
		if err != nil {
			return err
		}
		r.Risk = &RiskOutcome{AssessmentID: a.ID, RiskScore: a.FinalScore, RiskLevel: a.RiskLevel}
		o.logger.Infow("Risk assessment completed", "customer_id", customerID, "risk_level", a.RiskLevel)
		return nil
	})
	if err != nil {
		return nil, o.abort(span, customerID, err)
	}

	err = o.step(ctx, r, StepSanctionsScreening, func(ctx context.Context) error {
		check, err := o.screening.ScreenCustomer(ctx, customerID, initiatedBy)
		if err != nil {
			return err
		}
		r.Sanctions = screeningOutcome(check)
		o.logger.Infow("Sanctions screening completed", "customer_id", customerID, "match_status", check.MatchStatus)
		return nil
	})
	if err != nil {
		return nil, o.abort(span, customerID, err)
	}

	if customer.IsLegalEntity() {
		err = o.step(ctx, r, StepOwnerScreening, func(ctx context.Context) error {
			owners, err := o.customers.ListBeneficialOwners(ctx, customerID)
			if err != nil {
				return err
			}
			results := make([]ScreeningOutcome, 0, len(owners))
			for _, owner := range owners {
				check, err := o.screening.ScreenBeneficialOwner(ctx, owner.ID, initiatedBy)
				if err != nil {
					return err
				}
				results = append(results, *screeningOutcome(check))
			}
			r.Owners = results
			o.logger.Infow("Beneficial owner screening completed", "customer_id", customerID, "owners", len(results))
			return nil
		})
		if err != nil {
			return nil, o.abort(span, customerID, err)
		}
	}

	err = o.step(ctx, r, StepComplianceWorkflow, func(ctx context.Context) error {
		out, err := o.compliance.Run(ctx, customerID, initiatedBy)
		if err != nil {
			return err
		}
		r.Compliance = out
		o.logger.Infow("Compliance workflow completed", "customer_id", customerID, "decision", out.Decision)
		return nil
	})
	if err != nil {
		return nil, o.abort(span, customerID, err)
	}

	r.FinalStatus = finalStatus(r)
	r.Status = RunCompleted
	r.NextActions = nextActions(r)

	metrics.OnboardingDecisions.WithLabelValues(string(r.FinalStatus)).Inc()
	if o.runs != nil {
		o.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("final_status", string(r.FinalStatus))))
	}
	span.SetAttributes(attribute.String("onboarding.final_status", string(r.FinalStatus)))
	o.publish(ctx, r, initiatedBy)

	o.logger.Infow("Complete onboarding finished",
		"customer_id", customerID,
		"final_status", r.FinalStatus,
		"steps_failed", len(r.StepsFailed))
	return r, nil
}

// step runs fn in its own span and records the outcome on r. Only errors
// outside the business taxonomy are returned.
func (o *Orchestrator) step(ctx context.Context, r *Result, step Step, fn func(ctx context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "onboarding."+string(step))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	metrics.OnboardingStepLatency.WithLabelValues(string(step)).Observe(elapsed.Seconds())

	if err == nil {
		r.StepsCompleted = append(r.StepsCompleted, StepOutcome{Step: step, Status: "COMPLETED", Duration: elapsed})
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if !errors.IsBusiness(err) {
		return err
	}

	metrics.OnboardingStepFailures.WithLabelValues(string(step)).Inc()
	r.StepsFailed = append(r.StepsFailed, StepFailure{Step: step, Error: errors.MessageOf(err)})
	o.logger.Errorw("Onboarding step failed", "customer_id", r.CustomerID, "step", step, "error", err)
	return nil
}

func (o *Orchestrator) abort(span trace.Span, customerID uuid.UUID, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	o.logger.Errorw("Error in complete onboarding", "customer_id", customerID, "error", err)
	return err
}

// publish announces the result. Delivery failures are logged only; the
// onboarding outcome is already committed.
func (o *Orchestrator) publish(ctx context.Context, r *Result, initiatedBy string) {
	if o.events == nil {
		return
	}

	event := &messaging.OnboardingCompletedMessage{
		BaseMessage:    messaging.NewBaseMessage(messaging.MsgOnboardingCompleted, o.clock.Now()),
		CustomerID:     r.CustomerID,
		FinalStatus:    string(r.FinalStatus),
		StepsCompleted: make([]string, 0, len(r.StepsCompleted)),
		StepsFailed:    make([]messaging.StepFailure, 0, len(r.StepsFailed)),
		NextActions:    r.NextActions,
		InitiatedBy:    initiatedBy,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		event.CorrelationID = sc.TraceID().String()
	}
	for _, s := range r.StepsCompleted {
		event.StepsCompleted = append(event.StepsCompleted, string(s.Step))
	}
	for _, f := range r.StepsFailed {
		event.StepsFailed = append(event.StepsFailed, messaging.StepFailure{Step: string(f.Step), Error: f.Error})
	}
	if r.Risk != nil {
		event.RiskLevel = string(r.Risk.RiskLevel)
		event.RiskScore = r.Risk.RiskScore
	}
	if r.Sanctions != nil {
		event.MatchStatus = string(r.Sanctions.MatchStatus)
	}
	if r.Compliance != nil {
		event.Decision = string(r.Compliance.Decision)
	}

	if err := o.events.PublishOnboardingCompleted(ctx, event); err != nil {
		o.logger.Warnw("Failed to publish onboarding event", "customer_id", r.CustomerID, "error", err)
	}
}

func screeningOutcome(check *models.SanctionsCheck) *ScreeningOutcome {
	return &ScreeningOutcome{
		CheckID:      check.ID,
		OwnerID:      check.BeneficialOwnerID,
		Name:         check.SearchName,
		MatchStatus:  check.MatchStatus,
		TotalMatches: check.TotalMatches,
	}
}

// finalStatus derives the outcome in priority order. A completed compliance
// step always decides; the later branches apply only without one.
func finalStatus(r *Result) FinalStatus {
	switch {
	case r.failed(StepSanctionsScreening):
		return RejectedSanctionsFailure
	case r.failed(StepComplianceWorkflow):
		return RejectedComplianceFailure
	}

	if r.Compliance != nil {
		switch r.Compliance.Decision {
		case workflow.Rejected:
			return RejectedCompliance
		case workflow.PendingManualReview:
			return PendingManualReview
		case workflow.AutoApproved, workflow.ConditionallyApproved:
			return Approved
		}
	}

	if r.Sanctions != nil {
		switch r.Sanctions.MatchStatus {
		case models.Match:
			return PendingSanctionsReview
		case models.PotentialMatch:
			return PendingManualReview
		}
	}

	if r.Risk != nil && r.Risk.RiskLevel.IsHigh() {
		return PendingManualReview
	}
	return Approved
}

var statusActions = map[FinalStatus][]string{
	Approved: {
		"Customer approved - activate account",
		"Send welcome communication",
		"Schedule periodic review",
	},
	PendingManualReview: {
		"Assign to compliance officer for manual review",
		"Gather additional documentation if needed",
		"Schedule review meeting",
	},
	PendingSanctionsReview: {
		"Assign to sanctions specialist for review",
		"Investigate potential sanctions matches",
		"Document review decision",
	},
}

var rejectionActions = []string{
	"Send rejection notification to customer",
	"Document rejection reasons",
	"Archive customer record",
}

var stepActions = map[Step]string{
	StepRiskAssessment:     "Retry risk assessment with manual review",
	StepSanctionsScreening: "Perform manual sanctions screening",
	StepOwnerScreening:     "Perform manual beneficial owner sanctions screening",
	StepComplianceWorkflow: "Manual compliance review required",
}

func nextActions(r *Result) []string {
	var actions []string
	if r.FinalStatus.IsRejection() {
		actions = append(actions, rejectionActions...)
	} else {
		actions = append(actions, statusActions[r.FinalStatus]...)
	}
	for _, f := range r.StepsFailed {
		if a, ok := stepActions[f.Step]; ok {
			actions = append(actions, a)
		}
	}
	return actions
}
