// Package storage defines the persistence contracts of the decision engine
// and their gorm implementation.
package storage

import (
	"context"
	"time"

	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/google/uuid"
)

// Transactor runs fn atomically. Repository calls made with the context
// passed to fn join the transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CustomerRepository reads and updates customers and their KYC data.
type CustomerRepository interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, id uuid.UUID, upd CustomerUpdate) error
	FindCustomers(ctx context.Context, filter CustomerFilter) ([]models.Customer, error)
	CountCustomers(ctx context.Context, filter CustomerFilter) (int64, error)
	GetBeneficialOwner(ctx context.Context, id uuid.UUID) (*models.BeneficialOwner, error)
	ListBeneficialOwners(ctx context.Context, customerID uuid.UUID) ([]models.BeneficialOwner, error)
	ListDocuments(ctx context.Context, customerID uuid.UUID, requiredOnly bool) ([]models.Document, error)
}

// RiskAssessmentRepository persists assessments and serves scoring inputs.
type RiskAssessmentRepository interface {
	CreateAssessment(ctx context.Context, a *models.RiskAssessment) error
	CurrentAssessment(ctx context.Context, customerID uuid.UUID) (*models.RiskAssessment, error)
	DemoteCurrent(ctx context.Context, customerID uuid.UUID) (int64, error)
	ListAssessments(ctx context.Context, customerID uuid.UUID, limit int) ([]models.RiskAssessment, error)
	AssessmentStats(ctx context.Context, from, to time.Time) (*AssessmentStats, error)
	CountStaleAssessments(ctx context.Context, before time.Time) (int64, error)
	ActiveFactors(ctx context.Context, customerType models.CustomerType) ([]models.RiskFactor, error)
	ActiveMatrix(ctx context.Context, customerType models.CustomerType) (*models.RiskMatrix, error)
}

// SanctionsRepository persists lists, entries, checks and matches.
type SanctionsRepository interface {
	ActiveLists(ctx context.Context) ([]models.SanctionsList, error)
	ActiveEntries(ctx context.Context, listID uuid.UUID) ([]models.SanctionsEntry, error)
	GetListByName(ctx context.Context, name string) (*models.SanctionsList, error)
	SaveList(ctx context.Context, list *models.SanctionsList) error
	DeactivateEntries(ctx context.Context, listID uuid.UUID) (int64, error)
	UpsertEntry(ctx context.Context, entry *models.SanctionsEntry) error
	CreateSanctionsCheck(ctx context.Context, check *models.SanctionsCheck) error
	GetSanctionsCheck(ctx context.Context, id uuid.UUID) (*models.SanctionsCheck, error)
	SetCheckMatchStatus(ctx context.Context, checkID uuid.UUID, status models.MatchStatus) error
	LatestCustomerCheck(ctx context.Context, customerID uuid.UUID) (*models.SanctionsCheck, error)
	LatestOwnerCheck(ctx context.Context, ownerID uuid.UUID) (*models.SanctionsCheck, error)
	GetMatch(ctx context.Context, id uuid.UUID) (*models.SanctionsMatch, error)
	UpdateMatch(ctx context.Context, match *models.SanctionsMatch) error
	ListMatches(ctx context.Context, checkID uuid.UUID) ([]models.SanctionsMatch, error)
	SanctionsStats(ctx context.Context) (*SanctionsStats, error)
}

// ComplianceRepository persists rules, checks and alerts.
type ComplianceRepository interface {
	ActiveAutoCheckRules(ctx context.Context) ([]models.ComplianceRule, error)
	CreateComplianceCheck(ctx context.Context, check *models.ComplianceCheck) error
	UpdateComplianceCheck(ctx context.Context, check *models.ComplianceCheck) error
	HasPassedCheckSince(ctx context.Context, customerID uuid.UUID, since time.Time) (bool, error)
	CheckStats(ctx context.Context, from, to time.Time) (*CheckStats, error)
	CreateAlert(ctx context.Context, alert *models.ComplianceAlert) error
	ResolveAlert(ctx context.Context, id uuid.UUID, status models.AlertStatus, notes string, at time.Time) error
	FindAlerts(ctx context.Context, filter AlertFilter) ([]models.ComplianceAlert, error)
	CountAlerts(ctx context.Context, filter AlertFilter) (int64, error)
	DeleteAlerts(ctx context.Context, filter AlertFilter) (int64, error)
}

// Repository is everything the engine needs from persistence.
type Repository interface {
	Transactor
	CustomerRepository
	RiskAssessmentRepository
	SanctionsRepository
	ComplianceRepository
	Ping(ctx context.Context) error
}

// CustomerUpdate lists the customer fields the engine may change.
// Nil fields are left untouched.
type CustomerUpdate struct {
	OnboardingStatus   *models.OnboardingStatus
	RiskScore          *int
	RiskLevel          *models.RiskLevel
	LastRiskAssessment *time.Time
	LastReviewDate     *time.Time
	NextReviewDate     *time.Time
	IsSanctionsChecked *bool
	SanctionsLastCheck *time.Time
}

func (u CustomerUpdate) columns() map[string]any {
	cols := make(map[string]any)
	if u.OnboardingStatus != nil {
		cols["onboarding_status"] = *u.OnboardingStatus
	}
	if u.RiskScore != nil {
		cols["risk_score"] = *u.RiskScore
	}
	if u.RiskLevel != nil {
		cols["risk_level"] = *u.RiskLevel
	}
	if u.LastRiskAssessment != nil {
		cols["last_risk_assessment"] = *u.LastRiskAssessment
	}
	if u.LastReviewDate != nil {
		cols["last_review_date"] = *u.LastReviewDate
	}
	if u.NextReviewDate != nil {
		cols["next_review_date"] = *u.NextReviewDate
	}
	if u.IsSanctionsChecked != nil {
		cols["is_sanctions_checked"] = *u.IsSanctionsChecked
	}
	if u.SanctionsLastCheck != nil {
		cols["sanctions_last_check"] = *u.SanctionsLastCheck
	}
	return cols
}

// AssessmentStats summarises assessments made in a period
type AssessmentStats struct {
	Total         int64                      `json:"total_assessments"`
	ByLevel       map[models.RiskLevel]int64 `json:"risk_distribution"`
	AverageScore  float64                    `json:"average_score"`
	HighRiskCount int64                      `json:"high_risk_count"`
}

// SanctionsStats summarises the sanctions data set
type SanctionsStats struct {
	ActiveLists     int64                         `json:"active_lists"`
	ActiveEntries   int64                         `json:"active_entries"`
	TotalChecks     int64                         `json:"total_checks"`
	ChecksByStatus  map[models.MatchStatus]int64  `json:"checks_by_status"`
	MatchesByReview map[models.ReviewStatus]int64 `json:"matches_by_review"`
}

// CheckStats counts compliance checks by outcome
type CheckStats struct {
	Total          int64 `json:"total"`
	Passed         int64 `json:"passed"`
	Failed         int64 `json:"failed"`
	RequiresReview int64 `json:"requires_review"`
}
