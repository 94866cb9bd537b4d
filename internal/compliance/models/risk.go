package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FactorType selects the evaluator for a risk factor
type FactorType string

const (
	FactorGeographic          FactorType = "GEOGRAPHIC"
	FactorIndustry            FactorType = "INDUSTRY"
	FactorTransactionVolume   FactorType = "TRANSACTION_VOLUME"
	FactorPEPStatus           FactorType = "PEP_STATUS"
	FactorDocumentQuality     FactorType = "DOCUMENT_QUALITY"
	FactorBeneficialOwnership FactorType = "BENEFICIAL_OWNERSHIP"
)

// AssessmentType records why an assessment was produced
type AssessmentType string

const (
	AssessmentInitial   AssessmentType = "INITIAL"
	AssessmentPeriodic  AssessmentType = "PERIODIC"
	AssessmentTriggered AssessmentType = "TRIGGERED"
	AssessmentManual    AssessmentType = "MANUAL"
)

// MethodologyVersion is stamped on every assessment
const MethodologyVersion = "1.0"

// RiskFactor is a configurable scoring dimension.
// Weight is a percentage applied to the evaluator's raw contribution.
type RiskFactor struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string       `gorm:"type:varchar(100);not null" json:"name"`
	FactorType      FactorType   `gorm:"type:varchar(30);index;not null" json:"factor_type"`
	CustomerType    CustomerType `gorm:"type:varchar(20);index;not null;default:'ALL'" json:"customer_type"`
	Weight          int          `gorm:"not null" json:"weight"`
	LowRiskScore    int          `gorm:"not null" json:"low_risk_score"`
	MediumRiskScore int          `gorm:"not null" json:"medium_risk_score"`
	HighRiskScore   int          `gorm:"not null" json:"high_risk_score"`
	IsActive        bool         `gorm:"not null" json:"is_active"`
}

func (RiskFactor) TableName() string { return "kyc_risk_factors" }

func (f *RiskFactor) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// Score returns the configured contribution for a raw level
func (f *RiskFactor) Score(level RiskLevel) int {
	switch level {
	case RiskLevelHigh, RiskLevelCritical:
		return f.HighRiskScore
	case RiskLevelMedium:
		return f.MediumRiskScore
	default:
		return f.LowRiskScore
	}
}

// RiskMatrix adjusts scores and level thresholds per customer type
type RiskMatrix struct {
	ID                  uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name                string       `gorm:"type:varchar(100);not null" json:"name"`
	CustomerType        CustomerType `gorm:"type:varchar(20);index;not null" json:"customer_type"`
	LowRiskThreshold    int          `gorm:"not null;default:30" json:"low_risk_threshold"`
	MediumRiskThreshold int          `gorm:"not null;default:60" json:"medium_risk_threshold"`
	HighRiskThreshold   int          `gorm:"not null;default:80" json:"high_risk_threshold"`
	ScoreMultiplier     float64      `gorm:"not null;default:1" json:"score_multiplier"`
	ScoreAdjustment     int          `gorm:"not null;default:0" json:"score_adjustment"`
	DefaultFactors      []RiskFactor `gorm:"many2many:kyc_risk_matrix_factors" json:"default_factors,omitempty"`
	IsActive            bool         `gorm:"not null" json:"is_active"`
	CreatedAt           time.Time    `json:"created_at"`
}

func (RiskMatrix) TableName() string { return "kyc_risk_matrices" }

func (m *RiskMatrix) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// LevelForScore maps a score using the matrix thresholds: a score at or
// above HighRiskThreshold is CRITICAL, MediumRiskThreshold HIGH and
// LowRiskThreshold MEDIUM.
func (m *RiskMatrix) LevelForScore(score int) RiskLevel {
	switch {
	case score >= m.HighRiskThreshold:
		return RiskLevelCritical
	case score >= m.MediumRiskThreshold:
		return RiskLevelHigh
	case score >= m.LowRiskThreshold:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// RiskAssessment is an immutable scoring snapshot. At most one assessment
// per customer has IsCurrent set; the partial unique index enforces it.
type RiskAssessment struct {
	ID                 uuid.UUID               `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID         uuid.UUID               `gorm:"type:uuid;not null;index;uniqueIndex:idx_kyc_risk_assessments_current,where:is_current = true" json:"customer_id"`
	AssessmentType     AssessmentType          `gorm:"type:varchar(20);not null" json:"assessment_type"`
	BaseScore          int                     `gorm:"not null" json:"base_score"`
	FinalScore         int                     `gorm:"not null" json:"final_score"`
	RiskLevel          RiskLevel               `gorm:"type:varchar(20);index;not null" json:"risk_level"`
	AssessmentDate     time.Time               `gorm:"index;not null" json:"assessment_date"`
	ValidUntil         time.Time               `gorm:"not null" json:"valid_until"`
	IsCurrent          bool                    `gorm:"index;not null" json:"is_current"`
	CustomerWasPEP     bool                    `gorm:"not null;default:false" json:"customer_was_pep"`
	MethodologyVersion string                  `gorm:"type:varchar(10)" json:"methodology_version"`
	AssessedBy         string                  `gorm:"type:varchar(100)" json:"assessed_by,omitempty"`
	Notes              string                  `gorm:"type:text" json:"notes,omitempty"`
	Factors            []RiskFactorApplication `gorm:"foreignKey:AssessmentID" json:"factors"`
	CreatedAt          time.Time               `json:"created_at"`
}

func (RiskAssessment) TableName() string { return "kyc_risk_assessments" }

func (a *RiskAssessment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// IsExpired reports whether the validity window has elapsed
func (a *RiskAssessment) IsExpired(now time.Time) bool {
	return !a.ValidUntil.After(now)
}

// RiskFactorApplication records one factor's contribution to an assessment
type RiskFactorApplication struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID uuid.UUID  `gorm:"type:uuid;index;not null" json:"assessment_id"`
	FactorID     uuid.UUID  `gorm:"type:uuid;not null" json:"factor_id"`
	FactorType   FactorType `gorm:"type:varchar(30);not null" json:"factor_type"`
	RawLevel     RiskLevel  `gorm:"type:varchar(20);not null" json:"raw_level"`
	AppliedScore int        `gorm:"not null" json:"applied_score"`
	WeightUsed   int        `gorm:"not null" json:"weight_used"`
}

func (RiskFactorApplication) TableName() string { return "kyc_risk_factor_applications" }

func (r *RiskFactorApplication) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
