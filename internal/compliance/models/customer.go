// Package models holds the persisted KYC/AML domain entities.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CustomerType distinguishes natural persons from companies
type CustomerType string

const (
	CustomerIndividual  CustomerType = "INDIVIDUAL"
	CustomerLegalEntity CustomerType = "LEGAL_ENTITY"
	// CustomerAll is only used by risk factors that apply to every type
	CustomerAll CustomerType = "ALL"
)

// OnboardingStatus is the lifecycle state of a customer
type OnboardingStatus string

const (
	OnboardingPending              OnboardingStatus = "PENDING"
	OnboardingInProgress           OnboardingStatus = "IN_PROGRESS"
	OnboardingAdditionalInfo       OnboardingStatus = "ADDITIONAL_INFO"
	OnboardingUnderReview          OnboardingStatus = "UNDER_REVIEW"
	OnboardingRequiresManualReview OnboardingStatus = "REQUIRES_MANUAL_REVIEW"
	OnboardingApproved             OnboardingStatus = "APPROVED"
	OnboardingRejected             OnboardingStatus = "REJECTED"
	OnboardingSuspended            OnboardingStatus = "SUSPENDED"
	OnboardingClosed               OnboardingStatus = "CLOSED"
)

// RiskLevel represents the risk level of a customer
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// IsHigh reports whether the level needs enhanced due diligence
func (l RiskLevel) IsHigh() bool {
	return l == RiskLevelHigh || l == RiskLevelCritical
}

// Customer is the subject of onboarding
type Customer struct {
	ID                    uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerType          CustomerType        `gorm:"type:varchar(20);index;not null" json:"customer_type" validate:"required,oneof=INDIVIDUAL LEGAL_ENTITY"`
	FullName              string              `gorm:"type:varchar(255)" json:"full_name"`
	LegalName             string              `gorm:"type:varchar(255)" json:"legal_name,omitempty"`
	DocumentType          string              `gorm:"type:varchar(50)" json:"document_type,omitempty"`
	DocumentNumber        string              `gorm:"type:varchar(100);index" json:"document_number"`
	DateOfBirth           *time.Time          `json:"date_of_birth,omitempty"`
	Country               string              `gorm:"type:varchar(2);index" json:"country" validate:"omitempty,len=2"`
	Nationality           string              `gorm:"type:varchar(2)" json:"nationality,omitempty" validate:"omitempty,len=2"`
	Industry              string              `gorm:"type:varchar(50)" json:"industry,omitempty"`
	IsPEP                 bool                `gorm:"not null;default:false" json:"is_pep"`
	ExpectedMonthlyVolume decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"expected_monthly_volume"`

	OnboardingStatus   OnboardingStatus `gorm:"type:varchar(30);index;not null;default:'PENDING'" json:"onboarding_status"`
	RiskLevel          RiskLevel        `gorm:"type:varchar(20);index" json:"risk_level,omitempty"`
	RiskScore          int              `gorm:"not null" json:"risk_score"`
	LastRiskAssessment *time.Time       `json:"last_risk_assessment,omitempty"`
	LastReviewDate     *time.Time       `json:"last_review_date,omitempty"`
	NextReviewDate     *time.Time       `gorm:"index" json:"next_review_date,omitempty"`
	IsSanctionsChecked bool             `gorm:"not null;default:false" json:"is_sanctions_checked"`
	SanctionsLastCheck *time.Time       `json:"sanctions_last_check,omitempty"`

	BeneficialOwners []BeneficialOwner `gorm:"foreignKey:CustomerID" json:"beneficial_owners,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Customer) TableName() string { return "kyc_customers" }

func (c *Customer) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.OnboardingStatus == "" {
		c.OnboardingStatus = OnboardingPending
	}
	return nil
}

// DisplayName is the name used in alerts and logs
func (c *Customer) DisplayName() string {
	if c.FullName != "" {
		return c.FullName
	}
	return c.LegalName
}

func (c *Customer) IsLegalEntity() bool { return c.CustomerType == CustomerLegalEntity }

func (c *Customer) IsHighRisk() bool { return c.RiskLevel.IsHigh() }

// NeedsReview reports whether the scheduled review date has passed
func (c *Customer) NeedsReview(now time.Time) bool {
	return c.NextReviewDate != nil && c.NextReviewDate.Before(now)
}

// BeneficialOwner is a person holding a disclosed stake in a legal entity
type BeneficialOwner struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID          uuid.UUID       `gorm:"type:uuid;index;not null" json:"customer_id"`
	FullName            string          `gorm:"type:varchar(255);not null" json:"full_name"`
	DocumentNumber      string          `gorm:"type:varchar(100)" json:"document_number,omitempty"`
	DateOfBirth         *time.Time      `json:"date_of_birth,omitempty"`
	Nationality         string          `gorm:"type:varchar(2)" json:"nationality,omitempty"`
	Country             string          `gorm:"type:varchar(2)" json:"country,omitempty"`
	OwnershipPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"ownership_percentage"`
	IsPEP               bool            `gorm:"not null;default:false" json:"is_pep"`
	CreatedAt           time.Time       `json:"created_at"`
}

func (BeneficialOwner) TableName() string { return "kyc_beneficial_owners" }

func (o *BeneficialOwner) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// DocumentStatus is the review state of an uploaded document
type DocumentStatus string

const (
	DocumentPending     DocumentStatus = "PENDING"
	DocumentUnderReview DocumentStatus = "UNDER_REVIEW"
	DocumentApproved    DocumentStatus = "APPROVED"
	DocumentRejected    DocumentStatus = "REJECTED"
	DocumentExpired     DocumentStatus = "EXPIRED"
	DocumentReplaced    DocumentStatus = "REPLACED"
)

// DocumentType is a catalogue entry, e.g. "Passport" or "Enhanced Due Diligence Form"
type DocumentType struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Category   string    `gorm:"type:varchar(50)" json:"category,omitempty"`
	IsRequired bool      `gorm:"not null;default:false" json:"is_required"`
}

func (DocumentType) TableName() string { return "kyc_document_types" }

func (t *DocumentType) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Document is a customer's submitted document
type Document struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID     uuid.UUID      `gorm:"type:uuid;index;not null" json:"customer_id"`
	DocumentTypeID uuid.UUID      `gorm:"type:uuid;not null" json:"document_type_id"`
	DocumentType   DocumentType   `gorm:"foreignKey:DocumentTypeID" json:"document_type"`
	Status         DocumentStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	ExpiryDate     *time.Time     `json:"expiry_date,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (Document) TableName() string { return "kyc_documents" }

func (d *Document) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
