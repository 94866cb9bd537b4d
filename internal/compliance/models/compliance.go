package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RuleType selects the evaluator for a compliance rule
type RuleType string

const (
	RuleKYC       RuleType = "KYC"
	RuleAML       RuleType = "AML"
	RuleSanctions RuleType = "SANCTIONS"
	RulePEP       RuleType = "PEP"
	RuleFATCA     RuleType = "FATCA"
	RuleCRS       RuleType = "CRS"
	RuleOther     RuleType = "OTHER"
)

// Severity of a rule or alert
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// ComplianceStatus is the outcome of a single rule evaluation
type ComplianceStatus string

const (
	CompliancePending        ComplianceStatus = "PENDING"
	ComplianceInProgress     ComplianceStatus = "IN_PROGRESS"
	CompliancePassed         ComplianceStatus = "PASSED"
	ComplianceFailed         ComplianceStatus = "FAILED"
	ComplianceRequiresReview ComplianceStatus = "REQUIRES_REVIEW"
	ComplianceExempted       ComplianceStatus = "EXEMPTED"
	// ComplianceNoChecks is only produced by aggregation when no rule ran
	ComplianceNoChecks ComplianceStatus = "NO_CHECKS"
)

// IsTerminal reports whether the check has finished
func (s ComplianceStatus) IsTerminal() bool {
	switch s {
	case CompliancePassed, ComplianceFailed, ComplianceRequiresReview, ComplianceExempted:
		return true
	}
	return false
}

// AlertType classifies compliance alerts
type AlertType string

const (
	AlertRuleViolation     AlertType = "RULE_VIOLATION"
	AlertThresholdExceeded AlertType = "THRESHOLD_EXCEEDED"
	AlertReviewDue         AlertType = "REVIEW_DUE"
	AlertDocumentExpired   AlertType = "DOCUMENT_EXPIRED"
	AlertSanctionsMatch    AlertType = "SANCTIONS_MATCH"
	AlertHighRiskActivity  AlertType = "HIGH_RISK_ACTIVITY"
)

// AlertStatus is the triage state of an alert
type AlertStatus string

const (
	AlertOpen         AlertStatus = "OPEN"
	AlertAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertInProgress   AlertStatus = "IN_PROGRESS"
	AlertResolved     AlertStatus = "RESOLVED"
	AlertDismissed    AlertStatus = "DISMISSED"
)

// ComplianceRule is a configured regulatory requirement
type ComplianceRule struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name                 string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Description          string    `gorm:"type:text" json:"description,omitempty"`
	RuleType             RuleType  `gorm:"type:varchar(20);index;not null" json:"rule_type"`
	Severity             Severity  `gorm:"type:varchar(20);not null;default:'MEDIUM'" json:"severity"`
	AutoCheck            bool      `gorm:"not null" json:"auto_check"`
	RequiresManualReview bool      `gorm:"not null;default:false" json:"requires_manual_review"`
	IsActive             bool      `gorm:"not null" json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
}

func (ComplianceRule) TableName() string { return "kyc_compliance_rules" }

func (r *ComplianceRule) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ComplianceCheck is one rule evaluated against one customer
type ComplianceCheck struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID    uuid.UUID        `gorm:"type:uuid;index;not null" json:"customer_id"`
	RuleID        uuid.UUID        `gorm:"type:uuid;index;not null" json:"rule_id"`
	Rule          *ComplianceRule  `gorm:"foreignKey:RuleID" json:"rule,omitempty"`
	CheckStatus   ComplianceStatus `gorm:"type:varchar(20);index;not null" json:"check_status"`
	ResultDetails string           `gorm:"type:text" json:"result_details"`
	RiskScore     int              `gorm:"not null;default:0" json:"risk_score"`
	CheckDate     time.Time        `gorm:"index;not null" json:"check_date"`
	CompletedDate *time.Time       `json:"completed_date,omitempty"`
	InitiatedBy   string           `gorm:"type:varchar(100)" json:"initiated_by,omitempty"`
}

func (ComplianceCheck) TableName() string { return "kyc_compliance_checks" }

func (c *ComplianceCheck) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Complete records a terminal outcome. CompletedDate is set only once.
func (c *ComplianceCheck) Complete(status ComplianceStatus, score int, details string, now time.Time) {
	c.CheckStatus = status
	c.RiskScore = score
	c.ResultDetails = details
	if status.IsTerminal() && c.CompletedDate == nil {
		c.CompletedDate = &now
	}
}

// ComplianceAlert is raised for analysts when automated checks need attention
type ComplianceAlert struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	AlertType       AlertType   `gorm:"type:varchar(30);index;not null" json:"alert_type"`
	Severity        Severity    `gorm:"type:varchar(20);index;not null" json:"severity"`
	Title           string      `gorm:"type:varchar(255);not null" json:"title"`
	Message         string      `gorm:"type:text" json:"message"`
	CustomerID      *uuid.UUID  `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	RuleID          *uuid.UUID  `gorm:"type:uuid" json:"rule_id,omitempty"`
	Status          AlertStatus `gorm:"type:varchar(20);index;not null;default:'OPEN'" json:"status"`
	ResolvedAt      *time.Time  `json:"resolved_at,omitempty"`
	ResolutionNotes string      `gorm:"type:text" json:"resolution_notes,omitempty"`
	CreatedAt       time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func (ComplianceAlert) TableName() string { return "kyc_compliance_alerts" }

func (a *ComplianceAlert) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = AlertOpen
	}
	return nil
}

// All lists every model in migration order
func All() []any {
	return []any{
		&Customer{}, &BeneficialOwner{}, &DocumentType{}, &Document{},
		&RiskFactor{}, &RiskMatrix{}, &RiskAssessment{}, &RiskFactorApplication{},
		&SanctionsList{}, &SanctionsEntry{}, &SanctionsCheck{}, &SanctionsMatch{},
		&ComplianceRule{}, &ComplianceCheck{}, &ComplianceAlert{},
	}
}
