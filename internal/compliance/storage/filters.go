package storage

import (
	"time"

	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomerFilter is an explicit customer query predicate. Zero fields do
// not constrain the result.
type CustomerFilter struct {
	Statuses   []models.OnboardingStatus
	RiskLevels []models.RiskLevel
	// ReviewDueBefore selects customers whose next review date is before it
	ReviewDueBefore *time.Time
	// AssessedBefore selects customers never assessed or assessed before it
	AssessedBefore *time.Time
	// ScreenedBefore selects customers never screened or screened before it
	ScreenedBefore *time.Time
	// Any joins the three date predicates with OR instead of AND
	Any   bool
	Limit int
}

// HighRisk selects customers currently rated HIGH or CRITICAL.
func HighRisk() CustomerFilter {
	return CustomerFilter{RiskLevels: []models.RiskLevel{models.RiskLevelHigh, models.RiskLevelCritical}}
}

// PendingReview selects customers waiting for a compliance officer.
func PendingReview() CustomerFilter {
	return CustomerFilter{Statuses: []models.OnboardingStatus{
		models.OnboardingUnderReview,
		models.OnboardingRequiresManualReview,
	}}
}

func (f CustomerFilter) apply(db *gorm.DB) *gorm.DB {
	if len(f.Statuses) > 0 {
		db = db.Where("onboarding_status IN ?", f.Statuses)
	}
	if len(f.RiskLevels) > 0 {
		db = db.Where("risk_level IN ?", f.RiskLevels)
	}

	var clauses []*gorm.DB
	if f.ReviewDueBefore != nil {
		clauses = append(clauses, db.Session(&gorm.Session{NewDB: true}).
			Where("next_review_date < ?", *f.ReviewDueBefore))
	}
	if f.AssessedBefore != nil {
		clauses = append(clauses, db.Session(&gorm.Session{NewDB: true}).
			Where("(last_risk_assessment IS NULL OR last_risk_assessment < ?)", *f.AssessedBefore))
	}
	if f.ScreenedBefore != nil {
		clauses = append(clauses, db.Session(&gorm.Session{NewDB: true}).
			Where("(sanctions_last_check IS NULL OR sanctions_last_check < ?)", *f.ScreenedBefore))
	}
	if len(clauses) > 0 {
		group := clauses[0]
		for _, c := range clauses[1:] {
			if f.Any {
				group = group.Or(c)
			} else {
				group = group.Where(c)
			}
		}
		db = db.Where(group)
	}

	if f.Limit > 0 {
		db = db.Limit(f.Limit)
	}
	return db
}

// AlertFilter is an explicit alert query predicate.
type AlertFilter struct {
	Types         []models.AlertType
	Severities    []models.Severity
	Statuses      []models.AlertStatus
	CustomerID    *uuid.UUID
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	UpdatedBefore *time.Time
	OldestFirst   bool
	Limit         int
}

// HighPriorityOpen selects open ERROR and CRITICAL alerts, oldest first.
func HighPriorityOpen() AlertFilter {
	return AlertFilter{
		Statuses:    []models.AlertStatus{models.AlertOpen},
		Severities:  []models.Severity{models.SeverityCritical, models.SeverityError},
		OldestFirst: true,
	}
}

func (f AlertFilter) apply(db *gorm.DB) *gorm.DB {
	if len(f.Types) > 0 {
		db = db.Where("alert_type IN ?", f.Types)
	}
	if len(f.Severities) > 0 {
		db = db.Where("severity IN ?", f.Severities)
	}
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	if f.CustomerID != nil {
		db = db.Where("customer_id = ?", *f.CustomerID)
	}
	if f.CreatedFrom != nil {
		db = db.Where("created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		db = db.Where("created_at < ?", *f.CreatedTo)
	}
	if f.UpdatedBefore != nil {
		db = db.Where("updated_at < ?", *f.UpdatedBefore)
	}
	return db
}

func (f AlertFilter) order(db *gorm.DB) *gorm.DB {
	if f.OldestFirst {
		db = db.Order("created_at ASC")
	} else {
		db = db.Order("created_at DESC")
	}
	if f.Limit > 0 {
		db = db.Limit(f.Limit)
	}
	return db
}
