package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListType identifies the issuing authority of a sanctions list
type ListType string

const (
	ListOFAC     ListType = "OFAC"
	ListUN       ListType = "UN"
	ListEU       ListType = "EU"
	ListUK       ListType = "UK"
	ListNational ListType = "NATIONAL"
	ListOther    ListType = "OTHER"
)

// EntryType classifies a sanctioned party
type EntryType string

const (
	EntryIndividual EntryType = "INDIVIDUAL"
	EntryEntity     EntryType = "ENTITY"
	EntryVessel     EntryType = "VESSEL"
	EntryAircraft   EntryType = "AIRCRAFT"
	EntryOther      EntryType = "OTHER"
)

// CheckType is the kind of subject that was screened
type CheckType string

const (
	CheckCustomer        CheckType = "CUSTOMER"
	CheckBeneficialOwner CheckType = "BENEFICIAL_OWNER"
	CheckManual          CheckType = "MANUAL"
)

// CheckStatus is the processing state of a sanctions check
type CheckStatus string

const (
	CheckPending    CheckStatus = "PENDING"
	CheckInProgress CheckStatus = "IN_PROGRESS"
	CheckCompleted  CheckStatus = "COMPLETED"
	CheckFailed     CheckStatus = "FAILED"
)

// MatchStatus is the aggregate outcome of a sanctions check
type MatchStatus string

const (
	MatchPending   MatchStatus = "PENDING"
	NoMatch        MatchStatus = "NO_MATCH"
	PotentialMatch MatchStatus = "POTENTIAL_MATCH"
	Match          MatchStatus = "MATCH"
)

// MatchType tells how a single hit was produced
type MatchType string

const (
	MatchExactName   MatchType = "EXACT_NAME"
	MatchPartialName MatchType = "PARTIAL_NAME"
	MatchFuzzyName   MatchType = "FUZZY_NAME"
	MatchDocument    MatchType = "DOCUMENT"
	MatchDateOfBirth MatchType = "DATE_OF_BIRTH"
)

// IsExact reports whether the hit alone makes the check a MATCH
func (t MatchType) IsExact() bool {
	return t == MatchExactName || t == MatchDocument || t == MatchDateOfBirth
}

// ReviewStatus is the analyst decision on a single hit
type ReviewStatus string

const (
	ReviewPending            ReviewStatus = "PENDING"
	ReviewConfirmed          ReviewStatus = "CONFIRMED"
	ReviewFalsePositive      ReviewStatus = "FALSE_POSITIVE"
	ReviewNeedsInvestigation ReviewStatus = "NEEDS_INVESTIGATION"
)

// SanctionsList is a watchlist published by an authority
type SanctionsList struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name                string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	ListType            ListType   `gorm:"type:varchar(20);not null" json:"list_type"`
	SourceURL           string     `gorm:"type:varchar(500)" json:"source_url,omitempty"`
	IsActive            bool       `gorm:"not null" json:"is_active"`
	LastUpdated         *time.Time `json:"last_updated,omitempty"`
	UpdateFrequencyDays int        `gorm:"not null;default:1" json:"update_frequency_days"`
	CreatedAt           time.Time  `json:"created_at"`
}

func (SanctionsList) TableName() string { return "kyc_sanctions_lists" }

func (l *SanctionsList) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// NeedsUpdate reports whether the list is older than its refresh cadence
func (l *SanctionsList) NeedsUpdate(now time.Time) bool {
	if l.LastUpdated == nil {
		return true
	}
	return now.Sub(*l.LastUpdated) >= time.Duration(l.UpdateFrequencyDays)*24*time.Hour
}

// SanctionsEntry is one sanctioned party on a list
type SanctionsEntry struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ListID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_kyc_sanctions_entries_external" json:"list_id"`
	ExternalID     string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_kyc_sanctions_entries_external" json:"external_id"`
	EntryType      EntryType  `gorm:"type:varchar(20);not null" json:"entry_type"`
	PrimaryName    string     `gorm:"type:varchar(255);index;not null" json:"primary_name"`
	Aliases        []string   `gorm:"serializer:json" json:"aliases,omitempty"`
	PassportNumber string     `gorm:"type:varchar(100)" json:"passport_number,omitempty"`
	NationalID     string     `gorm:"type:varchar(100)" json:"national_id,omitempty"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	Nationality    string     `gorm:"type:varchar(2)" json:"nationality,omitempty"`
	Program        string     `gorm:"type:varchar(100)" json:"program,omitempty"`
	IsActive       bool       `gorm:"index;not null" json:"is_active"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (SanctionsEntry) TableName() string { return "kyc_sanctions_entries" }

func (e *SanctionsEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// SanctionsCheck is one screening run. Checks are never mutated by later
// screenings of the same subject; only match reviews update them.
type SanctionsCheck struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CheckType         CheckType        `gorm:"type:varchar(20);not null" json:"check_type"`
	CustomerID        *uuid.UUID       `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	BeneficialOwnerID *uuid.UUID       `gorm:"type:uuid;index" json:"beneficial_owner_id,omitempty"`
	SearchName        string           `gorm:"type:varchar(255)" json:"search_name"`
	SearchDocument    string           `gorm:"type:varchar(100)" json:"search_document,omitempty"`
	SearchDateOfBirth *time.Time       `json:"search_date_of_birth,omitempty"`
	CheckStatus       CheckStatus      `gorm:"type:varchar(20);not null" json:"check_status"`
	MatchStatus       MatchStatus      `gorm:"type:varchar(20);index;not null" json:"match_status"`
	TotalMatches      int              `gorm:"not null;default:0" json:"total_matches"`
	ListsChecked      int              `gorm:"not null;default:0" json:"lists_checked"`
	CheckDate         time.Time        `gorm:"index;not null" json:"check_date"`
	CompletedDate     *time.Time       `json:"completed_date,omitempty"`
	InitiatedBy       string           `gorm:"type:varchar(100)" json:"initiated_by,omitempty"`
	Notes             string           `gorm:"type:text" json:"notes,omitempty"`
	Matches           []SanctionsMatch `gorm:"foreignKey:CheckID" json:"matches,omitempty"`
}

func (SanctionsCheck) TableName() string { return "kyc_sanctions_checks" }

func (c *SanctionsCheck) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// SanctionsMatch is a single hit between a screened subject and an entry
type SanctionsMatch struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CheckID      uuid.UUID    `gorm:"type:uuid;index;not null" json:"check_id"`
	EntryID      uuid.UUID    `gorm:"type:uuid;not null" json:"entry_id"`
	MatchType    MatchType    `gorm:"type:varchar(20);not null" json:"match_type"`
	MatchScore   int          `gorm:"not null" json:"match_score"`
	MatchedField string       `gorm:"type:varchar(50);not null" json:"matched_field"`
	MatchedValue string       `gorm:"type:varchar(255)" json:"matched_value"`
	ReviewStatus ReviewStatus `gorm:"type:varchar(30);index;not null;default:'PENDING'" json:"review_status"`
	ReviewedBy   string       `gorm:"type:varchar(100)" json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time   `json:"reviewed_at,omitempty"`
	ReviewNotes  string       `gorm:"type:text" json:"review_notes,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (SanctionsMatch) TableName() string { return "kyc_sanctions_matches" }

func (m *SanctionsMatch) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
