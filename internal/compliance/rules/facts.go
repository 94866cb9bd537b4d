package rules

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/google/uuid"
)

// Facts is everything the evaluators may look at for one customer
type Facts struct {
	Customer      *models.Customer
	Owners        []models.BeneficialOwner
	Documents     []models.Document
	Assessment    *models.RiskAssessment
	CustomerCheck *models.SanctionsCheck
	OwnerChecks   map[uuid.UUID]*models.SanctionsCheck
	Now           time.Time
}

// RequiredDocuments returns the documents whose type is mandatory
func (f *Facts) RequiredDocuments() []models.Document {
	var out []models.Document
	for _, d := range f.Documents {
		if d.DocumentType.IsRequired {
			out = append(out, d)
		}
	}
	return out
}

// HasDocumentNamed reports whether any document type name contains part,
// ignoring case
func (f *Facts) HasDocumentNamed(part string) bool {
	part = strings.ToLower(part)
	for _, d := range f.Documents {
		if strings.Contains(strings.ToLower(d.DocumentType.Name), part) {
			return true
		}
	}
	return false
}

func (f *Facts) inJurisdiction(countries []string) bool {
	c := f.Customer
	return (c.Country != "" && slices.Contains(countries, c.Country)) ||
		(c.Nationality != "" && slices.Contains(countries, c.Nationality))
}

// FactSource is the read side of storage the facts are gathered from
type FactSource interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	ListBeneficialOwners(ctx context.Context, customerID uuid.UUID) ([]models.BeneficialOwner, error)
	ListDocuments(ctx context.Context, customerID uuid.UUID, requiredOnly bool) ([]models.Document, error)
	CurrentAssessment(ctx context.Context, customerID uuid.UUID) (*models.RiskAssessment, error)
	LatestCustomerCheck(ctx context.Context, customerID uuid.UUID) (*models.SanctionsCheck, error)
	LatestOwnerCheck(ctx context.Context, ownerID uuid.UUID) (*models.SanctionsCheck, error)
}

// LoadFacts gathers the snapshot for a customer. Missing assessments and
// sanctions checks are left nil.
func LoadFacts(ctx context.Context, src FactSource, customerID uuid.UUID, now time.Time) (*Facts, error) {
	customer, err := src.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	f := &Facts{Customer: customer, Now: now, OwnerChecks: make(map[uuid.UUID]*models.SanctionsCheck)}

	if f.Owners, err = src.ListBeneficialOwners(ctx, customerID); err != nil {
		return nil, err
	}
	if f.Documents, err = src.ListDocuments(ctx, customerID, false); err != nil {
		return nil, err
	}
	if f.Assessment, err = optional(src.CurrentAssessment(ctx, customerID)); err != nil {
		return nil, err
	}
	if f.CustomerCheck, err = optional(src.LatestCustomerCheck(ctx, customerID)); err != nil {
		return nil, err
	}
	for _, o := range f.Owners {
		check, err := optional(src.LatestOwnerCheck(ctx, o.ID))
		if err != nil {
			return nil, err
		}
		if check != nil {
			f.OwnerChecks[o.ID] = check
		}
	}
	return f, nil
}

func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, errors.NotFound) {
		return nil, nil
	}
	return v, err
}
