package storage

import (
	"context"

	"github.com/Aidin1998/kycengine/common/dbutil"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"gorm.io/gorm"
)

// SeedReport counts the reference rows created by Seed. Rows that already
// existed are not counted.
type SeedReport struct {
	Factors       int `json:"factors"`
	Rules         int `json:"rules"`
	DocumentTypes int `json:"document_types"`
}

// BaselineFactors is the reference factor table. Every factor scores -20
// when low, 20 when medium and 80 when high.
func BaselineFactors() []models.RiskFactor {
	factors := []models.RiskFactor{
		{Name: "Geographic risk", FactorType: models.FactorGeographic, Weight: 25},
		{Name: "Industry risk", FactorType: models.FactorIndustry, Weight: 20},
		{Name: "Expected volume", FactorType: models.FactorTransactionVolume, Weight: 15},
		{Name: "PEP exposure", FactorType: models.FactorPEPStatus, Weight: 20},
		{Name: "Document quality", FactorType: models.FactorDocumentQuality, Weight: 10},
		{Name: "Ownership disclosure", FactorType: models.FactorBeneficialOwnership, CustomerType: models.CustomerLegalEntity, Weight: 10},
	}
	for i := range factors {
		f := &factors[i]
		if f.CustomerType == "" {
			f.CustomerType = models.CustomerAll
		}
		f.LowRiskScore, f.MediumRiskScore, f.HighRiskScore = -20, 20, 80
		f.IsActive = true
	}
	return factors
}

// BaselineRules holds one active auto-checked rule per built-in rule type.
func BaselineRules() []models.ComplianceRule {
	rules := []models.ComplianceRule{
		{Name: "KYC documentation check", RuleType: models.RuleKYC, Severity: models.SeverityCritical,
			Description: "Verify all required KYC documents and identity fields are provided"},
		{Name: "AML risk review", RuleType: models.RuleAML, Severity: models.SeverityHigh,
			Description: "Enhanced due diligence for high risk jurisdictions, industries and volumes"},
		{Name: "Sanctions screening", RuleType: models.RuleSanctions, Severity: models.SeverityCritical,
			Description: "Customer and beneficial owners screened against active sanctions lists"},
		{Name: "PEP screening", RuleType: models.RulePEP, Severity: models.SeverityHigh,
			Description: "Politically exposed persons require enhanced due diligence documentation"},
		{Name: "FATCA reporting", RuleType: models.RuleFATCA, Severity: models.SeverityMedium,
			Description: "US persons require FATCA documentation"},
		{Name: "CRS reporting", RuleType: models.RuleCRS, Severity: models.SeverityMedium,
			Description: "Residents of CRS jurisdictions require self-certification"},
	}
	for i := range rules {
		rules[i].AutoCheck = true
		rules[i].IsActive = true
	}
	return rules
}

// BaselineDocumentTypes are the document types onboarding expects.
func BaselineDocumentTypes() []models.DocumentType {
	return []models.DocumentType{
		{Name: "Passport", Category: "IDENTITY", IsRequired: true},
		{Name: "CRS Self-Certification", Category: "TAX"},
		{Name: "FATCA W-9", Category: "TAX"},
		{Name: "Enhanced Due Diligence Questionnaire", Category: "COMPLIANCE"},
	}
}

// Seed creates the baseline factors, rules and document types that are
// missing. Existing rows are matched by name and left untouched, so Seed
// can run on every start.
func (s *Store) Seed(ctx context.Context) (SeedReport, error) {
	var report SeedReport
	err := s.InTx(ctx, func(ctx context.Context) error {
		for _, f := range BaselineFactors() {
			created, err := s.createMissing(ctx, s.conn(ctx).Where(
				"name = ? AND factor_type = ? AND customer_type = ?", f.Name, f.FactorType, f.CustomerType,
			), &f)
			if err != nil {
				return err
			}
			report.Factors += created
		}
		for _, r := range BaselineRules() {
			created, err := s.createMissing(ctx, s.conn(ctx).Where("name = ?", r.Name), &r)
			if err != nil {
				return err
			}
			report.Rules += created
		}
		for _, dt := range BaselineDocumentTypes() {
			created, err := s.createMissing(ctx, s.conn(ctx).Where("name = ?", dt.Name), &dt)
			if err != nil {
				return err
			}
			report.DocumentTypes += created
		}
		return nil
	})
	if err != nil {
		return SeedReport{}, err
	}

	s.logger.Infow("Reference data seeded",
		"factors", report.Factors, "rules", report.Rules, "document_types", report.DocumentTypes)
	return report, nil
}

// createMissing inserts row unless query already matches a row of the
// same model. It returns 1 when row was inserted.
func (s *Store) createMissing(ctx context.Context, query *gorm.DB, row any) (int, error) {
	var n int64
	if err := query.Model(row).Count(&n).Error; err != nil {
		return 0, dbutil.WrapError(err)
	}
	if n > 0 {
		return 0, nil
	}
	if err := s.conn(ctx).Create(row).Error; err != nil {
		return 0, dbutil.WrapError(err)
	}
	return 1, nil
}
