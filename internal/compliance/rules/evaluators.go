package rules

import (
	"slices"
	"strings"

	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/scoring"
	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/shopspring/decimal"
)

func evaluateKYC(cfg config.EngineConfig, f *Facts) Result {
	var t tally
	c := f.Customer

	required := f.RequiredDocuments()
	if len(required) == 0 {
		t.add(20, "No required documents found")
	} else {
		switch ratio := scoring.ApprovalRatio(required); {
		case ratio < 0.8:
			t.add(15, "Document completion rate too low: %s", percent(ratio))
		case ratio < 1.0:
			t.add(5, "Some documents pending approval: %s", percent(ratio))
		}
	}

	var missing []string
	if c.FullName == "" {
		missing = append(missing, "full_name")
	}
	if c.DocumentNumber == "" {
		missing = append(missing, "document_number")
	}
	if c.Country == "" {
		missing = append(missing, "country")
	}
	if c.DateOfBirth == nil {
		missing = append(missing, "date_of_birth")
	}
	if len(missing) > 0 {
		t.add(5*len(missing), "Missing required fields: %s", strings.Join(missing, ", "))
	}

	if c.IsLegalEntity() {
		if len(f.Owners) == 0 {
			t.add(25, "No beneficial owners declared")
		} else if total := scoring.TotalOwnership(f.Owners); total.LessThan(decimal.NewFromFloat(cfg.Risk.MinOwnershipPercent)) {
			t.add(15, "Incomplete ownership disclosure: %s%%", total.StringFixed(2))
		}
	}

	return t.result(cfg.Rules.KYCReview, "All KYC requirements met")
}

func evaluateAML(cfg config.EngineConfig, f *Facts) Result {
	var t tally
	c := f.Customer

	a := f.Assessment
	switch {
	case a == nil || a.IsExpired(f.Now):
		t.add(20, "No current risk assessment")
	case a.RiskLevel.IsHigh():
		t.add(15, "High risk customer requires enhanced due diligence")
	}

	if c.ExpectedMonthlyVolume.Valid &&
		c.ExpectedMonthlyVolume.Decimal.GreaterThan(decimal.NewFromFloat(cfg.Risk.HighVolume)) {
		t.add(10, "High transaction volume requires enhanced monitoring")
	}
	if slices.Contains(cfg.Risk.HighRiskCountries, c.Country) {
		t.add(20, "Customer from high-risk jurisdiction: %s", c.Country)
	}
	if slices.Contains(cfg.Risk.HighRiskIndustries, c.Industry) {
		t.add(15, "High-risk industry: %s", c.Industry)
	}

	return t.result(cfg.Rules.AMLReview, "AML requirements met")
}

func evaluateSanctions(cfg config.EngineConfig, f *Facts) Result {
	var t tally

	switch check := f.CustomerCheck; {
	case check == nil:
		t.add(25, "No sanctions screening performed")
	case check.MatchStatus == models.Match:
		t.add(50, "Customer matches sanctions list")
	case check.MatchStatus == models.PotentialMatch:
		t.add(20, "Potential sanctions match requires review")
	case check.CheckDate.Before(f.Now.Add(-cfg.Screening.StaleAfter)):
		t.add(10, "Sanctions screening outdated")
	}

	for _, o := range f.Owners {
		switch check := f.OwnerChecks[o.ID]; {
		case check == nil:
			t.add(15, "No sanctions screening for beneficial owner: %s", o.FullName)
		case check.MatchStatus == models.Match:
			t.add(50, "Beneficial owner matches sanctions list: %s", o.FullName)
		case check.MatchStatus == models.PotentialMatch:
			t.add(20, "Potential sanctions match for beneficial owner: %s", o.FullName)
		}
	}

	return t.result(cfg.Rules.SanctionsReview, "Sanctions screening clear")
}

func evaluatePEP(cfg config.EngineConfig, f *Facts) Result {
	var t tally

	if f.Customer.IsPEP {
		t.add(15, "Customer is a Politically Exposed Person")
	}
	pepOwners := 0
	for _, o := range f.Owners {
		if o.IsPEP {
			pepOwners++
			t.add(10, "Beneficial owner is PEP: %s", o.FullName)
		}
	}
	if (f.Customer.IsPEP || pepOwners > 0) && !f.HasDocumentNamed("enhanced") {
		t.add(20, "PEP requires enhanced due diligence documentation")
	}

	return t.result(cfg.Rules.PEPReview, "PEP screening clear")
}

func evaluateFATCA(cfg config.EngineConfig, f *Facts) Result {
	var t tally
	if f.inJurisdiction(cfg.Rules.FATCACountries) && !f.HasDocumentNamed("fatca") {
		t.add(20, "US person requires FATCA documentation")
	}
	return t.result(cfg.Rules.FATCAReview, "FATCA requirements met")
}

func evaluateCRS(cfg config.EngineConfig, f *Facts) Result {
	var t tally
	if f.inJurisdiction(cfg.Rules.CRSCountries) && !f.HasDocumentNamed("crs") {
		t.add(15, "CRS reporting jurisdiction requires additional documentation")
	}
	return t.result(cfg.Rules.CRSReview, "CRS requirements met")
}

// evaluateGeneric never fails a customer, it only asks for review
func evaluateGeneric(_ config.EngineConfig, f *Facts) Result {
	if f.Customer.FullName == "" || f.Customer.DocumentNumber == "" {
		return Result{
			Status:  models.ComplianceRequiresReview,
			Score:   10,
			Details: []string{"Basic customer information incomplete"},
		}
	}
	return Result{Status: models.CompliancePassed, Details: []string{"Generic compliance check passed"}}
}
