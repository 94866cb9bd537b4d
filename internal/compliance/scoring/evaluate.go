package scoring

import (
	"slices"

	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/shopspring/decimal"
)

const (
	minScore = 0
	maxScore = 100
)

// Inputs is everything the score depends on, loaded up front so the
// computation itself never touches storage.
type Inputs struct {
	Customer *models.Customer
	Owners   []models.BeneficialOwner
	// RequiredDocuments are the customer's documents whose type is required
	RequiredDocuments []models.Document
	Factors           []models.RiskFactor
	// Matrix is optional
	Matrix *models.RiskMatrix
}

// Result is the outcome of Evaluate
type Result struct {
	BaseScore    int
	FinalScore   int
	Level        models.RiskLevel
	Applications []models.RiskFactorApplication
}

// Evaluate computes the weighted score, applies the matrix adjustment and
// derives the level. When no factor applies the base score is used as is.
func Evaluate(cfg config.RiskConfig, in Inputs) Result {
	factors := in.Factors
	if len(factors) == 0 && in.Matrix != nil {
		factors = in.Matrix.DefaultFactors
	}

	total := float64(cfg.BaseScore)
	totalWeight := 0
	apps := make([]models.RiskFactorApplication, 0, len(factors))

	for i := range factors {
		f := &factors[i]
		level, known := evaluateFactor(cfg, f.FactorType, in)
		contribution := 0
		if known {
			contribution = f.Score(level)
		}
		total += float64(contribution) * float64(f.Weight) / 100
		totalWeight += f.Weight

		apps = append(apps, models.RiskFactorApplication{
			FactorID:     f.ID,
			FactorType:   f.FactorType,
			RawLevel:     level,
			AppliedScore: contribution,
			WeightUsed:   f.Weight,
		})
	}

	base := cfg.BaseScore
	if totalWeight > 0 {
		base = int(clamp(total))
	}

	final := base
	if in.Matrix != nil {
		final = int(clamp(float64(base)*in.Matrix.ScoreMultiplier + float64(in.Matrix.ScoreAdjustment)))
	}

	var level models.RiskLevel
	if in.Matrix != nil {
		level = in.Matrix.LevelForScore(final)
	} else {
		level = LevelFor(cfg.Levels, final)
	}

	return Result{BaseScore: base, FinalScore: final, Level: level, Applications: apps}
}

// LevelFor maps a score onto the canonical level table
func LevelFor(t config.LevelThresholds, score int) models.RiskLevel {
	switch {
	case score >= t.Critical:
		return models.RiskLevelCritical
	case score >= t.High:
		return models.RiskLevelHigh
	case score >= t.Medium:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}

func clamp(v float64) float64 {
	switch {
	case v < minScore:
		return minScore
	case v > maxScore:
		return maxScore
	}
	return v
}

// evaluateFactor returns the raw level of one factor. Unknown factor types
// contribute nothing.
func evaluateFactor(cfg config.RiskConfig, t models.FactorType, in Inputs) (models.RiskLevel, bool) {
	c := in.Customer
	switch t {
	case models.FactorGeographic:
		return listLevel(c.Country, cfg.HighRiskCountries, cfg.MediumRiskCountries), true
	case models.FactorIndustry:
		return listLevel(c.Industry, cfg.HighRiskIndustries, cfg.MediumRiskIndustries), true
	case models.FactorTransactionVolume:
		return volumeLevel(cfg, c.ExpectedMonthlyVolume), true
	case models.FactorPEPStatus:
		return pepLevel(c, in.Owners), true
	case models.FactorDocumentQuality:
		return documentLevel(cfg, in.RequiredDocuments), true
	case models.FactorBeneficialOwnership:
		return ownershipLevel(cfg, in.Owners), true
	}
	return "", false
}

func listLevel(v string, high, medium []string) models.RiskLevel {
	switch {
	case v != "" && slices.Contains(high, v):
		return models.RiskLevelHigh
	case v != "" && slices.Contains(medium, v):
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}

func volumeLevel(cfg config.RiskConfig, v decimal.NullDecimal) models.RiskLevel {
	if !v.Valid || v.Decimal.IsZero() {
		return models.RiskLevelMedium
	}
	switch {
	case v.Decimal.GreaterThan(decimal.NewFromFloat(cfg.HighVolume)):
		return models.RiskLevelHigh
	case v.Decimal.GreaterThan(decimal.NewFromFloat(cfg.MediumVolume)):
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}

func pepLevel(c *models.Customer, owners []models.BeneficialOwner) models.RiskLevel {
	if c.IsPEP {
		return models.RiskLevelHigh
	}
	for _, o := range owners {
		if o.IsPEP {
			return models.RiskLevelMedium
		}
	}
	return models.RiskLevelLow
}

// ApprovalRatio is the share of required documents that are approved
func ApprovalRatio(docs []models.Document) float64 {
	if len(docs) == 0 {
		return 0
	}
	approved := 0
	for _, d := range docs {
		if d.Status == models.DocumentApproved {
			approved++
		}
	}
	return float64(approved) / float64(len(docs))
}

func documentLevel(cfg config.RiskConfig, docs []models.Document) models.RiskLevel {
	if len(docs) == 0 {
		return models.RiskLevelHigh
	}
	switch ratio := ApprovalRatio(docs); {
	case ratio >= cfg.DocumentLowRatio:
		return models.RiskLevelLow
	case ratio >= cfg.DocumentMediumRatio:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelHigh
	}
}

// TotalOwnership sums the disclosed ownership percentages
func TotalOwnership(owners []models.BeneficialOwner) decimal.Decimal {
	total := decimal.Zero
	for _, o := range owners {
		total = total.Add(o.OwnershipPercentage)
	}
	return total
}

func ownershipLevel(cfg config.RiskConfig, owners []models.BeneficialOwner) models.RiskLevel {
	switch {
	case len(owners) == 0:
		return models.RiskLevelHigh
	case TotalOwnership(owners).LessThan(decimal.NewFromFloat(cfg.MinOwnershipPercent)):
		return models.RiskLevelHigh
	case len(owners) > cfg.MaxOwners:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}
