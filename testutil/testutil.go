// Package testutil provides an in-memory database and fixtures for engine tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/storage"
	"github.com/Aidin1998/kycengine/pkg/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Epoch is the fixed instant tests start from.
var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// NewStore opens a private shared-cache sqlite database, migrates it and
// returns a store whose timestamps follow clk.
func NewStore(t testing.TB, clk clock.Clock) *storage.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        clk.Now,
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := storage.NewStore(db, zaptest.NewLogger(t).Sugar())
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

// SeedFactors creates the baseline factor table: every factor scores
// -20 when low, 20 when medium and 80 when high.
func SeedFactors(t testing.TB, store *storage.Store) []models.RiskFactor {
	t.Helper()

	factors := storage.BaselineFactors()
	for i := range factors {
		require.NoError(t, store.DB().Create(&factors[i]).Error)
	}
	return factors
}

// SeedRules creates the baseline rule of each type, all six when types is
// empty. Types without a baseline rule get a generic one.
func SeedRules(t testing.TB, store *storage.Store, types ...models.RuleType) []models.ComplianceRule {
	t.Helper()

	baseline := make(map[models.RuleType]models.ComplianceRule)
	for _, r := range storage.BaselineRules() {
		baseline[r.RuleType] = r
	}
	if len(types) == 0 {
		for _, r := range storage.BaselineRules() {
			types = append(types, r.RuleType)
		}
	}

	rules := make([]models.ComplianceRule, 0, len(types))
	for _, rt := range types {
		r, ok := baseline[rt]
		if !ok {
			r = models.ComplianceRule{
				Name:      string(rt) + " baseline",
				RuleType:  rt,
				Severity:  models.SeverityHigh,
				AutoCheck: true,
				IsActive:  true,
			}
		}
		require.NoError(t, store.DB().Create(&r).Error)
		rules = append(rules, r)
	}
	return rules
}

// Customer builds and persists a customer. Defaults describe a complete
// low-risk individual in Germany.
func Customer(t testing.TB, store *storage.Store, opts ...func(*models.Customer)) *models.Customer {
	t.Helper()

	dob := time.Date(1985, 6, 15, 0, 0, 0, 0, time.UTC)
	c := &models.Customer{
		CustomerType:     models.CustomerIndividual,
		FullName:         "Anna Schmidt",
		DocumentType:     "PASSPORT",
		DocumentNumber:   "C01X00T47",
		DateOfBirth:      &dob,
		Country:          "DE",
		Nationality:      "DE",
		Industry:         "SOFTWARE",
		OnboardingStatus: models.OnboardingPending,
		RiskScore:        50,
	}
	for _, opt := range opts {
		opt(c)
	}
	require.NoError(t, store.DB().Create(c).Error)
	return c
}

// Owner attaches a beneficial owner to a customer.
func Owner(t testing.TB, store *storage.Store, customerID uuid.UUID, name string, percent float64, opts ...func(*models.BeneficialOwner)) *models.BeneficialOwner {
	t.Helper()

	o := &models.BeneficialOwner{
		CustomerID:          customerID,
		FullName:            name,
		OwnershipPercentage: decimal.NewFromFloat(percent),
	}
	for _, opt := range opts {
		opt(o)
	}
	require.NoError(t, store.DB().Create(o).Error)
	return o
}

// Document attaches a document of the named type, creating the type on first use.
func Document(t testing.TB, store *storage.Store, customerID uuid.UUID, typeName string, required bool, status models.DocumentStatus) *models.Document {
	t.Helper()

	var dt models.DocumentType
	err := store.DB().Where(models.DocumentType{Name: typeName}).
		Attrs(models.DocumentType{IsRequired: required}).
		FirstOrCreate(&dt).Error
	require.NoError(t, err)

	d := &models.Document{CustomerID: customerID, DocumentTypeID: dt.ID, Status: status}
	require.NoError(t, store.DB().Create(d).Error)
	return d
}

// SanctionsList creates an active list holding entries.
func SanctionsList(t testing.TB, store *storage.Store, name string, entries ...models.SanctionsEntry) *models.SanctionsList {
	t.Helper()

	list := &models.SanctionsList{Name: name, ListType: models.ListOFAC, IsActive: true, UpdateFrequencyDays: 1}
	require.NoError(t, store.DB().Create(list).Error)
	for i := range entries {
		e := entries[i]
		e.ListID = list.ID
		e.IsActive = true
		if e.ExternalID == "" {
			e.ExternalID = fmt.Sprintf("%s-%d", name, i+1)
		}
		if e.EntryType == "" {
			e.EntryType = models.EntryIndividual
		}
		require.NoError(t, store.DB().Create(&e).Error)
	}
	return list
}
