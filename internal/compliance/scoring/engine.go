// Package scoring computes customer risk assessments.
package scoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/storage"
	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/Aidin1998/kycengine/internal/infrastructure/lock"
	"github.com/Aidin1998/kycengine/pkg/clock"
	"github.com/Aidin1998/kycengine/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repository is the persistence the engine needs
type Repository interface {
	storage.Transactor
	storage.CustomerRepository
	storage.RiskAssessmentRepository
}

// Options tunes a single calculation
type Options struct {
	// Force skips reuse of a recent assessment
	Force      bool
	Type       models.AssessmentType
	AssessedBy string
}

// Engine calculates and persists risk assessments
type Engine struct {
	repo   Repository
	locker lock.Locker
	clock  clock.Clock
	logger *zap.SugaredLogger

	mu  sync.RWMutex
	cfg config.EngineConfig
}

// NewEngine creates a risk scoring engine
func NewEngine(repo Repository, locker lock.Locker, clk clock.Clock, cfg config.EngineConfig, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		repo:   repo,
		locker: locker,
		clock:  clk,
		cfg:    cfg,
		logger: logger.Named("scoring"),
	}
}

// Reconfigure swaps the tunables used by subsequent calls
func (e *Engine) Reconfigure(cfg config.EngineConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

func (e *Engine) config() config.EngineConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Calculate returns the customer's current assessment when it is recent
// enough, otherwise computes a new one. The prior current assessment is
// demoted and the new one inserted in one transaction, under a lock scoped
// to the customer.
func (e *Engine) Calculate(ctx context.Context, customerID uuid.UUID, opts Options) (*models.RiskAssessment, error) {
	cfg := e.config()

	unlock, err := e.locker.Lock(ctx, customerID.String())
	if err != nil {
		return nil, errors.Unavailable.Explain("failed to lock customer %s", customerID).Wrap(err)
	}
	defer unlock()

	if !opts.Force {
		recent, err := e.recent(ctx, customerID, cfg.Risk.ReuseWindow)
		if err != nil {
			return nil, err
		}
		if recent != nil {
			e.logger.Debugw("Reusing recent risk assessment",
				"customer_id", customerID, "assessment_id", recent.ID)
			return recent, nil
		}
	}

	if opts.Type == "" {
		opts.Type = models.AssessmentTriggered
	}

	var assessment *models.RiskAssessment
	err = e.repo.InTx(ctx, func(ctx context.Context) error {
		in, err := e.load(ctx, customerID)
		if err != nil {
			return err
		}

		res := Evaluate(cfg.Risk, in)
		now := e.clock.Now()

		demoted, err := e.repo.DemoteCurrent(ctx, customerID)
		if err != nil {
			return err
		}

		assessment = &models.RiskAssessment{
			CustomerID:         customerID,
			AssessmentType:     opts.Type,
			BaseScore:          res.BaseScore,
			FinalScore:         res.FinalScore,
			RiskLevel:          res.Level,
			AssessmentDate:     now,
			ValidUntil:         now.Add(validity(cfg.Risk, res.Level)),
			IsCurrent:          true,
			CustomerWasPEP:     in.Customer.IsPEP,
			MethodologyVersion: models.MethodologyVersion,
			AssessedBy:         opts.AssessedBy,
			Notes:              fmt.Sprintf("Automated assessment using %d risk factors", len(res.Applications)),
			Factors:            res.Applications,
		}
		if err := e.repo.CreateAssessment(ctx, assessment); err != nil {
			return err
		}

		next := now.Add(ReviewInterval(cfg.Review, res.Level))
		if err := e.repo.UpdateCustomer(ctx, customerID, storage.CustomerUpdate{
			RiskScore:          &res.FinalScore,
			RiskLevel:          &res.Level,
			LastRiskAssessment: &now,
			LastReviewDate:     &now,
			NextReviewDate:     &next,
		}); err != nil {
			return err
		}

		e.logger.Infow("Risk assessment created",
			"customer_id", customerID,
			"score", res.FinalScore,
			"risk_level", res.Level,
			"factors", len(res.Applications),
			"demoted", demoted)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RiskScores.WithLabelValues(string(assessment.RiskLevel)).Observe(float64(assessment.FinalScore))
	return assessment, nil
}

// recent returns the current assessment if it is younger than window
func (e *Engine) recent(ctx context.Context, customerID uuid.UUID, window time.Duration) (*models.RiskAssessment, error) {
	if window <= 0 {
		return nil, nil
	}
	current, err := e.repo.CurrentAssessment(ctx, customerID)
	if errors.Is(err, errors.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if e.clock.Now().Sub(current.AssessmentDate) >= window {
		return nil, nil
	}
	return current, nil
}

func (e *Engine) load(ctx context.Context, customerID uuid.UUID) (Inputs, error) {
	customer, err := e.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return Inputs{}, err
	}
	if err := customer.Validate(); err != nil {
		return Inputs{}, err
	}

	owners, err := e.repo.ListBeneficialOwners(ctx, customerID)
	if err != nil {
		return Inputs{}, err
	}
	docs, err := e.repo.ListDocuments(ctx, customerID, true)
	if err != nil {
		return Inputs{}, err
	}
	factors, err := e.repo.ActiveFactors(ctx, customer.CustomerType)
	if err != nil {
		return Inputs{}, err
	}

	matrix, err := e.repo.ActiveMatrix(ctx, customer.CustomerType)
	switch {
	case errors.Is(err, errors.NotFound):
		e.logger.Debugw("No risk matrix for customer type", "customer_type", customer.CustomerType)
		matrix = nil
	case err != nil:
		return Inputs{}, err
	}

	return Inputs{
		Customer:          customer,
		Owners:            owners,
		RequiredDocuments: docs,
		Factors:           factors,
		Matrix:            matrix,
	}, nil
}

func validity(cfg config.RiskConfig, level models.RiskLevel) time.Duration {
	if level.IsHigh() {
		return cfg.HighRiskValidity
	}
	return cfg.DefaultValidity
}

// ReviewInterval is the time until the next periodic review for a level
func ReviewInterval(cfg config.ReviewConfig, level models.RiskLevel) time.Duration {
	switch level {
	case models.RiskLevelHigh, models.RiskLevelCritical:
		return cfg.HighRiskInterval
	case models.RiskLevelMedium:
		return cfg.MediumRiskInterval
	default:
		return cfg.DefaultInterval
	}
}
