// Package screening screens customers and beneficial owners against
// sanctions lists and manages the lists themselves.
package screening

import (
	"context"
	"fmt"
	"sync"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/matching"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/storage"
	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/Aidin1998/kycengine/pkg/clock"
	"github.com/Aidin1998/kycengine/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repository is the persistence the engine needs
type Repository interface {
	storage.Transactor
	storage.CustomerRepository
	storage.SanctionsRepository
	CreateAlert(ctx context.Context, alert *models.ComplianceAlert) error
}

// Engine runs sanctions screenings
type Engine struct {
	repo   Repository
	clock  clock.Clock
	logger *zap.SugaredLogger

	mu      sync.RWMutex
	cfg     config.EngineConfig
	matcher *matching.NameMatcher
}

// NewEngine creates a sanctions screening engine
func NewEngine(repo Repository, clk clock.Clock, cfg config.EngineConfig, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		repo:    repo,
		clock:   clk,
		logger:  logger.Named("screening"),
		cfg:     cfg,
		matcher: matching.NewNameMatcher(cfg.Matching),
	}
}

// Reconfigure swaps the tunables used by subsequent calls
func (e *Engine) Reconfigure(cfg config.EngineConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.matcher = matching.NewNameMatcher(cfg.Matching)
	e.mu.Unlock()
}

func (e *Engine) snapshot() (config.EngineConfig, *matching.NameMatcher) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg, e.matcher
}

// ScreenCustomer screens a customer's names, document and date of birth
func (e *Engine) ScreenCustomer(ctx context.Context, customerID uuid.UUID, initiatedBy string) (*models.SanctionsCheck, error) {
	customer, err := e.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	t := Target{
		CheckType:   models.CheckCustomer,
		CustomerID:  &customer.ID,
		InitiatedBy: initiatedBy,
	}
	for _, name := range []string{customer.FullName, customer.LegalName} {
		if name != "" && (len(t.Names) == 0 || t.Names[0] != name) {
			t.Names = append(t.Names, name)
		}
	}
	if customer.DocumentNumber != "" {
		t.Documents = append(t.Documents, customer.DocumentNumber)
	}
	if customer.DateOfBirth != nil {
		t.DatesOfBirth = append(t.DatesOfBirth, *customer.DateOfBirth)
	}
	return e.Screen(ctx, t)
}

// ScreenBeneficialOwner screens a single beneficial owner. The check is
// recorded against the owner and carries the owning customer's id.
func (e *Engine) ScreenBeneficialOwner(ctx context.Context, ownerID uuid.UUID, initiatedBy string) (*models.SanctionsCheck, error) {
	owner, err := e.repo.GetBeneficialOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	t := Target{
		CheckType:   models.CheckBeneficialOwner,
		CustomerID:  &owner.CustomerID,
		OwnerID:     &owner.ID,
		Names:       []string{owner.FullName},
		InitiatedBy: initiatedBy,
	}
	if owner.DocumentNumber != "" {
		t.Documents = append(t.Documents, owner.DocumentNumber)
	}
	if owner.DateOfBirth != nil {
		t.DatesOfBirth = append(t.DatesOfBirth, *owner.DateOfBirth)
	}
	return e.Screen(ctx, t)
}

// Screen matches the target against every active list and records a new
// check with its hits. Earlier checks are never modified.
func (e *Engine) Screen(ctx context.Context, t Target) (*models.SanctionsCheck, error) {
	if t.SearchName() == "" {
		return nil, errors.Invalid.Explain("screening target has no name").
			WithField("required", "names", "at least one name is required")
	}
	cfg, matcher := e.snapshot()

	var check *models.SanctionsCheck
	err := e.repo.InTx(ctx, func(ctx context.Context) error {
		lists, err := e.repo.ActiveLists(ctx)
		if err != nil {
			return err
		}

		var entries []models.SanctionsEntry
		for _, l := range lists {
			le, err := e.repo.ActiveEntries(ctx, l.ID)
			if err != nil {
				return err
			}
			entries = append(entries, le...)
		}

		matches, err := scan(ctx, matcher, t, entries, cfg.Screening.ChunkSize, cfg.Screening.Workers)
		if err != nil {
			return errors.Computation.Explain("sanctions scan failed").Wrap(err)
		}

		now := e.clock.Now()
		check = &models.SanctionsCheck{
			CheckType:         t.CheckType,
			CustomerID:        t.CustomerID,
			BeneficialOwnerID: t.OwnerID,
			SearchName:        t.SearchName(),
			CheckStatus:       models.CheckCompleted,
			MatchStatus:       Reduce(matches),
			TotalMatches:      len(matches),
			ListsChecked:      len(lists),
			CheckDate:         now,
			CompletedDate:     &now,
			InitiatedBy:       t.InitiatedBy,
			Notes:             fmt.Sprintf("Screened against %d sanctions lists", len(lists)),
			Matches:           matches,
		}
		if len(t.Documents) > 0 {
			check.SearchDocument = t.Documents[0]
		}
		if len(t.DatesOfBirth) > 0 {
			check.SearchDateOfBirth = &t.DatesOfBirth[0]
		}
		if err := e.repo.CreateSanctionsCheck(ctx, check); err != nil {
			return err
		}

		if t.CheckType == models.CheckCustomer && t.CustomerID != nil {
			checked := true
			return e.repo.UpdateCustomer(ctx, *t.CustomerID, storage.CustomerUpdate{
				IsSanctionsChecked: &checked,
				SanctionsLastCheck: &now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ScreeningResults.WithLabelValues(string(check.CheckType), string(check.MatchStatus)).Inc()
	e.logger.Infow("Sanctions screening completed",
		"check_id", check.ID,
		"check_type", check.CheckType,
		"match_status", check.MatchStatus,
		"matches", check.TotalMatches,
		"lists", check.ListsChecked)
	return check, nil
}

// ReviewMatch records an analyst decision on a hit. Once no hit of the
// check is pending, the check becomes MATCH if any hit was confirmed and
// NO_MATCH otherwise. A confirmed hit raises a SANCTIONS_MATCH alert.
func (e *Engine) ReviewMatch(ctx context.Context, matchID uuid.UUID, reviewer string, decision models.ReviewStatus, notes string) (*models.SanctionsMatch, error) {
	switch decision {
	case models.ReviewConfirmed, models.ReviewFalsePositive, models.ReviewNeedsInvestigation:
	default:
		return nil, errors.Invalid.Explain("unsupported review decision %q", decision).
			WithField("oneof", "decision", "must be CONFIRMED, FALSE_POSITIVE or NEEDS_INVESTIGATION")
	}

	var match *models.SanctionsMatch
	err := e.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		match, err = e.repo.GetMatch(ctx, matchID)
		if err != nil {
			return err
		}

		now := e.clock.Now()
		match.ReviewStatus = decision
		match.ReviewedBy = reviewer
		match.ReviewedAt = &now
		match.ReviewNotes = notes
		if err := e.repo.UpdateMatch(ctx, match); err != nil {
			return err
		}

		if decision == models.ReviewConfirmed {
			if err := e.raiseConfirmedAlert(ctx, match, reviewer); err != nil {
				return err
			}
		}
		return e.recompute(ctx, match.CheckID)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Infow("Sanctions match reviewed", "match_id", matchID, "reviewer", reviewer, "decision", decision)
	return match, nil
}

func (e *Engine) recompute(ctx context.Context, checkID uuid.UUID) error {
	matches, err := e.repo.ListMatches(ctx, checkID)
	if err != nil || len(matches) == 0 {
		return err
	}

	status := models.NoMatch
	for _, m := range matches {
		switch m.ReviewStatus {
		case models.ReviewPending:
			return nil
		case models.ReviewConfirmed:
			status = models.Match
		}
	}

	if err := e.repo.SetCheckMatchStatus(ctx, checkID, status); err != nil {
		return err
	}
	e.logger.Infow("Sanctions check status updated", "check_id", checkID, "match_status", status)
	return nil
}

func (e *Engine) raiseConfirmedAlert(ctx context.Context, match *models.SanctionsMatch, reviewer string) error {
	check, err := e.repo.GetSanctionsCheck(ctx, match.CheckID)
	if err != nil {
		return err
	}

	alert := &models.ComplianceAlert{
		AlertType:  models.AlertSanctionsMatch,
		Severity:   models.SeverityCritical,
		Title:      fmt.Sprintf("Sanctions Match Confirmed: %s", check.SearchName),
		Message:    fmt.Sprintf("Match on %s confirmed by %s", match.MatchedField, reviewer),
		CustomerID: check.CustomerID,
	}
	if err := e.repo.CreateAlert(ctx, alert); err != nil {
		return err
	}
	metrics.AlertsRaised.WithLabelValues(string(alert.AlertType), string(alert.Severity)).Inc()
	return nil
}

// Statistics reports list, entry, check and review counts
func (e *Engine) Statistics(ctx context.Context) (*storage.SanctionsStats, error) {
	return e.repo.SanctionsStats(ctx)
}
