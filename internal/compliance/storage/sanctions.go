package storage

import (
	"context"

	"github.com/Aidin1998/kycengine/common/dbutil"
	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

func (s *Store) ActiveLists(ctx context.Context) ([]models.SanctionsList, error) {
	var lists []models.SanctionsList
	err := s.conn(ctx).Where("is_active = ?", true).Order("name ASC").Find(&lists).Error
	return lists, dbutil.WrapError(err)
}

func (s *Store) ActiveEntries(ctx context.Context, listID uuid.UUID) ([]models.SanctionsEntry, error) {
	var entries []models.SanctionsEntry
	err := s.conn(ctx).
		Where("list_id = ? AND is_active = ?", listID, true).
		Order("external_id ASC").
		Find(&entries).Error
	return entries, dbutil.WrapError(err)
}

func (s *Store) GetListByName(ctx context.Context, name string) (*models.SanctionsList, error) {
	return dbutil.FindOne[models.SanctionsList](s.conn(ctx).Where("name = ?", name), "sanctions list")
}

// SaveList inserts the list or updates it in place.
func (s *Store) SaveList(ctx context.Context, list *models.SanctionsList) error {
	return dbutil.WrapError(s.conn(ctx).Save(list).Error)
}

func (s *Store) DeactivateEntries(ctx context.Context, listID uuid.UUID) (int64, error) {
	res := s.conn(ctx).
		Model(&models.SanctionsEntry{}).
		Where("list_id = ?", listID).
		Update("is_active", false)
	return res.RowsAffected, dbutil.WrapError(res.Error)
}

// UpsertEntry inserts the entry or overwrites the existing one with the
// same list and external id.
func (s *Store) UpsertEntry(ctx context.Context, entry *models.SanctionsEntry) error {
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "list_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"entry_type", "primary_name", "aliases", "passport_number", "national_id",
			"date_of_birth", "nationality", "program", "is_active", "updated_at",
		}),
	}).Create(entry).Error
	return dbutil.WrapError(err)
}

func (s *Store) CreateSanctionsCheck(ctx context.Context, check *models.SanctionsCheck) error {
	return dbutil.WrapError(s.conn(ctx).Create(check).Error)
}

func (s *Store) GetSanctionsCheck(ctx context.Context, id uuid.UUID) (*models.SanctionsCheck, error) {
	return dbutil.FindOne[models.SanctionsCheck](
		s.conn(ctx).Preload("Matches").Where("id = ?", id),
		"sanctions check",
	)
}

func (s *Store) SetCheckMatchStatus(ctx context.Context, checkID uuid.UUID, status models.MatchStatus) error {
	res := s.conn(ctx).
		Model(&models.SanctionsCheck{}).
		Where("id = ?", checkID).
		Update("match_status", status)
	if res.Error != nil {
		return dbutil.WrapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound.Explain("sanctions check %s not found", checkID)
	}
	return nil
}

func (s *Store) LatestCustomerCheck(ctx context.Context, customerID uuid.UUID) (*models.SanctionsCheck, error) {
	return dbutil.FindOne[models.SanctionsCheck](
		s.conn(ctx).
			Where("customer_id = ? AND check_type = ?", customerID, models.CheckCustomer).
			Order("check_date DESC"),
		"sanctions check",
	)
}

func (s *Store) LatestOwnerCheck(ctx context.Context, ownerID uuid.UUID) (*models.SanctionsCheck, error) {
	return dbutil.FindOne[models.SanctionsCheck](
		s.conn(ctx).
			Where("beneficial_owner_id = ?", ownerID).
			Order("check_date DESC"),
		"sanctions check",
	)
}

func (s *Store) GetMatch(ctx context.Context, id uuid.UUID) (*models.SanctionsMatch, error) {
	return dbutil.FindOne[models.SanctionsMatch](s.conn(ctx).Where("id = ?", id), "sanctions match")
}

func (s *Store) UpdateMatch(ctx context.Context, match *models.SanctionsMatch) error {
	err := s.conn(ctx).
		Model(match).
		Select("review_status", "reviewed_by", "reviewed_at", "review_notes").
		Updates(match).Error
	return dbutil.WrapError(err)
}

func (s *Store) ListMatches(ctx context.Context, checkID uuid.UUID) ([]models.SanctionsMatch, error) {
	var matches []models.SanctionsMatch
	err := s.conn(ctx).
		Where("check_id = ?", checkID).
		Order("match_score DESC, id ASC").
		Find(&matches).Error
	return matches, dbutil.WrapError(err)
}

func (s *Store) SanctionsStats(ctx context.Context) (*SanctionsStats, error) {
	db := s.conn(ctx)
	stats := &SanctionsStats{
		ChecksByStatus:  make(map[models.MatchStatus]int64),
		MatchesByReview: make(map[models.ReviewStatus]int64),
	}

	if err := db.Model(&models.SanctionsList{}).Where("is_active = ?", true).Count(&stats.ActiveLists).Error; err != nil {
		return nil, dbutil.WrapError(err)
	}
	if err := db.Model(&models.SanctionsEntry{}).Where("is_active = ?", true).Count(&stats.ActiveEntries).Error; err != nil {
		return nil, dbutil.WrapError(err)
	}

	var checks []struct {
		MatchStatus models.MatchStatus
		Count       int64
	}
	if err := db.Model(&models.SanctionsCheck{}).
		Select("match_status, COUNT(*) AS count").
		Group("match_status").
		Scan(&checks).Error; err != nil {
		return nil, dbutil.WrapError(err)
	}
	for _, c := range checks {
		stats.ChecksByStatus[c.MatchStatus] = c.Count
		stats.TotalChecks += c.Count
	}

	var matches []struct {
		ReviewStatus models.ReviewStatus
		Count        int64
	}
	if err := db.Model(&models.SanctionsMatch{}).
		Select("review_status, COUNT(*) AS count").
		Group("review_status").
		Scan(&matches).Error; err != nil {
		return nil, dbutil.WrapError(err)
	}
	for _, m := range matches {
		stats.MatchesByReview[m.ReviewStatus] = m.Count
	}

	return stats, nil
}
