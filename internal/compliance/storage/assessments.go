package storage

import (
	"context"
	"time"

	"github.com/Aidin1998/kycengine/common/dbutil"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/google/uuid"
)

func (s *Store) CreateAssessment(ctx context.Context, a *models.RiskAssessment) error {
	return dbutil.WrapError(s.conn(ctx).Create(a).Error)
}

func (s *Store) CurrentAssessment(ctx context.Context, customerID uuid.UUID) (*models.RiskAssessment, error) {
	return dbutil.FindOne[models.RiskAssessment](
		s.conn(ctx).
			Preload("Factors").
			Where("customer_id = ? AND is_current = ?", customerID, true),
		"current risk assessment",
	)
}

func (s *Store) DemoteCurrent(ctx context.Context, customerID uuid.UUID) (int64, error) {
	res := s.conn(ctx).
		Model(&models.RiskAssessment{}).
		Where("customer_id = ? AND is_current = ?", customerID, true).
		Update("is_current", false)
	return res.RowsAffected, dbutil.WrapError(res.Error)
}

func (s *Store) ListAssessments(ctx context.Context, customerID uuid.UUID, limit int) ([]models.RiskAssessment, error) {
	var out []models.RiskAssessment
	q := s.conn(ctx).
		Preload("Factors").
		Where("customer_id = ?", customerID).
		Order("assessment_date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return out, dbutil.WrapError(q.Find(&out).Error)
}

func (s *Store) AssessmentStats(ctx context.Context, from, to time.Time) (*AssessmentStats, error) {
	var rows []struct {
		RiskLevel models.RiskLevel
		Count     int64
		ScoreSum  int64
	}
	err := s.conn(ctx).
		Model(&models.RiskAssessment{}).
		Select("risk_level, COUNT(*) AS count, COALESCE(SUM(final_score), 0) AS score_sum").
		Where("assessment_date >= ? AND assessment_date < ?", from, to).
		Group("risk_level").
		Scan(&rows).Error
	if err != nil {
		return nil, dbutil.WrapError(err)
	}

	stats := &AssessmentStats{ByLevel: make(map[models.RiskLevel]int64)}
	var scoreSum int64
	for _, r := range rows {
		stats.ByLevel[r.RiskLevel] = r.Count
		stats.Total += r.Count
		scoreSum += r.ScoreSum
		if r.RiskLevel.IsHigh() {
			stats.HighRiskCount += r.Count
		}
	}
	if stats.Total > 0 {
		stats.AverageScore = float64(scoreSum) / float64(stats.Total)
	}
	return stats, nil
}

func (s *Store) CountStaleAssessments(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := s.conn(ctx).
		Model(&models.RiskAssessment{}).
		Where("is_current = ? AND assessment_date < ?", true, before).
		Count(&n).Error
	return n, dbutil.WrapError(err)
}

func (s *Store) ActiveFactors(ctx context.Context, customerType models.CustomerType) ([]models.RiskFactor, error) {
	var factors []models.RiskFactor
	err := s.conn(ctx).
		Where("is_active = ? AND customer_type IN ?", true, []models.CustomerType{customerType, models.CustomerAll}).
		Order("weight ASC, name ASC").
		Find(&factors).Error
	return factors, dbutil.WrapError(err)
}

func (s *Store) ActiveMatrix(ctx context.Context, customerType models.CustomerType) (*models.RiskMatrix, error) {
	return dbutil.FindOne[models.RiskMatrix](
		s.conn(ctx).
			Preload("DefaultFactors", "is_active = ?", true).
			Where("customer_type = ? AND is_active = ?", customerType, true).
			Order("created_at DESC"),
		"risk matrix",
	)
}
