package storage

import (
	"context"
	"time"

	"github.com/Aidin1998/kycengine/common/dbutil"
	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/google/uuid"
)

func (s *Store) ActiveAutoCheckRules(ctx context.Context) ([]models.ComplianceRule, error) {
	var rules []models.ComplianceRule
	err := s.conn(ctx).
		Where("is_active = ? AND auto_check = ?", true, true).
		Order("name ASC").
		Find(&rules).Error
	return rules, dbutil.WrapError(err)
}

func (s *Store) CreateComplianceCheck(ctx context.Context, check *models.ComplianceCheck) error {
	return dbutil.WrapError(s.conn(ctx).Omit("Rule").Create(check).Error)
}

func (s *Store) UpdateComplianceCheck(ctx context.Context, check *models.ComplianceCheck) error {
	err := s.conn(ctx).
		Model(check).
		Select("check_status", "result_details", "risk_score", "completed_date").
		Updates(check).Error
	return dbutil.WrapError(err)
}

func (s *Store) HasPassedCheckSince(ctx context.Context, customerID uuid.UUID, since time.Time) (bool, error) {
	var n int64
	err := s.conn(ctx).
		Model(&models.ComplianceCheck{}).
		Where("customer_id = ? AND check_status = ? AND check_date >= ?", customerID, models.CompliancePassed, since).
		Count(&n).Error
	return n > 0, dbutil.WrapError(err)
}

func (s *Store) CheckStats(ctx context.Context, from, to time.Time) (*CheckStats, error) {
	var rows []struct {
		CheckStatus models.ComplianceStatus
		Count       int64
	}
	err := s.conn(ctx).
		Model(&models.ComplianceCheck{}).
		Select("check_status, COUNT(*) AS count").
		Where("check_date >= ? AND check_date < ?", from, to).
		Group("check_status").
		Scan(&rows).Error
	if err != nil {
		return nil, dbutil.WrapError(err)
	}

	stats := &CheckStats{}
	for _, r := range rows {
		stats.Total += r.Count
		switch r.CheckStatus {
		case models.CompliancePassed:
			stats.Passed = r.Count
		case models.ComplianceFailed:
			stats.Failed = r.Count
		case models.ComplianceRequiresReview:
			stats.RequiresReview = r.Count
		}
	}
	return stats, nil
}

func (s *Store) CreateAlert(ctx context.Context, alert *models.ComplianceAlert) error {
	return dbutil.WrapError(s.conn(ctx).Create(alert).Error)
}

func (s *Store) ResolveAlert(ctx context.Context, id uuid.UUID, status models.AlertStatus, notes string, at time.Time) error {
	cols := map[string]any{
		"status":           status,
		"resolution_notes": notes,
		"updated_at":       at,
	}
	if status == models.AlertResolved || status == models.AlertDismissed {
		cols["resolved_at"] = at
	}
	res := s.conn(ctx).Model(&models.ComplianceAlert{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return dbutil.WrapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound.Explain("alert %s not found", id)
	}
	return nil
}

func (s *Store) FindAlerts(ctx context.Context, filter AlertFilter) ([]models.ComplianceAlert, error) {
	var alerts []models.ComplianceAlert
	q := filter.order(filter.apply(s.conn(ctx).Model(&models.ComplianceAlert{})))
	return alerts, dbutil.WrapError(q.Find(&alerts).Error)
}

func (s *Store) CountAlerts(ctx context.Context, filter AlertFilter) (int64, error) {
	var n int64
	err := filter.apply(s.conn(ctx).Model(&models.ComplianceAlert{})).Count(&n).Error
	return n, dbutil.WrapError(err)
}

func (s *Store) DeleteAlerts(ctx context.Context, filter AlertFilter) (int64, error) {
	res := filter.apply(s.conn(ctx)).Delete(&models.ComplianceAlert{})
	return res.RowsAffected, dbutil.WrapError(res.Error)
}
