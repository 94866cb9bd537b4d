package storage

import (
	"context"

	"github.com/Aidin1998/kycengine/common/dbutil"
	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/google/uuid"
)

func (s *Store) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return dbutil.FindOne[models.Customer](s.conn(ctx).Where("id = ?", id), "customer")
}

func (s *Store) UpdateCustomer(ctx context.Context, id uuid.UUID, upd CustomerUpdate) error {
	cols := upd.columns()
	if len(cols) == 0 {
		return nil
	}
	res := s.conn(ctx).Model(&models.Customer{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return dbutil.WrapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound.Explain("customer %s not found", id)
	}
	return nil
}

func (s *Store) FindCustomers(ctx context.Context, filter CustomerFilter) ([]models.Customer, error) {
	var customers []models.Customer
	err := filter.apply(s.conn(ctx).Model(&models.Customer{})).
		Order("created_at ASC").
		Find(&customers).Error
	return customers, dbutil.WrapError(err)
}

func (s *Store) CountCustomers(ctx context.Context, filter CustomerFilter) (int64, error) {
	var n int64
	filter.Limit = 0
	err := filter.apply(s.conn(ctx).Model(&models.Customer{})).Count(&n).Error
	return n, dbutil.WrapError(err)
}

func (s *Store) GetBeneficialOwner(ctx context.Context, id uuid.UUID) (*models.BeneficialOwner, error) {
	return dbutil.FindOne[models.BeneficialOwner](s.conn(ctx).Where("id = ?", id), "beneficial owner")
}

func (s *Store) ListBeneficialOwners(ctx context.Context, customerID uuid.UUID) ([]models.BeneficialOwner, error) {
	var owners []models.BeneficialOwner
	err := s.conn(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC, id ASC").
		Find(&owners).Error
	return owners, dbutil.WrapError(err)
}

func (s *Store) ListDocuments(ctx context.Context, customerID uuid.UUID, requiredOnly bool) ([]models.Document, error) {
	var docs []models.Document
	q := s.conn(ctx).
		Joins("DocumentType").
		Where("kyc_documents.customer_id = ?", customerID)
	if requiredOnly {
		q = q.Where(`"DocumentType"."is_required" = ?`, true)
	}
	err := q.Order("kyc_documents.created_at ASC").Find(&docs).Error
	return docs, dbutil.WrapError(err)
}
