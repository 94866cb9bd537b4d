package storage

import (
	"context"

	"github.com/Aidin1998/kycengine/common/dbutil"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type txKey struct{}

// Store implements Repository on top of gorm.
type Store struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

var _ Repository = (*Store)(nil)

// NewStore wraps an open gorm connection.
func NewStore(db *gorm.DB, logger *zap.SugaredLogger) *Store {
	return &Store{db: db, logger: logger}
}

// DB exposes the underlying connection for wiring and tests.
func (s *Store) DB() *gorm.DB { return s.db }

// Migrate creates or updates every table used by the engine.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return dbutil.WrapError(err)
	}
	s.logger.Infow("Schema migrated", "tables", len(models.All()))
	return nil
}

// InTx runs fn inside a transaction carried by the context. A nested call
// joins the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	return dbutil.WrapError(err)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return dbutil.WrapError(err)
	}
	return dbutil.WrapError(sqlDB.PingContext(ctx))
}

// conn returns the transaction bound to ctx, or the base connection.
func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}
