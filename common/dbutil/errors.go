package dbutil

import (
	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const DuplicateKeyErrorCode = "23505"

// WrapError maps a gorm error onto the error taxonomy. Anything that is not
// a known business condition is reported as Unavailable.
func WrapError(err error) error {
	var (
		pgErr *pgconn.PgError
		kErr  *errors.Error
	)

	switch {
	case err == nil:
		return nil
	case errors.As(err, &kErr):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.NotFound.Wrap(err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Conflict.Explain("duplication of key").Wrap(err)
	case errors.As(err, &pgErr) && pgErr.Code == DuplicateKeyErrorCode:
		return errors.Conflict.Explain("duplication of key").Wrap(err)
	}

	return errors.Unavailable.Explain("database error").Wrap(err)
}
