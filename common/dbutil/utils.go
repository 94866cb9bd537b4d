package dbutil

import (
	"github.com/Aidin1998/kycengine/common/errors"
	"gorm.io/gorm"
)

// FindOne runs db and returns the first row, or NotFound when there is none.
func FindOne[T any](db *gorm.DB, what string) (*T, error) {
	var item T
	result := db.Limit(1).Find(&item)
	if result.Error != nil {
		return nil, WrapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, errors.NotFound.Explain("%s not found", what)
	}
	return &item, nil
}
