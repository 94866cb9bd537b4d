package apiutil

import (
	"reflect"
	"strings"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/go-playground/validator/v10"
)

func NewValidator() *Validator {
	validator := validator.New()
	validator.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validator}
}

type Validator struct {
	validator *validator.Validate
}

// Validate checks struct tags and reports every failing field
func (v *Validator) Validate(i any) error {
	if err := v.validator.Struct(i); err != nil {
		validationErr := errors.Invalid.Explain("validation error")
		var fieldsError validator.ValidationErrors
		if errors.As(err, &fieldsError) {
			for _, fieldErr := range fieldsError {
				validationErr = validationErr.WithField(fieldErr.Tag(), fieldErr.Field(), fieldErr.Error())
			}
		}
		return validationErr
	}
	return nil
}
