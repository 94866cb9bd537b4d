package models

import (
	"reflect"
	"strings"
	"sync"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the struct tags of a customer and reports every failing
// field as an Invalid error.
func (c *Customer) Validate() error {
	err := validatorInstance().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Invalid.Explain("invalid customer").Wrap(err)
	}
	out := errors.Invalid.Explain("customer %s is invalid", c.ID)
	for _, fe := range verrs {
		out = out.WithField(fe.Tag(), fe.Field(), fe.Error())
	}
	return out
}
