package helpers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/svirmi/gift-ledger/internal/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report wire names instead of Go field names.
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

// ValidateStruct checks payload's validate tags. The first failing field is
// reported as model.ErrValidation.
func ValidateStruct(payload any) error {
	err := getValidator().Struct(payload)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}

	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		fe := fields[0]
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%w: '%s' is required", model.ErrValidation, fe.Namespace())
		case "oneof":
			return fmt.Errorf("%w: '%s' must be one of [%s]", model.ErrValidation, fe.Namespace(), fe.Param())
		default:
			return fmt.Errorf("%w: '%s' failed '%s' check", model.ErrValidation, fe.Namespace(), fe.Tag())
		}
	}
	return fmt.Errorf("%w: %w", model.ErrValidation, err)
}
