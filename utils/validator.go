package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report json field names rather than Go field names.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateStruct runs `validate:"..."` tags and returns the first failure as a
// readable message.
func ValidateStruct(s interface{}) error {
	err := validatorInstance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%s is required", fe.Field())
		case "gt":
			return fmt.Errorf("%s must be greater than %s", fe.Field(), fe.Param())
		case "gte", "min":
			return fmt.Errorf("%s must be at least %s", fe.Field(), fe.Param())
		case "max", "lte":
			return fmt.Errorf("%s must be at most %s", fe.Field(), fe.Param())
		default:
			return fmt.Errorf("%s failed %s validation", fe.Field(), fe.Tag())
		}
	}
	return err
}
