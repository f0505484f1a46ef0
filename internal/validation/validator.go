package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

var (
	phonePattern        = regexp.MustCompile(`^(\+\d{1,2}\s?)?(\()?\d{2,4}(\))?\s?(\d{4,5}(-|\s)?\d{4})$`)
	registrationPattern = regexp.MustCompile(`^[0-9.-]+$`)
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report json names so field errors line up with form inputs.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = validate.RegisterValidation("phone", validatePhone)
		_ = validate.RegisterValidation("registration", validateRegistration)
		_ = validate.RegisterValidation("notblank", validateNotBlank)
	})
	return validate
}

func validatePhone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

func validateRegistration(fl validator.FieldLevel) bool {
	return registrationPattern.MatchString(fl.Field().String())
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Struct validates s against its `validate` tags. Failures come back as a
// VALIDATION_FAILED DomainError whose details map json field names to messages.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return apperrors.NewInternalError(err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewInternalError(err)
	}

	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fe.Field()
		if _, seen := details[name]; seen {
			continue
		}
		details[name] = message(fe)
	}
	return apperrors.NewValidationError(summary(fieldErrs), details)
}

// Var validates a single value against tag, labelling failures with field.
func Var(field string, value any, tag string) error {
	err := instance().Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.NewInternalError(err)
	}
	msg := strings.Replace(message(fieldErrs[0]), "value", field, 1)
	return apperrors.NewValidationError(msg, map[string]any{field: msg})
}

func summary(errs validator.ValidationErrors) string {
	if len(errs) == 1 {
		return message(errs[0])
	}
	return fmt.Sprintf("%s (and %d more)", message(errs[0]), len(errs)-1)
}

func message(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		name = "value"
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "notblank":
		return fmt.Sprintf("%s must not be blank", name)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", name)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", name, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters long", name, fe.Param())
	case "eqfield":
		return "passwords do not match"
	case "phone":
		return "invalid telephone number"
	case "registration":
		return "invalid registration number"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must contain only digits", name)
	default:
		return fmt.Sprintf("%s failed on %s", name, fe.Tag())
	}
}
