// Package validation wraps go-playground/validator for request and filter
// checks. Failures are reported as AppErrors so the API can map them to 400s.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/glefebvre/cinefinder/internal/errors"
	"github.com/glefebvre/cinefinder/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one failed rule
type FieldError struct {
	Field   string      `json:"field"`
	Tag     string      `json:"tag"`
	Param   string      `json:"param,omitempty"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
}

// GetValidator returns the shared validator with the custom rules registered.
// Field names in messages use the json tag.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		// registration only fails for an empty tag or nil func
		_ = validate.RegisterValidation("sortkey", func(fl validator.FieldLevel) bool {
			return models.SortKey(fl.Field().String()).Valid()
		})
		_ = validate.RegisterValidation("lens", func(fl validator.FieldLevel) bool {
			_, err := models.ParseLens(fl.Field().String())
			return err == nil
		})
	})

	return validate
}

// ValidateStruct validates s and returns a VALIDATION_ERROR listing the
// failed fields, or nil
func ValidateStruct(s interface{}) error {
	fields, err := check(s)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "validation could not run")
	}
	if len(fields) == 0 {
		return nil
	}
	return apperrors.ValidationError(joinMessages(fields)).WithContext("fields", fields)
}

// ValidateFilters checks search filters. Any violation, including an inverted
// year range, fails with INVALID_FILTER_RANGE.
func ValidateFilters(f models.SearchFilters) error {
	fields, err := check(f)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "validation could not run")
	}

	if f.YearStart != 0 && f.YearEnd != 0 && f.YearStart > f.YearEnd {
		fields = append(fields, FieldError{
			Field:   "year_start",
			Tag:     "ltefield",
			Param:   "year_end",
			Value:   f.YearStart,
			Message: fmt.Sprintf("year_start (%d) must not be after year_end (%d)", f.YearStart, f.YearEnd),
		})
	}

	if len(fields) == 0 {
		return nil
	}
	return apperrors.InvalidFilterRange(joinMessages(fields)).WithContext("fields", fields)
}

func check(s interface{}) ([]FieldError, error) {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil, nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil, err
	}

	fields := make([]FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: translateError(fe),
		}
	}
	return fields, nil
}

func joinMessages(fields []FieldError) string {
	messages := make([]string, len(fields))
	for i, f := range fields {
		messages[i] = f.Message
	}
	return strings.Join(messages, "; ")
}

var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"alpha":    "%s must contain letters only",
	"sortkey":  "%s must be a known sort key",
	"lens":     "%s must be one of: smart, quality, trending",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
	"len":   "%s must have length %s",
	"max":   "%s must have at most %s entries",
	"min":   "%s must have at least %s entries",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}
