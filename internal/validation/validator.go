// Package validation wraps the validator/v10 library for checking
// normalized ingest input before it reaches the store.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/karlokarate/FishIT-Player-sub011/internal/domain"
)

// Validator wraps go-playground/validator with domain-aware checks.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our domain.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		// Remove options like omitempty, -
		for i := range len(name) {
			if name[i] == ',' {
				return name[:i]
			}
		}
		return name
	})

	// sourcetype: a known, ingestable source pipeline
	_ = v.RegisterValidation("sourcetype", func(fl validator.FieldLevel) bool {
		return domain.SourceType(fl.Field().String()).Valid()
	})

	// itemkind: a known item kind
	_ = v.RegisterValidation("itemkind", func(fl validator.FieldLevel) bool {
		return domain.ItemKind(fl.Field().String()).Valid()
	})

	// keysegment: non-blank and free of the key separator
	_ = v.RegisterValidation("keysegment", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && !strings.Contains(s, ":")
	})

	return &Validator{v: v}
}

// FieldsError reports per-field validation failures.
type FieldsError struct {
	Fields map[string]string
}

func (e *FieldsError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+" "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validate validates a struct and returns a *FieldsError on failure.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// formatError converts validator errors to a FieldsError.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string)
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = friendlyMessage(e)
	}
	return &FieldsError{Fields: fieldErrors}
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "sourcetype":
		return "must be a known source type"
	case "itemkind":
		return "must be a known item kind"
	case "keysegment":
		return "must be non-blank without ':'"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	default:
		return "is invalid"
	}
}
