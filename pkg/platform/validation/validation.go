// Package validation wraps go-playground/validator with the engine's custom
// tags and translates failures into CodeValidation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared, lazily built validator.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("intent", isIntent)
		_ = v.RegisterValidation("reporter", isReporter)

		// Use JSON tag names in error messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		instance = v
	})
	return instance
}

// FieldError is one failed constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Struct validates v. Failures are returned as a CodeValidation error whose
// message lists every offending field.
func Struct(v any) error {
	fields := Fields(v)
	if len(fields) == 0 {
		return nil
	}
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return dErrors.New(dErrors.CodeValidation, strings.Join(msgs, "; "))
}

// Fields validates v and returns the per-field failures.
func Fields(v any) []FieldError {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: namespace(fe), Message: message(fe)})
	}
	return out
}

func namespace(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gtefield":
		return fmt.Sprintf("must not be before %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "intent":
		return "is not a supported intent"
	case "reporter":
		return "must be enforcer or consumer"
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}

func isIntent(fl validator.FieldLevel) bool {
	return domain.Intent(fl.Field().String()).IsValid()
}

func isReporter(fl validator.FieldLevel) bool {
	_, err := domain.ParseReporter(fl.Field().String())
	return err == nil
}
