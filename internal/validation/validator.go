// Package validation wraps a shared go-playground validator and converts its failures into
// InvalidInput errors with readable messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the process-wide validator. Field names in messages follow json tags.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates s and reports the first failing field as InvalidInput.
func Struct(op string, s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Wrap(apperr.InvalidInput, op, err)
	}
	return apperr.E(apperr.InvalidInput, op, translate(fieldErrs[0]))
}

// NewID returns a fresh document id.
func NewID() string {
	return uuid.NewString()
}

// ID checks that id is a well-formed document id.
func ID(op, name, id string) error {
	if err := Validator().Var(id, "required,uuid"); err != nil {
		return apperr.E(apperr.InvalidInput, op, fmt.Sprintf("invalid %s", name))
	}
	return nil
}

var messages = map[string]string{
	"required": "%s is required",
	"email":    "%s must be a valid email address",
	"uuid":     "%s must be a valid id",
	"alphanum": "%s may only contain letters and digits",
}

func translate(fe validator.FieldError) string {
	field := fe.Field()
	if tmpl, ok := messages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
