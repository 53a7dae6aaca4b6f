// Package validation is the single parse-and-validate step used at every
// boundary: inbound webhook payloads and outbound API responses.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/WorkniceHR/slack/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct tag validation on value.
func Validate[T any](value T) (T, error) {
	if err := validate.Struct(value); err != nil {
		return value, apperrors.NewValidationError(describe(value, err), err)
	}
	return value, nil
}

// DecodeJSON unmarshals data into T and validates the result.
func DecodeJSON[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, apperrors.NewValidationError(fmt.Sprintf("malformed %T payload", v), err)
	}
	return Validate(v)
}

func describe(input any, err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s=%s'", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s'", fe.Namespace(), fe.Tag()))
	}
	return fmt.Sprintf("invalid %T: %s", input, strings.Join(msgs, "; "))
}
