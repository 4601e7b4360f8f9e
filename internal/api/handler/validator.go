package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordLength = 72
)

// ValidationError is returned by echoValidator when a request body fails its
// struct tags. The HTTP error handler renders it as 422 VALIDATION_FAILED.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Fields, "; ")
}

// echoValidator wraps go-playground/validator so Echo can call c.Validate(req).
type echoValidator struct {
	v *validator.Validate
}

// NewValidator returns an echoValidator ready to be assigned to echo.Echo.Validator.
func NewValidator() *echoValidator {
	v := validator.New()
	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("password", strongPassword)
	return &echoValidator{v: v}
}

// Validate satisfies the echo.Validator interface.
func (ev *echoValidator) Validate(i any) error {
	if err := ev.v.Struct(i); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				msgs = append(msgs, fieldError(fe))
			}
			return &ValidationError{Fields: msgs}
		}
		return err
	}
	return nil
}

// strongPassword requires 8-72 bytes with at least one upper-case letter,
// one lower-case letter and one digit.
func strongPassword(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) < minPasswordLength || len(s) > maxPasswordLength {
		return false
	}
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// fieldError converts a single ValidationError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "hexadecimal":
		return field + " must be hexadecimal"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "password":
		return fmt.Sprintf("%s must be %d-%d characters and contain an uppercase letter, a lowercase letter and a digit",
			field, minPasswordLength, maxPasswordLength)
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
