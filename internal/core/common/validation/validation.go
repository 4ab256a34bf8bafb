package validation

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	errors "github.com/thaohienhomes/phochat-payments/internal"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates dto against its `validate` tags.
func Struct(dto interface{}) *errors.AppError {
	err := validate.Struct(dto)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stdErrors.As(err, &fieldErrs) {
		return errors.NewValidationError(err.Error(), errors.ErrCodeValidationFailed)
	}

	details := errors.ValidationErrors{}
	for _, fe := range fieldErrs {
		details.Errors = append(details.Errors, errors.ValidationError{
			Field:   fe.Field(),
			Message: message(fe),
			Code:    string(codeFor(fe)),
		})
	}
	return &errors.AppError{
		Type:       errors.ErrorTypeValidation,
		Code:       errors.ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// DecodeJSON reads a JSON body into dst and validates it.
func DecodeJSON(r *http.Request, dst interface{}) *errors.AppError {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return errors.NewValidationError("invalid request body", errors.ErrCodeInvalidBody).WithCause(err)
	}
	return Struct(dst)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func codeFor(fe validator.FieldError) errors.ErrorCode {
	if fe.Field() == "amount" {
		return errors.ErrCodeInvalidAmount
	}
	return errors.ErrCodeValidationFailed
}
