package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/Gstxxx/picpay-simplificado/internal/domain/account"
	"github.com/Gstxxx/picpay-simplificado/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator configures the gin binding validator: JSON field names in
// errors plus the password and document tags used by the auth requests.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	return RegisterValidations(v)
}

// RegisterValidations installs the custom tags on v
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return account.ValidatePassword(fl.Field().String()) == nil
	}); err != nil {
		return err
	}
	return v.RegisterValidation("document", func(fl validator.FieldLevel) bool {
		doc := fl.Field().String()
		if len(doc) != 11 && len(doc) != 14 {
			return false
		}
		for _, r := range doc {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	})
}

// ValidationDetails converts binding errors to per-field messages. It returns
// nil when err is not a validation failure, e.g. malformed JSON.
func ValidationDetails(err error) []dto.ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	details := make([]dto.ValidationError, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationError{
			Field:   e.Field(),
			Message: validationMessage(e),
		})
	}
	return details
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "eqfield":
		return "Must match " + strings.ToLower(e.Param())
	case "password":
		return "Must have at least 8 characters with an uppercase letter, a lowercase letter and a number"
	case "document":
		return "Must be a CPF (11 digits) or CNPJ (14 digits)"
	default:
		return "Invalid value"
	}
}
