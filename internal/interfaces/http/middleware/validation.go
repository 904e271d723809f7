package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// SetupValidator installs the settlement rules on gin's default validator
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterValidations(v)
	}
}

// RegisterValidations reports fields by their JSON name, validates
// decimal.Decimal through its string form and adds the decimal_gt0 tag
func RegisterValidations(v *validator.Validate) {
	v.RegisterTagNameFunc(fieldName)
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("decimal_gt0", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.IsPositive()
	})
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form", "uri"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		}
		return name
	}
	return ""
}

// ValidationDetails lists the rejected fields of a validator error and
// nothing for any other error
func ValidationDetails(err error) []dto.ValidationDetail {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	details := make([]dto.ValidationDetail, len(fieldErrs))
	for i, fe := range fieldErrs {
		details[i] = dto.ValidationDetail{Field: fe.Field(), Message: describe(fe)}
	}
	return details
}

// HandleValidationError aborts a request whose body failed to bind. Field
// errors become ERR_VALIDATION with details, an oversized body
// ERR_BODY_TOO_LARGE and anything else ERR_INVALID_JSON.
func HandleValidationError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	switch details := ValidationDetails(err); {
	case details != nil:
		c.AbortWithStatusJSON(http.StatusBadRequest,
			dto.Fail(dto.ErrCodeValidation, "Request validation failed", c.GetString(RequestIDKey), details...))
	case errors.As(err, &tooLarge):
		abortWithError(c, dto.ErrCodeBodyTooLarge, "Request body exceeds maximum allowed size")
	default:
		abortWithError(c, dto.ErrCodeInvalidJSON, "Request body is not valid JSON")
	}
}

var tagMessages = map[string]string{
	"required":    "This field is required",
	"decimal_gt0": "Must be a decimal greater than 0",
	"len":         "Must be exactly %s characters",
	"uuid":        "Invalid UUID format",
	"oneof":       "Must be one of: %s",
	"gte":         "Must be greater than or equal to %s",
	"gt":          "Must be greater than %s",
}

func describe(fe validator.FieldError) string {
	tag, param := fe.Tag(), fe.Param()
	if tag == "min" || tag == "max" {
		bound := map[string]string{"min": "at least", "max": "at most"}[tag]
		if fe.Kind() == reflect.String {
			return "Must be " + bound + " " + param + " characters"
		}
		return "Must be " + bound + " " + param
	}
	msg, ok := tagMessages[tag]
	if !ok {
		return "Invalid value"
	}
	return strings.Replace(msg, "%s", param, 1)
}
