// Package request decodes and validates JSON request bodies.
package request

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"kitchen-backend/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report JSON names, not Go field names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = validate.RegisterValidation("dec_gte0", decimalCheck(func(d decimal.Decimal) bool { return !d.IsNegative() }))
	_ = validate.RegisterValidation("dec_gt0", decimalCheck(func(d decimal.Decimal) bool { return d.IsPositive() }))
	_ = validate.RegisterValidation("dec_nonzero", decimalCheck(func(d decimal.Decimal) bool { return !d.IsZero() }))
}

func decimalCheck(ok func(decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		d, isDec := fl.Field().Interface().(decimal.Decimal)
		if !isDec {
			return false
		}
		return ok(d)
	}
}

// Bind parses the JSON body into dst and runs its validate tags.
func Bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	return Struct(dst)
}

// Struct validates s, converting failures into a validation error naming
// the first offending field.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("invalid request body")
	}
	return apperr.Validation("%s", describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "dec_gte0":
		return fmt.Sprintf("%s must be >= 0", field)
	case "dec_gt0":
		return fmt.Sprintf("%s must be positive", field)
	case "dec_nonzero":
		return fmt.Sprintf("%s must not be zero", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
