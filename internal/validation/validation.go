package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/abkawan/peachtree-bank/internal/apperrors"
	"github.com/abkawan/peachtree-bank/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxAmount is the largest amount a NUMERIC(12,2) column can hold.
var MaxAmount = decimal.RequireFromString("9999999999.99")

const (
	MsgAmountPositive = "Amount must be greater than zero"
	MsgAmountPlaces   = "Amount must have at most 2 decimal places"
	MsgSameAccount    = "Source and destination accounts must be different"
	MsgSearchRequired = "Search query is required"
	MsgNoJSON         = "No JSON data provided"
	MsgRequestInvalid = "Request validation failed"
	MsgInsufficient   = "Insufficient funds"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// report fields by their JSON name
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// decimals are validated through their canonical string form
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("money2dp", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && CheckAmount(d) == ""
	})
	_ = v.RegisterValidation("txstate", func(fl validator.FieldLevel) bool {
		_, err := models.ParseTransactionState(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("txtype", func(fl validator.FieldLevel) bool {
		_, err := models.ParseTransactionType(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("sortorder", func(fl validator.FieldLevel) bool {
		s := strings.ToLower(fl.Field().String())
		return s == string(models.Ascending) || s == string(models.Descending)
	})

	return v
}

// CheckAmount returns the reason an amount is unacceptable, or "" when it is valid.
func CheckAmount(d decimal.Decimal) string {
	switch {
	case !d.IsPositive():
		return MsgAmountPositive
	case !d.Equal(d.Round(2)):
		return MsgAmountPlaces
	case d.GreaterThan(MaxAmount):
		return "Amount must not exceed " + MaxAmount.StringFixed(2)
	default:
		return ""
	}
}

// Validate checks obj against its struct tags. Failures come back as a ValidationError
// whose details are keyed by JSON field name.
func Validate(obj any) error {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate %T: %w", obj, err)
	}

	details := make(map[string][]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = append(details[fe.Field()], getErrorMsg(fe))
	}

	// a lone amount failure is reported by its own reason
	message := MsgRequestInvalid
	if len(fieldErrs) == 1 && fieldErrs[0].Tag() == "money2dp" {
		message = details[fieldErrs[0].Field()][0]
	}
	return apperrors.Validation(message, details)
}

func getErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "gt":
		return "Value must be greater than " + fe.Param()
	case "min":
		return fmt.Sprintf("Length must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("Length must be at most %s", fe.Param())
	case "money2dp":
		d, err := decimal.NewFromString(fmt.Sprint(fe.Value()))
		if err != nil {
			return "Not a valid amount"
		}
		return CheckAmount(d)
	case "txstate":
		return "State must be one of: " + models.StateValues()
	case "txtype":
		return "Description must be one of: " + models.TypeValues()
	case "sortorder":
		return "Sort order must be one of: asc, desc"
	default:
		return "Invalid value"
	}
}
