package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Register custom validations
	registerCustomValidations()
}

func registerCustomValidations() {
	// Loyalty activity events
	validate.RegisterValidation("loyalty_event", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case store.SourceNewListing, store.SourceHighQualityListing, store.SourceSuccessfulSale:
			return true
		}
		return false
	})

	// Gateway payment methods
	validate.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return store.PaymentMethod(fl.Field().String()).Valid()
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	errors := make(map[string]string)
	for _, err := range verrs {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "uuid":
			errors[field] = "Invalid UUID"
		case "loyalty_event":
			errors[field] = "Invalid event. Must be: new_listing, high_quality_listing, or successful_sale"
		case "payment_method":
			errors[field] = "Invalid payment method. Must be: credits_only, credits_partial, or mixed"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
