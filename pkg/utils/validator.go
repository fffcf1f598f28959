package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// kenyanPhone accepts 07XXXXXXXX, 01XXXXXXXX, 2547XXXXXXXX and +2547XXXXXXXX.
var kenyanPhone = regexp.MustCompile(`^(\+254|254|0)[17]\d{8}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("ke_phone", func(fl validator.FieldLevel) bool {
		return IsKenyanPhone(fl.Field().String())
	})
	return v
}

// IsKenyanPhone reports whether phone is a Safaricom-style mobile number.
func IsKenyanPhone(phone string) bool {
	return kenyanPhone.MatchString(strings.TrimSpace(phone))
}

// NormalizeKenyanPhone rewrites a valid number into the 2547XXXXXXXX form.
func NormalizeKenyanPhone(phone string) (string, bool) {
	phone = strings.TrimSpace(phone)
	if !kenyanPhone.MatchString(phone) {
		return "", false
	}
	switch {
	case strings.HasPrefix(phone, "+254"):
		return phone[1:], true
	case strings.HasPrefix(phone, "0"):
		return "254" + phone[1:], true
	default:
		return phone, true
	}
}

func ValidateStruct(data interface{}) map[string]string {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, err := range validationErrors {
			errors[err.Field()] = getErrorMessage(err)
		}
	}

	return errors
}

// converts validator errors to human-readable messages
func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "required_if":
		return "This field is required for the selected payment method"
	case "email":
		return "Invalid email format"
	case "url":
		return "Must be a valid URL"
	case "min", "gte":
		return fmt.Sprintf("Minimum value is %s", err.Param())
	case "max", "lte":
		return fmt.Sprintf("Maximum value is %s", err.Param())
	case "len":
		return fmt.Sprintf("Must be exactly %s characters", err.Param())
	case "oneof":
		options := strings.ReplaceAll(err.Param(), " ", ", ")
		return fmt.Sprintf("Must be one of: %s", options)
	case "uuid":
		return "Must be a valid UUID"
	case "ke_phone":
		return "Must be a valid phone number, e.g. 254712345678"
	default:
		return fmt.Sprintf("Invalid %s field", err.Field())
	}
}

// formats validation errors map into single string
func FormatValidationErrors(errors map[string]string) string {
	var msgs []string
	for field, msg := range errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, msg))
	}
	return strings.Join(msgs, "; ")
}
