// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/registrations/internal/errors"
)

var (
	// mobileNumberRegex matches E.164 formatted numbers: a leading plus,
	// a non-zero country code digit, and 7 to 14 further digits.
	mobileNumberRegex = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

	// servicePrefixRegex matches short uppercase flow tags such as "UR".
	servicePrefixRegex = regexp.MustCompile(`^[A-Z]{1,10}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// MobileNumber validates that a value is an E.164 formatted phone number.
type MobileNumber struct{}

// Validate checks if the value is a well-formed E.164 phone number.
func (m MobileNumber) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_mobile_number", "mobile number must be a string")
	}

	if !mobileNumberRegex.MatchString(s) {
		return validation.NewError(
			"validation_mobile_number",
			"mobile number must be in E.164 format (e.g., +911234567890)",
		)
	}

	return nil
}

// ServicePrefix validates that a value is a short uppercase flow tag.
type ServicePrefix struct{}

// Validate checks if the value is a valid service prefix.
func (p ServicePrefix) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_service_prefix", "service prefix must be a string")
	}

	if !servicePrefixRegex.MatchString(s) {
		return validation.NewError(
			"validation_service_prefix",
			"service prefix must be 1 to 10 uppercase letters",
		)
	}

	return nil
}
