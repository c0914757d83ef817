// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/registrations/internal/validation"
)

// CreateEntryRequest contains the parameters for creating a registration entry.
type CreateEntryRequest struct {
	MobileNumber  string `json:"mobile_number"`
	ServicePrefix string `json:"service_prefix"`
}

// Validate checks if the create entry request is valid.
func (r *CreateEntryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.MobileNumber,
			validation.Required,
			customValidation.MobileNumber{},
		),
		validation.Field(&r.ServicePrefix,
			validation.Required,
			customValidation.ServicePrefix{},
		),
	)
}
