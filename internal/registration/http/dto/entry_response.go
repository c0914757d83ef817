package dto

import (
	"time"

	"github.com/allisson/registrations/internal/registration/domain"
)

// EntryResponse represents a registration entry in API responses. The mobile
// number is always the stored ciphertext, never the plaintext identifier.
type EntryResponse struct {
	ID            string    `json:"id"`
	MobileNumber  string    `json:"mobile_number"`
	ServicePrefix string    `json:"service_prefix"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiryAt      time.Time `json:"expiry_at"`
	IsVerified    bool      `json:"is_verified"`
}

// MapEntryToResponse converts a domain entry to its API representation.
func MapEntryToResponse(entry *domain.Entry) EntryResponse {
	return EntryResponse{
		ID:            entry.ID,
		MobileNumber:  entry.EncryptedPayload,
		ServicePrefix: entry.ServicePrefix,
		CreatedAt:     entry.CreatedAt,
		ExpiryAt:      entry.ExpiryAt,
		IsVerified:    entry.VerificationStatus == domain.StatusVerified,
	}
}
