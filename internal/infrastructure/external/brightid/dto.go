package brightid

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// IntrospectRequestDTO is the body sent to the token introspection endpoint.
type IntrospectRequestDTO struct {
	Token string `json:"token"`
}

// IntrospectResponseDTO is the provider's answer for a token.
type IntrospectResponseDTO struct {
	// Active reports whether the token is currently valid.
	Active bool `json:"active"`

	// Subject is the student identifier the token belongs to.
	Subject string `json:"sub"`

	// Role is the subject's role in the platform.
	Role string `json:"role"`

	// DisplayName is the subject's human-readable name.
	DisplayName string `json:"display_name,omitempty"`

	// ExpiresAt is the token expiry as a Unix timestamp.
	ExpiresAt int64 `json:"exp,omitempty"`
}

// Expiry returns the token expiry time, zero when the provider sent none.
func (d IntrospectResponseDTO) Expiry() time.Time {
	if d.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(d.ExpiresAt, 0).UTC()
}

// APIErrorDTO is the provider's error body.
type APIErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("brightid api error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("brightid api error (status %d): %s", e.Status, e.Message)
}
