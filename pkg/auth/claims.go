package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT. Identity
// resolution lives in the marketplace's auth service; this package only mints
// tokens for tests/tooling and verifies tokens presented to the API.
type AccessTokenPayload struct {
	VendorID uuid.UUID
	JTI      string
}

// AccessTokenClaims represents the typed JWT presented by vendor clients.
type AccessTokenClaims struct {
	VendorID uuid.UUID `json:"vendor_id"`
	jwt.RegisteredClaims
}
