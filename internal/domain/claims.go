package domain

import "strings"

// VerifiedClaims carries the attributes asserted by a verified provider
// token. Subject and Issuer are mandatory; everything else is optional
// display metadata.
type VerifiedClaims struct {
	Subject string `json:"sub"`
	Issuer  string `json:"iss"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
	Domain  string `json:"hd,omitempty"`
}

// Valid reports whether the claims carry a usable subject and issuer.
func (c VerifiedClaims) Valid() bool {
	return strings.TrimSpace(c.Subject) != "" && strings.TrimSpace(c.Issuer) != ""
}
