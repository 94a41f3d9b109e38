package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/activityserve/activityserve/internal/domain"
)

// identityKeyHexLen is 32 hex characters (128 bits), enough that practical
// collisions do not happen.
const identityKeyHexLen = 32

// DeriveIdentityKey maps verified claims onto the stable lookup key of the
// identity record: sha256 over the subject bytes followed by the issuer
// bytes, truncated. The concatenation order is part of the stored-data
// contract; reordering it would orphan every existing identity.
func DeriveIdentityKey(claims domain.VerifiedClaims) (string, error) {
	if strings.TrimSpace(claims.Subject) == "" {
		return "", domain.InvalidClaimsError{Reason: "empty subject"}
	}
	if strings.TrimSpace(claims.Issuer) == "" {
		return "", domain.InvalidClaimsError{Reason: "empty issuer"}
	}

	h := sha256.New()
	h.Write([]byte(claims.Subject))
	h.Write([]byte(claims.Issuer))
	sum := h.Sum(nil)

	return hex.EncodeToString(sum)[:identityKeyHexLen], nil
}
