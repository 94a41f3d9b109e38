// Package auth covers the credential side of the gateway: bearer parsing,
// provider token verification, identity key derivation and the local
// session credential.
package auth

import (
	"context"
	"strings"

	"github.com/activityserve/activityserve/internal/domain"
)

// TokenVerifier turns an opaque provider token into verified claims or a
// domain.UnauthenticatedError. Implementations must be safe for concurrent
// use.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.VerifiedClaims, error)
}

// ParseBearer extracts the token from an Authorization header value. Any
// scheme other than Bearer, a missing header or an empty token fails with
// Unauthenticated carrying the Bearer challenge.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", domain.UnauthenticatedError{
			Reason:    "missing authorization header",
			Challenge: domain.BearerChallenge,
		}
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", domain.UnauthenticatedError{
			Reason:    "authorization header is not a bearer token",
			Challenge: domain.BearerChallenge,
		}
	}
	return strings.TrimSpace(token), nil
}

// StockTokens is the development/test bypass: a fixed table of exact-match
// tokens mapped to claims. The table is populated from configuration only;
// there is deliberately no way to add entries at runtime.
type StockTokens struct {
	claims map[string]domain.VerifiedClaims
}

func NewStockTokens(table map[string]domain.VerifiedClaims) *StockTokens {
	claims := make(map[string]domain.VerifiedClaims, len(table))
	for token, c := range table {
		claims[token] = c
	}
	return &StockTokens{claims: claims}
}

// Lookup returns the claims for a registered token.
func (s *StockTokens) Lookup(token string) (domain.VerifiedClaims, bool) {
	c, ok := s.claims[token]
	return c, ok
}

// VerifierChain consults the stock table first (when present), then the
// provider verifier. Provider failures of any kind collapse into
// Unauthenticated with the cause attached as diagnostic detail; the status
// never distinguishes why verification failed.
type VerifierChain struct {
	stock    *StockTokens
	provider TokenVerifier
}

func NewVerifierChain(stock *StockTokens, provider TokenVerifier) *VerifierChain {
	return &VerifierChain{stock: stock, provider: provider}
}

func (v *VerifierChain) Verify(ctx context.Context, token string) (domain.VerifiedClaims, error) {
	if token == "" {
		return domain.VerifiedClaims{}, domain.UnauthenticatedError{
			Reason:    "empty token",
			Challenge: domain.BearerChallenge,
		}
	}

	if v.stock != nil {
		if claims, ok := v.stock.Lookup(token); ok {
			return claims, nil
		}
	}

	if v.provider == nil {
		return domain.VerifiedClaims{}, domain.UnauthenticatedError{
			Reason:    "no token verifier configured",
			Challenge: domain.BearerChallenge,
		}
	}

	claims, err := v.provider.Verify(ctx, token)
	if err != nil {
		return domain.VerifiedClaims{}, domain.UnauthenticatedError{
			Reason:    err.Error(),
			Challenge: domain.BearerChallenge,
		}
	}
	return claims, nil
}

var _ TokenVerifier = (*VerifierChain)(nil)
