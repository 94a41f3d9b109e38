package auth

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"

	"github.com/activityserve/activityserve/internal/domain"
)

// OIDCVerifier validates provider ID tokens against a discovered issuer.
// Signature verification, key rotation and audience checks are the
// library's concern; this type only extracts the claims the gateway needs.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuer string, clientID string) (*OIDCVerifier, error) {
	if issuer == "" || clientID == "" {
		return nil, errors.New("oidc verifier requires issuer and client id")
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrap(err, "oidc discovery failed")
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &OIDCVerifier{verifier: verifier}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, token string) (domain.VerifiedClaims, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return domain.VerifiedClaims{}, errors.Wrap(err, "id token verification failed")
	}

	var payload struct {
		Subject string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
		Domain  string `json:"hd"`
	}
	if err := idToken.Claims(&payload); err != nil {
		return domain.VerifiedClaims{}, errors.Wrap(err, "id token claims parse failed")
	}

	if payload.Subject == "" || payload.Email == "" || payload.Name == "" {
		return domain.VerifiedClaims{}, errors.New("id token missing required claims")
	}

	return domain.VerifiedClaims{
		Subject: payload.Subject,
		Issuer:  idToken.Issuer,
		Name:    payload.Name,
		Email:   payload.Email,
		Picture: payload.Picture,
		Domain:  payload.Domain,
	}, nil
}

var _ TokenVerifier = (*OIDCVerifier)(nil)
