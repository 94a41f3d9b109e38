package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"

	"github.com/activityserve/activityserve/internal/auth"
	"github.com/activityserve/activityserve/internal/domain"
	"github.com/activityserve/activityserve/internal/store"
	"github.com/activityserve/activityserve/internal/usecase"
)

var tracer = otel.Tracer("service")

// AuthService composes the provider verifier, the identity resolver and the
// session issuer into the two operations the HTTP layer consumes: Login for
// first contact with a provider token, Authenticate for every request after
// that.
type AuthService struct {
	verifier auth.TokenVerifier
	resolver *usecase.IdentityResolver
	sessions *auth.SessionIssuer
	store    store.ObjectStore
}

func NewAuthService(
	verifier auth.TokenVerifier,
	resolver *usecase.IdentityResolver,
	sessions *auth.SessionIssuer,
	objects store.ObjectStore,
) *AuthService {
	return &AuthService{
		verifier: verifier,
		resolver: resolver,
		sessions: sessions,
		store:    objects,
	}
}

// Login verifies a provider token, resolves or creates the local user and
// issues a session credential for it.
func (s *AuthService) Login(ctx context.Context, providerToken string) (domain.User, string, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.Login")
	defer span.End()

	claims, err := s.verifier.Verify(ctx, providerToken)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, "", err
	}

	user, err := s.resolver.ResolveOrCreate(ctx, claims)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, "", err
	}

	credential, err := s.sessions.Issue(user.ID)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, "", err
	}

	return user, credential, nil
}

// Authenticate resolves a session credential to the user it is bound to.
// The same verification path applies whether the credential arrived in a
// cookie or a bearer header. An invalid or expired credential yields
// Unauthenticated; callers on optional-auth routes treat that as anonymous.
func (s *AuthService) Authenticate(ctx context.Context, credential string) (domain.User, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.Authenticate")
	defer span.End()

	userID, ok := s.sessions.Check(credential)
	if !ok {
		err := domain.UnauthenticatedError{
			Reason:    "invalid or expired session",
			Challenge: domain.BearerChallenge,
		}
		span.RecordError(err)
		return domain.User{}, err
	}

	doc, err := s.store.Get(ctx, domain.UserKey(userID))
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.UnauthenticatedError{
				Reason:    "session user no longer exists",
				Challenge: domain.BearerChallenge,
			}
		}
		return domain.User{}, err
	}

	var user domain.User
	if err := doc.Decode(&user); err != nil || user.ID == "" {
		return domain.User{}, domain.UnauthenticatedError{
			Reason:    "session user document unreadable",
			Challenge: domain.BearerChallenge,
		}
	}
	return user, nil
}
