package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/activityserve/activityserve/internal/config"
	"github.com/activityserve/activityserve/internal/domain"
	"github.com/activityserve/activityserve/internal/present/rest/presenter"
	"github.com/activityserve/activityserve/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth    *service.AuthService
	session config.Session
}

func NewAuthMiddleware(auth *service.AuthService, session config.Session) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, session: session}
}

// credential pulls the session token from the cookie or, failing that, from
// a bearer Authorization header. Both transports feed the exact same
// verification path.
func (m *AuthMiddleware) credential(c echo.Context) string {
	if cookie, err := c.Cookie(m.session.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, found := strings.Cut(header, " ")
	if found && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// Identify resolves the session credential when one is present and stores
// the user in the request context. Anonymous requests pass through; routes
// that need a user enforce it with Required.
func (m *AuthMiddleware) Identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.Identify")
		defer span.End()

		if credential := m.credential(c); credential != "" {
			user, err := m.auth.Authenticate(ctx, credential)
			if err == nil {
				ctx = context.WithValue(ctx, domain.RequesterUserCtxKey, user)
				ctx = context.WithValue(ctx, domain.RequesterIdCtxKey, user.ID)
				span.SetAttributes(attribute.String("RequesterId", user.ID))
			} else {
				span.RecordError(err)
			}
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// Required rejects requests that did not authenticate with 401 and the
// bearer challenge.
func (m *AuthMiddleware) Required(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := UserFromContext(c.Request().Context()); !ok {
			return presenter.Error(c, domain.UnauthenticatedError{
				Reason:    "authentication required",
				Challenge: domain.BearerChallenge,
			})
		}
		return next(c)
	}
}

// UserFromContext returns the authenticated user set by Identify.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(domain.RequesterUserCtxKey).(domain.User)
	if !ok || user.ID == "" {
		return domain.User{}, false
	}
	return user, true
}
