package rest

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/activityserve/activityserve/internal/config"
	"github.com/activityserve/activityserve/internal/domain"
	"github.com/activityserve/activityserve/internal/present/rest/middleware"
	"github.com/activityserve/activityserve/internal/present/rest/presenter"
	"github.com/activityserve/activityserve/internal/service"
	"github.com/activityserve/activityserve/internal/store"
	"github.com/activityserve/activityserve/internal/usecase"
)

type Handler struct {
	session    config.Session
	auth       *service.AuthService
	submission *usecase.SubmissionValidator
	store      store.ObjectStore
}

func NewHandler(
	session config.Session,
	auth *service.AuthService,
	submission *usecase.SubmissionValidator,
	objects store.ObjectStore,
) *Handler {
	return &Handler{
		session:    session,
		auth:       auth,
		submission: submission,
		store:      objects,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	e.Use(authMiddleware.Identify)

	e.GET("/healthz", h.handleHealth)
	e.GET("/admin", h.handleAdmin)
	e.POST("/auth/login", h.handleLogin)
	e.DELETE("/auth", h.handleLogout)
	e.GET("/me", h.handleMe, authMiddleware.Required)
	e.GET("/u/:key", h.handleGetUser)
	e.GET("/u/:key/inbox", h.handleGetInbox)
	e.GET("/u/:key/outbox", h.handleGetOutbox)
	e.POST("/u/:key/outbox", h.handlePostOutbox, authMiddleware.Required)
}

func (h *Handler) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

type loginRequest struct {
	Token string `json:"token"`
}

func (h *Handler) handleLogin(c echo.Context) error {
	ctx := c.Request().Context()

	var request loginRequest
	if err := c.Bind(&request); err != nil {
		return presenter.BadRequest(c, err)
	}

	user, credential, err := h.auth.Login(ctx, request.Token)
	if err != nil {
		return presenter.Error(c, err)
	}

	c.SetCookie(&http.Cookie{
		Name:     h.session.CookieName,
		Value:    credential,
		Path:     "/",
		Domain:   h.session.CookieDomain,
		MaxAge:   h.session.TTLSeconds,
		Secure:   h.session.CookieSecure,
		HttpOnly: h.session.CookieHTTPOnly,
		SameSite: h.session.SameSite(),
	})

	return presenter.OK(c, user)
}

func (h *Handler) handleLogout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     h.session.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.session.CookieDomain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   h.session.CookieSecure,
		HttpOnly: h.session.CookieHTTPOnly,
		SameSite: h.session.SameSite(),
	})
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleMe(c echo.Context) error {
	ctx := c.Request().Context()

	user, _ := middleware.UserFromContext(ctx)
	doc, err := h.store.Get(ctx, domain.UserKey(user.ID))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, doc)
}

func (h *Handler) handleGetUser(c echo.Context) error {
	return h.dereference(c, domain.UserKeyPrefix+c.Param("key"))
}

func (h *Handler) handleGetInbox(c echo.Context) error {
	return h.dereference(c, domain.UserKeyPrefix+c.Param("key")+domain.InboxSuffix)
}

func (h *Handler) handleGetOutbox(c echo.Context) error {
	return h.dereference(c, domain.UserKeyPrefix+c.Param("key")+domain.OutboxSuffix)
}

func (h *Handler) dereference(c echo.Context, key string) error {
	doc, err := h.store.Get(c.Request().Context(), key)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, doc)
}

func (h *Handler) handlePostOutbox(c echo.Context) error {
	ctx := c.Request().Context()

	user, _ := middleware.UserFromContext(ctx)

	var envelope domain.Envelope
	if err := c.Bind(&envelope); err != nil {
		return presenter.BadRequest(c, err)
	}

	targetActorID := domain.UserKeyPrefix + c.Param("key")
	accepted, err := h.submission.ValidateAndSubmit(ctx, user, targetActorID, envelope)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, accepted)
}

const adminShell = `<!DOCTYPE html>
<html>
<head>
	<title>Activity Serve Admin</title>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body>
	<h1>Activity Serve Admin</h1>
	<p>Placeholder for the admin interface.</p>
</body>
</html>`

func (h *Handler) handleAdmin(c echo.Context) error {
	return c.HTML(http.StatusOK, adminShell)
}
