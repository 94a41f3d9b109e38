package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/activityserve/activityserve/internal/auth"
	"github.com/activityserve/activityserve/internal/bus"
	"github.com/activityserve/activityserve/internal/config"
	"github.com/activityserve/activityserve/internal/domain"
	"github.com/activityserve/activityserve/internal/present/rest/middleware"
	"github.com/activityserve/activityserve/internal/service"
	"github.com/activityserve/activityserve/internal/store"
	"github.com/activityserve/activityserve/internal/usecase"
)

const stockToken = "stock-token-alice"

type fixture struct {
	echo    *echo.Echo
	store   *store.MemoryStore
	bus     *bus.MemoryBus
	session config.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	objects := store.NewMemoryStore()
	delivery := bus.NewMemoryBus()

	session := config.Session{
		Secret:         "test-secret",
		TTLSeconds:     3600,
		CookieName:     "activity_serve_auth",
		CookieHTTPOnly: true,
	}

	issuer, err := auth.NewSessionIssuer([]byte(session.Secret), session.TTL())
	if err != nil {
		t.Fatalf("session issuer: %v", err)
	}

	stock := auth.NewStockTokens(map[string]domain.VerifiedClaims{
		stockToken: {
			Subject: "stock-sub-alice",
			Issuer:  "https://stock.test",
			Name:    "Alice Example",
			Email:   "alice@example.com",
		},
	})

	authService := service.NewAuthService(
		auth.NewVerifierChain(stock, nil),
		usecase.NewIdentityResolver(objects),
		issuer,
		objects,
	)
	submission := usecase.NewSubmissionValidator(objects, delivery)

	e := echo.New()
	handler := NewHandler(session, authService, submission, objects)
	handler.RegisterRoutes(e, middleware.NewAuthMiddleware(authService, session))

	return &fixture{echo: e, store: objects, bus: delivery, session: session}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

// login posts the stock token and returns the user payload and the session
// cookie.
func (f *fixture) login(t *testing.T) (domain.User, *http.Cookie) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"token":"`+stockToken+`"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}

	var user domain.User
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("login response unreadable: %v", err)
	}

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == f.session.CookieName && cookie.Value != "" {
			return user, cookie
		}
	}
	t.Fatalf("login did not set the session cookie")
	return domain.User{}, nil
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestLoginTwiceSameUser(t *testing.T) {
	f := newFixture(t)

	first, _ := f.login(t)
	second, _ := f.login(t)

	if first.ID == "" || first.ID != second.ID {
		t.Fatalf("repeated login must return the same user, got %q and %q", first.ID, second.ID)
	}

	identities, err := f.store.QueryByFields(context.Background(), map[string]any{"user": first.ID}, 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(identities) != 1 {
		t.Fatalf("expected one identity record, got %d", len(identities))
	}
}

func TestLoginBadToken(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"token":"nope"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := f.do(req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get(echo.HeaderWWWAuthenticate) != domain.BearerChallenge {
		t.Fatalf("expected bearer challenge header")
	}
}

func TestRequiredRouteRejectsAnonymous(t *testing.T) {
	f := newFixture(t)

	// no credential at all
	rec := f.do(httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credential, got %d", rec.Code)
	}

	// an empty bearer token is the same as none
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer ")
	rec = f.do(req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with empty bearer token, got %d", rec.Code)
	}

	// garbage credentials do not leak a different status
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-jwt")
	rec = f.do(req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage credential, got %d", rec.Code)
	}
}

func TestOptionalRouteServesAnonymous(t *testing.T) {
	f := newFixture(t)
	user, _ := f.login(t)

	// same missing-credential request, but the route only identifies
	rec := f.do(httptest.NewRequest(http.MethodGet, user.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected anonymous read to succeed, got %d %s", rec.Code, rec.Body.String())
	}

	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("response unreadable: %v", err)
	}
	if doc["id"] != user.ID {
		t.Fatalf("expected user document, got %v", doc)
	}
}

func TestMeWithCookie(t *testing.T) {
	f := newFixture(t)
	user, cookie := f.login(t)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("response unreadable: %v", err)
	}
	if doc["id"] != user.ID {
		t.Fatalf("expected own user document, got %v", doc)
	}
}

func TestMeWithBearerCredential(t *testing.T) {
	f := newFixture(t)
	user, cookie := f.login(t)

	// the cookie value doubles as a bearer credential
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+cookie.Value)
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("response unreadable: %v", err)
	}
	if doc["id"] != user.ID {
		t.Fatalf("expected own user document, got %v", doc)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	f := newFixture(t)
	_, cookie := f.login(t)

	req := httptest.NewRequest(http.MethodDelete, "/auth", nil)
	req.AddCookie(cookie)
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == f.session.CookieName {
			if c.Value != "" || c.MaxAge >= 0 {
				t.Fatalf("expected cookie to be cleared, got %+v", c)
			}
			return
		}
	}
	t.Fatalf("logout did not touch the session cookie")
}

func TestGetCollections(t *testing.T) {
	f := newFixture(t)
	user, _ := f.login(t)

	for _, path := range []string{user.Inbox, user.Outbox} {
		rec := f.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, rec.Code)
		}
		var doc map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
			t.Fatalf("response unreadable: %v", err)
		}
		if doc["type"] != "OrderedCollection" {
			t.Fatalf("expected OrderedCollection at %s, got %v", path, doc)
		}
	}
}

func TestGetUnknownUser(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/u/no-such-user", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPostOutbox(t *testing.T) {
	f := newFixture(t)
	user, cookie := f.login(t)

	body := `{"type":"Create","object":{"type":"Note","content":"hello"}}`
	req := httptest.NewRequest(http.MethodPost, user.Outbox, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(cookie)
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}

	var accepted map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("response unreadable: %v", err)
	}
	id, _ := accepted["id"].(string)
	if !strings.HasPrefix(id, user.ID+"/activities/") {
		t.Fatalf("expected synthesized id, got %q", id)
	}
	if accepted["actor"] != user.ID {
		t.Fatalf("expected actor to be the authenticated user, got %v", accepted["actor"])
	}
	published, _ := accepted["published"].(string)
	if _, err := time.Parse(time.RFC3339, published); err != nil {
		t.Fatalf("expected RFC3339 published, got %q", published)
	}

	if f.bus.Pending() != 1 {
		t.Fatalf("expected one queued envelope, got %d", f.bus.Pending())
	}
}

func TestPostOutboxRequiresAuth(t *testing.T) {
	f := newFixture(t)
	user, _ := f.login(t)

	req := httptest.NewRequest(http.MethodPost, user.Outbox, strings.NewReader(`{"type":"Create"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := f.do(req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if f.bus.Pending() != 0 {
		t.Fatalf("unauthenticated submission must not reach the bus")
	}
}

func TestPostForeignOutboxForbidden(t *testing.T) {
	f := newFixture(t)
	_, cookie := f.login(t)

	// register a second user directly through the store
	other := domain.User{
		ID:     "/u/other",
		Type:   "Person",
		Name:   "Other",
		Inbox:  "/u/other" + domain.InboxSuffix,
		Outbox: "/u/other" + domain.OutboxSuffix,
	}
	doc, err := store.FromStruct(other)
	if err != nil {
		t.Fatalf("encode user: %v", err)
	}
	if err := f.store.Put(context.Background(), other.ID, doc); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, other.Outbox, strings.NewReader(`{"type":"Create"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(cookie)
	rec := f.do(req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", rec.Code, rec.Body.String())
	}
	if f.bus.Pending() != 0 {
		t.Fatalf("forbidden submission must not reach the bus")
	}
}

func TestPostOutboxActorMismatch(t *testing.T) {
	f := newFixture(t)
	user, cookie := f.login(t)

	req := httptest.NewRequest(http.MethodPost, user.Outbox, strings.NewReader(`{"type":"Create","actor":"/u/somebody-else"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(cookie)
	rec := f.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}
	if f.bus.Pending() != 0 {
		t.Fatalf("mismatched submission must not reach the bus")
	}
}
