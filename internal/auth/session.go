package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// SessionIssuer mints and checks the local session credential: an HS256 JWT
// binding a user id and an expiry. It is stateless; there is no server-side
// session table to consult or clean up.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionIssuer(secret []byte, ttl time.Duration) (*SessionIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret must not be empty")
	}
	return &SessionIssuer{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue signs a credential for the user valid for the configured TTL.
func (s *SessionIssuer) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("cannot issue session for empty user id")
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "session signing failed")
	}
	return signed, nil
}

// Check validates a credential and returns the bound user id. Invalid is a
// result, not an error: callers on optional-auth paths proceed anonymously,
// and only required-auth routes turn ok=false into Unauthenticated. The
// parser pins HS256 so alg=none and key-confusion tokens fail outright, and
// enforces exp itself.
func (s *SessionIssuer) Check(credential string) (string, bool) {
	if credential == "" {
		return "", false
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	var claims jwt.RegisteredClaims
	_, err := parser.ParseWithClaims(credential, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}
