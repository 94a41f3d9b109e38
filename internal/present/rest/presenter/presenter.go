package presenter

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/activityserve/activityserve/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

// Error maps the domain error taxonomy onto HTTP statuses. Unauthenticated
// carries its challenge hint; invalid claims and storage faults are logged
// server-side and surfaced as generic failures so nothing internal leaks.
func Error(c echo.Context, err error) error {
	var unauthenticated domain.UnauthenticatedError
	if errors.As(err, &unauthenticated) {
		challenge := unauthenticated.Challenge
		if challenge == "" {
			challenge = domain.BearerChallenge
		}
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, challenge)
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthenticated"})
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrForbidden):
		return c.JSON(http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidActivity):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrSubmissionRejected):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidClaims):
		log.Error().Err(err).Msg("provider returned malformed claims")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	case errors.Is(err, domain.ErrStorage):
		log.Error().Err(err).Msg("storage failure")
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "temporarily unavailable"})
	default:
		log.Error().Err(err).Msg("unhandled error")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
