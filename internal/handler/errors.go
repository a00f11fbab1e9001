package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/calculations-api/internal/logger"
	"github.com/iliyamo/calculations-api/internal/service"
)

// requestTimeout bounds the store calls of a single request.
const requestTimeout = 5 * time.Second

var errBadCredentials = echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password")

func badRequest(msg string) error { return echo.NewHTTPError(http.StatusBadRequest, msg) }

// HTTPErrorHandler renders every error as {"detail": "..."}.  Service errors
// get their status here; anything unrecognised is logged and reported as a
// bare 500 so no internals reach the client.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, detail := classify(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request().Context()).Error().Err(err).Msg("unhandled error")
	}
	if status == http.StatusUnauthorized {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, echo.Map{"detail": detail})
	}
	if err != nil {
		logger.FromContext(c.Request().Context()).Error().Err(err).Msg("write error response")
	}
}

func classify(err error) (int, string) {
	var ve *service.ValidationError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrConflict):
		return http.StatusBadRequest, "Username or email already exists"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "Could not validate credentials"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "Calculation not found"
	case errors.As(err, &he):
		if he.Code >= http.StatusInternalServerError {
			return he.Code, http.StatusText(he.Code)
		}
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, fmt.Sprint(he.Message)
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
