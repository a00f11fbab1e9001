// Package middleware contains the echo middleware of the API: the bearer
// token guard, request logging and rate limiting.
package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/calculations-api/internal/model"
	"github.com/iliyamo/calculations-api/internal/service"
	"github.com/iliyamo/calculations-api/internal/utils"
)

const (
	userKey   = "user"
	userIDKey = "user_id"
	claimsKey = "claims"
)

// Authenticator resolves a raw access token to an active user.
type Authenticator interface {
	CurrentActiveUser(ctx context.Context, raw string) (model.User, *utils.Claims, error)
}

// BearerAuth rejects requests without a valid `Authorization: Bearer` access
// token.  On success the user, its id and the token claims are stored on the
// echo context; see CurrentUser and TokenClaims.
func BearerAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return service.ErrUnauthorized
			}
			u, claims, err := auth.CurrentActiveUser(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			c.Set(userKey, u)
			c.Set(userIDKey, u.ID)
			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// bearerToken extracts the token from an Authorization header value.  The
// scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// CurrentUser returns the user stored by BearerAuth.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(userKey).(model.User)
	return u, ok
}

// TokenClaims returns the access token claims stored by BearerAuth.
func TokenClaims(c echo.Context) (*utils.Claims, bool) {
	cl, ok := c.Get(claimsKey).(*utils.Claims)
	return cl, ok && cl != nil
}
