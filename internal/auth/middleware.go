package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const userIDKey = "user_id"

var (
	errNoCredentials = errors.New("missing bearer token")
	errBadScheme     = errors.New("authorization scheme must be Bearer")
)

// bearerToken pulls the token out of an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errBadScheme
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", errNoCredentials
	}
	return token, nil
}

// Middleware authenticates the request and stores the caller's user id on
// the context for GetUserID. Failures answer 401.
func (ts *TokenService) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if err == nil {
				var claims *Claims
				if claims, err = ts.ValidateAccessToken(token); err == nil {
					c.Set(userIDKey, claims.UserID)
					return next(c)
				}
			}

			slog.Debug("request not authenticated", "path", c.Path(), "error", err)
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="huddle"`)
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
	}
}

// GetUserID returns the authenticated caller, or 0 outside Middleware.
func GetUserID(c echo.Context) int64 {
	id, _ := c.Get(userIDKey).(int64)
	return id
}
