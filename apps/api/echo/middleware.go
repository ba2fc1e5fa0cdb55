package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// accessOnlyMiddleware rejects requests authenticated with anything other
// than an access token (e.g. a refresh token presented as a Bearer credential).
func accessOnlyMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextClaims(ctx); err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			return next(ctx)
		}
	}
}
