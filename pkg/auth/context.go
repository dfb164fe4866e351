package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/taskd/internal/token"
)

// contextKey is the type for context keys to avoid collisions.
type contextKey string

// claimsKey is the echo context key for verified token claims.
const claimsKey contextKey = "auth_claims"

// ClaimsFrom returns the verified claims stored by the middleware.
func ClaimsFrom(c echo.Context) (*token.Claims, bool) {
	claims, ok := c.Get(string(claimsKey)).(*token.Claims)
	return claims, ok && claims != nil
}

// UserIDFrom returns the authenticated user id, or "" when the request
// carries no verified token.
func UserIDFrom(c echo.Context) string {
	if claims, ok := ClaimsFrom(c); ok {
		return claims.UserID()
	}
	return ""
}
