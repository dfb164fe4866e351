// Package auth provides the bearer-token gate for taskd's HTTP API.
//
// RequireBearer rejects requests without a valid token; OptionalBearer lets
// every request through and only records the identity when one is present.
// Both store the verified claims on the echo context and the user id on the
// request context, where the logging package picks it up.
package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/taskd/internal/apperr"
	"github.com/fyrsmithlabs/taskd/internal/logging"
	"github.com/fyrsmithlabs/taskd/internal/token"
)

// Rejection messages returned by RequireBearer.
const (
	MsgNoToken      = "No token provided"
	MsgTokenError   = "Token error"
	MsgInvalidToken = "Invalid token"
)

// Verifier checks a raw token. *token.Service satisfies it.
type Verifier interface {
	Verify(raw string) (*token.Claims, error)
}

// RequireBearer creates an Echo middleware that demands an
// "Authorization: Bearer <token>" header with a valid token.
//
// Returns a 401 apperr for:
//   - a missing header ("No token provided")
//   - a header that is not exactly two space-separated parts with the
//     scheme "Bearer" ("Token error")
//   - a token that fails verification ("Invalid token")
func RequireBearer(v Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return apperr.Unauthorized(MsgNoToken)
			}

			raw, ok := bearerToken(header)
			if !ok {
				return apperr.Unauthorized(MsgTokenError)
			}

			claims, err := v.Verify(raw)
			if err != nil {
				return &apperr.Error{Kind: apperr.KindUnauthorized, Message: MsgInvalidToken, Err: err}
			}

			setClaims(c, claims)
			return next(c)
		}
	}
}

// OptionalBearer creates an Echo middleware that records the caller's
// identity when a valid bearer token is present and never rejects.
func OptionalBearer(v Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization)); ok {
				if claims, err := v.Verify(raw); err == nil {
					setClaims(c, claims)
				}
			}
			return next(c)
		}
	}
}

// bearerToken splits "Bearer <token>". Anything else, including extra
// spaces or a lower-case scheme, is rejected.
func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setClaims(c echo.Context, claims *token.Claims) {
	c.Set(string(claimsKey), claims)

	req := c.Request()
	c.SetRequest(req.WithContext(logging.WithUserID(req.Context(), claims.UserID())))
}
