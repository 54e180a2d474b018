package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/httpx"
)

// TokenVerifier resolves a bearer token to the caller it was issued to.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.Caller, error)
}

// ErrTokenRejected may be returned by a TokenVerifier for any invalid token.
var ErrTokenRejected = errors.New("token rejected")

// JWTAuth returns a middleware that validates bearer access tokens and stores
// the resulting caller on the request.
func JWTAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		caller, err := verifier.Verify(c.UserContext(), tokenStr)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		if err := caller.Validate(); err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		httpx.SetCaller(c, caller)
		return c.Next()
	}
}
