package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/hphungg/chatbot-sub001/domain"
)

// identityKey is where the middleware stores the authenticated identity in
// the request context.
const identityKey = "identity"

// Middleware validates the Bearer token and injects the identity. Requests
// without a usable identity are rejected before reaching any handler.
func Middleware(tokens *TokenManager, log *slog.Logger) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		header := string(c.GetHeader("Authorization"))
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			c.AbortWithStatusJSON(consts.StatusUnauthorized, map[string]string{
				"code":    "UNAUTHENTICATED",
				"message": "missing bearer token",
			})
			return
		}

		identity, err := tokens.Validate(tokenString)
		if err != nil {
			log.Debug("Rejected token", "error", err)
			c.AbortWithStatusJSON(consts.StatusUnauthorized, map[string]string{
				"code":    "UNAUTHENTICATED",
				"message": "invalid or expired token",
			})
			return
		}

		c.Set(identityKey, identity)
		c.Next(ctx)
	}
}

// IdentityFrom retrieves the identity stored by the middleware. The zero
// identity with false means the request never went through it.
func IdentityFrom(c *app.RequestContext) (domain.Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	if !ok || identity.IsZero() {
		return domain.Identity{}, false
	}
	return identity, true
}
