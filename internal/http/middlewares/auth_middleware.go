package middlewares

import (
	"context"
	"strings"

	"github.com/geocoder89/taskhub/internal/actorctx"
	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (actorctx.Identity, error)
}

type AuthMiddleware struct {
	guard Authenticator
}

func NewAuthMiddleware(guard Authenticator) *AuthMiddleware {
	return &AuthMiddleware{guard: guard}
}

// RequireAuth rejects the request unless it carries an active bearer token.
// The identity is placed on the request context for the handlers.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := m.guard.Authenticate(c.Request.Context(), bearerToken(c.GetHeader("Authorization")))
		if err != nil {
			if apperr.KindOf(err) != apperr.KindAuthentication {
				c.Error(err)
			}
			handlers.RespondErr(c, err)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(actorctx.WithIdentity(c.Request.Context(), id))
		c.Set(CtxUserID, id.UserID)

		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
