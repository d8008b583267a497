package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"researchblog/internal/services"
)

const PrincipalKey = "principal"

// Authenticator resolves a bearer token to the calling account.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*services.Principal, error)
}

// AuthRequired rejects requests without a valid session token.
func AuthRequired(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, no token"})
			return
		}
		principal, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, token failed"})
			return
		}
		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

// CurrentPrincipal returns the caller set by AuthRequired.
func CurrentPrincipal(c *gin.Context) (*services.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*services.Principal)
	return p, ok
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
