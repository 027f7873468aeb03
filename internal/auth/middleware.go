package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const CtxClaimsKey = "auth_claims"

// VersionSource reports a user's current token version.
type VersionSource interface {
	GetTokenVersion(ctx context.Context, userID string) (int, error)
}

// Required rejects requests without a valid, unrevoked bearer token.
func Required(tokens TokenService, versions VersionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := authenticate(c, tokens, versions)
		if err != nil || claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}
		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

// Optional attaches claims when a valid token is present and otherwise lets
// the request through anonymously.
func Optional(tokens TokenService, versions VersionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := authenticate(c, tokens, versions); err == nil && claims != nil {
			c.Set(CtxClaimsKey, claims)
		}
		c.Next()
	}
}

// authenticate returns (nil, nil) when no bearer token was sent.
func authenticate(c *gin.Context, tokens TokenService, versions VersionSource) (*Claims, error) {
	h := c.GetHeader("Authorization")
	if h == "" {
		return nil, nil
	}
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return nil, ErrInvalidToken
	}
	claims, err := tokens.Parse(strings.TrimSpace(h[7:]))
	if err != nil {
		return nil, err
	}
	if versions != nil {
		v, err := versions.GetTokenVersion(c.Request.Context(), claims.UserID)
		if err != nil || v != claims.TokenVersion {
			return nil, ErrInvalidToken
		}
	}
	return claims, nil
}

// ClaimsFrom returns the claims set by the middleware, or nil.
func ClaimsFrom(c *gin.Context) *Claims {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
