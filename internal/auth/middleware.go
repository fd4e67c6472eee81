package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const clientKeyContextKey = "auth_client_key"

// Middleware enforces the access tokens, when any are configured, and stores
// the client key used for fair scheduling.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.Enabled() {
			c.Set(clientKeyContextKey, "ip:"+c.ClientIP())
			c.Next()
			return
		}
		token := s.extractToken(c)
		if err := s.ValidateToken(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "kind": "unauthorized"})
			return
		}
		c.Set(clientKeyContextKey, "token:"+fingerprint(token))
		c.Next()
	}
}

// ClientKeyFromContext returns the key set by the middleware, falling back to the client IP.
func ClientKeyFromContext(c *gin.Context) string {
	if val, ok := c.Get(clientKeyContextKey); ok {
		if key, ok := val.(string); ok && key != "" {
			return key
		}
	}
	return "ip:" + c.ClientIP()
}

func (s *Service) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader(s.headerName)
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if token, err := c.Cookie(s.cookieName); err == nil && token != "" {
		return token
	}
	return ""
}
