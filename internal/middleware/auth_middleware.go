package middleware

import (
	"net/http"
	"strings"

	"github.com/ArowuTest/study-profile-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Headers set by the App Service authentication front end
const (
	PrincipalIDHeader   = "X-Ms-Client-Principal-Id"
	PrincipalNameHeader = "X-Ms-Client-Principal-Name"
)

// DebugTokenHeader carries the secret for the debug endpoints
const DebugTokenHeader = "X-Debug-Token"

const bearerSchema = "Bearer "

// TokenVerifier turns a bearer token into the caller's identity
type TokenVerifier interface {
	Verify(tokenString string) (jwt.Identity, error)
}

// IdentityMiddleware resolves the caller and stores user id and username in
// the context. A bearer token is checked with verifier when one is
// configured; otherwise, when trustHeaders is set, the principal headers are
// taken as is. Requests without an identity are rejected with 401.
func IdentityMiddleware(verifier TokenVerifier, trustHeaders bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if verifier != nil && authHeader != "" {
			if !strings.HasPrefix(authHeader, bearerSchema) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must start with Bearer "})
				return
			}
			id, err := verifier.Verify(strings.TrimSpace(authHeader[len(bearerSchema):]))
			if err != nil {
				logger.Debug("token rejected", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
				return
			}
			c.Set(UserIDKey, id.UserID)
			c.Set(UsernameKey, id.Username)
			c.Next()
			return
		}

		if trustHeaders {
			if userID := strings.TrimSpace(c.GetHeader(PrincipalIDHeader)); userID != "" {
				c.Set(UserIDKey, userID)
				c.Set(UsernameKey, strings.TrimSpace(c.GetHeader(PrincipalNameHeader)))
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
}

// CurrentUser returns the identity stored by IdentityMiddleware
func CurrentUser(c *gin.Context) (userID, username string) {
	return c.GetString(UserIDKey), c.GetString(UsernameKey)
}

// DebugTokenMiddleware guards the debug endpoints. With an empty tokenHash
// every caller passes; otherwise X-Debug-Token must match the bcrypt hash.
func DebugTokenMiddleware(tokenHash string, logger *zap.Logger) gin.HandlerFunc {
	hash := []byte(tokenHash)
	return func(c *gin.Context) {
		if len(hash) == 0 {
			c.Next()
			return
		}
		token := c.GetHeader(DebugTokenHeader)
		if token == "" || bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
			userID, _ := CurrentUser(c)
			logger.Warn("debug endpoint denied", zap.String("userId", userID), zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Debug access denied"})
			return
		}
		c.Next()
	}
}
