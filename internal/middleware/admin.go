package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	adminIssuer = "chat-relay"

	// AdminSubjectKey holds the authenticated admin name in the gin context.
	AdminSubjectKey = "adminSubject"
)

// IssueAdminToken signs an HS256 admin token for subject.
func IssueAdminToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("admin secret is empty")
	}
	claims := jwt.RegisteredClaims{
		Issuer:    adminIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// AdminAuth accepts either the shared secret in X-Admin-Secret or a bearer
// token from IssueAdminToken. An empty secret disables the admin surface.
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"ok": false, "msg": "Admin access is not configured"})
			return
		}

		if given := c.GetHeader("X-Admin-Secret"); given != "" {
			if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "msg": "Unauthorized"})
				return
			}
			c.Set(AdminSubjectKey, "secret")
			c.Next()
			return
		}

		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "msg": "Unauthorized"})
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(adminIssuer))
		if err != nil || !token.Valid || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "msg": "Invalid admin token"})
			return
		}

		c.Set(AdminSubjectKey, claims.Subject)
		c.Next()
	}
}

// AdminSubject returns the admin name set by AdminAuth.
func AdminSubject(c *gin.Context) string {
	return c.GetString(AdminSubjectKey)
}
