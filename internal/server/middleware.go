package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"kasirkuy/internal/auth"
)

const claimsKey = "claims"

// sessionTokenKey is the cookie-session value carrying the JWT for clients
// that do not send an Authorization header.
const sessionTokenKey = "token"

// requestLogger logs every request with a level keyed off the status code.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		log.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"client_ip", c.ClientIP(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
		)
	}
}

// Authenticate resolves the session token from the Authorization header or,
// failing that, from the session cookie. Parse failures abort with 401 and
// a machine-readable code.
func (s *Server) Authenticate(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		if v, ok := sessions.Default(c).Get(sessionTokenKey).(string); ok {
			token = v
		}
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": err.Error(),
			"code":  auth.ErrorCode(err),
		})
		return
	}
	c.Set(claimsKey, claims)
	c.Next()
}

// RequireAdmin loads the caller's user row and requires the admin flag.
// The flag is checked against the database, not just the token, so a
// demoted admin loses access before their token expires.
func (s *Server) RequireAdmin(c *gin.Context) {
	claims := mustClaims(c)
	u, err := s.users.GetByID(claims.UserID())
	if err != nil || !u.IsAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}
	c.Next()
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func mustClaims(c *gin.Context) *auth.Claims {
	return c.MustGet(claimsKey).(*auth.Claims)
}
