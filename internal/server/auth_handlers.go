package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"kasirkuy/internal/auth"
	"kasirkuy/internal/models"
	"kasirkuy/internal/store"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}
}

// Register handles POST /api/register.
func (s *Server) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	if err := auth.ValidateUsername(req.Username); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.internalError(c, "hash password", err)
		return
	}

	ip := c.ClientIP()
	fingerprint := ip + "_" + c.Request.UserAgent()
	u, err := s.users.CreateWithDevice(req.Username, hash, fingerprint, ip)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDeviceLimit):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Maximum number of accounts reached for this device"})
		case errors.Is(err, store.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
		default:
			s.internalError(c, "create user", err)
		}
		return
	}

	token, err := s.tokens.Issue(u.ID, u.IsAdmin)
	if err != nil {
		s.internalError(c, "issue token", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":      "User registered successfully",
		"access_token": token,
		"user":         toUserResponse(u),
	})
}

// Login handles POST /api/login. The failure message is identical for a
// missing user and a wrong password.
func (s *Server) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	ip := c.ClientIP()
	if s.throttle.IsLocked(ip) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many failed login attempts. Please try again later."})
		return
	}

	u, err := s.users.GetByUsername(req.Username)
	if err != nil || !auth.VerifyPassword(u.PasswordHash, req.Password) {
		s.throttle.RecordFailure(ip)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	s.throttle.Reset(ip)

	token, err := s.tokens.Issue(u.ID, u.IsAdmin)
	if err != nil {
		s.internalError(c, "issue token", err)
		return
	}

	sess := sessions.Default(c)
	sess.Set(sessionTokenKey, token)
	if err := sess.Save(); err != nil {
		s.log.Warn("failed to save session cookie", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"user":         toUserResponse(u),
	})
}

// Logout handles POST /api/logout: revokes the token id and drops the cookie.
func (s *Server) Logout(c *gin.Context) {
	s.tokens.Revoke(mustClaims(c))

	sess := sessions.Default(c)
	sess.Clear()
	if err := sess.Save(); err != nil {
		s.log.Warn("failed to clear session cookie", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

// Verify handles GET /api/verify: returns the caller's identity, 404 if the
// user row is gone.
func (s *Server) Verify(c *gin.Context) {
	claims := mustClaims(c)
	u, err := s.users.GetByID(claims.UserID())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		s.internalError(c, "load user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(u)})
}

// internalError logs the cause and returns an opaque 500. Internals never
// leak to clients.
func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.log.Error(op, "error", err, "path", c.Request.URL.Path)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
