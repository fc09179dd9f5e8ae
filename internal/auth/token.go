package auth

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Authentication failure taxonomy. Each maps to 401 with a machine-readable
// code in the response body.
var (
	ErrTokenMissing  = errors.New("request does not contain an access token")
	ErrTokenExpired  = errors.New("the token has expired")
	ErrTokenInvalid  = errors.New("signature verification failed")
	ErrTokenRevoked  = errors.New("the token has been revoked")
	ErrTokenNotFresh = errors.New("the token is not fresh")
)

// Machine-readable error codes surfaced alongside 401 responses.
const (
	CodeAuthorizationRequired = "authorization_required"
	CodeTokenExpired          = "token_expired"
	CodeInvalidToken          = "invalid_token"
	CodeTokenRevoked          = "token_revoked"
	CodeFreshTokenRequired    = "fresh_token_required"
)

// ErrorCode returns the wire code for an authentication error.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(err, ErrTokenRevoked):
		return CodeTokenRevoked
	case errors.Is(err, ErrTokenMissing):
		return CodeAuthorizationRequired
	case errors.Is(err, ErrTokenNotFresh):
		return CodeFreshTokenRequired
	default:
		return CodeInvalidToken
	}
}

// Claims carried by a session token.
type Claims struct {
	IsAdmin bool `json:"is_admin"`
	jwt.RegisteredClaims
}

// UserID parses the subject back into a user id.
func (c *Claims) UserID() uint {
	id, _ := strconv.ParseUint(c.Subject, 10, 64)
	return uint(id)
}

// Revoker is the token revocation set, consulted on every authenticated
// request and appended to on logout. The in-memory implementation loses
// state on restart, which is acceptable only because tokens also expire.
type Revoker interface {
	Revoke(jti string)
	IsRevoked(jti string) bool
}

// MemoryRevoker is a process-wide revocation set keyed by token id.
type MemoryRevoker struct {
	mu      sync.RWMutex
	revoked map[string]struct{}
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: make(map[string]struct{})}
}

func (r *MemoryRevoker) Revoke(jti string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[jti] = struct{}{}
}

func (r *MemoryRevoker) IsRevoked(jti string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.revoked[jti]
	return ok
}

// TokenService issues and validates HS256 session tokens.
type TokenService struct {
	secret  []byte
	ttl     time.Duration
	revoker Revoker
}

func NewTokenService(secret string, ttl time.Duration, revoker Revoker) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, revoker: revoker}
}

// Issue signs a token for the user with a unique jti.
func (s *TokenService) Issue(userID uint, isAdmin bool) (string, error) {
	now := time.Now()
	claims := Claims{
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies signature, expiry and the revocation set.
func (s *TokenService) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrTokenMissing
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if s.revoker.IsRevoked(claims.ID) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke invalidates the token's id; used by logout.
func (s *TokenService) Revoke(claims *Claims) {
	s.revoker.Revoke(claims.ID)
}
