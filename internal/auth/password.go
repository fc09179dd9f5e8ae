package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/crypto/pbkdf2"
)

const (
	hashMethod     = "pbkdf2-sha256"
	hashIterations = 600_000
	saltLen        = 16
	keyLen         = 32

	usernameMinLen = 3
	usernameMaxLen = 50
	passwordMinLen = 8
)

var (
	ErrInvalidUsername = errors.New("username must be 3-50 characters (letters, digits, underscore)")
	ErrWeakPassword    = errors.New("password must be at least 8 characters and contain an uppercase letter, a lowercase letter, a digit and a special character")
)

// HashPassword derives a PBKDF2-HMAC-SHA256 hash and encodes it together
// with its parameters as "pbkdf2-sha256$<iterations>$<salt>$<hash>".
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	dk := pbkdf2.Key([]byte(password), salt, hashIterations, keyLen, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s",
		hashMethod,
		hashIterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

// VerifyPassword re-derives the key with the stored parameters and compares
// in constant time. A malformed stored hash verifies as false, never as a
// distinct error, so callers cannot leak which part failed.
func VerifyPassword(stored, password string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 4 || parts[0] != hashMethod {
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(password), salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// ValidateUsername enforces the canonical username policy: 3-50 characters,
// letters/digits/underscore only.
func ValidateUsername(username string) error {
	if len(username) < usernameMinLen || len(username) > usernameMaxLen {
		return ErrInvalidUsername
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return ErrInvalidUsername
		}
	}
	return nil
}

// ValidatePassword enforces the strength policy: at least 8 characters with
// upper, lower, digit and special character.
func ValidatePassword(password string) error {
	if len(password) < passwordMinLen {
		return ErrWeakPassword
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return ErrWeakPassword
	}
	return nil
}
