package store

import "errors"

var (
	ErrNotFound      = errors.New("record not found")
	ErrForbidden     = errors.New("operation not allowed for this user")
	ErrUsernameTaken = errors.New("username already exists")
	ErrLastAdmin     = errors.New("cannot delete the last admin user")
	ErrNameRequired  = errors.New("product name is required")
	ErrInvalidPrice  = errors.New("price cannot be negative")
	ErrDeviceLimit   = errors.New("maximum accounts per device reached")
)
