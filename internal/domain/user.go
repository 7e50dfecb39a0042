package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingField is returned by constructors when a required value is blank.
var ErrMissingField = errors.New("domain: missing required field")

// User is a registered account. PasswordHash never holds plaintext.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// NewUser builds an unsaved user; the repository assigns ID and CreatedAt.
func NewUser(email, passwordHash string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return User{}, fmt.Errorf("%w: email", ErrMissingField)
	}
	if passwordHash == "" {
		return User{}, fmt.Errorf("%w: password", ErrMissingField)
	}
	return User{Email: email, PasswordHash: passwordHash}, nil
}
