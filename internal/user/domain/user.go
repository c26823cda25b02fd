package domain

import (
	"errors"
	"time"
)

// DefaultRole is assigned to users registered without an explicit role.
const DefaultRole = "user"

// ErrDuplicateEmail is returned by the repository when the lowercase email is
// already taken (unique constraint). The constraint is the source of truth;
// callers must not rely on check-then-insert alone.
var ErrDuplicateEmail = errors.New("email already registered")

// User is the core identity record. PasswordHash is the encoded PBKDF2
// digest, never the raw password. Users are created only via registration and
// never deleted by the auth subsystem.
type User struct {
	ID           string
	Email        string // stored lowercase
	PasswordHash string
	Role         string
	MFASecret    string // schema hook; unused by current logic
	MFAEnabled   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate validates the user for persistence. Returns an error describing the
// first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Role == "" {
		u.Role = DefaultRole
	}
	return nil
}

// Sanitized is the user representation returned to callers. It never carries
// the password digest or MFA secret.
type Sanitized struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	MFAEnabled bool      `json:"mfaEnabled"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Sanitize returns the caller-safe view of the user.
func (u *User) Sanitize() *Sanitized {
	return &Sanitized{
		ID:         u.ID,
		Email:      u.Email,
		Role:       u.Role,
		MFAEnabled: u.MFAEnabled,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
