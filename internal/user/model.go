package user

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity record. Empty strings stand for absent optional fields.
type User struct {
	ID                     uuid.UUID  `json:"id"`
	Email                  string     `json:"email"`
	PasswordHash           string     `json:"-"` // Never expose password hash in JSON
	Provider               string     `json:"-"`
	ProviderID             string     `json:"-"`
	DisplayName            string     `json:"displayName,omitempty"`
	AvatarURL              string     `json:"avatarUrl,omitempty"`
	IsVerified             bool       `json:"isVerified"`
	VerificationTokenHash  string     `json:"-"`
	PasswordResetTokenHash string     `json:"-"`
	PasswordResetExpiresAt *time.Time `json:"-"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// HasPassword reports whether the account supports local login
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// IsLinked reports whether the account is linked to a federated identity
func (u *User) IsLinked() bool {
	return u.ProviderID != ""
}

// Clone returns a deep copy so callers cannot mutate store state
func (u *User) Clone() *User {
	c := *u
	if u.PasswordResetExpiresAt != nil {
		t := *u.PasswordResetExpiresAt
		c.PasswordResetExpiresAt = &t
	}
	return &c
}
