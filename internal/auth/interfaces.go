package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/growth-api/internal/session"
	"github.com/redmonkez12/growth-api/internal/user"
)

// UserStore is the credential store. Implemented by user.Repository and
// user.MemoryStore.
type UserStore interface {
	Create(ctx context.Context, u *user.User) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByProviderID(ctx context.Context, provider, providerID string) (*user.User, error)
	SetPasswordResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
	ConsumePasswordResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*user.User, error)
	SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string) error
	ConsumeVerificationToken(ctx context.Context, tokenHash string) (*user.User, error)
	LinkProvider(ctx context.Context, id uuid.UUID, provider, providerID, avatarURL string) (*user.User, error)
	UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) (*user.User, error)
}

// Sessions binds and unbinds the current request's session. Implemented by
// session.Manager.
type Sessions interface {
	Establish(ctx context.Context, ac session.AuthContext) error
	Destroy(ctx context.Context) error
}

// EmailService receives plaintext one-time tokens for out-of-band delivery
type EmailService interface {
	SendVerificationEmail(ctx context.Context, toEmail, token string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, token string) error
}

// IdentityProvider is an external OAuth identity provider
type IdentityProvider interface {
	Name() string
	AuthCodeURL(state string) string
	// Exchange trades an authorization code for the user's profile. The token
	// exchange and profile fetch form one bounded, fallible unit.
	Exchange(ctx context.Context, code string) (FederatedProfile, error)
}
