package auth

import "github.com/redmonkez12/growth-api/internal/session"

// Credentials is one of LocalCredentials or FederatedCredentials
type Credentials interface {
	Method() session.AuthMethod
}

// LocalCredentials authenticate with email and password
type LocalCredentials struct {
	Email    string
	Password string
}

func (LocalCredentials) Method() session.AuthMethod { return session.Local() }

// FederatedProfile is the identity asserted by an OAuth provider
type FederatedProfile struct {
	Provider      string
	ProviderID    string
	Email         string
	EmailVerified bool
	DisplayName   string
	AvatarURL     string
}

// FederatedCredentials authenticate with a provider-asserted profile
type FederatedCredentials struct {
	Profile FederatedProfile
}

func (c FederatedCredentials) Method() session.AuthMethod {
	return session.Federated(c.Profile.Provider)
}
