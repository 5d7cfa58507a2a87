package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	ProviderGoogle = "google"

	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	maxUserInfoBytes  = 1 << 20
)

// GoogleOptions configures GoogleProvider. Endpoint and UserInfoURL default to
// Google's and are overridden in tests.
type GoogleOptions struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Timeout      time.Duration
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
}

// GoogleProvider signs users in with Google
type GoogleProvider struct {
	config      oauth2.Config
	userInfoURL string
	timeout     time.Duration
}

func NewGoogleProvider(opts GoogleOptions) *GoogleProvider {
	endpoint := opts.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	userInfoURL := opts.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &GoogleProvider{
		config: oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.CallbackURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: endpoint,
		},
		userInfoURL: userInfoURL,
		timeout:     timeout,
	}
}

func (g *GoogleProvider) Name() string { return ProviderGoogle }

func (g *GoogleProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Exchange trades the code for a token and fetches the profile under one
// deadline. Every failure wraps ErrUpstreamUnavailable.
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (FederatedProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return FederatedProfile{}, fmt.Errorf("%w: code exchange: %v", ErrUpstreamUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return FederatedProfile{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	resp, err := g.config.Client(ctx, token).Do(req)
	if err != nil {
		return FederatedProfile{}, fmt.Errorf("%w: userinfo: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FederatedProfile{}, fmt.Errorf("%w: userinfo status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(&info); err != nil {
		return FederatedProfile{}, fmt.Errorf("%w: decode userinfo: %v", ErrUpstreamUnavailable, err)
	}
	if info.ID == "" || info.Email == "" {
		return FederatedProfile{}, fmt.Errorf("%w: userinfo missing id or email", ErrUpstreamUnavailable)
	}

	return FederatedProfile{
		Provider:      ProviderGoogle,
		ProviderID:    info.ID,
		Email:         info.Email,
		EmailVerified: info.VerifiedEmail,
		DisplayName:   info.Name,
		AvatarURL:     info.Picture,
	}, nil
}
