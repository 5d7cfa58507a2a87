package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/redmonkez12/growth-api/internal/logging"
	"github.com/redmonkez12/growth-api/internal/session"
	"github.com/redmonkez12/growth-api/internal/user"
)

const (
	minPasswordLen     = 6
	maxEmailLen        = 254
	maxDisplayNameLen  = 100
	defaultResetTTL    = 10 * time.Minute
	dummyPasswordInput = "growth-api-timing-equalizer"
)

// Options are the behavior switches of Service
type Options struct {
	// RequireEmailVerification blocks local login until the email is verified
	RequireEmailVerification bool
	ResetTokenTTL            time.Duration
}

// Service handles authentication business logic
type Service struct {
	users        UserStore
	sessions     Sessions
	hasher       Hasher
	tokens       *TokenGenerator
	emailService EmailService
	clock        clockwork.Clock
	logger       *logging.Logger
	opts         Options

	dummyOnce sync.Once
	dummyHash string
}

func NewService(
	users UserStore,
	sessions Sessions,
	hasher Hasher,
	tokens *TokenGenerator,
	emailService EmailService,
	clock clockwork.Clock,
	logger *logging.Logger,
	opts Options,
) *Service {
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = defaultResetTTL
	}
	return &Service{
		users:        users,
		sessions:     sessions,
		hasher:       hasher,
		tokens:       tokens,
		emailService: emailService,
		clock:        clock,
		logger:       logger,
		opts:         opts,
	}
}

// RequiresEmailVerification reports whether local login needs a verified email
func (s *Service) RequiresEmailVerification() bool {
	return s.opts.RequireEmailVerification
}

// Register creates a local account. With verification required, the account
// starts unverified and a verification token is handed to the email service.
func (s *Service) Register(ctx context.Context, email, password string) (*user.User, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser := &user.User{
		Email:        email,
		PasswordHash: passwordHash,
		IsVerified:   !s.opts.RequireEmailVerification,
	}

	var verificationToken string
	if s.opts.RequireEmailVerification {
		token, digest, err := s.tokens.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate verification token: %w", err)
		}
		verificationToken = token
		newUser.VerificationTokenHash = digest
	}

	created, err := s.users.Create(ctx, newUser)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if verificationToken != "" {
		if err := s.emailService.SendVerificationEmail(ctx, created.Email, verificationToken); err != nil {
			// The user can ask for a new link later
			s.logger.Warn("failed to send verification email", "user_id", created.ID, "error", err)
		}
	}

	return created, nil
}

// Login verifies local credentials and binds the session to the user
func (s *Service) Login(ctx context.Context, email, password string) (*user.User, error) {
	creds := LocalCredentials{Email: email, Password: password}

	u, err := s.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Establish(ctx, session.Authenticated(u, creds.Method())); err != nil {
		return nil, fmt.Errorf("failed to establish session: %w", err)
	}

	return u, nil
}

// CompleteFederatedLogin resolves the provider profile to a user and binds
// the session to it
func (s *Service) CompleteFederatedLogin(ctx context.Context, profile FederatedProfile) (*user.User, error) {
	creds := FederatedCredentials{Profile: profile}

	u, err := s.Authenticate(ctx, creds)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Establish(ctx, session.Authenticated(u, creds.Method())); err != nil {
		return nil, fmt.Errorf("failed to establish session: %w", err)
	}

	return u, nil
}

// Logout unbinds the session. Calling it without a session succeeds.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.sessions.Destroy(ctx); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// Authenticate resolves credentials to a user without touching the session
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (*user.User, error) {
	switch c := creds.(type) {
	case LocalCredentials:
		return s.authenticateLocal(ctx, c)
	case FederatedCredentials:
		return s.LinkOrCreateFederatedIdentity(ctx, c.Profile)
	default:
		return nil, fmt.Errorf("unsupported credentials %T", creds)
	}
}

func (s *Service) authenticateLocal(ctx context.Context, c LocalCredentials) (*user.User, error) {
	email := strings.TrimSpace(c.Email)
	if email == "" || c.Password == "" {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.equalizeTiming(c.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !existing.HasPassword() {
		s.equalizeTiming(c.Password)
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(existing.PasswordHash, c.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	// Only reported once the password is known to be right
	if s.opts.RequireEmailVerification && !existing.IsVerified {
		return nil, ErrNotVerified
	}

	return existing, nil
}

// equalizeTiming runs one hash verification so unknown emails cost about as
// much as wrong passwords
func (s *Service) equalizeTiming(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPasswordInput)
		if err != nil {
			s.logger.Warn("failed to prepare dummy hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(s.dummyHash, password)
	}
}

// RequestPasswordReset issues a reset token for local accounts.
// Always returns nil to prevent email enumeration.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to get user for password reset", "error", err)
		}
		return nil
	}

	if !existing.HasPassword() {
		s.logger.Debug("password reset skipped for account without password", "user_id", existing.ID)
		return nil
	}

	token, digest, err := s.tokens.Generate()
	if err != nil {
		s.logger.Warn("failed to generate password reset token", "error", err)
		return nil
	}

	// Overwrites any outstanding token for this user
	expiresAt := s.clock.Now().Add(s.opts.ResetTokenTTL)
	if err := s.users.SetPasswordResetToken(ctx, existing.ID, digest, expiresAt); err != nil {
		s.logger.Warn("failed to store password reset token", "user_id", existing.ID, "error", err)
		return nil
	}

	if err := s.emailService.SendPasswordResetEmail(ctx, existing.Email, token); err != nil {
		s.logger.Warn("failed to send password reset email", "user_id", existing.ID, "error", err)
	}

	return nil
}

// ResetPassword consumes a reset token and sets the new password in one
// conditional update
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if token == "" {
		return ErrInvalidOrExpiredToken
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	updated, err := s.users.ConsumePasswordResetToken(ctx, Digest(token), s.clock.Now(), passwordHash)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}

	s.logger.Info("password reset", "user_id", updated.ID)
	return nil
}

// LinkOrCreateFederatedIdentity resolves a provider profile to exactly one
// user: by provider id, then by email (linking the local account), else a new
// password-less account.
func (s *Service) LinkOrCreateFederatedIdentity(ctx context.Context, profile FederatedProfile) (*user.User, error) {
	profile.Email = strings.TrimSpace(profile.Email)
	if profile.Provider == "" || profile.ProviderID == "" || profile.Email == "" {
		return nil, ErrIncompleteProfile
	}

	u, err := s.resolveFederated(ctx, profile)
	if isLinkRace(err) {
		// A concurrent callback for the same identity won; its result is ours
		u, err = s.resolveFederated(ctx, profile)
	}
	if err != nil {
		if errors.Is(err, ErrIdentityConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to resolve federated identity: %w", err)
	}

	return u, nil
}

func (s *Service) resolveFederated(ctx context.Context, profile FederatedProfile) (*user.User, error) {
	linked, err := s.users.GetByProviderID(ctx, profile.Provider, profile.ProviderID)
	if err == nil {
		return linked, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if existing.IsLinked() {
			// Created by a concurrent callback between the two lookups
			if existing.Provider == profile.Provider && existing.ProviderID == profile.ProviderID {
				return existing, nil
			}
			return nil, ErrIdentityConflict
		}
		if !profile.EmailVerified {
			return nil, ErrUnverifiedProviderEmail
		}
		s.logger.Info("linking federated identity", "user_id", existing.ID, "provider", profile.Provider)
		return s.users.LinkProvider(ctx, existing.ID, profile.Provider, profile.ProviderID, profile.AvatarURL)
	case errors.Is(err, user.ErrNotFound):
		return s.users.Create(ctx, &user.User{
			Email:       profile.Email,
			Provider:    profile.Provider,
			ProviderID:  profile.ProviderID,
			DisplayName: profile.DisplayName,
			AvatarURL:   profile.AvatarURL,
			IsVerified:  profile.EmailVerified,
		})
	default:
		return nil, err
	}
}

func isLinkRace(err error) bool {
	return errors.Is(err, user.ErrDuplicateEmail) ||
		errors.Is(err, user.ErrDuplicateProvider) ||
		errors.Is(err, user.ErrAlreadyLinked)
}

// UpdateProfile changes the display name of the authenticated user
func (s *Service) UpdateProfile(ctx context.Context, ac session.AuthContext, displayName string) (*user.User, error) {
	if !ac.IsAuthenticated() {
		return nil, ErrUnauthorized
	}

	displayName = strings.TrimSpace(displayName)
	if utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}

	updated, err := s.users.UpdateDisplayName(ctx, ac.UserID, displayName)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return updated, nil
}

// CurrentUser returns the user the request resolved to
func (s *Service) CurrentUser(ctx context.Context, ac session.AuthContext) (*user.User, error) {
	if !ac.IsAuthenticated() {
		return nil, ErrUnauthorized
	}
	if ac.User != nil {
		return ac.User, nil
	}

	u, err := s.users.GetByID(ctx, ac.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// VerifyEmail consumes a verification token and marks the account verified
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidOrExpiredToken
	}

	verified, err := s.users.ConsumeVerificationToken(ctx, Digest(token))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("failed to verify email: %w", err)
	}

	s.logger.Info("email verified", "user_id", verified.ID)
	return nil
}

// ResendVerification reissues the verification token of an unverified local
// account. Always returns nil to prevent email enumeration.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !s.opts.RequireEmailVerification || email == "" {
		return nil
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to get user for resend verification", "error", err)
		}
		return nil
	}

	if existing.IsVerified || !existing.HasPassword() {
		return nil
	}

	token, digest, err := s.tokens.Generate()
	if err != nil {
		s.logger.Warn("failed to generate verification token", "error", err)
		return nil
	}

	if err := s.users.SetVerificationToken(ctx, existing.ID, digest); err != nil {
		// ErrNotFound here means it got verified in the meantime
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to update verification token", "user_id", existing.ID, "error", err)
		}
		return nil
	}

	if err := s.emailService.SendVerificationEmail(ctx, existing.Email, token); err != nil {
		s.logger.Warn("failed to resend verification email", "user_id", existing.ID, "error", err)
	}

	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > maxEmailLen {
		return ErrInvalidEmailFormat
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmailFormat
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return ErrPasswordTooShort
	}
	return nil
}
