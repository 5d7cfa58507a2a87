package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/growth-api/internal/database"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateProvider = errors.New("provider identity already linked")
	ErrAlreadyLinked     = errors.New("user already linked to a provider identity")
)

const uniqueViolation = "23505"

// Repository handles user persistence in Postgres
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user. ID and timestamps are assigned when unset.
func (r *Repository) Create(ctx context.Context, u *User) (*User, error) {
	now := time.Now().UTC()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	dbUser := mapModelToDBUser(u)
	dbUser.CreatedAt = now
	dbUser.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, translateWriteError(err, "failed to create user")
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "failed to get user by email", "email = ?", email)
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "failed to get user by id", "id = ?", id)
}

// GetByProviderID retrieves a user by federated identity
func (r *Repository) GetByProviderID(ctx context.Context, provider, providerID string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("provider = ?", provider).
		Where("provider_id = ?", providerID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by provider id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

func (r *Repository) getOne(ctx context.Context, errMsg, where string, arg any) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where(where, arg).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}

	return mapDBUserToModel(dbUser), nil
}

// SetPasswordResetToken stores a reset token digest, replacing any outstanding one
func (r *Repository) SetPasswordResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("password_reset_token_hash = ?", tokenHash).
		Set("password_reset_expires_at = ?", expiresAt).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store password reset token: %w", err)
	}

	return requireRows(result, ErrNotFound)
}

// ConsumePasswordResetToken sets a new password hash for the user holding an unexpired
// reset digest and clears the digest in the same statement. A second call with the
// same digest matches no row and returns ErrNotFound.
func (r *Repository) ConsumePasswordResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*User, error) {
	dbUser := new(database.User)
	result, err := r.db.NewUpdate().
		Model(dbUser).
		Set("password_hash = ?", passwordHash).
		Set("password_reset_token_hash = NULL").
		Set("password_reset_expires_at = NULL").
		Set("updated_at = NOW()").
		Where("password_reset_token_hash = ?", tokenHash).
		Where("password_reset_expires_at > ?", now).
		Returning("*").
		Exec(ctx)

	return r.updatedUser(dbUser, result, err, "failed to consume password reset token")
}

// SetVerificationToken stores a new verification digest for an unverified user
func (r *Repository) SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("verification_token_hash = ?", tokenHash).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Where("is_verified = ?", false).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update verification token: %w", err)
	}

	return requireRows(result, ErrNotFound)
}

// ConsumeVerificationToken marks the holder of the digest as verified and clears it
func (r *Repository) ConsumeVerificationToken(ctx context.Context, tokenHash string) (*User, error) {
	dbUser := new(database.User)
	result, err := r.db.NewUpdate().
		Model(dbUser).
		Set("is_verified = ?", true).
		Set("verification_token_hash = NULL").
		Set("updated_at = NOW()").
		Where("verification_token_hash = ?", tokenHash).
		Returning("*").
		Exec(ctx)

	return r.updatedUser(dbUser, result, err, "failed to consume verification token")
}

// LinkProvider attaches a federated identity to an account that has none yet
func (r *Repository) LinkProvider(ctx context.Context, id uuid.UUID, provider, providerID, avatarURL string) (*User, error) {
	dbUser := new(database.User)
	q := r.db.NewUpdate().
		Model(dbUser).
		Set("provider = ?", provider).
		Set("provider_id = ?", providerID).
		Set("updated_at = NOW()")
	if avatarURL != "" {
		q = q.Set("avatar_url = ?", avatarURL)
	}

	result, err := q.
		Where("id = ?", id).
		Where("provider_id IS NULL").
		Returning("*").
		Exec(ctx)

	linked, err := r.updatedUser(dbUser, result, err, "failed to link provider")
	if errors.Is(err, ErrNotFound) {
		// Distinguish a missing user from one that is already linked
		if _, getErr := r.GetByID(ctx, id); getErr == nil {
			return nil, ErrAlreadyLinked
		}
	}
	return linked, err
}

// UpdateDisplayName changes the profile display name
func (r *Repository) UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string) (*User, error) {
	dbUser := new(database.User)
	result, err := r.db.NewUpdate().
		Model(dbUser).
		Set("display_name = ?", nullable(displayName)).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Returning("*").
		Exec(ctx)

	return r.updatedUser(dbUser, result, err, "failed to update display name")
}

func (r *Repository) updatedUser(dbUser *database.User, result sql.Result, err error, errMsg string) (*User, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translateWriteError(err, errMsg)
	}
	if err := requireRows(result, ErrNotFound); err != nil {
		return nil, err
	}

	return mapDBUserToModel(dbUser), nil
}

func requireRows(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return notFound
	}

	return nil
}

// translateWriteError maps unique violations to domain errors
func translateWriteError(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		if strings.Contains(pqErr.Constraint, "provider") {
			return ErrDuplicateProvider
		}
		return ErrDuplicateEmail
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func mapModelToDBUser(u *User) *database.User {
	return &database.User{
		ID:                     u.ID,
		Email:                  u.Email,
		PasswordHash:           nullable(u.PasswordHash),
		Provider:               nullable(u.Provider),
		ProviderID:             nullable(u.ProviderID),
		DisplayName:            nullable(u.DisplayName),
		AvatarURL:              nullable(u.AvatarURL),
		IsVerified:             u.IsVerified,
		VerificationTokenHash:  nullable(u.VerificationTokenHash),
		PasswordResetTokenHash: nullable(u.PasswordResetTokenHash),
		PasswordResetExpiresAt: u.PasswordResetExpiresAt,
	}
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:                     dbu.ID,
		Email:                  dbu.Email,
		PasswordHash:           deref(dbu.PasswordHash),
		Provider:               deref(dbu.Provider),
		ProviderID:             deref(dbu.ProviderID),
		DisplayName:            deref(dbu.DisplayName),
		AvatarURL:              deref(dbu.AvatarURL),
		IsVerified:             dbu.IsVerified,
		VerificationTokenHash:  deref(dbu.VerificationTokenHash),
		PasswordResetTokenHash: deref(dbu.PasswordResetTokenHash),
		PasswordResetExpiresAt: dbu.PasswordResetExpiresAt,
		CreatedAt:              dbu.CreatedAt,
		UpdatedAt:              dbu.UpdatedAt,
	}
}
