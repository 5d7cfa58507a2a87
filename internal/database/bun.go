package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// User is the persistence model for the users table. Nullable columns are pointers
// so that absent credentials are stored as NULL rather than empty strings.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                     uuid.UUID  `bun:"id,pk,type:uuid"`
	Email                  string     `bun:"email,notnull,unique"`
	PasswordHash           *string    `bun:"password_hash"`
	Provider               *string    `bun:"provider"`
	ProviderID             *string    `bun:"provider_id,unique"`
	DisplayName            *string    `bun:"display_name"`
	AvatarURL              *string    `bun:"avatar_url"`
	IsVerified             bool       `bun:"is_verified,notnull,default:false"`
	VerificationTokenHash  *string    `bun:"verification_token_hash,unique"`
	PasswordResetTokenHash *string    `bun:"password_reset_token_hash,unique"`
	PasswordResetExpiresAt *time.Time `bun:"password_reset_expires_at"`
	CreatedAt              time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt              time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// NewBunDB creates a new Bun DB instance from an existing sql.DB connection
func NewBunDB(sqlDB *sql.DB) *bun.DB {
	return bun.NewDB(sqlDB, pgdialect.New())
}

// CreateSchema creates the tables used by the service if they do not exist
func CreateSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	return nil
}
