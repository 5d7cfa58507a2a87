package user

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process store with the same semantics as Repository.
// All mutations hold the lock, which gives the per-record atomicity the
// conditional UPDATE statements provide in Postgres.
type MemoryStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*User
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[uuid.UUID]*User),
		now:   time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, u *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return nil, ErrDuplicateEmail
		}
		if u.ProviderID != "" && existing.ProviderID == u.ProviderID {
			return nil, ErrDuplicateProvider
		}
	}

	stored := u.Clone()
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := s.now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.users[stored.ID] = stored

	return stored.Clone(), nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	return s.find(func(u *User) bool { return u.Email == email })
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	return s.find(func(u *User) bool { return u.ID == id })
}

func (s *MemoryStore) GetByProviderID(_ context.Context, provider, providerID string) (*User, error) {
	return s.find(func(u *User) bool {
		return u.Provider == provider && u.ProviderID == providerID
	})
}

func (s *MemoryStore) SetPasswordResetToken(_ context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := s.update(func(u *User) bool { return u.ID == id }, func(u *User) {
		u.PasswordResetTokenHash = tokenHash
		t := expiresAt
		u.PasswordResetExpiresAt = &t
	})
	return err
}

func (s *MemoryStore) ConsumePasswordResetToken(_ context.Context, tokenHash string, now time.Time, passwordHash string) (*User, error) {
	match := func(u *User) bool {
		return tokenHash != "" &&
			u.PasswordResetTokenHash == tokenHash &&
			u.PasswordResetExpiresAt != nil &&
			u.PasswordResetExpiresAt.After(now)
	}
	return s.update(match, func(u *User) {
		u.PasswordHash = passwordHash
		u.PasswordResetTokenHash = ""
		u.PasswordResetExpiresAt = nil
	})
}

func (s *MemoryStore) SetVerificationToken(_ context.Context, id uuid.UUID, tokenHash string) error {
	_, err := s.update(func(u *User) bool { return u.ID == id && !u.IsVerified }, func(u *User) {
		u.VerificationTokenHash = tokenHash
	})
	return err
}

func (s *MemoryStore) ConsumeVerificationToken(_ context.Context, tokenHash string) (*User, error) {
	match := func(u *User) bool {
		return tokenHash != "" && u.VerificationTokenHash == tokenHash
	}
	return s.update(match, func(u *User) {
		u.IsVerified = true
		u.VerificationTokenHash = ""
	})
}

func (s *MemoryStore) LinkProvider(_ context.Context, id uuid.UUID, provider, providerID, avatarURL string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.ProviderID != "" {
		return nil, ErrAlreadyLinked
	}
	for _, other := range s.users {
		if other.Provider == provider && other.ProviderID == providerID {
			return nil, ErrDuplicateProvider
		}
	}

	u.Provider = provider
	u.ProviderID = providerID
	if avatarURL != "" {
		u.AvatarURL = avatarURL
	}
	u.UpdatedAt = s.now().UTC()

	return u.Clone(), nil
}

func (s *MemoryStore) UpdateDisplayName(_ context.Context, id uuid.UUID, displayName string) (*User, error) {
	return s.update(func(u *User) bool { return u.ID == id }, func(u *User) {
		u.DisplayName = displayName
	})
}

func (s *MemoryStore) find(match func(*User) bool) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) update(match func(*User) bool, apply func(*User)) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if match(u) {
			apply(u)
			u.UpdatedAt = s.now().UTC()
			return u.Clone(), nil
		}
	}
	return nil, ErrNotFound
}
