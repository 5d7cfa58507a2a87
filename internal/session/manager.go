package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"

	"github.com/redmonkez12/growth-api/internal/httputil"
	"github.com/redmonkez12/growth-api/internal/logging"
	"github.com/redmonkez12/growth-api/internal/user"
)

const (
	CookieName = "sid"

	keyUserID   = "user_id"
	keyMethod   = "auth_method"
	keyProvider = "auth_provider"
)

// UserLookup re-reads the user behind a session on every request
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Manager maps requests to AuthContexts using server-side session records
type Manager struct {
	sessions *scs.SessionManager
	users    UserLookup
}

// NewManager creates a session manager over store with the given lifetime.
// secure controls the Secure flag of the session cookie.
func NewManager(store scs.Store, ttl time.Duration, secure bool, users UserLookup) *Manager {
	sm := scs.New()
	sm.Store = store
	sm.Lifetime = ttl
	sm.Cookie.Name = CookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.Path = "/"
	sm.Cookie.Persist = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = secure

	return &Manager{sessions: sm, users: users}
}

// Establish binds the current session to an authenticated identity. The session
// token is renewed first so a pre-login token cannot be reused.
func (m *Manager) Establish(ctx context.Context, ac AuthContext) error {
	if !ac.IsAuthenticated() {
		return errors.New("cannot establish an anonymous session")
	}
	if err := m.sessions.RenewToken(ctx); err != nil {
		return fmt.Errorf("failed to renew session token: %w", err)
	}

	m.sessions.Put(ctx, keyUserID, ac.UserID.String())
	m.sessions.Put(ctx, keyMethod, string(ac.Method.Kind))
	m.sessions.Put(ctx, keyProvider, ac.Method.Provider)

	return nil
}

// Destroy removes the session record and expires the cookie. Calling it without an
// active session is not an error.
func (m *Manager) Destroy(ctx context.Context) error {
	if err := m.sessions.Destroy(ctx); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// Resolve loads the identity for the current session. A session pointing to a user
// that no longer exists is destroyed and resolves to Anonymous. Store failures are
// returned so that the request fails instead of running with a partial identity.
func (m *Manager) Resolve(ctx context.Context) (AuthContext, error) {
	raw := m.sessions.GetString(ctx, keyUserID)
	if raw == "" {
		return Anonymous(), nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return Anonymous(), m.Destroy(ctx)
	}

	u, err := m.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Anonymous(), m.Destroy(ctx)
		}
		return Anonymous(), fmt.Errorf("failed to load session user: %w", err)
	}

	method := AuthMethod{
		Kind:     MethodKind(m.sessions.GetString(ctx, keyMethod)),
		Provider: m.sessions.GetString(ctx, keyProvider),
	}
	if method.Kind == MethodNone {
		method = Local()
	}

	return Authenticated(u, method), nil
}

// Middleware loads the session and stores the resolved AuthContext in the request
// context for downstream handlers.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	resolve := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, err := m.Resolve(r.Context())
		if err != nil {
			logging.GetLoggerFromContext(r.Context()).Error("failed to resolve session", "error", err.Error())
			httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), ac)))
	})

	return m.sessions.LoadAndSave(resolve)
}

// RequireAuth rejects anonymous requests with 401
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !FromContext(r.Context()).IsAuthenticated() {
			httputil.RespondErrorWithCode(w, "not authenticated", httputil.CodeUnauthorized, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
