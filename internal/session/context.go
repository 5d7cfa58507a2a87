package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/redmonkez12/growth-api/internal/user"
)

// MethodKind tells how a session was authenticated
type MethodKind string

const (
	MethodNone      MethodKind = ""
	MethodLocal     MethodKind = "local"
	MethodFederated MethodKind = "federated"
)

// AuthMethod is either Local or Federated(provider)
type AuthMethod struct {
	Kind     MethodKind
	Provider string
}

func Local() AuthMethod { return AuthMethod{Kind: MethodLocal} }

func Federated(provider string) AuthMethod {
	return AuthMethod{Kind: MethodFederated, Provider: provider}
}

// AuthContext is the identity a request resolved to. The zero value is anonymous.
// It is built once per request by Manager and passed by value afterwards.
type AuthContext struct {
	UserID uuid.UUID
	Method AuthMethod
	// User is the record loaded when the session was resolved
	User *user.User
}

// Anonymous returns the unauthenticated context
func Anonymous() AuthContext { return AuthContext{} }

// Authenticated builds the context for a freshly authenticated user
func Authenticated(u *user.User, method AuthMethod) AuthContext {
	return AuthContext{UserID: u.ID, Method: method, User: u}
}

func (a AuthContext) IsAuthenticated() bool {
	return a.UserID != uuid.Nil && a.Method.Kind != MethodNone
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying ac
func NewContext(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

// FromContext returns the AuthContext stored by the middleware, or Anonymous
func FromContext(ctx context.Context) AuthContext {
	if ac, ok := ctx.Value(ctxKey{}).(AuthContext); ok {
		return ac
	}
	return Anonymous()
}
