package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/redmonkez12/growth-api/internal/logging"
	"github.com/redmonkez12/growth-api/internal/session"
	"github.com/redmonkez12/growth-api/internal/user"
)

// fastArgon2 keeps hashing cheap in tests
var fastArgon2 = Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// sequenceReader is a deterministic byte source; every read continues the sequence
type sequenceReader struct {
	mu   sync.Mutex
	next byte
}

func (r *sequenceReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range p {
		p[i] = r.next
		r.next++
	}
	return len(p), nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

type fakeSessions struct {
	mu          sync.Mutex
	established []session.AuthContext
	destroyed   int
}

func (f *fakeSessions) Establish(_ context.Context, ac session.AuthContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.established = append(f.established, ac)
	return nil
}

func (f *fakeSessions) Destroy(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed++
	return nil
}

type sentEmail struct {
	kind  string
	to    string
	token string
}

// recordingEmail captures the plaintext tokens handed out for delivery
type recordingEmail struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (r *recordingEmail) SendVerificationEmail(_ context.Context, to, token string) error {
	r.record("verification", to, token)
	return nil
}

func (r *recordingEmail) SendPasswordResetEmail(_ context.Context, to, token string) error {
	r.record("password_reset", to, token)
	return nil
}

func (r *recordingEmail) record(kind, to, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentEmail{kind: kind, to: to, token: token})
}

func (r *recordingEmail) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.sent {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (r *recordingEmail) last(t *testing.T, kind string) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].kind == kind {
			return r.sent[i].token
		}
	}
	t.Fatalf("no %s email sent", kind)
	return ""
}

type serviceEnv struct {
	service  *Service
	users    *user.MemoryStore
	sessions *fakeSessions
	email    *recordingEmail
	clock    *clockwork.FakeClock
}

func newServiceEnv(t *testing.T, opts Options) *serviceEnv {
	t.Helper()

	env := &serviceEnv{
		users:    user.NewMemoryStore(),
		sessions: &fakeSessions{},
		email:    &recordingEmail{},
		clock:    clockwork.NewFakeClockAt(testEpoch),
	}
	env.service = NewService(
		env.users,
		env.sessions,
		NewArgon2Hasher(fastArgon2),
		NewTokenGenerator(&sequenceReader{}),
		env.email,
		env.clock,
		discardLogger(),
		opts,
	)
	return env
}

func discardLogger() *logging.Logger {
	return logging.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
