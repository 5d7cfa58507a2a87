package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/jonboulle/clockwork"
)

const (
	stateSubject = "oauth-state"
	// StateTTL bounds the provider round trip
	StateTTL = 10 * time.Minute
)

// OAuthState is what survives the provider round trip
type OAuthState struct {
	Nonce    string
	ReturnTo string
}

// StateSealer seals OAuth state into PASETO v4.local tokens
// (XChaCha20-Poly1305), so the state cookie can't be forged or read.
type StateSealer struct {
	symmetricKey paseto.V4SymmetricKey
	clock        clockwork.Clock
}

func NewStateSealer(symmetricKey []byte, clock clockwork.Clock) (*StateSealer, error) {
	if len(symmetricKey) != 32 {
		return nil, fmt.Errorf("symmetric key must be exactly 32 bytes, got %d", len(symmetricKey))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(symmetricKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}

	return &StateSealer{symmetricKey: key, clock: clock}, nil
}

// Seal returns a fresh state token carrying returnTo
func (s *StateSealer) Seal(returnTo string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	now := s.clock.Now()

	token := paseto.NewToken()
	token.SetSubject(stateSubject)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(StateTTL))
	token.SetJti(hex.EncodeToString(nonce))
	token.SetString("return_to", returnTo)

	return token.V4Encrypt(s.symmetricKey, nil), nil
}

// Open decrypts and validates a state token
func (s *StateSealer) Open(sealed string) (OAuthState, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ValidAt(s.clock.Now()))
	parser.AddRule(paseto.Subject(stateSubject))

	token, err := parser.ParseV4Local(s.symmetricKey, sealed, nil)
	if err != nil {
		return OAuthState{}, ErrInvalidState
	}

	nonce, err := token.GetJti()
	if err != nil {
		return OAuthState{}, ErrInvalidState
	}
	returnTo, err := token.GetString("return_to")
	if err != nil {
		return OAuthState{}, ErrInvalidState
	}

	return OAuthState{Nonce: nonce, ReturnTo: returnTo}, nil
}
