package auth

import (
	"bytes"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStateKey = bytes.Repeat([]byte{7}, 32)

func TestStateSealer_RoundTrip(t *testing.T) {
	s, err := NewStateSealer(testStateKey, clockwork.NewFakeClockAt(testEpoch))
	require.NoError(t, err)

	sealed, err := s.Seal("/dashboard")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "dashboard")

	state, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", state.ReturnTo)
	assert.NotEmpty(t, state.Nonce)
}

func TestStateSealer_Expires(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	s, err := NewStateSealer(testStateKey, clock)
	require.NoError(t, err)

	sealed, err := s.Seal("/")
	require.NoError(t, err)

	clock.Advance(StateTTL + time.Second)

	_, err = s.Open(sealed)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStateSealer_RejectsForeignKeyAndGarbage(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	s, err := NewStateSealer(testStateKey, clock)
	require.NoError(t, err)
	other, err := NewStateSealer(bytes.Repeat([]byte{9}, 32), clock)
	require.NoError(t, err)

	sealed, err := other.Seal("/")
	require.NoError(t, err)

	_, err = s.Open(sealed)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = s.Open("v4.local.garbage")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestNewStateSealer_KeyLength(t *testing.T) {
	_, err := NewStateSealer([]byte("short"), clockwork.NewRealClock())
	assert.Error(t, err)
}
