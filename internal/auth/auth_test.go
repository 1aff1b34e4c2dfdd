package auth

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/gavel/internal/store"
)

func newTestAuth(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	st := store.NewStore(clock)
	return NewService(st, "test-secret", time.Hour, clock), st
}

func TestLogin_CreatesUserAndRoundTrips(t *testing.T) {
	svc, st := newTestAuth(t)

	token, user, err := svc.Login("Alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "alice", user.Username)
	require.Equal(t, 1, st.UserCount())

	identity, err := svc.Verify(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, identity.UserID)
	require.Equal(t, "alice", identity.Username)
}

func TestLogin_ReusesExistingUser(t *testing.T) {
	svc, st := newTestAuth(t)

	_, first, err := svc.Login("alice")
	require.NoError(t, err)
	_, second, err := svc.Login("  ALICE  ")
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, st.UserCount())
}

func TestLogin_RejectsShortUsername(t *testing.T) {
	svc, _ := newTestAuth(t)

	for _, username := range []string{"", " ", "a", "  a  "} {
		_, _, err := svc.Login(username)
		require.ErrorIs(t, err, ErrInvalidUsername)
	}
}

func TestVerify_RejectsBadTokens(t *testing.T) {
	svc, _ := newTestAuth(t)
	token, _, err := svc.Login("alice")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"tampered", token + "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerify_RejectsForeignSecret(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := store.NewStore(clock)
	issuer := NewService(st, "secret-a", time.Hour, clock)
	verifier := NewService(st, "secret-b", time.Hour, clock)

	token, _, err := issuer.Login("alice")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

// Token lifetime follows the injected clock: valid until expiry, rejected
// after the clock advances past it.
func TestVerify_ExpiryFollowsClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := store.NewStore(clock)
	svc := NewService(st, "test-secret", time.Hour, clock)

	token, _, err := svc.Login("alice")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = svc.Verify(token)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = svc.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
