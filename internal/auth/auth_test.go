package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"gastos/internal/store/memory"
)

func newTestAuthenticator(s *memory.Store) *PasswordAuthenticator {
	a := NewPasswordAuthenticator(s)
	a.cost = bcrypt.MinCost
	return a
}

func TestPasswordAuthenticator(t *testing.T) {
	ctx := context.Background()
	s := memory.New(nil)
	a := newTestAuthenticator(s)

	_, err := a.Register(ctx, "ana@example.com", "Ana", "short")
	require.ErrorIs(t, err, ErrWeakPassword)

	_, err = a.Register(ctx, "not-an-email", "Ana", "longenough")
	require.ErrorIs(t, err, ErrInvalidEmail)

	u, err := a.Register(ctx, " Ana@Example.com ", "Ana", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.NotEqual(t, "longenough", u.PasswordHash)

	_, err = a.Register(ctx, "ana@example.com", "Ana", "longenough")
	require.ErrorIs(t, err, ErrEmailExists)

	got, err := a.Authenticate(ctx, "ANA@example.com", "longenough")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = a.Authenticate(ctx, "ana@example.com", "wrongpassword")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Authenticate(ctx, "nobody@example.com", "longenough")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	token, claims, err := m.Generate(Identity{Email: "ana@example.com", DisplayName: "Ana", Method: MethodGoogle})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", claims.Subject)

	got, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", got.Email)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, MethodGoogle, got.Method)

	_, err = m.Validate("")
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = m.Validate(token + "x")
	require.ErrorIs(t, err, ErrInvalidToken)

	other := NewJWTManager("other-secret", time.Hour)
	_, err = other.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := NewJWTManager("test-secret", -time.Minute)
	old, _, err := expired.Generate(Identity{Email: "ana@example.com"})
	require.NoError(t, err)
	_, err = m.Validate(old)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestStateTokensAreNotSessions(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	state, err := m.GenerateState(FlowRedirect)
	require.NoError(t, err)

	flow, err := m.ValidateState(state)
	require.NoError(t, err)
	assert.Equal(t, FlowRedirect, flow)

	_, err = m.Validate(state)
	require.ErrorIs(t, err, ErrInvalidToken)

	session, _, err := m.Generate(Identity{Email: "ana@example.com"})
	require.NoError(t, err)
	_, err = m.ValidateState(session)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSelectFlow(t *testing.T) {
	tests := []struct {
		displayMode string
		standalone  bool
		want        Flow
	}{
		{"browser", false, FlowPopup},
		{"", false, FlowPopup},
		{"standalone", false, FlowRedirect},
		{"Standalone", false, FlowRedirect},
		{"fullscreen", false, FlowRedirect},
		{"minimal-ui", false, FlowRedirect},
		{"browser", true, FlowRedirect},
	}
	for _, tt := range tests {
		t.Run(tt.displayMode, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectFlow(tt.displayMode, tt.standalone))
		})
	}
}

func TestGateAdmit(t *testing.T) {
	ctx := context.Background()
	s := memory.New([]string{"ana@example.com"})
	jwtm := NewJWTManager("test-secret", time.Hour)
	g := NewGate(s, jwtm)

	sess, err := g.Admit(ctx, Identity{Email: "ANA@example.com", DisplayName: "Ana", Method: MethodGoogle})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", sess.Email)
	assert.True(t, sess.ExpiresAt.After(time.Now()))

	claims, err := jwtm.Validate(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "Ana", claims.Name)

	_, err = g.Admit(ctx, Identity{Email: "bob@example.com", Method: MethodGoogle})
	require.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, "Tu cuenta no está autorizada para usar esta app.", err.Error())

	_, err = g.Admit(ctx, Identity{Email: "  ", Method: MethodGoogle})
	require.ErrorIs(t, err, ErrNotAuthorized)
}

type failingAllowList struct{}

func (failingAllowList) IsAllowed(context.Context, string) (bool, error) {
	return false, errors.New("unavailable")
}
func (failingAllowList) Allow(context.Context, string) error { return nil }

func TestGateAdmitStorageError(t *testing.T) {
	g := NewGate(failingAllowList{}, NewJWTManager("s", time.Hour))
	_, err := g.Admit(context.Background(), Identity{Email: "ana@example.com"})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotAuthorized))
}

func TestSignInWithPassword(t *testing.T) {
	ctx := context.Background()
	s := memory.New([]string{"ana@example.com"})
	a := newTestAuthenticator(s)
	g := NewGate(s, NewJWTManager("test-secret", time.Hour))

	_, err := a.Register(ctx, "ana@example.com", "Ana", "longenough")
	require.NoError(t, err)
	_, err = a.Register(ctx, "bob@example.com", "Bob", "longenough")
	require.NoError(t, err)

	sess, err := g.SignInWithPassword(ctx, a, "ana@example.com", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "Ana", sess.DisplayName)

	_, err = g.SignInWithPassword(ctx, a, "ana@example.com", "nope-nope")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// registered but not allow-listed
	_, err = g.SignInWithPassword(ctx, a, "bob@example.com", "longenough")
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestGoogleProviderAuthCodeURL(t *testing.T) {
	p := NewGoogleProvider("client-id", "secret", "http://localhost:8080/auth/google/callback")
	u := p.AuthCodeURL("state-123")
	assert.Contains(t, u, "client_id=client-id")
	assert.Contains(t, u, "state=state-123")
	assert.Contains(t, u, "accounts.google.com")
}
