package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gastos/internal/metrics"
	"gastos/internal/store"
)

// ErrNotAuthorized carries the message shown to a signed-in account that is
// not on the allow-list.
var ErrNotAuthorized = errors.New("Tu cuenta no está autorizada para usar esta app.")

// Session is an admitted identity and its signed token.
type Session struct {
	Token       string    `json:"-"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Gate admits identities whose email is on the allow-list.
type Gate struct {
	allow store.AllowList
	jwt   *JWTManager
}

func NewGate(allow store.AllowList, jwt *JWTManager) *Gate {
	return &Gate{allow: allow, jwt: jwt}
}

// Admit checks id against the allow-list and issues a session. A denied
// identity gets ErrNotAuthorized and no session, which signs it back out.
func (g *Gate) Admit(ctx context.Context, id Identity) (*Session, error) {
	id.Email = store.NormalizeEmail(id.Email)
	if id.Email == "" {
		metrics.SignIns.WithLabelValues(string(id.Method), "denied").Inc()
		return nil, ErrNotAuthorized
	}

	ok, err := g.allow.IsAllowed(ctx, id.Email)
	if err != nil {
		metrics.SignIns.WithLabelValues(string(id.Method), "error").Inc()
		return nil, fmt.Errorf("check allow-list: %w", err)
	}
	if !ok {
		metrics.SignIns.WithLabelValues(string(id.Method), "denied").Inc()
		slog.WarnContext(ctx, "Sign-in denied: email not allow-listed", "email", id.Email, "method", id.Method)
		return nil, ErrNotAuthorized
	}

	token, claims, err := g.jwt.Generate(id)
	if err != nil {
		metrics.SignIns.WithLabelValues(string(id.Method), "error").Inc()
		return nil, err
	}
	metrics.SignIns.WithLabelValues(string(id.Method), "admitted").Inc()
	slog.InfoContext(ctx, "Sign-in admitted", "email", id.Email, "method", id.Method)

	return &Session{
		Token:       token,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// SignInWithPassword authenticates and then admits.
func (g *Gate) SignInWithPassword(ctx context.Context, a Authenticator, email, password string) (*Session, error) {
	user, err := a.Authenticate(ctx, email, password)
	if err != nil {
		metrics.SignIns.WithLabelValues(string(MethodPassword), "failed").Inc()
		return nil, err
	}
	return g.Admit(ctx, Identity{Email: user.Email, DisplayName: user.DisplayName, Method: MethodPassword})
}
