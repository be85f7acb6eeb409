package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

const (
	sessionAudience = "gastos-session"
	stateAudience   = "gastos-oauth-state"
	stateTTL        = 10 * time.Minute
)

// JWTManager handles session and OAuth state tokens.
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

// Claims are the session claims; Subject is the email.
type Claims struct {
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Method Method `json:"method,omitempty"`
	jwt.RegisteredClaims
}

// StateClaims carry the sign-in flow through the OAuth round trip.
type StateClaims struct {
	Flow Flow `json:"flow"`
	jwt.RegisteredClaims
}

func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
	}
}

// TokenDuration is the lifetime of session tokens.
func (m *JWTManager) TokenDuration() time.Duration {
	return m.tokenDuration
}

// Generate signs a session token for id.
func (m *JWTManager) Generate(id Identity) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		Email:  id.Email,
		Name:   id.DisplayName,
		Method: id.Method,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Email,
			Audience:  jwt.ClaimStrings{sessionAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := m.sign(claims)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Validate parses a session token.
func (m *JWTManager) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	if err := m.parse(tokenString, claims, sessionAudience); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateState signs a short-lived OAuth state token.
func (m *JWTManager) GenerateState(flow Flow) (string, error) {
	now := time.Now()
	return m.sign(&StateClaims{
		Flow: flow,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Audience:  jwt.ClaimStrings{stateAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
}

// ValidateState checks an OAuth state token and returns its flow.
func (m *JWTManager) ValidateState(state string) (Flow, error) {
	claims := &StateClaims{}
	if err := m.parse(state, claims, stateAudience); err != nil {
		return "", err
	}
	return claims.Flow, nil
}

func (m *JWTManager) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return s, nil
}

func (m *JWTManager) parse(tokenString string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
