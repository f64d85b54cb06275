package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ghost-swarm/ghost_swarm/internal/identity"
	"github.com/ghost-swarm/ghost_swarm/internal/settings"
)

// SessionKeyPrefix namespaces the signed-in flag kept per user.
const SessionKeyPrefix = "ghost-swarm-auth:"

var (
	// ErrInvalidToken covers malformed, expired and wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSessionRevoked is returned for a well-formed token whose session was logged out.
	ErrSessionRevoked = errors.New("session revoked")
)

// Claims are the access token claims. SessionID ties a token to the signed-in flag.
type Claims struct {
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Token is an issued access token.
type Token struct {
	AccessToken string
	ExpiresIn   int64
	SessionID   string
}

// Service issues and verifies access tokens and keeps the signed-in flag.
type Service struct {
	secret []byte
	ttl    time.Duration
	store  settings.Store
	now    func() time.Time
}

// NewService builds the auth service. store holds one flag per signed-in user.
func NewService(secret string, ttl time.Duration, store settings.Store) *Service {
	return &Service{secret: []byte(secret), ttl: ttl, store: store, now: time.Now}
}

// Login starts a session for user and returns its access token. A new login replaces
// any previous session for the same user.
func (s *Service) Login(ctx context.Context, user identity.User) (Token, error) {
	sid := uuid.NewString()
	if err := s.store.Set(ctx, SessionKeyPrefix+user.ID, sid, s.ttl); err != nil {
		return Token{}, fmt.Errorf("store session: %w", err)
	}
	return s.issue(user.ID, user.Email, sid)
}

// Refresh issues a fresh token for a still signed-in session and extends it.
func (s *Service) Refresh(ctx context.Context, token string) (Token, error) {
	claims, err := s.Verify(ctx, token)
	if err != nil {
		return Token{}, err
	}
	if err := s.store.Set(ctx, SessionKeyPrefix+claims.Subject, claims.SessionID, s.ttl); err != nil {
		return Token{}, fmt.Errorf("store session: %w", err)
	}
	return s.issue(claims.Subject, claims.Email, claims.SessionID)
}

// Verify checks the token signature and expiry and that its session is still live.
func (s *Service) Verify(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	sid, ok, err := s.store.Get(ctx, SessionKeyPrefix+claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok || sid != claims.SessionID {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// SignedIn reports whether userID currently holds a session.
func (s *Service) SignedIn(ctx context.Context, userID string) (bool, error) {
	_, ok, err := s.store.Get(ctx, SessionKeyPrefix+userID)
	return ok, err
}

// Logout clears the user's session, revoking every token issued for it.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, SessionKeyPrefix+userID)
}

func (s *Service) issue(userID, email, sid string) (Token, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Email:     email,
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresIn: int64(s.ttl.Seconds()), SessionID: sid}, nil
}
