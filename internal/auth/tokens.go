// Package auth issues, verifies and rotates the access/refresh token pair.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrUnauthenticated is the only error callers see for a rejected token,
// whatever the underlying reason.
var ErrUnauthenticated = errors.New("unauthenticated")

// refreshTokenBytes is the entropy of a refresh token before hex encoding.
const refreshTokenBytes = 40

// Config holds signing and lifetime parameters.
type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
}

// RefreshToken is a persisted, single-use refresh credential.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// RefreshTokenStore persists refresh tokens.
type RefreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, token RefreshToken) error
	// RotateRefreshToken atomically marks presented as used, provided it is
	// unused and not expired at now, and stores next for the same user.
	// It returns the owning user ID, or ErrUnauthenticated when presented
	// does not qualify. Of concurrent calls with one token at most one wins.
	RotateRefreshToken(ctx context.Context, presented string, next RefreshToken, now time.Time) (string, error)
	// RevokeRefreshToken marks token as used. Unknown tokens are not an error.
	RevokeRefreshToken(ctx context.Context, token string) error
}

// TokenPair is what a successful login, registration or refresh hands out.
type TokenPair struct {
	UserID           string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Service implements the token lifecycle.
type Service struct {
	cfg    Config
	store  RefreshTokenStore
	now    func() time.Time
	random io.Reader
}

// Option customises Service.
type Option func(*Service)

// WithClock injects the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService constructs a Service.
func NewService(cfg Config, store RefreshTokenStore, opts ...Option) *Service {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	s := &Service{
		cfg:    cfg,
		store:  store,
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssuePair signs a fresh access token and persists a new refresh token.
func (s *Service) IssuePair(ctx context.Context, userID string) (TokenPair, error) {
	now := s.now()
	refresh, err := s.newRefreshToken(userID, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.CreateRefreshToken(ctx, refresh); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	pair, err := s.pairFor(userID, refresh, now)
	if err != nil {
		return TokenPair{}, err
	}
	tokensIssued.WithLabelValues("issue").Inc()
	return pair, nil
}

// VerifyAccess validates signature, issuer and expiry and returns the user ID.
func (s *Service) VerifyAccess(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrUnauthenticated
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.cfg.Leeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		verifyFailures.Inc()
		return "", ErrUnauthenticated
	}
	return claims.Subject, nil
}

// Rotate consumes a refresh token and returns a fresh pair for its owner.
// A token that is unknown, used or expired yields ErrUnauthenticated.
func (s *Service) Rotate(ctx context.Context, presented string) (TokenPair, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		rotations.WithLabelValues("rejected").Inc()
		return TokenPair{}, ErrUnauthenticated
	}

	now := s.now()
	next, err := s.newRefreshToken("", now)
	if err != nil {
		return TokenPair{}, err
	}

	userID, err := s.store.RotateRefreshToken(ctx, presented, next, now)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			rotations.WithLabelValues("rejected").Inc()
			return TokenPair{}, ErrUnauthenticated
		}
		rotations.WithLabelValues("error").Inc()
		return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	next.UserID = userID
	pair, err := s.pairFor(userID, next, now)
	if err != nil {
		return TokenPair{}, err
	}
	rotations.WithLabelValues("rotated").Inc()
	tokensIssued.WithLabelValues("rotate").Inc()
	return pair, nil
}

// Revoke burns the refresh token presented at logout. Access tokens are not
// tracked and stay valid until they expire.
func (s *Service) Revoke(ctx context.Context, presented string) error {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil
	}
	if err := s.store.RevokeRefreshToken(ctx, presented); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	rotations.WithLabelValues("revoked").Inc()
	return nil
}

func (s *Service) pairFor(userID string, refresh RefreshToken, now time.Time) (TokenPair, error) {
	accessExp := now.Add(s.cfg.AccessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(accessExp),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	return TokenPair{
		UserID:           userID,
		AccessToken:      signed,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

func (s *Service) newRefreshToken(userID string, now time.Time) (RefreshToken, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return RefreshToken{}, fmt.Errorf("generate refresh token: %w", err)
	}
	return RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     hex.EncodeToString(buf),
		ExpiresAt: now.Add(s.cfg.RefreshTTL),
		CreatedAt: now,
	}, nil
}
