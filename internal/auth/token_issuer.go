// Package auth issues and validates the HS256 bearer tokens that guard the
// backend API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL = 30 * time.Minute
	// refreshMargin is how long before expiry a TokenSource mints a new token.
	refreshMargin = time.Minute
)

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingSubjectClaim  = errors.New("subject claim must be provided")
	errMissingIssuer        = errors.New("issuer must be provided")
	errMissingAudience      = errors.New("audience must be provided")
)

// TokenIssuerConfig configures the backend JWT issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenIssuer issues and validates backend JWTs.
type TokenIssuer struct {
	config TokenIssuerConfig
	clock  func() time.Time
}

// NewTokenIssuer validates cfg and constructs a TokenIssuer. A zero TTL falls
// back to thirty minutes.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errMissingIssuer
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, errMissingAudience
	}
	ttl := cfg.TokenTTL
	if ttl < 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	if ttl == 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		config: TokenIssuerConfig{
			SigningSecret: cfg.SigningSecret,
			Issuer:        cfg.Issuer,
			Audience:      cfg.Audience,
			TokenTTL:      ttl,
			Clock:         clock,
		},
		clock: clock,
	}, nil
}

// IssueToken produces a signed JWT for subject and its lifetime in seconds.
func (i *TokenIssuer) IssueToken(_ context.Context, subject string) (string, int64, error) {
	if strings.TrimSpace(subject) == "" {
		return "", 0, errMissingSubjectClaim
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.config.TokenTTL).UTC()

	registered := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    i.config.Issuer,
		Audience:  []string{i.config.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, registered)
	signed, err := token.SignedString(i.config.SigningSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// ValidateToken ensures the backend JWT is well formed and returns the subject.
func (i *TokenIssuer) ValidateToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return i.config.SigningSecret, nil
		},
		jwt.WithAudience(i.config.Audience),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithTimeFunc(i.clock),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errMissingSubjectClaim
	}
	return claims.Subject, nil
}

// TokenSource mints tokens for a fixed subject and reuses each one until it
// is about to expire.
type TokenSource struct {
	issuer  *TokenIssuer
	subject string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// Source returns a TokenSource issuing tokens for subject.
func (i *TokenIssuer) Source(subject string) *TokenSource {
	return &TokenSource{issuer: i, subject: subject}
}

func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.issuer.clock()
	if s.token != "" && now.Add(refreshMargin).Before(s.expiresAt) {
		return s.token, nil
	}
	token, expiresIn, err := s.issuer.IssueToken(ctx, s.subject)
	if err != nil {
		return "", err
	}
	s.token = token
	s.expiresAt = now.Add(time.Duration(expiresIn) * time.Second)
	return s.token, nil
}
