// Package token issues and verifies the signed bearer tokens handed out at
// login.
package token

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/complytics/internal/clock"
	"github.com/smallbiznis/complytics/internal/config"
)

// ErrInvalidToken covers malformed tokens, bad signatures, unexpected
// algorithms, missing subjects and expired tokens alike.
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the user's email as subject and the role at issue time.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// KeySource supplies the symmetric signing key on every sign and verify.
type KeySource interface {
	SigningKey() []byte
}

// RotatingKey is a KeySource whose key can be replaced at runtime. Tokens
// signed with the previous key stop verifying once it is swapped.
type RotatingKey struct {
	key atomic.Value // holds []byte
}

func NewRotatingKey(key []byte) *RotatingKey {
	k := &RotatingKey{}
	k.Swap(key)
	return k
}

func (k *RotatingKey) SigningKey() []byte {
	return k.key.Load().([]byte)
}

func (k *RotatingKey) Swap(key []byte) {
	cp := make([]byte, len(key))
	copy(cp, key)
	k.key.Store(cp)
}

type Service struct {
	keys   KeySource
	method jwt.SigningMethod
	ttl    time.Duration
	clock  clock.Clock
}

// New builds the token service from AUTH_SECRET_KEY, AUTH_ALGORITHM and
// ACCESS_TOKEN_EXPIRE_MINUTES.
func New(cfg config.Config, clk clock.Clock) (*Service, error) {
	return NewWithKey(NewRotatingKey([]byte(cfg.Auth.SecretKey)), cfg.Auth.Algorithm, cfg.Auth.AccessTokenTTL, clk)
}

func NewWithKey(keys KeySource, algorithm string, ttl time.Duration, clk clock.Clock) (*Service, error) {
	if keys == nil || len(keys.SigningKey()) == 0 {
		return nil, errors.New("token signing key is required")
	}
	method, err := signingMethod(algorithm)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{keys: keys, method: method, ttl: ttl, clock: clk}, nil
}

func signingMethod(algorithm string) (jwt.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(algorithm)) {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
}

func (s *Service) DefaultTTL() time.Duration { return s.ttl }

// Issue signs a token for subject. A non-positive ttl uses the configured
// default lifetime.
func (s *Service) Issue(subject, role string, ttl time.Duration) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := s.clock.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.keys.SigningKey())
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt.Truncate(time.Second), nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
// Every failure is reported as ErrInvalidToken.
func (s *Service) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.keys.SigningKey(), nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
