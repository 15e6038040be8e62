// Package password hashes and verifies account passwords with bcrypt.
package password

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"runtime"

	"github.com/smallbiznis/complytics/internal/config"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultCost     = 12
	TemporaryLength = 12
	alphabet        = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"
)

// Hasher runs bcrypt with a fixed cost. At most GOMAXPROCS hashes run at
// once; callers beyond that wait or give up with their context.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}
}

// New builds the process hasher from AUTH_BCRYPT_COST.
func New(cfg config.Config) *Hasher {
	return NewHasher(cfg.Auth.BcryptCost)
}

func (h *Hasher) Cost() int { return h.cost }

// Hash returns a salted bcrypt hash. Two calls with the same input never
// return the same string.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether password matches hash. A malformed hash or a
// cancelled context is a mismatch.
func (h *Hasher) Verify(ctx context.Context, password, hash string) bool {
	if hash == "" {
		return false
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Generate returns a random password drawn from letters, digits and
// punctuation.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("password length must be positive")
	}
	size := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// GenerateTemporary returns a fresh credential for a newly provisioned account.
func GenerateTemporary() (string, error) {
	return Generate(TemporaryLength)
}
