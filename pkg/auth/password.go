package auth

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// BcryptHasher hashes and verifies passwords. Hashes made with a lower cost
// than the configured one are upgraded on successful verification.
type BcryptHasher struct {
	cost  int
	dummy string
}

func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to seed dummy hash: %w", err)
	}
	dummy, err := bcrypt.GenerateFromPassword(seed, cost)
	if err != nil {
		return nil, fmt.Errorf("failed to build dummy hash: %w", err)
	}

	return &BcryptHasher{cost: cost, dummy: string(dummy)}, nil
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether password matches hash. When it does and hash was
// made with outdated parameters, rehash holds a replacement.
func (h *BcryptHasher) Verify(password, hash string) (ok bool, rehash string, err error) {
	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost >= h.cost {
		return true, "", nil
	}
	rehash, err = h.Hash(password)
	if err != nil {
		// The password is still correct; keep the old hash.
		return true, "", nil
	}
	return true, rehash, nil
}

// DummyHash has the configured cost and matches no password a caller can know.
func (h *BcryptHasher) DummyHash() string {
	return h.dummy
}
