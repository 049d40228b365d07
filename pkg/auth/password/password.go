// Package password hashes and verifies account passwords.
//
// Two schemes are available: "sha256" stores an unsalted hex SHA-256 digest
// and exists for compatibility with digests created by earlier deployments;
// "bcrypt" uses golang.org/x/crypto/bcrypt and is the recommended choice.
package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch is returned by Verify when the password does not match.
var ErrMismatch = errors.New("password does not match")

// Hasher produces and checks password digests.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(digest, password string) error
}

// Scheme names accepted by New.
const (
	SchemeSHA256 = "sha256"
	SchemeBcrypt = "bcrypt"
)

// New returns the hasher for the named scheme. An empty name selects bcrypt.
func New(scheme string, bcryptCost int) (Hasher, error) {
	switch scheme {
	case SchemeBcrypt, "":
		if bcryptCost == 0 {
			bcryptCost = bcrypt.DefaultCost
		}
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
		return Bcrypt{Cost: bcryptCost}, nil
	case SchemeSHA256:
		return SHA256{}, nil
	default:
		return nil, fmt.Errorf("unknown password scheme %q", scheme)
	}
}

// SHA256 stores hex(sha256(password)).
type SHA256 struct{}

// Hash implements Hasher.
func (SHA256) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:]), nil
}

// Verify implements Hasher using a constant-time comparison.
func (h SHA256) Verify(digest, password string) error {
	want, _ := h.Hash(password)
	if subtle.ConstantTimeCompare([]byte(digest), []byte(want)) != 1 {
		return ErrMismatch
	}
	return nil
}

// Bcrypt stores bcrypt digests at the given cost.
type Bcrypt struct {
	Cost int
}

// Hash implements Hasher.
func (h Bcrypt) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

// Verify implements Hasher.
func (Bcrypt) Verify(digest, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	if err != nil {
		return fmt.Errorf("bcrypt: %w", err)
	}
	return nil
}
