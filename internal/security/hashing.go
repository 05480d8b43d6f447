package security

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordScore is the strength score below which HashPassword refuses a password.
const MinPasswordScore = 50

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to bcrypt's
// supported range. Zero selects bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// HashPassword checks password against the strength policy and returns its bcrypt
// hash. A password scoring below MinPasswordScore is rejected with a
// *ValidationError; it is never truncated or weakened to fit.
func (h *Hasher) HashPassword(password string) (string, error) {
	if err := ValidatePasswordStrength(password).Require(MinPasswordScore); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", &CryptoError{Op: "hash password", Err: err}
	}
	return string(b), nil
}

// ComparePassword verifies password against the stored hash in constant time.
// Returns nil on match and ErrInvalidCredentials otherwise.
func (h *Hasher) ComparePassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// CompareMissing does the bcrypt work of ComparePassword against a throwaway
// hash at h.Cost and always returns ErrInvalidCredentials. Callers use it when
// no account matches so response time does not reveal which accounts exist.
func (h *Hasher) CompareMissing(password string) error {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("trustcore-missing-account"), h.Cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
	return ErrInvalidCredentials
}

// Algorithm names a digest for HashData.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// HashData returns the hex digest of data. An empty algorithm selects SHA256.
func HashData(data string, alg Algorithm) (string, error) {
	var h hash.Hash
	switch alg {
	case "", SHA256:
		h = sha256.New()
	case SHA512:
		h = sha512.New()
	default:
		return "", &ValidationError{Field: "algorithm", Issues: []string{"unsupported digest " + string(alg)}}
	}
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil)), nil
}
