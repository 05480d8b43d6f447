package security

import (
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2Iterations is the iteration count for password-derived keys.
	PBKDF2Iterations = 100_000
	// SaltSize is the length of a generated KDF salt in bytes.
	SaltSize = 16
)

// DeriveKeyFromPassword derives a 32-byte key from password with PBKDF2-HMAC-SHA256.
// A nil or empty salt is replaced with 16 fresh random bytes; the salt actually used
// is returned so the key can be re-derived.
func DeriveKeyFromPassword(password string, salt []byte) (key, usedSalt []byte, err error) {
	if len(salt) == 0 {
		salt = make([]byte, SaltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, &CryptoError{Op: "derive key", Err: err}
		}
	}
	key = pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeySize, sha256.New)
	return key, salt, nil
}
