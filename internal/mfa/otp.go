// Package mfa implements second-factor codes: one-time numeric codes delivered
// out of band, and TOTP for authenticator apps.
package mfa

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"trustcore/internal/security"
)

// CodeDigits is the length of a generated one-time code.
const CodeDigits = 6

// DefaultCodeWindow is how long a one-time code stays valid when the caller does not choose.
const DefaultCodeWindow = 5 * time.Minute

var (
	ErrCodeMismatch = security.NewKindError(security.ErrAuthentication, "verification code mismatch")
	ErrCodeExpired  = security.NewKindError(security.ErrAuthentication, "verification code has expired")
)

// GenerateCode returns a 6-digit numeric code in 100000..999999 drawn from crypto/rand.
func GenerateCode() (string, error) {
	n, err := security.GenerateSecureRandomNumber(100_000, 1_000_000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", CodeDigits, n), nil
}

// HashCode returns the hex SHA-256 of code. Stores keep only this hash.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// CodesEqual compares two codes in constant time. It does not look at any
// validity window; callers that need one use VerifyCode.
func CodesEqual(provided, stored string) bool {
	if provided == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(stored)) == 1
}

// CodeMatchesHash compares provided against a stored HashCode value in constant time.
func CodeMatchesHash(provided, storedHash string) bool {
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashCode(provided)), []byte(storedHash)) == 1
}

// VerifyCode checks provided against stored and enforces that now is within
// window of issuedAt. A zero window selects DefaultCodeWindow. Expiry is checked
// first so a correct but stale code reports ErrCodeExpired.
func VerifyCode(provided, stored string, issuedAt time.Time, window time.Duration, now time.Time) error {
	if window <= 0 {
		window = DefaultCodeWindow
	}
	if !now.Before(issuedAt.Add(window)) {
		return ErrCodeExpired
	}
	if !CodesEqual(provided, stored) {
		return ErrCodeMismatch
	}
	return nil
}
