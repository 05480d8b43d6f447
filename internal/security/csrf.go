package security

import "crypto/subtle"

const csrfTokenBytes = 32

// GenerateCSRFToken returns 32 random bytes, hex-encoded.
func GenerateCSRFToken() (string, error) {
	return GenerateToken(csrfTokenBytes)
}

// VerifyCSRFToken compares candidate with expected in constant time and returns
// ErrCSRFMismatch unless they are identical and non-empty.
func VerifyCSRFToken(candidate, expected string) error {
	if expected == "" || subtle.ConstantTimeCompare([]byte(candidate), []byte(expected)) != 1 {
		return ErrCSRFMismatch
	}
	return nil
}
