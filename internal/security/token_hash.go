package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashToken returns the hex SHA-256 of an encoded token. Revocation entries and
// log lines carry this hash instead of the raw token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenHashEqual reports in constant time whether token hashes to storedHash.
func TokenHashEqual(token, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(storedHash)) == 1
}

// TokenFingerprint is a short prefix of HashToken for log correlation.
func TokenFingerprint(token string) string {
	return HashToken(token)[:12]
}
