package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
)

// GenerateToken returns byteLength bytes from crypto/rand, hex-encoded.
func GenerateToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", &ValidationError{Field: "byteLength", Issues: []string{"must be positive"}}
	}
	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return "", &CryptoError{Op: "random", Err: err}
	}
	return hex.EncodeToString(b), nil
}

// GenerateSecureRandomNumber returns a uniformly distributed integer in [min, max).
// crypto/rand.Int rejects and resamples out-of-range draws, so there is no modulo bias.
func GenerateSecureRandomNumber(min, max int64) (int64, error) {
	if max <= min {
		return 0, &ValidationError{Field: "range", Issues: []string{"max must be greater than min"}}
	}
	span := new(big.Int).Sub(big.NewInt(max), big.NewInt(min))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return 0, &CryptoError{Op: "random", Err: err}
	}
	if !n.IsInt64() {
		return 0, &CryptoError{Op: "random", Err: errors.New("range overflow")}
	}
	return min + n.Int64(), nil
}
