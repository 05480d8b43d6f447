package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// GenerateHMAC returns the lowercase hex HMAC-SHA256 of data under the engine key.
func (e *Engine) GenerateHMAC(data string) string {
	m := hmac.New(sha256.New, e.key)
	m.Write([]byte(data))
	return hex.EncodeToString(m.Sum(nil))
}

// VerifyHMAC reports whether mac is exactly the tag GenerateHMAC would produce for
// data. The encoded forms are compared in constant time, so any change to mac,
// including a change of hex case, is a mismatch.
func (e *Engine) VerifyHMAC(data, mac string) bool {
	return hmac.Equal([]byte(mac), []byte(e.GenerateHMAC(data)))
}
