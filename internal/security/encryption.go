package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the GCM nonce length in bytes. 16 bytes keeps stored fields
	// compatible with records written by the previous Node service.
	IVSize = 16
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

// EncryptedField is the at-rest form of an encrypted value. All fields are hex.
type EncryptedField struct {
	IV         string `json:"iv"`
	Ciphertext string `json:"encryptedData"`
	AuthTag    string `json:"authTag"`
}

// Engine performs AES-256-GCM field encryption and HMAC-SHA256 integrity tags
// with a single 256-bit key. Safe for concurrent use.
type Engine struct {
	key  []byte
	aead cipher.AEAD
	rand io.Reader
}

// NewEngine returns an Engine for the given 32-byte key.
func NewEngine(key []byte) (*Engine, error) {
	if len(key) != KeySize {
		return nil, &CryptoError{Op: "init", Err: errors.New("key must be 32 bytes")}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &CryptoError{Op: "init", Err: err}
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, &CryptoError{Op: "init", Err: err}
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &Engine{key: k, aead: aead, rand: rand.Reader}, nil
}

// NewEngineFromHex returns an Engine for a hex-encoded 32-byte key (64 hex chars).
func NewEngineFromHex(hexKey string) (*Engine, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, &CryptoError{Op: "init", Err: errors.New("key is not valid hex")}
	}
	defer zero(key)
	return NewEngine(key)
}

// GenerateKey returns a fresh random 32-byte key, hex-encoded.
func GenerateKey() (string, error) {
	return GenerateToken(KeySize)
}

// EncryptField encrypts plaintext under a fresh random IV.
func (e *Engine) EncryptField(plaintext string) (*EncryptedField, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(e.rand, iv); err != nil {
		return nil, &CryptoError{Op: "encrypt", Err: err}
	}
	sealed := e.aead.Seal(nil, iv, []byte(plaintext), nil)
	split := len(sealed) - TagSize
	return &EncryptedField{
		IV:         hex.EncodeToString(iv),
		Ciphertext: hex.EncodeToString(sealed[:split]),
		AuthTag:    hex.EncodeToString(sealed[split:]),
	}, nil
}

// DecryptField reverses EncryptField. It returns ErrDecryptFailed if the tag does
// not verify; no plaintext is returned in that case.
func (e *Engine) DecryptField(f *EncryptedField) (string, error) {
	if f == nil {
		return "", &CryptoError{Op: "decrypt", Err: errors.New("nil field")}
	}
	iv, err := hex.DecodeString(f.IV)
	if err != nil || len(iv) != IVSize {
		return "", &CryptoError{Op: "decrypt", Err: errors.New("malformed iv")}
	}
	ct, err := hex.DecodeString(f.Ciphertext)
	if err != nil {
		return "", &CryptoError{Op: "decrypt", Err: errors.New("malformed ciphertext")}
	}
	tag, err := hex.DecodeString(f.AuthTag)
	if err != nil || len(tag) != TagSize {
		return "", &CryptoError{Op: "decrypt", Err: errors.New("malformed auth tag")}
	}
	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plain, err := e.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}

// EncryptObject JSON-encodes v and encrypts the result.
func (e *Engine) EncryptObject(v any) (*EncryptedField, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &CryptoError{Op: "encrypt object", Err: err}
	}
	return e.EncryptField(string(b))
}

// DecryptObject decrypts f and JSON-decodes the plaintext into out.
func (e *Engine) DecryptObject(f *EncryptedField, out any) error {
	plain, err := e.DecryptField(f)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(plain), out); err != nil {
		return &CryptoError{Op: "decrypt object", Err: err}
	}
	return nil
}

// zero overwrites key material before it is released.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
