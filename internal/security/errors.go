package security

import (
	"errors"
	"strings"
)

// Error kinds. Every error returned by the trust subsystem wraps exactly one of
// these so callers can branch with errors.Is without string matching.
var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("authentication failed")
	ErrIntegrity      = errors.New("integrity check failed")
	ErrNotFound       = errors.New("not found")
	ErrCrypto         = errors.New("cryptographic operation failed")
)

// Authentication failures. Callers distinguish "bad credentials" from "needs refresh"
// with errors.Is(err, ErrTokenExpired).
var (
	ErrInvalidToken     = kind(ErrAuthentication, "invalid token")
	ErrInvalidSignature = kind(ErrAuthentication, "invalid token signature")
	ErrTokenExpired     = kind(ErrAuthentication, "token has expired")
	ErrTokenRevoked     = kind(ErrAuthentication, "token has been revoked")

	ErrInvalidCredentials = kind(ErrAuthentication, "invalid credentials")
)

// Integrity failures. These are security events and are never retried.
var (
	ErrDecryptFailed = kind(ErrIntegrity, "decryption failed: authentication tag mismatch")
	ErrCSRFMismatch  = kind(ErrIntegrity, "csrf token mismatch")
)

type kindError struct {
	kind error
	msg  string
}

func kind(k error, msg string) error {
	return &kindError{kind: k, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// NewKindError returns an error with message msg that matches k under errors.Is.
// Used by other packages to define their own sentinels within the shared taxonomy.
func NewKindError(k error, msg string) error {
	return kind(k, msg)
}

// ValidationError reports unmet policy requirements (weak password, weak secret,
// malformed input). Issues never contain the rejected value.
type ValidationError struct {
	Field  string
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return e.Field + ": invalid"
	}
	return e.Field + ": " + strings.Join(e.Issues, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// CryptoError wraps a failure from a cryptographic primitive. The message names
// the operation only; the underlying error is kept for errors.Is/As.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return "crypto: " + e.Op + " failed"
}

func (e *CryptoError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCrypto}
	}
	return []error{ErrCrypto, e.Err}
}
