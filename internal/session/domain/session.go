package domain

import "time"

// Metadata describes the client a session was created for.
type Metadata struct {
	IPAddress string
	UserAgent string
}

// Session is one authenticated device or browser instance. Tokens are held only
// as SHA-256 hashes; their expiries bound how long revocation entries are kept.
type Session struct {
	ID               string
	Subject          string
	AccessTokenHash  string
	RefreshTokenHash string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Metadata         Metadata
	Active           bool
	RevokedAt        *time.Time // nil when not revoked
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Revocation is a token hash that must be rejected until ExpiresAt, after
// which the token fails expiry checks on its own.
type Revocation struct {
	TokenHash string
	ExpiresAt time.Time
	RevokedAt time.Time
}
