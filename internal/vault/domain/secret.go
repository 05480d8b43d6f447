package domain

import (
	"time"

	"trustcore/internal/security"
)

// Metadata describes a stored secret.
type Metadata struct {
	Owner     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Rotated   bool
}

// Secret is a vault entry. Value is always ciphertext.
type Secret struct {
	Key      string
	Value    security.EncryptedField
	Metadata Metadata
}

// Expired reports whether the secret is past its expiry at now.
func (s *Secret) Expired(now time.Time) bool {
	return now.After(s.Metadata.ExpiresAt)
}

// RotationStatus flags a secret close to expiry.
type RotationStatus struct {
	Key              string `json:"key"`
	DaysUntilExpiry  int    `json:"daysUntilExpiry"`
	RequiresRotation bool   `json:"requiresRotation"`
}
