package domain

import "time"

// Roles carried in the access token's role claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is a local password identity. The TOTP secret, when enrolled, lives
// in the vault under TOTPSecretKey(ID); only the enabled flag is stored here.
type Identity struct {
	ID           string
	Email        string
	Role         string
	PasswordHash string
	TOTPEnabled  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TOTPSecretKey returns the vault key holding the identity's TOTP secret.
func TOTPSecretKey(identityID string) string {
	return "identity/" + identityID + "/totp"
}
