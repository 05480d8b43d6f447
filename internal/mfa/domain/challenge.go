package domain

import "time"

// Challenge is an outstanding one-time code for a subject. Only the code hash is kept.
type Challenge struct {
	ID        string
	Subject   string
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the challenge can no longer be answered at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
