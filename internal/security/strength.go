package security

import (
	"strings"
	"unicode"
)

const (
	// MinPasswordLength is the length factor threshold for passwords.
	MinPasswordLength = 12
	// MinSecretLength is the length factor threshold for vault secrets.
	MinSecretLength = 32

	factorPoints = 25
	maxScore     = 100
)

const specialChars = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// Strength is the outcome of a password or secret policy check. Score is 0..100
// in steps of 25; Issues lists every unmet factor in a fixed order.
type Strength struct {
	Score  int
	Issues []string
}

// OK reports whether every factor was met.
func (s Strength) OK() bool { return len(s.Issues) == 0 }

// Require returns a *ValidationError listing the unmet factors when Score is below min.
func (s Strength) Require(min int) error {
	if s.Score >= min {
		return nil
	}
	return &ValidationError{Field: "strength", Issues: append([]string(nil), s.Issues...)}
}

// ValidatePasswordStrength scores password on length, upper, lower, digit and
// special-character factors. Five factors at 25 points each are clamped to 100.
func ValidatePasswordStrength(password string) Strength {
	var s Strength
	check(&s, len([]rune(password)) >= MinPasswordLength, "Password must be at least 12 characters long")
	check(&s, strings.IndexFunc(password, unicode.IsUpper) >= 0, "Password must contain uppercase letters")
	check(&s, strings.IndexFunc(password, unicode.IsLower) >= 0, "Password must contain lowercase letters")
	check(&s, strings.IndexFunc(password, unicode.IsDigit) >= 0, "Password must contain numbers")
	check(&s, strings.ContainsAny(password, specialChars), "Password must contain special characters")
	if s.Score > maxScore {
		s.Score = maxScore
	}
	return s
}

// ValidateSecretStrength scores a vault secret on length (32+), upper, lower and digit factors.
func ValidateSecretStrength(secret string) Strength {
	var s Strength
	check(&s, len([]rune(secret)) >= MinSecretLength, "Secret must be at least 32 characters long")
	check(&s, strings.IndexFunc(secret, unicode.IsUpper) >= 0, "Secret must contain uppercase letters")
	check(&s, strings.IndexFunc(secret, unicode.IsLower) >= 0, "Secret must contain lowercase letters")
	check(&s, strings.IndexFunc(secret, unicode.IsDigit) >= 0, "Secret must contain numbers")
	return s
}

func check(s *Strength, ok bool, issue string) {
	if ok {
		s.Score += factorPoints
		return
	}
	s.Issues = append(s.Issues, issue)
}
