package security

import (
	"fmt"
	"strings"
)

// DefaultSensitiveFields are masked in audit details when no explicit list is given.
var DefaultSensitiveFields = []string{"password", "token", "key", "secret", "apiKey"}

// maskKeep is the number of leading and trailing characters left visible.
const maskKeep = 3

// MaskSensitiveData returns a shallow copy of data with each listed field masked.
// Other values are copied as-is. Missing, nil and empty fields are left alone.
func MaskSensitiveData(data map[string]any, fields []string) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	for _, f := range fields {
		v, ok := out[f]
		if !ok || v == nil {
			continue
		}
		s := fmt.Sprint(v)
		if s == "" {
			continue
		}
		out[f] = MaskValue(s)
	}
	return out
}

// MaskValue keeps the first and last three characters of s and stars the rest.
// Values shorter than nine characters are starred entirely so at least three
// characters are always hidden.
func MaskValue(s string) string {
	r := []rune(s)
	if len(r) < 3*maskKeep {
		return strings.Repeat("*", len(r))
	}
	return string(r[:maskKeep]) + strings.Repeat("*", len(r)-2*maskKeep) + string(r[len(r)-maskKeep:])
}
