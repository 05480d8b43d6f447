package security

import "testing"

func TestHashToken_Deterministic(t *testing.T) {
	h1 := HashToken("header.payload.sig")
	h2 := HashToken("header.payload.sig")
	if h1 != h2 {
		t.Errorf("HashToken not deterministic: %q vs %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64", len(h1))
	}
	if HashToken("token-1") == HashToken("token-2") {
		t.Error("HashToken collided for different tokens")
	}
}

func TestTokenHashEqual(t *testing.T) {
	stored := HashToken("correct-token")
	cases := []struct {
		name   string
		token  string
		stored string
		want   bool
	}{
		{"match", "correct-token", stored, true},
		{"wrong token", "wrong-token", stored, false},
		{"longer hash", "correct-token", "a" + stored, false},
		{"same length different content", "correct-token", "x" + stored[1:], false},
		{"empty inputs", "", "", false},
		{"empty token", "", stored, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TokenHashEqual(tc.token, tc.stored); got != tc.want {
				t.Errorf("TokenHashEqual = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTokenFingerprint(t *testing.T) {
	fp := TokenFingerprint("abc")
	if len(fp) != 12 || fp != HashToken("abc")[:12] {
		t.Errorf("TokenFingerprint = %q", fp)
	}
}
