package token

import (
	"testing"
)

func TestGenerate_Shape(t *testing.T) {
	tok, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(tok) != 11 {
		t.Errorf("len(token) = %d, want 11", len(tok))
	}
	if !Valid(tok) {
		t.Errorf("Valid(%q) = false, want true", tok)
	}
}

func TestGenerate_NoCollisions(t *testing.T) {
	const n = 100_000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		tok, err := Generate()
		if err != nil {
			t.Fatalf("Generate() error at %d: %v", i, err)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("collision after %d generations: %q", i, tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"abc123XY", true},
		{"Zm9vYmFyMQ", true},
		{"with-dash_ok", true},
		{"", false},
		{"short", false},
		{"has space here", false},
		{"semi;colon1", false},
		{"dots.are.bad", false},
	}
	for _, tc := range cases {
		if got := Valid(tc.in); got != tc.want {
			t.Errorf("Valid(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
