package token

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestGenerateDefaults(t *testing.T) {
	g, err := NewRandom(Config{})
	if err != nil {
		t.Fatalf("NewRandom error: %v", err)
	}

	tok, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	raw, err := hex.DecodeString(tok)
	if err != nil {
		t.Fatalf("expected hex output, got %q: %v", tok, err)
	}
	if len(raw) != DefaultBytes {
		t.Fatalf("expected %d bytes, got %d", DefaultBytes, len(raw))
	}
}

func TestGenerateEncodings(t *testing.T) {
	cases := []struct {
		encoding Encoding
		wantLen  int
	}{
		{EncodingHex, 32},
		{EncodingBase32, 26},
		{EncodingBase64URL, 22},
	}

	for _, tc := range cases {
		g, err := NewRandom(Config{Bytes: 16, Encoding: tc.encoding})
		if err != nil {
			t.Fatalf("NewRandom(%s) error: %v", tc.encoding, err)
		}
		tok, err := g.Generate()
		if err != nil {
			t.Fatalf("Generate(%s) error: %v", tc.encoding, err)
		}
		if len(tok) != tc.wantLen {
			t.Fatalf("%s: expected length %d, got %d (%q)", tc.encoding, tc.wantLen, len(tok), tok)
		}
		if strings.ContainsAny(tok, "=+/") {
			t.Fatalf("%s: token is not cookie safe: %q", tc.encoding, tok)
		}
	}

	g, err := NewRandom(Config{Bytes: 16, Encoding: EncodingBase64URL})
	if err != nil {
		t.Fatalf("NewRandom error: %v", err)
	}
	tok, _ := g.Generate()
	if _, err := base64.RawURLEncoding.DecodeString(tok); err != nil {
		t.Fatalf("expected base64url output: %v", err)
	}
}

func TestGenerateUnique(t *testing.T) {
	g, err := NewRandom(Config{Bytes: MinBytes})
	if err != nil {
		t.Fatalf("NewRandom error: %v", err)
	}

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tok, err := g.Generate()
		if err != nil {
			t.Fatalf("Generate error: %v", err)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token after %d draws", i)
		}
		seen[tok] = struct{}{}
	}
}

func TestNewRandomRejectsBadConfig(t *testing.T) {
	if _, err := NewRandom(Config{Bytes: 8}); err == nil {
		t.Fatal("expected sub-128-bit size to be rejected")
	}
	if _, err := NewRandom(Config{Bytes: MaxBytes + 1}); err == nil {
		t.Fatal("expected oversize token to be rejected")
	}
	if _, err := NewRandom(Config{Encoding: "rot13"}); err == nil {
		t.Fatal("expected unknown encoding to be rejected")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerateSourceFailure(t *testing.T) {
	g, err := NewRandom(Config{})
	if err != nil {
		t.Fatalf("NewRandom error: %v", err)
	}
	g.source = failingReader{}

	if _, err := g.Generate(); err == nil {
		t.Fatal("expected entropy failure to surface")
	}
}
