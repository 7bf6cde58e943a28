// Package token generates opaque bearer values for sessions and password
// resets from crypto/rand.
package token

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const (
	// MinBytes is the smallest accepted entropy size (128 bits).
	MinBytes = 16
	// MaxBytes caps token size so values stay usable as cookies and index keys.
	MaxBytes = 64
	// DefaultBytes is used when Config.Bytes is zero.
	DefaultBytes = 32
)

// Encoding names the text form of a generated token.
type Encoding string

const (
	EncodingHex       Encoding = "hex"
	EncodingBase32    Encoding = "base32"
	EncodingBase64URL Encoding = "base64url"
)

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// Generator produces fresh opaque tokens.
type Generator interface {
	Generate() (string, error)
}

// Config selects entropy size and encoding. Zero values pick DefaultBytes and hex.
type Config struct {
	Bytes    int
	Encoding Encoding
}

// Random is a Generator reading from a cryptographically secure source.
type Random struct {
	size   int
	encode func([]byte) string
	source io.Reader
}

// NewRandom validates cfg and returns a Random generator.
func NewRandom(cfg Config) (*Random, error) {
	size := cfg.Bytes
	if size == 0 {
		size = DefaultBytes
	}
	if size < MinBytes || size > MaxBytes {
		return nil, fmt.Errorf("token size must be between %d and %d bytes", MinBytes, MaxBytes)
	}

	encode, err := encoderFor(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	return &Random{size: size, encode: encode, source: rand.Reader}, nil
}

// Generate returns a new token. Output never depends on prior calls.
func (r *Random) Generate() (string, error) {
	raw := make([]byte, r.size)
	if _, err := io.ReadFull(r.source, raw); err != nil {
		return "", err
	}
	return r.encode(raw), nil
}

func encoderFor(e Encoding) (func([]byte) string, error) {
	switch e {
	case "", EncodingHex:
		return hex.EncodeToString, nil
	case EncodingBase32:
		return base32NoPad.EncodeToString, nil
	case EncodingBase64URL:
		return base64.RawURLEncoding.EncodeToString, nil
	default:
		return nil, errors.New("unsupported token encoding")
	}
}
