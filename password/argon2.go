package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Lower bounds for both configuration and stored hashes.
const (
	minMemoryKB    = 8 * 1024
	minTimeCost    = 1
	minParallelism = 1
	minSaltLength  = 16
	minKeyLength   = 16
)

const argon2Prefix = "$argon2id$"

var errMalformedArgon2 = errors.New("malformed argon2id hash")

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// argon2Params is what a PHC string records about one derivation.
type argon2Params struct {
	memory      uint32
	time        uint32
	parallelism uint8
	keyLength   uint32
}

// weakerThan reports whether p is below target on any cost axis, or uses a
// different key length.
func (p argon2Params) weakerThan(target argon2Params) bool {
	return p.memory < target.memory ||
		p.time < target.time ||
		p.parallelism < target.parallelism ||
		p.keyLength != target.keyLength
}

// Argon2 is a [Hasher] producing Argon2id PHC strings:
//
//	$argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>
//
// Salt and key use unpadded standard base64. Padded input is accepted.
type Argon2 struct {
	params     argon2Params
	saltLength uint32
	maxBytes   int
}

// NewArgon2 rejects parameters below the package minimums.
func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case cfg.Time < minTimeCost:
		return nil, fmt.Errorf("password time must be >= %d", minTimeCost)
	case cfg.Parallelism < minParallelism:
		return nil, fmt.Errorf("password parallelism must be >= %d", minParallelism)
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("password key length must be >= %d", minKeyLength)
	case cfg.MaxPasswordBytes < 0:
		return nil, errors.New("password max bytes must be >= 0")
	}

	return &Argon2{
		params: argon2Params{
			memory:      cfg.Memory,
			time:        cfg.Time,
			parallelism: cfg.Parallelism,
			keyLength:   cfg.KeyLength,
		},
		saltLength: cfg.SaltLength,
		maxBytes:   cfg.MaxPasswordBytes,
	}, nil
}

// Hash derives a key with a fresh salt. The plaintext is used as raw bytes.
func (a *Argon2) Hash(password string) (string, error) {
	if err := checkLength(password, a.maxBytes); err != nil {
		return "", err
	}

	salt := make([]byte, a.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := derive(password, salt, a.params)
	return encodeArgon2(a.params, salt, key), nil
}

// Verify recomputes the key with the parameters stored in encodedHash. A
// plaintext over the byte limit fails without hashing.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	if err := checkLength(password, a.maxBytes); errors.Is(err, ErrPasswordTooLong) {
		return false, err
	}

	p, salt, key, err := decodeArgon2(encodedHash)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(derive(password, salt, p), key) == 1, nil
}

func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	p, _, _, err := decodeArgon2(encodedHash)
	if err != nil {
		return false, err
	}
	return p.weakerThan(a.params), nil
}

func (a *Argon2) Recognizes(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, argon2Prefix)
}

func derive(password string, salt []byte, p argon2Params) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.parallelism, p.keyLength)
}

func encodeArgon2(p argon2Params, salt, key []byte) string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix,
		argon2.Version,
		p.memory, p.time, p.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func decodeArgon2(encoded string) (argon2Params, []byte, []byte, error) {
	var p argon2Params

	rest, ok := strings.CutPrefix(encoded, argon2Prefix)
	if !ok {
		return p, nil, nil, fmt.Errorf("%w: not an argon2id hash", errMalformedArgon2)
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return p, nil, nil, fmt.Errorf("%w: want 4 sections, got %d", errMalformedArgon2, len(fields))
	}

	var version int
	if n, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil || n != 1 {
		return p, nil, nil, fmt.Errorf("%w: version", errMalformedArgon2)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: unsupported version %d", errMalformedArgon2, version)
	}

	var lanes uint32
	if n, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &p.memory, &p.time, &lanes); err != nil || n != 3 {
		return p, nil, nil, fmt.Errorf("%w: parameters", errMalformedArgon2)
	}
	if fields[1] != fmt.Sprintf("m=%d,t=%d,p=%d", p.memory, p.time, lanes) {
		return p, nil, nil, fmt.Errorf("%w: parameters", errMalformedArgon2)
	}
	if p.memory < minMemoryKB || p.time < minTimeCost || lanes < minParallelism || lanes > 255 {
		return p, nil, nil, fmt.Errorf("%w: parameters out of range", errMalformedArgon2)
	}
	p.parallelism = uint8(lanes)

	salt, err := decodeB64(fields[2])
	if err != nil || len(salt) < minSaltLength {
		return p, nil, nil, fmt.Errorf("%w: salt", errMalformedArgon2)
	}
	key, err := decodeB64(fields[3])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: key", errMalformedArgon2)
	}
	p.keyLength = uint32(len(key))

	return p, salt, key, nil
}

func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
