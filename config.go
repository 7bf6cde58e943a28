package userauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/userauth/password"
	"github.com/MrEthical07/userauth/token"
)

// Config is captured by Builder.Build and treated as immutable afterwards.
type Config struct {
	Password      PasswordConfig
	Token         TokenConfig
	PasswordReset PasswordResetConfig
	Store         StoreConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

// PasswordAlgorithm selects the primary hash format for new hashes.
type PasswordAlgorithm string

const (
	AlgorithmArgon2id PasswordAlgorithm = "argon2id"
	AlgorithmBcrypt   PasswordAlgorithm = "bcrypt"
)

type PasswordConfig struct {
	Algorithm PasswordAlgorithm

	// Argon2id parameters.
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	BcryptCost       int
	MaxPasswordBytes int

	// UpgradeOnLogin rewrites hashes produced with outdated parameters or a
	// non-primary algorithm after a successful login.
	UpgradeOnLogin bool
}

type TokenConfig struct {
	Bytes    int
	Encoding token.Encoding
}

type PasswordResetConfig struct {
	// RevokeSession also ends the active session when a reset is confirmed.
	RevokeSession bool
}

type StoreConfig struct {
	// OperationTimeout bounds each store call. Zero leaves only the caller's deadline.
	OperationTimeout time.Duration
}

type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	SinkTimeout time.Duration
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Algorithm:        AlgorithmArgon2id,
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			BcryptCost:       12,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
			UpgradeOnLogin:   true,
		},
		Token: TokenConfig{
			Bytes:    token.DefaultBytes,
			Encoding: token.EncodingHex,
		},
		Store: StoreConfig{
			OperationTimeout: 5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:     false,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// cloneConfig copies cfg. Config holds no reference types today; keep this
// the single place to deep-copy if one is added.
func cloneConfig(cfg Config) Config {
	return cfg
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch c.Password.Algorithm {
	case AlgorithmArgon2id:
		if c.Password.Memory < 8*1024 {
			return errors.New("Password Memory must be >= 8192 KB")
		}
		if c.Password.Time < 1 {
			return errors.New("Password Time must be >= 1")
		}
		if c.Password.Parallelism < 1 {
			return errors.New("Password Parallelism must be >= 1")
		}
		if c.Password.SaltLength < 16 {
			return errors.New("Password SaltLength must be >= 16")
		}
		if c.Password.KeyLength < 16 {
			return errors.New("Password KeyLength must be >= 16")
		}
	case AlgorithmBcrypt:
	default:
		return fmt.Errorf("Password Algorithm %q is not supported", c.Password.Algorithm)
	}
	if c.Password.BcryptCost != 0 && (c.Password.BcryptCost < 10 || c.Password.BcryptCost > 31) {
		return errors.New("Password BcryptCost must be 0 or between 10 and 31")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	if c.Token.Bytes < token.MinBytes || c.Token.Bytes > token.MaxBytes {
		return fmt.Errorf("Token Bytes must be between %d and %d", token.MinBytes, token.MaxBytes)
	}
	switch c.Token.Encoding {
	case token.EncodingHex, token.EncodingBase32, token.EncodingBase64URL:
	default:
		return fmt.Errorf("Token Encoding %q is not supported", c.Token.Encoding)
	}

	if c.Store.OperationTimeout < 0 {
		return errors.New("Store OperationTimeout must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Audit.SinkTimeout < 0 {
		return errors.New("Audit SinkTimeout must be >= 0")
	}

	return nil
}
