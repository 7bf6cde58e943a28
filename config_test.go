package userauth

import (
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/userauth/store"
	"github.com/MrEthical07/userauth/store/memory"
	"github.com/MrEthical07/userauth/token"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "argon2 memory too low",
			mutate: func(c *Config) {
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "argon2 salt too short",
			mutate: func(c *Config) {
				c.Password.SaltLength = 8
			},
			wantValid: false,
		},
		{
			name: "bcrypt ignores argon2 parameters",
			mutate: func(c *Config) {
				c.Password.Algorithm = AlgorithmBcrypt
				c.Password.Memory = 0
			},
			wantValid: true,
		},
		{
			name: "bcrypt cost out of range",
			mutate: func(c *Config) {
				c.Password.BcryptCost = 4
			},
			wantValid: false,
		},
		{
			name: "unknown algorithm",
			mutate: func(c *Config) {
				c.Password.Algorithm = "scrypt"
			},
			wantValid: false,
		},
		{
			name: "token too short",
			mutate: func(c *Config) {
				c.Token.Bytes = token.MinBytes - 1
			},
			wantValid: false,
		},
		{
			name: "token base32",
			mutate: func(c *Config) {
				c.Token.Encoding = token.EncodingBase32
			},
			wantValid: true,
		},
		{
			name: "token encoding unknown",
			mutate: func(c *Config) {
				c.Token.Encoding = "base58"
			},
			wantValid: false,
		},
		{
			name: "negative store timeout",
			mutate: func(c *Config) {
				c.Store.OperationTimeout = -time.Second
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected invalid config")
			}
		})
	}
}

func TestBuilderRequiresStore(t *testing.T) {
	_, err := New().WithConfig(testConfig()).Build()
	if err == nil || !strings.Contains(err.Error(), "store") {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithStore(memory.New())
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer m.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Token.Bytes = 1
	if _, err := New().WithConfig(cfg).WithStore(memory.New()).Build(); err == nil {
		t.Fatal("expected Build to reject invalid config")
	}
}

func TestBuilderBcryptPrimary(t *testing.T) {
	cfg := testConfig()
	cfg.Password.Algorithm = AlgorithmBcrypt
	s := memory.New()
	m := newTestManager(t, cfg, s)

	user, err := m.Register(t.Context(), "a@x.com", "pw1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	rec, _ := s.FindBy(t.Context(), store.ByID(user.ID))
	if !strings.HasPrefix(rec.HashedPassword, "$2") {
		t.Fatalf("expected bcrypt hash, got %q", rec.HashedPassword)
	}
	if _, err := m.Login(t.Context(), "a@x.com", "pw1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
}
