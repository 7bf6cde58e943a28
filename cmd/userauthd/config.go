package main

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/MrEthical07/userauth"
	"github.com/MrEthical07/userauth/token"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// envPrefix selects environment overrides. Nested keys use a double
// underscore, e.g. USERAUTH_STORE__DRIVER=redis.
const envPrefix = "USERAUTH_"

const (
	driverMemory   = "memory"
	driverRedis    = "redis"
	driverPostgres = "postgres"
)

type httpConfig struct {
	Addr            string        `koanf:"addr"`
	CookieName      string        `koanf:"cookie_name"`
	SecureCookie    bool          `koanf:"secure_cookie"`
	BasicAuth       bool          `koanf:"basic_auth"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type storeConfig struct {
	Driver           string        `koanf:"driver"`
	RedisAddr        string        `koanf:"redis_addr"`
	RedisPrefix      string        `koanf:"redis_prefix"`
	DatabaseURL      string        `koanf:"database_url"`
	OperationTimeout time.Duration `koanf:"operation_timeout"`
	ConnectAttempts  uint64        `koanf:"connect_attempts"`
}

type passwordConfig struct {
	Algorithm  string `koanf:"algorithm"`
	BcryptCost int    `koanf:"bcrypt_cost"`
}

type tokenConfig struct {
	Bytes    int    `koanf:"bytes"`
	Encoding string `koanf:"encoding"`
}

type resetConfig struct {
	RevokeSession bool `koanf:"revoke_session"`
}

type logConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

type metricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

type auditConfig struct {
	Enabled bool `koanf:"enabled"`
}

type appConfig struct {
	HTTP          httpConfig     `koanf:"http"`
	Store         storeConfig    `koanf:"store"`
	Password      passwordConfig `koanf:"password"`
	Token         tokenConfig    `koanf:"token"`
	PasswordReset resetConfig    `koanf:"password_reset"`
	Log           logConfig      `koanf:"log"`
	Metrics       metricsConfig  `koanf:"metrics"`
	Audit         auditConfig    `koanf:"audit"`
}

func defaultAppConfig() appConfig {
	lib := userauth.DefaultConfig()
	return appConfig{
		HTTP: httpConfig{
			Addr:            ":5000",
			CookieName:      "session_id",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: storeConfig{
			Driver:           driverMemory,
			RedisAddr:        "localhost:6379",
			RedisPrefix:      "ua",
			OperationTimeout: lib.Store.OperationTimeout,
			ConnectAttempts:  5,
		},
		Password: passwordConfig{
			Algorithm:  string(lib.Password.Algorithm),
			BcryptCost: lib.Password.BcryptCost,
		},
		Token: tokenConfig{
			Bytes:    lib.Token.Bytes,
			Encoding: string(lib.Token.Encoding),
		},
		Log: logConfig{
			Format: "json",
			Level:  "info",
		},
		Metrics: metricsConfig{Enabled: true},
	}
}

// registerFlags binds the command-line overrides. Flag names are koanf keys.
func registerFlags(flags *pflag.FlagSet) {
	d := defaultAppConfig()
	flags.String("http.addr", d.HTTP.Addr, "listen address")
	flags.Bool("http.basic_auth", d.HTTP.BasicAuth, "accept HTTP Basic credentials on /profile")
	flags.String("store.driver", d.Store.Driver, "user store: memory, redis or postgres")
	flags.String("store.redis_addr", d.Store.RedisAddr, "redis address")
	flags.String("store.database_url", d.Store.DatabaseURL, "postgres connection URL")
	flags.String("log.format", d.Log.Format, "log format: json or text")
	flags.String("log.level", d.Log.Level, "log level")
	flags.Bool("metrics.enabled", d.Metrics.Enabled, "expose /metrics")
}

// loadConfig layers defaults, the YAML file, .env and USERAUTH_ variables,
// then explicitly set flags.
func loadConfig(path string, flags *pflag.FlagSet) (appConfig, error) {
	cfg := defaultAppConfig()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, oops.Code("CONFIG_LOAD_FAILED").With("path", ".env").Wrap(err)
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return cfg, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return cfg, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

func (c appConfig) validate() error {
	switch c.Store.Driver {
	case driverMemory, driverRedis:
	case driverPostgres:
		if c.Store.DatabaseURL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("store.database_url is required for the postgres driver")
		}
	default:
		return oops.Code("CONFIG_INVALID").Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.addr must be set")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("http.shutdown_timeout must be > 0")
	}
	mc := c.managerConfig()
	if err := mc.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return nil
}

func (c appConfig) managerConfig() userauth.Config {
	cfg := userauth.DefaultConfig()
	cfg.Password.Algorithm = userauth.PasswordAlgorithm(c.Password.Algorithm)
	cfg.Password.BcryptCost = c.Password.BcryptCost
	cfg.Token.Bytes = c.Token.Bytes
	cfg.Token.Encoding = token.Encoding(c.Token.Encoding)
	cfg.PasswordReset.RevokeSession = c.PasswordReset.RevokeSession
	cfg.Store.OperationTimeout = c.Store.OperationTimeout
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Enabled
	cfg.Audit.Enabled = c.Audit.Enabled
	return cfg
}
