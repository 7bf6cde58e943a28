package userauth

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/userauth/password"
	"github.com/MrEthical07/userauth/store"
	"github.com/MrEthical07/userauth/token"
)

const tracerName = "github.com/MrEthical07/userauth"

// Builder assembles a Manager. A Builder is single use.
type Builder struct {
	config Config

	store     store.UserStore
	hasher    PasswordHasher
	tokens    TokenGenerator
	auditSink AuditSink
	logger    *slog.Logger
	tracerP   trace.TracerProvider

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithStore(s store.UserStore) *Builder {
	b.store = s
	return b
}

// WithHasher overrides the hasher derived from Config.Password.
func (b *Builder) WithHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithTokenGenerator overrides the generator derived from Config.Token.
func (b *Builder) WithTokenGenerator(g TokenGenerator) *Builder {
	b.tokens = g
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerP = tp
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("user store required")
	}

	hasher := b.hasher
	if hasher == nil {
		h, err := newHasher(cfg.Password)
		if err != nil {
			return nil, err
		}
		hasher = h
	}

	tokens := b.tokens
	if tokens == nil {
		g, err := token.NewRandom(token.Config{Bytes: cfg.Token.Bytes, Encoding: cfg.Token.Encoding})
		if err != nil {
			return nil, err
		}
		tokens = g
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := b.tracerP
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	b.built = true

	return &Manager{
		config:  cfg,
		store:   b.store,
		hasher:  hasher,
		tokens:  tokens,
		logger:  logger.With("component", "userauth"),
		tracer:  tp.Tracer(tracerName),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}, nil
}

// newHasher builds a dispatcher whose primary follows cfg.Algorithm. The
// other algorithm stays registered for verification so stored hashes keep
// working after a switch and get upgraded on login.
func newHasher(cfg PasswordConfig) (*password.Dispatcher, error) {
	bc, err := password.NewBcrypt(password.BcryptConfig{Cost: cfg.BcryptCost})
	if err != nil {
		return nil, err
	}
	argon, argonErr := password.NewArgon2(password.Config{
		Memory:           cfg.Memory,
		Time:             cfg.Time,
		Parallelism:      cfg.Parallelism,
		SaltLength:       cfg.SaltLength,
		KeyLength:        cfg.KeyLength,
		MaxPasswordBytes: cfg.MaxPasswordBytes,
	})

	if cfg.Algorithm == AlgorithmBcrypt {
		if argonErr != nil {
			// argon2 parameters are optional in bcrypt mode
			return password.NewDispatcher(bc), nil
		}
		return password.NewDispatcher(bc, argon), nil
	}
	if argonErr != nil {
		return nil, argonErr
	}
	return password.NewDispatcher(argon, bc), nil
}
