package userauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/userauth/store"
)

// maxTokenAttempts bounds regeneration when a fresh token collides with a
// live one. With 128+ bits of entropy a second attempt is already unheard of.
const maxTokenAttempts = 3

// Manager is the authentication core: registration, login, session
// resolution, logout and password reset over a store.UserStore.
//
// A Manager is safe for concurrent use. It holds no per-user state; every
// operation re-reads the record and commits its changes in one store update.
type Manager struct {
	config  Config
	store   store.UserStore
	hasher  PasswordHasher
	tokens  TokenGenerator
	logger  *slog.Logger
	tracer  trace.Tracer
	audit   *auditDispatcher
	metrics *Metrics
}

// Close flushes pending audit events. The Manager must not be used afterwards.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	if m.audit != nil {
		m.audit.Close()
	}
}

// AuditDropped reports events discarded because the audit buffer was full.
func (m *Manager) AuditDropped() uint64 {
	if m == nil || m.audit == nil {
		return 0
	}
	return m.audit.Dropped()
}

func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

// Ping probes the store when it supports health checks.
func (m *Manager) Ping(ctx context.Context) error {
	if m == nil || m.store == nil {
		return ErrEngineNotReady
	}
	p, ok := m.store.(StoreProber)
	if !ok {
		return nil
	}
	ctx, cancel := m.storeContext(ctx)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return m.storeUnavailable(ctx, "ping", err)
	}
	return nil
}

func (m *Manager) metricInc(id MetricID) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Inc(id)
}

// storeContext applies Config.Store.OperationTimeout on top of the caller's
// deadline.
func (m *Manager) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if m.config.Store.OperationTimeout > 0 {
		return context.WithTimeout(ctx, m.config.Store.OperationTimeout)
	}
	return context.WithCancel(ctx)
}

func (m *Manager) findBy(ctx context.Context, c store.Criteria) (*store.User, error) {
	ctx, cancel := m.storeContext(ctx)
	defer cancel()
	return m.store.FindBy(ctx, c)
}

func (m *Manager) update(ctx context.Context, id string, u store.Update) error {
	ctx, cancel := m.storeContext(ctx)
	defer cancel()
	return m.store.Update(ctx, id, u)
}

// storeUnavailable classifies a store failure outside the domain taxonomy.
func (m *Manager) storeUnavailable(ctx context.Context, op string, err error) error {
	m.metricInc(MetricStoreUnavailable)
	m.logger.WarnContext(ctx, "user store call failed", "operation", op, "error", err)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (m *Manager) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return m.tracer.Start(ctx, "userauth."+op, trace.WithSpanKind(trace.SpanKindInternal))
}

// endSpan records the outcome class. Domain failures are expected outcomes and
// leave the span status unset.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("userauth.outcome", string(auditErrorCode(err))))
		if !isDomainError(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(auditErrorCode(err)))
		}
	} else {
		span.SetAttributes(attribute.String("userauth.outcome", "ok"))
	}
	span.End()
}

func isDomainError(err error) bool {
	switch {
	case errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrNoSuchUser),
		errors.Is(err, ErrInvalidInput):
		return true
	default:
		return false
	}
}

// issueToken generates a token and commits the update built from it,
// regenerating on the practically impossible collision with a live token.
func (m *Manager) issueToken(ctx context.Context, op, userID string, build func(tok string) store.Update) (string, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		tok, err := m.tokens.Generate()
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}

		err = m.update(ctx, userID, build(tok))
		switch {
		case err == nil:
			return tok, nil
		case errors.Is(err, store.ErrAlreadyExists):
			m.logger.WarnContext(ctx, "generated token collided, regenerating", "operation", op, "user_id", userID)
			continue
		default:
			return "", err
		}
	}
	return "", fmt.Errorf("%w: token collision after %d attempts", ErrStoreUnavailable, maxTokenAttempts)
}

func observeSince(m *Manager, id MetricID, start time.Time) {
	if m.metrics.LatencyEnabled() {
		m.metrics.Observe(id, time.Since(start))
	}
}
