package userauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/userauth/store"
)

// ResolveSession returns the email of the user holding sessionToken. Empty
// and unknown tokens fail with ErrUnauthenticated; an empty token never
// reaches the store.
func (m *Manager) ResolveSession(ctx context.Context, sessionToken string) (string, error) {
	u, err := m.SessionUser(ctx, sessionToken)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

// SessionUser is ResolveSession returning the full public identity.
func (m *Manager) SessionUser(ctx context.Context, sessionToken string) (user PublicUser, err error) {
	if m == nil || m.store == nil {
		return PublicUser{}, ErrEngineNotReady
	}
	ctx, span := m.startSpan(ctx, "ResolveSession")
	defer func() { endSpan(span, err) }()

	if sessionToken == "" {
		m.metricInc(MetricSessionRejected)
		return PublicUser{}, ErrUnauthenticated
	}

	rec, err := m.findBy(ctx, store.BySessionID(sessionToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.metricInc(MetricSessionRejected)
			return PublicUser{}, ErrUnauthenticated
		}
		return PublicUser{}, m.storeUnavailable(ctx, "resolve_session", err)
	}

	m.metricInc(MetricSessionResolved)
	return publicUser(rec), nil
}

// Logout clears the active session of userID. It is idempotent for known
// users and fails with ErrNotFound only when userID does not resolve.
func (m *Manager) Logout(ctx context.Context, userID string) (err error) {
	if m == nil || m.store == nil {
		return ErrEngineNotReady
	}
	ctx, span := m.startSpan(ctx, "Logout")
	defer func() { endSpan(span, err) }()

	if userID == "" {
		return ErrNotFound
	}

	rec, err := m.findBy(ctx, store.ByID(userID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.emitAudit(ctx, auditEventLogout, false, userID, ErrNotFound, nil)
			return ErrNotFound
		}
		return m.storeUnavailable(ctx, "logout", err)
	}

	if rec.SessionID == "" {
		m.emitAudit(ctx, auditEventLogout, true, rec.ID, nil, func() map[string]string {
			return map[string]string{"had_session": "false"}
		})
		return nil
	}

	if err := m.update(ctx, rec.ID, store.Update{SessionID: store.Clear()}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return m.storeUnavailable(ctx, "logout", err)
	}

	m.metricInc(MetricLogout)
	m.emitAudit(ctx, auditEventLogout, true, rec.ID, nil, func() map[string]string {
		return map[string]string{"had_session": "true"}
	})
	m.logger.InfoContext(ctx, "user logged out", "user_id", rec.ID)
	return nil
}
