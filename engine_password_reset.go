package userauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/userauth/password"
	"github.com/MrEthical07/userauth/store"
)

// RequestPasswordReset issues a reset token for the account with email,
// replacing any pending one. An unknown email fails with ErrNoSuchUser; the
// caller decides whether to mask that at its boundary.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) (resetToken string, err error) {
	if m == nil || m.store == nil {
		return "", ErrEngineNotReady
	}
	ctx, span := m.startSpan(ctx, "RequestPasswordReset")
	defer func() { endSpan(span, err) }()

	m.metricInc(MetricPasswordResetRequest)

	if email == "" {
		return "", m.resetUnknownEmail(ctx)
	}

	rec, err := m.findBy(ctx, store.ByEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", m.resetUnknownEmail(ctx)
		}
		return "", m.storeUnavailable(ctx, "request_password_reset", err)
	}

	resetToken, err = m.issueToken(ctx, "request_password_reset", rec.ID, func(tok string) store.Update {
		return store.Update{ResetToken: store.Set(tok)}
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return "", m.resetUnknownEmail(ctx)
		case errors.Is(err, ErrStoreUnavailable):
		default:
			err = m.storeUnavailable(ctx, "request_password_reset", err)
		}
		m.emitAudit(ctx, auditEventPasswordResetRequest, false, rec.ID, err, nil)
		return "", err
	}

	m.emitAudit(ctx, auditEventPasswordResetRequest, true, rec.ID, nil, nil)
	m.logger.InfoContext(ctx, "password reset requested", "user_id", rec.ID)
	return resetToken, nil
}

// ConfirmPasswordReset replaces the password of the user holding resetToken
// and consumes the token. The token is single use even under concurrent
// confirmation: the update only commits while the record still holds it.
//
// With Config.PasswordReset.RevokeSession the active session is cleared in
// the same update.
func (m *Manager) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) (err error) {
	if m == nil || m.store == nil {
		return ErrEngineNotReady
	}
	ctx, span := m.startSpan(ctx, "ConfirmPasswordReset")
	defer func() { endSpan(span, err) }()

	if resetToken == "" {
		return m.resetConfirmFailure(ctx, "", ErrInvalidToken)
	}
	if newPassword == "" {
		return m.resetConfirmFailure(ctx, "", ErrInvalidInput)
	}

	rec, err := m.findBy(ctx, store.ByResetToken(resetToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return m.resetConfirmFailure(ctx, "", ErrInvalidToken)
		}
		return m.storeUnavailable(ctx, "confirm_password_reset", err)
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrEmptyPassword) || errors.Is(err, password.ErrPasswordTooLong) {
			return m.resetConfirmFailure(ctx, rec.ID, fmt.Errorf("%w: %v", ErrInvalidInput, err))
		}
		return fmt.Errorf("hash password: %w", err)
	}

	guard := store.ByResetToken(resetToken)
	update := store.Update{
		HashedPassword: store.Set(hash),
		ResetToken:     store.Clear(),
		Guard:          &guard,
	}
	if m.config.PasswordReset.RevokeSession {
		update.SessionID = store.Clear()
	}

	if err := m.update(ctx, rec.ID, update); err != nil {
		if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
			return m.resetConfirmFailure(ctx, rec.ID, ErrInvalidToken)
		}
		err = m.storeUnavailable(ctx, "confirm_password_reset", err)
		m.emitAudit(ctx, auditEventPasswordResetConfirm, false, rec.ID, err, nil)
		return err
	}

	m.metricInc(MetricPasswordResetConfirmSuccess)
	m.emitAudit(ctx, auditEventPasswordResetConfirm, true, rec.ID, nil, func() map[string]string {
		if m.config.PasswordReset.RevokeSession {
			return map[string]string{"session_revoked": "true"}
		}
		return nil
	})
	m.logger.InfoContext(ctx, "password reset confirmed", "user_id", rec.ID)
	return nil
}

func (m *Manager) resetUnknownEmail(ctx context.Context) error {
	m.metricInc(MetricPasswordResetUnknownEmail)
	m.emitAudit(ctx, auditEventPasswordResetRequest, false, "", ErrNoSuchUser, nil)
	return ErrNoSuchUser
}

func (m *Manager) resetConfirmFailure(ctx context.Context, userID string, err error) error {
	m.metricInc(MetricPasswordResetConfirmFailure)
	m.emitAudit(ctx, auditEventPasswordResetConfirm, false, userID, err, nil)
	return err
}
