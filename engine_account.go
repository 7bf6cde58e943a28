package userauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/userauth/password"
	"github.com/MrEthical07/userauth/store"
)

// Register creates an account for email with a freshly hashed password. The
// new record carries neither a session nor a reset token.
//
// It fails with ErrAlreadyExists when the email is taken and with
// ErrInvalidInput for an empty email or a password the hasher rejects.
func (m *Manager) Register(ctx context.Context, email, plaintext string) (user PublicUser, err error) {
	if m == nil || m.store == nil {
		return PublicUser{}, ErrEngineNotReady
	}
	ctx, span := m.startSpan(ctx, "Register")
	defer func() { endSpan(span, err) }()

	if email == "" || plaintext == "" {
		m.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrInvalidInput, nil)
		return PublicUser{}, ErrInvalidInput
	}

	// hashing is the expensive step, so reject known emails before it
	_, err = m.findBy(ctx, store.ByEmail(email))
	switch {
	case err == nil:
		return PublicUser{}, m.registerDuplicate(ctx)
	case !errors.Is(err, store.ErrNotFound):
		err = m.storeUnavailable(ctx, "register", err)
		m.emitAudit(ctx, auditEventRegisterFailure, false, "", err, nil)
		return PublicUser{}, err
	}

	hash, err := m.hasher.Hash(plaintext)
	if err != nil {
		if errors.Is(err, password.ErrEmptyPassword) || errors.Is(err, password.ErrPasswordTooLong) {
			err = fmt.Errorf("%w: %v", ErrInvalidInput, err)
			m.emitAudit(ctx, auditEventRegisterFailure, false, "", err, nil)
			return PublicUser{}, err
		}
		return PublicUser{}, fmt.Errorf("hash password: %w", err)
	}

	createCtx, cancel := m.storeContext(ctx)
	rec, err := m.store.Create(createCtx, email, hash)
	cancel()
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		// lost a race with a concurrent registration
		return PublicUser{}, m.registerDuplicate(ctx)
	case err != nil:
		err = m.storeUnavailable(ctx, "register", err)
		m.emitAudit(ctx, auditEventRegisterFailure, false, "", err, nil)
		return PublicUser{}, err
	}

	m.metricInc(MetricRegisterSuccess)
	m.emitAudit(ctx, auditEventRegisterSuccess, true, rec.ID, nil, nil)
	m.logger.InfoContext(ctx, "user registered", "user_id", rec.ID)

	return publicUser(rec), nil
}

func (m *Manager) registerDuplicate(ctx context.Context) error {
	m.metricInc(MetricRegisterDuplicate)
	m.emitAudit(ctx, auditEventRegisterDuplicate, false, "", ErrAlreadyExists, nil)
	return ErrAlreadyExists
}
