package userauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/userauth/password"
	"github.com/MrEthical07/userauth/store"
)

// maxLoginAttempts bounds how often Login re-reads a record whose password
// hash changed between verification and the session write.
const maxLoginAttempts = 3

// Login verifies the credentials and installs a fresh session token,
// replacing any previous session of the user. An unknown email and a wrong
// password both fail with ErrInvalidCredentials.
//
// With Config.Password.UpgradeOnLogin an outdated hash is rewritten in the
// same store update that installs the session.
func (m *Manager) Login(ctx context.Context, email, plaintext string) (sessionToken string, err error) {
	if m == nil || m.store == nil {
		return "", ErrEngineNotReady
	}
	ctx, span := m.startSpan(ctx, "Login")
	defer func() { endSpan(span, err) }()
	defer observeSince(m, MetricLoginLatency, time.Now())

	if email == "" || plaintext == "" {
		return "", m.loginFailure(ctx, "", "empty_input")
	}

	var (
		rec     *store.User
		newHash string
	)
	for attempt := 1; ; attempt++ {
		rec, err = m.findBy(ctx, store.ByEmail(email))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return "", m.loginFailure(ctx, "", "unknown_email")
			}
			err = m.storeUnavailable(ctx, "login", err)
			m.emitAudit(ctx, auditEventLoginFailure, false, "", err, nil)
			return "", err
		}

		if reason := m.checkPassword(ctx, rec, plaintext); reason != "" {
			return "", m.loginFailure(ctx, rec.ID, reason)
		}

		// commit only while the hash just verified is still stored
		verified := rec.HashedPassword
		newHash = m.upgradedHash(ctx, rec, plaintext)
		sessionToken, err = m.issueToken(ctx, "login", rec.ID, func(tok string) store.Update {
			u := store.Update{SessionID: store.Set(tok), ExpectHashedPassword: &verified}
			if newHash != "" {
				u.HashedPassword = store.Set(newHash)
			}
			return u
		})
		if !errors.Is(err, store.ErrConflict) || attempt == maxLoginAttempts {
			break
		}
		m.logger.DebugContext(ctx, "password changed during login, verifying again", "user_id", rec.ID)
	}
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return "", m.loginFailure(ctx, rec.ID, "record_vanished")
		case errors.Is(err, store.ErrConflict):
			return "", m.loginFailure(ctx, rec.ID, "password_changed")
		case errors.Is(err, ErrStoreUnavailable):
		default:
			err = m.storeUnavailable(ctx, "login", err)
		}
		m.emitAudit(ctx, auditEventLoginFailure, false, rec.ID, err, nil)
		return "", err
	}

	if newHash != "" {
		m.metricInc(MetricPasswordRehash)
		m.emitAudit(ctx, auditEventPasswordRehash, true, rec.ID, nil, nil)
	}
	m.metricInc(MetricLoginSuccess)
	m.emitAudit(ctx, auditEventLoginSuccess, true, rec.ID, nil, nil)
	m.logger.InfoContext(ctx, "user logged in", "user_id", rec.ID)

	return sessionToken, nil
}

// ValidLogin reports whether the credentials match an account without
// touching the record. Only store failures are returned as errors.
func (m *Manager) ValidLogin(ctx context.Context, email, plaintext string) (valid bool, err error) {
	if m == nil || m.store == nil {
		return false, ErrEngineNotReady
	}
	ctx, span := m.startSpan(ctx, "ValidLogin")
	defer func() { endSpan(span, err) }()

	_, err = m.credentialRecord(ctx, "valid_login", email, plaintext)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrInvalidCredentials):
		return false, nil
	default:
		return false, err
	}
}

// Authenticate returns the account matching email and plaintext without
// creating a session, for per-request credentials such as HTTP Basic.
// Unknown emails, wrong passwords and empty input fail with
// ErrInvalidCredentials.
func (m *Manager) Authenticate(ctx context.Context, email, plaintext string) (user PublicUser, err error) {
	if m == nil || m.store == nil {
		return PublicUser{}, ErrEngineNotReady
	}
	ctx, span := m.startSpan(ctx, "Authenticate")
	defer func() { endSpan(span, err) }()

	rec, err := m.credentialRecord(ctx, "authenticate", email, plaintext)
	if err != nil {
		return PublicUser{}, err
	}
	return publicUser(rec), nil
}

func (m *Manager) credentialRecord(ctx context.Context, op, email, plaintext string) (*store.User, error) {
	if email == "" || plaintext == "" {
		return nil, ErrInvalidCredentials
	}
	rec, err := m.findBy(ctx, store.ByEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, m.storeUnavailable(ctx, op, err)
	}
	if m.checkPassword(ctx, rec, plaintext) != "" {
		return nil, ErrInvalidCredentials
	}
	return rec, nil
}

// checkPassword returns "" when plaintext matches rec, or the audit reason
// for the mismatch.
func (m *Manager) checkPassword(ctx context.Context, rec *store.User, plaintext string) string {
	ok, err := m.hasher.Verify(plaintext, rec.HashedPassword)
	switch {
	case errors.Is(err, password.ErrPasswordTooLong):
		return "password_too_long"
	case err != nil:
		m.logger.WarnContext(ctx, "stored password hash is unusable", "user_id", rec.ID, "error", err)
		return "bad_hash"
	case !ok:
		return "wrong_password"
	default:
		return ""
	}
}

func (m *Manager) loginFailure(ctx context.Context, userID, reason string) error {
	m.metricInc(MetricLoginFailure)
	m.emitAudit(ctx, auditEventLoginFailure, false, userID, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return ErrInvalidCredentials
}

// upgradedHash returns a replacement hash when the stored one is outdated, or
// "" when no upgrade applies. Failures only skip the upgrade.
func (m *Manager) upgradedHash(ctx context.Context, rec *store.User, plaintext string) string {
	if !m.config.Password.UpgradeOnLogin {
		return ""
	}
	checker, ok := m.hasher.(upgradeChecker)
	if !ok {
		return ""
	}
	needs, err := checker.NeedsUpgrade(rec.HashedPassword)
	if err != nil || !needs {
		return ""
	}
	h, err := m.hasher.Hash(plaintext)
	if err != nil {
		m.logger.WarnContext(ctx, "password rehash skipped", "user_id", rec.ID, "error", err)
		return ""
	}
	return h
}
