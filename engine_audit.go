package userauth

import (
	"context"
	"errors"
)

const (
	auditEventRegisterSuccess      = "register_success"
	auditEventRegisterDuplicate    = "register_duplicate"
	auditEventRegisterFailure      = "register_failure"
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventPasswordRehash       = "password_rehash"
	auditEventLogout               = "logout"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
)

// AuditErrorCode is the stable, secret-free error label carried by audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUnauthenticated    AuditErrorCode = "unauthenticated"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// emitAudit hands one event to the dispatcher. meta is only called when an
// audit sink is configured.
func (m *Manager) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	meta func() map[string]string,
) {
	if m == nil || m.audit == nil {
		return
	}

	info := requestInfoFrom(ctx)
	event := AuditEvent{
		EventType: eventType,
		UserID:    userID,
		IP:        info.clientIP,
		Success:   success,
		Error:     string(auditErrorCode(err)),
	}
	if meta != nil {
		event.Metadata = meta()
	}
	if info.userAgent != "" {
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		event.Metadata["user_agent"] = info.userAgent
	}

	m.audit.Emit(ctx, event)
}

// auditErrorCodes is checked in order; the first sentinel err wraps wins.
var auditErrorCodes = []struct {
	target error
	code   AuditErrorCode
}{
	{ErrInvalidCredentials, auditErrInvalidCredentials},
	{ErrUnauthenticated, auditErrUnauthenticated},
	{ErrInvalidToken, auditErrInvalidToken},
	{ErrNotFound, auditErrUserNotFound},
	{ErrNoSuchUser, auditErrUserNotFound},
	{ErrAlreadyExists, auditErrDuplicate},
	{ErrInvalidInput, auditErrInvalidInput},
	{ErrStoreUnavailable, auditErrUnavailable},
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	for _, c := range auditErrorCodes {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	return auditErrInternal
}
